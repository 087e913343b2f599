package service

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"carprice/internal/api"
	"carprice/internal/catalog"
	"carprice/internal/domain"
	"carprice/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const catalogCSV = `brand,car_model,year_of_production,fuel_type,transmission,body,number_of_doors,color
Opel,Astra,2015,Diesel,Manual,Kombi,5,Gray
Opel,Corsa,2011,Petrol,Manual,Hatchback,3,Red
Kia,Ceed,2019,Petrol,Manual,Hatchback,5,White
`

func writeDataset(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cars.csv")
	require.NoError(t, os.WriteFile(path, []byte(catalogCSV), 0o600))
	return path
}

type countingLoader struct {
	calls int
}

func (l *countingLoader) load(path string) ([]catalog.Row, error) {
	l.calls++
	return catalog.LoadFile(path)
}

func TestCatalogService_DropdownOptions(t *testing.T) {
	t.Run("loads_then_serves_from_cache", func(t *testing.T) {
		cache := testutil.NewMockCache()
		svc := NewCatalogService(writeDataset(t), cache)
		loader := &countingLoader{}
		svc.load = loader.load

		first, err := svc.DropdownOptions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Kia", "Opel"}, first.Brand)
		assert.Equal(t, 2011, *first.YearOfProduction.Min)
		assert.Equal(t, 3, *first.NumberOfDoors.Min)
		assert.Equal(t, time.Hour, cache.TTLs[dropdownOptionsKey])

		second, err := svc.DropdownOptions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first, second)
		assert.Equal(t, 1, loader.calls)
	})

	t.Run("cache_failure_falls_back_to_file", func(t *testing.T) {
		cache := testutil.NewMockCache()
		cache.GetFunc = func(ctx context.Context, key string, dst any) (bool, error) {
			return false, testutil.ErrMockUnavailable
		}
		cache.SetFunc = func(ctx context.Context, key string, value any, ttl time.Duration) error {
			return testutil.ErrMockUnavailable
		}
		svc := NewCatalogService(writeDataset(t), cache)

		opts, err := svc.DropdownOptions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Diesel", "Petrol"}, opts.FuelType)
	})

	t.Run("no_cache", func(t *testing.T) {
		svc := NewCatalogService(writeDataset(t), nil)

		opts, err := svc.DropdownOptions(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []string{"Gray", "Red", "White"}, opts.Color)
	})

	t.Run("missing_dataset", func(t *testing.T) {
		svc := NewCatalogService(filepath.Join(t.TempDir(), "absent.csv"), testutil.NewMockCache())

		_, err := svc.DropdownOptions(context.Background())
		assert.ErrorIs(t, err, domain.ErrCatalogUnavailable)
	})
}

func TestCatalogService_BrandModelMapping(t *testing.T) {
	cache := testutil.NewMockCache()
	svc := NewCatalogService(writeDataset(t), cache)
	loader := &countingLoader{}
	svc.load = loader.load

	mapping, err := svc.BrandModelMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, api.BrandModelMapping{"Opel": {"Astra", "Corsa"}, "Kia": {"Ceed"}}, mapping)
	assert.Equal(t, 24*time.Hour, cache.TTLs[brandModelKey])

	_, err = svc.BrandModelMapping(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, loader.calls)
}
