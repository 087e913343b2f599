package service

import (
	"context"
	"log/slog"
	"time"

	"carprice/internal/api"
	"carprice/internal/catalog"
	"carprice/internal/domain"
	"carprice/internal/observability"
)

const (
	dropdownOptionsKey = "dropdown_options"
	brandModelKey      = "brand_model_mapping"

	dropdownOptionsTTL = time.Hour
	brandModelTTL      = 24 * time.Hour
)

// CatalogService serves option lists derived from the dataset file. Results
// are cached when a cache is configured; cache failures fall back to the file.
type CatalogService struct {
	path  string
	cache domain.Cache
	load  func(path string) ([]catalog.Row, error)
}

func NewCatalogService(path string, cache domain.Cache) *CatalogService {
	return &CatalogService{path: path, cache: cache, load: catalog.LoadFile}
}

func (s *CatalogService) DropdownOptions(ctx context.Context) (api.DropdownOptions, error) {
	var opts api.DropdownOptions
	if s.cached(ctx, dropdownOptionsKey, &opts) {
		return opts, nil
	}

	rows, err := s.load(s.path)
	if err != nil {
		return api.DropdownOptions{}, err
	}
	opts = catalog.DropdownOptions(rows)
	s.store(ctx, dropdownOptionsKey, opts, dropdownOptionsTTL)
	return opts, nil
}

func (s *CatalogService) BrandModelMapping(ctx context.Context) (api.BrandModelMapping, error) {
	var mapping api.BrandModelMapping
	if s.cached(ctx, brandModelKey, &mapping) {
		return mapping, nil
	}

	rows, err := s.load(s.path)
	if err != nil {
		return nil, err
	}
	mapping = catalog.BrandModelMapping(rows)
	s.store(ctx, brandModelKey, mapping, brandModelTTL)
	return mapping, nil
}

func (s *CatalogService) cached(ctx context.Context, key string, dst any) bool {
	if s.cache == nil {
		return false
	}
	ok, err := s.cache.Get(ctx, key, dst)
	if err != nil {
		observability.FromContext(ctx).Warn("catalog cache read failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
	if ok && err == nil {
		observability.CatalogCacheTotal.WithLabelValues("hit").Inc()
		return true
	}
	observability.CatalogCacheTotal.WithLabelValues("miss").Inc()
	return false
}

func (s *CatalogService) store(ctx context.Context, key string, value any, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, ttl); err != nil {
		observability.FromContext(ctx).Warn("catalog cache write failed",
			slog.String("key", key),
			slog.String("error", err.Error()))
	}
}
