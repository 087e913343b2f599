// Package catalog reads the car advertisement dataset that backs the
// prediction form's option lists.
package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"carprice/internal/api"
	"carprice/internal/domain"
)

var requiredColumns = []string{
	"brand", "car_model", "year_of_production", "fuel_type",
	"transmission", "body", "number_of_doors", "color",
}

// Row holds the catalog columns of one dataset record. Unparseable numbers
// are left nil.
type Row struct {
	Brand            string
	CarModel         string
	YearOfProduction *int
	FuelType         string
	Transmission     string
	Body             string
	NumberOfDoors    *int
	Color            string
}

// LoadFile reads the dataset at path. A missing file or column is reported
// as domain.ErrCatalogUnavailable.
func LoadFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCatalogUnavailable, err)
	}
	defer f.Close()

	return Read(f)
}

// Read parses CSV records with a header line. Extra columns are ignored.
func Read(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty dataset", domain.ErrCatalogUnavailable)
		}
		return nil, fmt.Errorf("failed to read dataset header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", domain.ErrCatalogUnavailable, col)
		}
	}

	var rows []Row
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read dataset: %w", err)
		}

		field := func(col string) string {
			i := idx[col]
			if i >= len(rec) {
				return ""
			}
			return strings.TrimSpace(rec[i])
		}

		rows = append(rows, Row{
			Brand:            field("brand"),
			CarModel:         field("car_model"),
			YearOfProduction: parseInt(field("year_of_production")),
			FuelType:         field("fuel_type"),
			Transmission:     field("transmission"),
			Body:             field("body"),
			NumberOfDoors:    parseInt(field("number_of_doors")),
			Color:            field("color"),
		})
	}
	return rows, nil
}

// parseInt accepts integers and integral floats such as "4.0".
func parseInt(s string) *int {
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return nil
	}
	n := int(f)
	return &n
}

// DropdownOptions collects the sorted distinct values of each column.
func DropdownOptions(rows []Row) api.DropdownOptions {
	brand, model, fuel, trans, body, color := newSet(), newSet(), newSet(), newSet(), newSet(), newSet()
	var years, doors api.IntRange

	for _, r := range rows {
		brand.add(r.Brand)
		model.add(r.CarModel)
		fuel.add(r.FuelType)
		trans.add(r.Transmission)
		body.add(r.Body)
		color.add(r.Color)
		widen(&years, r.YearOfProduction)
		widen(&doors, r.NumberOfDoors)
	}

	return api.DropdownOptions{
		Brand:            brand.sorted(),
		CarModel:         model.sorted(),
		YearOfProduction: years,
		FuelType:         fuel.sorted(),
		Transmission:     trans.sorted(),
		Body:             body.sorted(),
		NumberOfDoors:    doors,
		Color:            color.sorted(),
	}
}

// BrandModelMapping maps each brand to its sorted distinct models.
func BrandModelMapping(rows []Row) api.BrandModelMapping {
	sets := make(map[string]set)
	for _, r := range rows {
		if r.Brand == "" || r.CarModel == "" {
			continue
		}
		s, ok := sets[r.Brand]
		if !ok {
			s = newSet()
			sets[r.Brand] = s
		}
		s.add(r.CarModel)
	}

	mapping := make(api.BrandModelMapping, len(sets))
	for b, s := range sets {
		mapping[b] = s.sorted()
	}
	return mapping
}

func widen(r *api.IntRange, v *int) {
	if v == nil {
		return
	}
	if r.Min == nil || *v < *r.Min {
		n := *v
		r.Min = &n
	}
	if r.Max == nil || *v > *r.Max {
		n := *v
		r.Max = &n
	}
}

type set map[string]struct{}

func newSet() set { return make(set) }

func (s set) add(v string) {
	if v != "" {
		s[v] = struct{}{}
	}
}

func (s set) sorted() []string {
	out := make([]string, 0, len(s))
	for v := range s {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
