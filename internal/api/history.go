package api

import (
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100

	DateLayout = "2006-01-02"
)

// Sort keys accepted by the history endpoint.
const (
	SortTimestampAsc  = "timestamp"
	SortTimestampDesc = "-timestamp"
	SortPriceAsc      = "predicted_price"
	SortPriceDesc     = "-predicted_price"
)

// HistoryFilterKeys are the query keys echoed back in HistoryPage.Filters.
var HistoryFilterKeys = []string{"start_date", "end_date", "min_price", "max_price", "brand", "car_model"}

// ValidSort reports whether s is an accepted sort key.
func ValidSort(s string) bool {
	switch s {
	case SortTimestampAsc, SortTimestampDesc, SortPriceAsc, SortPriceDesc:
		return true
	}
	return false
}

// HistoryQuery selects a page of prediction history. Zero values mean
// "not set".
type HistoryQuery struct {
	Page      int
	PageSize  int
	Sort      string
	StartDate time.Time
	EndDate   time.Time
	MinPrice  *float64
	MaxPrice  *float64
	Brand     string
	CarModel  string
}

// Values encodes q as query parameters.
func (q HistoryQuery) Values() url.Values {
	v := url.Values{}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if !q.StartDate.IsZero() {
		v.Set("start_date", q.StartDate.Format(DateLayout))
	}
	if !q.EndDate.IsZero() {
		v.Set("end_date", q.EndDate.Format(DateLayout))
	}
	if q.MinPrice != nil {
		v.Set("min_price", strconv.FormatFloat(*q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice != nil {
		v.Set("max_price", strconv.FormatFloat(*q.MaxPrice, 'f', -1, 64))
	}
	if q.Brand != "" {
		v.Set("brand", q.Brand)
	}
	if q.CarModel != "" {
		v.Set("car_model", q.CarModel)
	}
	return v
}

// ParseHistoryQuery reads query parameters leniently: malformed values are
// ignored rather than rejected, and page size is clamped.
func ParseHistoryQuery(v url.Values) HistoryQuery {
	q := HistoryQuery{Page: 1, PageSize: DefaultPageSize}

	if n, err := strconv.Atoi(v.Get("page")); err == nil && n > 0 {
		q.Page = n
	}
	if n, err := strconv.Atoi(v.Get("page_size")); err == nil && n > 0 {
		q.PageSize = min(n, MaxPageSize)
	}
	if s := v.Get("sort"); ValidSort(s) {
		q.Sort = s
	}
	if t, err := time.Parse(DateLayout, v.Get("start_date")); err == nil {
		q.StartDate = t
	}
	if t, err := time.Parse(DateLayout, v.Get("end_date")); err == nil {
		q.EndDate = t
	}
	if f, ok := parsePrice(v.Get("min_price")); ok {
		q.MinPrice = &f
	}
	if f, ok := parsePrice(v.Get("max_price")); ok {
		q.MaxPrice = &f
	}
	q.Brand = strings.TrimSpace(v.Get("brand"))
	q.CarModel = strings.TrimSpace(v.Get("car_model"))

	return q
}

func parsePrice(s string) (float64, bool) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// RawFilters returns the filter keys present in v with their raw values.
func RawFilters(v url.Values) map[string]string {
	filters := make(map[string]string)
	for _, key := range HistoryFilterKeys {
		if _, ok := v[key]; ok {
			filters[key] = v.Get(key)
		}
	}
	return filters
}
