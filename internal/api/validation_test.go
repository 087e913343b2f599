package api

import (
	"net/url"
	"testing"
	"time"
)

const validCarJSON = `{
	"brand": "Audi",
	"car_model": "A5",
	"year_of_production": 2020,
	"mileage": 50000,
	"fuel_type": "Petrol",
	"transmission": "Automatic",
	"body": "Sedan",
	"engine_capacity": 2.0,
	"power": 150,
	"number_of_doors": 5,
	"color": "Black"
}`

func TestDecodeCarAttributes_Valid(t *testing.T) {
	attrs, fe, err := DecodeCarAttributes([]byte(validCarJSON))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fe.Has() {
		t.Fatalf("unexpected field errors: %v", fe)
	}
	if attrs.Brand != "Audi" || attrs.CarModel != "A5" || attrs.YearOfProduction != 2020 {
		t.Errorf("unexpected attrs: %+v", attrs)
	}
	if attrs.EngineCapacity != 2.0 {
		t.Errorf("expected engine capacity 2.0, got %v", attrs.EngineCapacity)
	}
}

func TestDecodeCarAttributes_FieldErrors(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"year too old", `{"brand":"Audi","car_model":"A5","year_of_production":1800,"mileage":1,"fuel_type":"Petrol","transmission":"Manual","body":"Sedan","engine_capacity":2,"power":150,"number_of_doors":5,"color":"Black"}`, "year_of_production"},
		{"negative mileage", `{"brand":"Audi","car_model":"A5","year_of_production":2020,"mileage":-100,"fuel_type":"Petrol","transmission":"Manual","body":"Sedan","engine_capacity":2,"power":150,"number_of_doors":5,"color":"Black"}`, "mileage"},
		{"missing brand", `{"car_model":"A5","year_of_production":2020,"mileage":1,"fuel_type":"Petrol","transmission":"Manual","body":"Sedan","engine_capacity":2,"power":150,"number_of_doors":5,"color":"Black"}`, "brand"},
		{"extra field", `{"extra_field":"x","brand":"Audi","car_model":"A5","year_of_production":2020,"mileage":1,"fuel_type":"Petrol","transmission":"Manual","body":"Sedan","engine_capacity":2,"power":150,"number_of_doors":5,"color":"Black"}`, "extra_field"},
		{"wrong type", `{"brand":"Audi","car_model":"A5","year_of_production":"new","mileage":1,"fuel_type":"Petrol","transmission":"Manual","body":"Sedan","engine_capacity":2,"power":150,"number_of_doors":5,"color":"Black"}`, "year_of_production"},
		{"too many doors", `{"brand":"Audi","car_model":"A5","year_of_production":2020,"mileage":1,"fuel_type":"Petrol","transmission":"Manual","body":"Sedan","engine_capacity":2,"power":150,"number_of_doors":11,"color":"Black"}`, "number_of_doors"},
		{"null color", `{"brand":"Audi","car_model":"A5","year_of_production":2020,"mileage":1,"fuel_type":"Petrol","transmission":"Manual","body":"Sedan","engine_capacity":2,"power":150,"number_of_doors":5,"color":null}`, "color"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, fe, err := DecodeCarAttributes([]byte(tt.body))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if _, ok := fe[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, fe)
			}
		})
	}
}

func TestDecodeCarAttributes_MalformedJSON(t *testing.T) {
	if _, _, err := DecodeCarAttributes([]byte(`not json`)); err == nil {
		t.Error("expected decode error")
	}
}

func TestRegisterRequest_Validate(t *testing.T) {
	base := RegisterRequest{
		Username:  "newuser",
		Email:     "new@example.com",
		Password:  "newpassword123",
		Password2: "newpassword123",
		FirstName: "New",
		LastName:  "User",
	}

	if fe := base.Validate(); fe.Has() {
		t.Fatalf("expected valid request, got %v", fe)
	}

	tests := []struct {
		name   string
		mutate func(r *RegisterRequest)
		field  string
	}{
		{"mismatched passwords", func(r *RegisterRequest) { r.Password2 = "wrongpassword" }, "password"},
		{"short password", func(r *RegisterRequest) { r.Password, r.Password2 = "abc", "abc" }, "password"},
		{"numeric password", func(r *RegisterRequest) { r.Password, r.Password2 = "12345678", "12345678" }, "password"},
		{"bad email", func(r *RegisterRequest) { r.Email = "not-an-email" }, "email"},
		{"bad username", func(r *RegisterRequest) { r.Username = "has space" }, "username"},
		{"missing first name", func(r *RegisterRequest) { r.FirstName = "" }, "first_name"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := base
			tt.mutate(&r)
			fe := r.Validate()
			if _, ok := fe[tt.field]; !ok {
				t.Errorf("expected error on %q, got %v", tt.field, fe)
			}
		})
	}
}

func TestParseHistoryQuery(t *testing.T) {
	v := url.Values{
		"page":       {"2"},
		"page_size":  {"500"},
		"sort":       {"-predicted_price"},
		"start_date": {"2024-01-15"},
		"end_date":   {"garbage"},
		"min_price":  {"1000.5"},
		"max_price":  {"NaN"},
		"brand":      {" Audi "},
	}

	q := ParseHistoryQuery(v)

	if q.Page != 2 {
		t.Errorf("expected page 2, got %d", q.Page)
	}
	if q.PageSize != MaxPageSize {
		t.Errorf("expected page size clamped to %d, got %d", MaxPageSize, q.PageSize)
	}
	if q.Sort != SortPriceDesc {
		t.Errorf("expected sort %q, got %q", SortPriceDesc, q.Sort)
	}
	if !q.StartDate.Equal(time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("unexpected start date %v", q.StartDate)
	}
	if !q.EndDate.IsZero() {
		t.Errorf("expected invalid end date to be ignored, got %v", q.EndDate)
	}
	if q.MinPrice == nil || *q.MinPrice != 1000.5 {
		t.Errorf("unexpected min price %v", q.MinPrice)
	}
	if q.MaxPrice != nil {
		t.Errorf("expected NaN max price to be ignored")
	}
	if q.Brand != "Audi" {
		t.Errorf("expected trimmed brand, got %q", q.Brand)
	}
}

func TestParseHistoryQuery_Defaults(t *testing.T) {
	q := ParseHistoryQuery(url.Values{"page": {"abc"}, "page_size": {"-3"}, "sort": {"brand"}})

	if q.Page != 1 || q.PageSize != DefaultPageSize || q.Sort != "" {
		t.Errorf("unexpected defaults: %+v", q)
	}
}

func TestHistoryQuery_ValuesRoundTrip(t *testing.T) {
	minPrice := 5000.0
	in := HistoryQuery{
		Page:      3,
		PageSize:  20,
		Sort:      SortTimestampAsc,
		StartDate: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		MinPrice:  &minPrice,
		CarModel:  "x5",
	}

	out := ParseHistoryQuery(in.Values())

	if out.Page != 3 || out.PageSize != 20 || out.Sort != SortTimestampAsc || out.CarModel != "x5" {
		t.Errorf("unexpected round trip: %+v", out)
	}
	if out.MinPrice == nil || *out.MinPrice != minPrice {
		t.Errorf("unexpected min price: %v", out.MinPrice)
	}
	if !out.StartDate.Equal(in.StartDate) {
		t.Errorf("unexpected start date: %v", out.StartDate)
	}
}

func TestRawFilters(t *testing.T) {
	filters := RawFilters(url.Values{"brand": {"Audi"}, "page": {"1"}, "min_price": {"oops"}})

	if len(filters) != 2 {
		t.Fatalf("expected 2 filters, got %v", filters)
	}
	if filters["brand"] != "Audi" || filters["min_price"] != "oops" {
		t.Errorf("unexpected filters: %v", filters)
	}
}
