package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// FieldErrors maps a field name to its validation messages.
type FieldErrors map[string][]string

// Add appends a message for field.
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// Has reports whether any field failed.
func (fe FieldErrors) Has() bool {
	return len(fe) > 0
}

// Fields returns the failing field names in sorted order.
func (fe FieldErrors) Fields() []string {
	names := make([]string, 0, len(fe))
	for k := range fe {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func (fe FieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for _, name := range fe.Fields() {
		parts = append(parts, name+": "+strings.Join(fe[name], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

const (
	msgRequired = "This field is required."
	msgInvalid  = "A valid value is required."
)

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9_@.+\-]+$`)

// Validate checks the shape of a registration. Uniqueness is checked by the
// service against storage.
func (r RegisterRequest) Validate() FieldErrors {
	fe := FieldErrors{}

	switch {
	case r.Username == "":
		fe.Add("username", msgRequired)
	case len(r.Username) < 3 || len(r.Username) > 150:
		fe.Add("username", "Ensure this field has between 3 and 150 characters.")
	case !usernameRegex.MatchString(r.Username):
		fe.Add("username", "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters.")
	}

	if r.Email == "" {
		fe.Add("email", msgRequired)
	} else if addr, err := mail.ParseAddress(r.Email); err != nil || addr.Address != r.Email || len(r.Email) > 254 {
		fe.Add("email", "Enter a valid email address.")
	}

	if r.FirstName == "" {
		fe.Add("first_name", msgRequired)
	}
	if r.LastName == "" {
		fe.Add("last_name", msgRequired)
	}

	if r.Password == "" {
		fe.Add("password", msgRequired)
	} else {
		if len(r.Password) < 8 {
			fe.Add("password", "This password is too short. It must contain at least 8 characters.")
		}
		if isNumeric(r.Password) {
			fe.Add("password", "This password is entirely numeric.")
		}
	}
	if r.Password2 == "" {
		fe.Add("password2", msgRequired)
	}

	if !fe.Has() && r.Password != r.Password2 {
		fe.Add("password", "Password fields do not match.")
	}

	return fe
}

func isNumeric(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return s != ""
}

var carAttributeFields = []string{
	"brand", "car_model", "year_of_production", "mileage",
	"fuel_type", "transmission", "body", "engine_capacity",
	"power", "number_of_doors", "color",
}

// DecodeCarAttributes decodes a prediction request body. Missing, mistyped
// and unknown keys are reported as field errors; a nil error with a non-empty
// FieldErrors means the body was well-formed JSON but invalid.
func DecodeCarAttributes(body []byte) (CarAttributes, FieldErrors, error) {
	var attrs CarAttributes

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return attrs, nil, fmt.Errorf("decode prediction input: %w", err)
	}

	fe := FieldErrors{}
	known := make(map[string]struct{}, len(carAttributeFields))
	for _, name := range carAttributeFields {
		known[name] = struct{}{}
		v, ok := raw[name]
		if !ok || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
			fe.Add(name, msgRequired)
		}
	}
	for name := range raw {
		if _, ok := known[name]; !ok {
			fe.Add(name, "Unexpected field.")
		}
	}

	for _, name := range carAttributeFields {
		v, ok := raw[name]
		if !ok || fe[name] != nil {
			continue
		}
		if err := json.Unmarshal(v, attrs.fieldPtr(name)); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) {
				fe.Add(name, msgInvalid)
				continue
			}
			return attrs, nil, fmt.Errorf("decode %s: %w", name, err)
		}
	}

	if fe.Has() {
		return attrs, fe, nil
	}
	return attrs, attrs.Validate(), nil
}

func (c *CarAttributes) fieldPtr(name string) any {
	switch name {
	case "brand":
		return &c.Brand
	case "car_model":
		return &c.CarModel
	case "year_of_production":
		return &c.YearOfProduction
	case "mileage":
		return &c.Mileage
	case "fuel_type":
		return &c.FuelType
	case "transmission":
		return &c.Transmission
	case "body":
		return &c.Body
	case "engine_capacity":
		return &c.EngineCapacity
	case "power":
		return &c.Power
	case "number_of_doors":
		return &c.NumberOfDoors
	case "color":
		return &c.Color
	}
	return nil
}

// Validate checks value ranges of already decoded attributes.
func (c CarAttributes) Validate() FieldErrors {
	fe := FieldErrors{}

	text := func(name, v string, max int) {
		switch {
		case strings.TrimSpace(v) == "":
			fe.Add(name, "This field may not be blank.")
		case len(v) > max:
			fe.Add(name, fmt.Sprintf("Ensure this field has no more than %d characters.", max))
		}
	}
	text("brand", c.Brand, 100)
	text("car_model", c.CarModel, 100)
	text("fuel_type", c.FuelType, 50)
	text("transmission", c.Transmission, 50)
	text("body", c.Body, 50)
	text("color", c.Color, 50)

	if c.YearOfProduction < 1900 {
		fe.Add("year_of_production", "Ensure this value is greater than or equal to 1900.")
	} else if c.YearOfProduction > 2100 {
		fe.Add("year_of_production", "Ensure this value is less than or equal to 2100.")
	}
	if c.Mileage < 0 {
		fe.Add("mileage", "Ensure this value is greater than or equal to 0.")
	}
	if c.EngineCapacity < 0 {
		fe.Add("engine_capacity", "Ensure this value is greater than or equal to 0.0.")
	}
	if c.Power < 0 {
		fe.Add("power", "Ensure this value is greater than or equal to 0.")
	}
	if c.NumberOfDoors < 1 {
		fe.Add("number_of_doors", "Ensure this value is greater than or equal to 1.")
	} else if c.NumberOfDoors > 10 {
		fe.Add("number_of_doors", "Ensure this value is less than or equal to 10.")
	}

	return fe
}
