package models

import (
	"fmt"
	"strings"

	orderdomain "github.com/ghuser/eshop-ordering/services/ordering/domain"
)

// Address is the shipping address value object. All five fields are required.
type Address struct {
	street  string
	city    string
	state   string
	country string
	zipCode string
}

// NewAddress constructs an Address or returns ErrInvalidAddress naming the
// first missing field.
func NewAddress(street, city, state, country, zipCode string) (Address, error) {
	a := Address{
		street:  strings.TrimSpace(street),
		city:    strings.TrimSpace(city),
		state:   strings.TrimSpace(state),
		country: strings.TrimSpace(country),
		zipCode: strings.TrimSpace(zipCode),
	}
	if err := a.validate(); err != nil {
		return Address{}, err
	}
	return a, nil
}

func (a Address) validate() error {
	fields := []struct{ name, value string }{
		{"street", a.street},
		{"city", a.city},
		{"state", a.state},
		{"country", a.country},
		{"zip code", a.zipCode},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("%w: %s is required", orderdomain.ErrInvalidAddress, f.name)
		}
	}
	return nil
}

func (a Address) Street() string  { return a.street }
func (a Address) City() string    { return a.city }
func (a Address) State() string   { return a.state }
func (a Address) Country() string { return a.country }
func (a Address) ZipCode() string { return a.zipCode }
