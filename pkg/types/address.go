package types

import "strings"

// Address is a postal address persisted as jsonb on users and passed to the
// shipping carrier when quoting rates.
type Address struct {
	Name    string `json:"name,omitempty"`
	Street1 string `json:"street1"`
	Street2 string `json:"street2,omitempty"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`
	Country string `json:"country"`
	Phone   string `json:"phone,omitempty"`
}

// IsZero reports whether no routable fields are populated.
func (a Address) IsZero() bool {
	return strings.TrimSpace(a.Street1) == "" &&
		strings.TrimSpace(a.City) == "" &&
		strings.TrimSpace(a.Zip) == ""
}

// Parcel describes the physical dimensions stored per listing.
type Parcel struct {
	LengthIn float64 `json:"length_in"`
	WidthIn  float64 `json:"width_in"`
	HeightIn float64 `json:"height_in"`
	WeightOz float64 `json:"weight_oz"`
}
