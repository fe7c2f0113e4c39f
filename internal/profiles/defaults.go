// Package profiles manages the delivery defaults remembered for signed-in shoppers.
package profiles

import "github.com/angelmondragon/boutique-checkout/pkg/db/models"

// Defaults is the delivery information copied onto a profile when the
// shopper asks to save it.
type Defaults struct {
	PhoneNumber    string
	Country        string
	Postcode       *string
	TownOrCity     string
	StreetAddress1 string
	StreetAddress2 *string
	County         *string
}

// ApplyDefaults overwrites every default column of profile with d. Blank
// values clear the column.
func ApplyDefaults(profile *models.UserProfile, d Defaults) {
	if profile == nil {
		return
	}
	profile.DefaultPhoneNumber = optional(d.PhoneNumber)
	profile.DefaultCountry = optional(d.Country)
	profile.DefaultPostcode = optionalPtr(d.Postcode)
	profile.DefaultTownOrCity = optional(d.TownOrCity)
	profile.DefaultStreetAddress1 = optional(d.StreetAddress1)
	profile.DefaultStreetAddress2 = optionalPtr(d.StreetAddress2)
	profile.DefaultCounty = optionalPtr(d.County)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func optionalPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return optional(*value)
}
