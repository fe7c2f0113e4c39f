package orders

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

// OrderFields are the shopper and delivery details an order is written from.
type OrderFields struct {
	FullName       string  `json:"full_name" validate:"required,max=50"`
	Email          string  `json:"email" validate:"required,email,max=254"`
	PhoneNumber    string  `json:"phone_number" validate:"required,max=20"`
	Country        string  `json:"country" validate:"required,iso3166_1_alpha2"`
	Postcode       *string `json:"postcode,omitempty" validate:"omitempty,max=20"`
	TownOrCity     string  `json:"town_or_city" validate:"required,max=40"`
	StreetAddress1 string  `json:"street_address1" validate:"required,max=80"`
	StreetAddress2 *string `json:"street_address2,omitempty" validate:"omitempty,max=80"`
	County         *string `json:"county,omitempty" validate:"omitempty,max=80"`
}

// Normalize trims every field, upper-cases the country and turns blank
// optional fields into nil.
func (f OrderFields) Normalize() OrderFields {
	f.FullName = strings.TrimSpace(f.FullName)
	f.Email = strings.TrimSpace(f.Email)
	f.PhoneNumber = strings.TrimSpace(f.PhoneNumber)
	f.Country = strings.ToUpper(strings.TrimSpace(f.Country))
	f.Postcode = trimOptional(f.Postcode)
	f.TownOrCity = strings.TrimSpace(f.TownOrCity)
	f.StreetAddress1 = strings.TrimSpace(f.StreetAddress1)
	f.StreetAddress2 = trimOptional(f.StreetAddress2)
	f.County = trimOptional(f.County)
	return f
}

func trimOptional(value *string) *string {
	if value == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

var fieldValidator = newFieldValidator()

func newFieldValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks f and reports failures per field.
func (f OrderFields) Validate() error {
	err := fieldValidator.Struct(f)
	if err == nil {
		return nil
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
	}
	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		details[fe.Field()] = fieldMessage(fe)
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "max":
		return fmt.Sprintf("must be at most %s characters", fe.Param())
	case "email":
		return "must be a valid email"
	case "iso3166_1_alpha2":
		return "must be a two-letter country code"
	}
	return "is invalid"
}
