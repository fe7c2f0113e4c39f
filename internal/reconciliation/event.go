package reconciliation

import (
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/boutique-checkout/internal/orders"
	"github.com/angelmondragon/boutique-checkout/internal/payments"
	"github.com/angelmondragon/boutique-checkout/internal/profiles"
	"github.com/angelmondragon/boutique-checkout/pkg/auth"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

// PaymentEvent is a succeeded payment as reconciliation sees it. Blank text
// fields are nil.
type PaymentEvent struct {
	StripePID      string
	FullName       *string
	Email          *string
	PhoneNumber    *string
	Country        *string
	Postcode       *string
	TownOrCity     *string
	StreetAddress1 *string
	StreetAddress2 *string
	County         *string
	GrandTotal     decimal.Decimal
	Bag            string
	SaveInfo       bool
	Username       string
}

// PaymentEventFromIntent reads a PaymentEvent out of a payment intent and,
// when available, its latest charge. The charge supplies the billing email
// and captured amount; the intent is the fallback for both.
func PaymentEventFromIntent(pi *stripe.PaymentIntent, ch *stripe.Charge) (PaymentEvent, error) {
	if pi == nil || strings.TrimSpace(pi.ID) == "" {
		return PaymentEvent{}, pkgerrors.New(pkgerrors.CodeValidation, "payment intent missing from event")
	}
	if ch == nil && pi.LatestCharge != nil && pi.LatestCharge.Amount > 0 {
		ch = pi.LatestCharge
	}

	ev := PaymentEvent{
		StripePID: pi.ID,
		Bag:       pi.Metadata[payments.MetadataBag],
		SaveInfo:  payments.ParseSaveInfo(pi.Metadata[payments.MetadataSaveInfo]),
		Username:  strings.TrimSpace(pi.Metadata[payments.MetadataUsername]),
	}
	if ev.Username == "" {
		ev.Username = auth.AnonymousUsername
	}

	if shipping := pi.Shipping; shipping != nil {
		ev.FullName = blankToNil(shipping.Name)
		ev.PhoneNumber = blankToNil(shipping.Phone)
		if addr := shipping.Address; addr != nil {
			ev.Country = blankToNil(addr.Country)
			ev.Postcode = blankToNil(addr.PostalCode)
			ev.TownOrCity = blankToNil(addr.City)
			ev.StreetAddress1 = blankToNil(addr.Line1)
			ev.StreetAddress2 = blankToNil(addr.Line2)
			ev.County = blankToNil(addr.State)
		}
	}

	amount := pi.AmountReceived
	if amount == 0 {
		amount = pi.Amount
	}
	if ch != nil {
		if ch.Amount > 0 {
			amount = ch.Amount
		}
		if ch.BillingDetails != nil {
			ev.Email = blankToNil(ch.BillingDetails.Email)
		}
	}
	if ev.Email == nil {
		ev.Email = blankToNil(pi.ReceiptEmail)
	}
	ev.GrandTotal = payments.FromMinorUnits(amount)
	return ev, nil
}

// NeedsCharge reports whether the intent references a charge whose details
// were not included in the event.
func NeedsCharge(pi *stripe.PaymentIntent) bool {
	return pi != nil && pi.LatestCharge != nil && pi.LatestCharge.ID != "" && pi.LatestCharge.Amount == 0
}

func (ev PaymentEvent) criteria() orders.MatchCriteria {
	return orders.MatchCriteria{
		FullName:       ev.FullName,
		Email:          ev.Email,
		PhoneNumber:    ev.PhoneNumber,
		Country:        ev.Country,
		Postcode:       ev.Postcode,
		TownOrCity:     ev.TownOrCity,
		StreetAddress1: ev.StreetAddress1,
		StreetAddress2: ev.StreetAddress2,
		County:         ev.County,
		GrandTotal:     ev.GrandTotal,
		StripePID:      ev.StripePID,
		OriginalBag:    ev.Bag,
	}
}

func (ev PaymentEvent) orderFields() orders.OrderFields {
	return orders.OrderFields{
		FullName:       deref(ev.FullName),
		Email:          deref(ev.Email),
		PhoneNumber:    deref(ev.PhoneNumber),
		Country:        deref(ev.Country),
		Postcode:       ev.Postcode,
		TownOrCity:     deref(ev.TownOrCity),
		StreetAddress1: deref(ev.StreetAddress1),
		StreetAddress2: ev.StreetAddress2,
		County:         ev.County,
	}
}

func (ev PaymentEvent) profileDefaults() profiles.Defaults {
	return profiles.Defaults{
		PhoneNumber:    deref(ev.PhoneNumber),
		Country:        deref(ev.Country),
		Postcode:       ev.Postcode,
		TownOrCity:     deref(ev.TownOrCity),
		StreetAddress1: deref(ev.StreetAddress1),
		StreetAddress2: ev.StreetAddress2,
		County:         ev.County,
	}
}

func (ev PaymentEvent) anonymous() bool {
	return ev.Username == "" || ev.Username == auth.AnonymousUsername
}

func blankToNil(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
