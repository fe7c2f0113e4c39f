// Package payments creates Stripe payment intents for the bag and stamps
// them with the metadata the webhook path rebuilds orders from.
package payments

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/boutique-checkout/internal/bag"
	"github.com/angelmondragon/boutique-checkout/pkg/auth"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

// Metadata keys written on every checkout intent.
const (
	MetadataBag      = "bag"
	MetadataSaveInfo = "save_info"
	MetadataUsername = "username"
)

const clientSecretMarker = "_secret"

const processorUnavailableMessage = "Sorry, your payment cannot be processed right now. Please try again later."

// Intent is the part of a payment intent the browser needs.
type Intent struct {
	ID           string
	ClientSecret string
	Amount       int64
	Currency     string
}

// Bridge talks to Stripe on behalf of checkout.
type Bridge struct {
	api      IntentAPI
	currency string
	logg     *logger.Logger
}

func NewBridge(api IntentAPI, currency string, logg *logger.Logger) (*Bridge, error) {
	if api == nil {
		return nil, errors.New("stripe intent api required")
	}
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &Bridge{api: api, currency: currency, logg: logg}, nil
}

// CreateIntent asks Stripe for an intent charging amount in the configured currency.
func (b *Bridge) CreateIntent(ctx context.Context, amount decimal.Decimal) (*Intent, error) {
	minor := ToMinorUnits(amount)
	if minor <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment amount must be positive")
	}
	pi, err := b.api.CreateIntent(ctx, &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(b.currency),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeProcessorUnavailable, err, processorUnavailableMessage)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Amount: minor, Currency: b.currency}, nil
}

// AttachMetadata overwrites the bag, save_info and username metadata of the
// intent the client secret belongs to.
func (b *Bridge) AttachMetadata(ctx context.Context, clientSecret string, snap bag.Snapshot, saveInfo bool, username string) error {
	intentID, err := IntentIDFromClientSecret(clientSecret)
	if err != nil {
		return err
	}
	raw, err := snap.Marshal()
	if err != nil {
		return err
	}
	if strings.TrimSpace(username) == "" {
		username = auth.AnonymousUsername
	}

	params := &stripe.PaymentIntentParams{}
	params.AddMetadata(MetadataBag, raw)
	params.AddMetadata(MetadataSaveInfo, strconv.FormatBool(saveInfo))
	params.AddMetadata(MetadataUsername, username)

	if _, err := b.api.UpdateIntent(ctx, intentID, params); err != nil {
		if b.logg != nil {
			b.logg.Warn(b.logg.WithStripePID(ctx, intentID), "payment intent metadata update failed")
		}
		return pkgerrors.Wrap(pkgerrors.CodeProcessorUnavailable, err, processorUnavailableMessage)
	}
	return nil
}

// RetrieveCharge loads a charge when an event carries only its id.
func (b *Bridge) RetrieveCharge(ctx context.Context, chargeID string) (*stripe.Charge, error) {
	if strings.TrimSpace(chargeID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "charge id required")
	}
	ch, err := b.api.GetCharge(ctx, chargeID, &stripe.ChargeParams{})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve charge")
	}
	return ch, nil
}

// IntentIDFromClientSecret returns the intent id a client secret starts with,
// "pi_123_secret_abc" -> "pi_123".
func IntentIDFromClientSecret(clientSecret string) (string, error) {
	clientSecret = strings.TrimSpace(clientSecret)
	idx := strings.Index(clientSecret, clientSecretMarker)
	if idx <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "invalid client secret").
			WithDetails(map[string]string{"client_secret": "is invalid"})
	}
	return clientSecret[:idx], nil
}

// ToMinorUnits converts an amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents back to a two-place amount.
func FromMinorUnits(minor int64) decimal.Decimal {
	return decimal.New(minor, -2).Round(2)
}

// ParseSaveInfo reads the save_info flag from metadata or a form value.
func ParseSaveInfo(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true", "on", "1", "yes":
		return true
	default:
		return false
	}
}
