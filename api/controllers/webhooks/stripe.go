package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/boutique-checkout/api/responses"
	stripewebhook "github.com/angelmondragon/boutique-checkout/internal/webhooks/stripe"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/idempotency"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

// IdempotencyConsumer scopes claims and processed-event marks for this endpoint.
const IdempotencyConsumer = "stripe-webhook"

const maxPayloadBytes = 65536

// EventDispatcher routes a verified event to its handler.
type EventDispatcher interface {
	Dispatch(ctx context.Context, event *stripe.Event) stripewebhook.Result
}

// EventGuard claims an event for one delivery and remembers how it ended.
type EventGuard interface {
	Claim(ctx context.Context, consumer, eventID string) (idempotency.Claim, error)
	MarkProcessed(ctx context.Context, consumer, eventID, outcome string) error
	Release(ctx context.Context, consumer, eventID string) error
}

type SigningClient interface {
	SigningSecret() string
}

// StripeWebhook verifies the delivery signature, claims the event, and hands it
// to the dispatcher. The dispatcher's result is echoed as the body. Only a
// delivery answered below 500 is remembered; a failed one releases its claim.
func StripeWebhook(d EventDispatcher, client SigningClient, guard EventGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if d == nil || client == nil || guard == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "stripe webhook not configured"))
			return
		}

		payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPayloadBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		sigHeader := r.Header.Get("Stripe-Signature")
		if sigHeader == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "stripe signature missing"))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, sigHeader, client.SigningSecret(), webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignatureInvalid, err, "verify signature"))
			return
		}

		claim, err := guard.Claim(ctx, IdempotencyConsumer, event.ID)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency"))
			return
		}
		if claim.InFlight() {
			// non-2xx so the sender redelivers once the running attempt settles
			responses.WriteRaw(w, http.StatusConflict, stripewebhook.Result{
				EventType: string(event.Type),
				Outcome:   stripewebhook.OutcomeInProgress,
				Detail:    "Webhook received: " + string(event.Type) + " | RETRY: Event is being processed",
			})
			return
		}
		if !claim.Acquired {
			responses.WriteRaw(w, http.StatusOK, stripewebhook.Result{
				EventType: string(event.Type),
				Outcome:   stripewebhook.OutcomeDuplicate,
				Detail:    "Webhook received: " + string(event.Type) + " | SUCCESS: Event already processed (" + claim.Prior + ")",
			})
			return
		}

		result := d.Dispatch(ctx, &event)
		if result.Status >= http.StatusInternalServerError {
			if err := guard.Release(ctx, IdempotencyConsumer, event.ID); err != nil && logg != nil {
				logg.Error(logg.WithEventID(ctx, event.ID, string(event.Type)), "failed to release idempotency claim", err)
			}
		} else if err := guard.MarkProcessed(ctx, IdempotencyConsumer, event.ID, string(result.Outcome)); err != nil && logg != nil {
			// the claim still expires, so a redelivery after claimTTL is handled again
			logg.Warn(logg.WithEventID(ctx, event.ID, string(event.Type)), "failed to mark event processed")
		}
		responses.WriteRaw(w, result.Status, result)
	}
}
