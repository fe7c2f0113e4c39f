package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/boutique-checkout/internal/reconciliation"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

type reconciler interface {
	Reconcile(ctx context.Context, ev reconciliation.PaymentEvent) reconciliation.Result
}

type chargeFetcher interface {
	RetrieveCharge(ctx context.Context, chargeID string) (*stripe.Charge, error)
}

type paymentSucceeded struct {
	reconciler reconciler
	charges    chargeFetcher
	logg       *logger.Logger
}

func (h *paymentSucceeded) handle(ctx context.Context, event *stripe.Event) Result {
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return failure(event, http.StatusBadRequest, fmt.Errorf("event has no payment intent"))
	}
	var pi stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
		return failure(event, http.StatusBadRequest, fmt.Errorf("decode payment intent: %w", err))
	}

	var ch *stripe.Charge
	if reconciliation.NeedsCharge(&pi) && h.charges != nil {
		fetched, err := h.charges.RetrieveCharge(ctx, pi.LatestCharge.ID)
		if err != nil {
			if h.logg != nil {
				h.logg.Warn(h.logg.WithField(ctx, "charge_id", pi.LatestCharge.ID), "charge lookup failed; using intent amount and receipt email")
			}
		} else {
			ch = fetched
		}
	}

	ev, err := reconciliation.PaymentEventFromIntent(&pi, ch)
	if err != nil {
		return failure(event, http.StatusBadRequest, err)
	}

	result := h.reconciler.Reconcile(ctx, ev)
	switch result.State {
	case reconciliation.StateFound:
		return Result{
			Outcome: OutcomeOrderExists,
			Detail:  fmt.Sprintf("Webhook received: %s | SUCCESS: Verified order already in database", event.Type),
			Status:  http.StatusOK,
		}
	case reconciliation.StateCreated:
		return Result{
			Outcome: OutcomeOrderCreated,
			Detail:  fmt.Sprintf("Webhook received: %s | SUCCESS: Created order in webhook", event.Type),
			Status:  http.StatusOK,
		}
	default:
		err := result.Err
		if err == nil {
			err = fmt.Errorf("reconciliation ended in state %s", result.State)
		}
		return failure(event, http.StatusInternalServerError, err)
	}
}

func failure(event *stripe.Event, status int, err error) Result {
	return Result{
		Outcome: OutcomeError,
		Detail:  fmt.Sprintf("Webhook received: %s | ERROR: %v", event.Type, err),
		Status:  status,
	}
}
