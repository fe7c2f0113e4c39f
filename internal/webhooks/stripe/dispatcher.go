// Package stripewebhook routes verified Stripe events to their handlers.
package stripewebhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/boutique-checkout/pkg/logger"
	"github.com/angelmondragon/boutique-checkout/pkg/metrics"
)

// Outcome is what handling a delivery amounted to.
type Outcome string

const (
	OutcomeUnhandled     Outcome = "unhandled"
	OutcomePaymentFailed Outcome = "payment_failed"
	OutcomeOrderExists   Outcome = "order_exists"
	OutcomeOrderCreated  Outcome = "order_created"
	OutcomeError         Outcome = "error"
	// OutcomeDuplicate and OutcomeInProgress answer redeliveries without dispatching.
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeInProgress Outcome = "in_progress"
)

// Result is echoed back to the sender for every delivery.
type Result struct {
	EventType string  `json:"event_type"`
	Outcome   Outcome `json:"outcome"`
	Detail    string  `json:"detail"`
	Status    int     `json:"-"`
}

// Handler processes one event type.
type Handler func(ctx context.Context, event *stripe.Event) Result

// DispatcherParams groups the collaborators of Dispatcher.
type DispatcherParams struct {
	Reconciler reconciler
	Charges    chargeFetcher
	Metrics    *metrics.WebhookMetrics
	Logger     *logger.Logger
}

// Dispatcher looks handlers up by event type; anything unregistered goes to
// the fallback, which acknowledges without acting.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[stripe.EventType]Handler
	fallback Handler
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	d := &Dispatcher{
		handlers: map[stripe.EventType]Handler{},
		fallback: handleUnhandled,
		metrics:  params.Metrics,
		logg:     params.Logger,
	}
	succeeded := &paymentSucceeded{reconciler: params.Reconciler, charges: params.Charges, logg: params.Logger}
	d.Register(stripe.EventTypePaymentIntentSucceeded, succeeded.handle)
	d.Register(stripe.EventTypePaymentIntentPaymentFailed, handlePaymentFailed)
	return d, nil
}

// Register binds handler to eventType, replacing any earlier binding.
func (d *Dispatcher) Register(eventType stripe.EventType, handler Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[eventType] = handler
}

// Dispatch runs the handler registered for the event's type.
func (d *Dispatcher) Dispatch(ctx context.Context, event *stripe.Event) Result {
	if event == nil {
		return Result{Outcome: OutcomeError, Detail: "event missing", Status: http.StatusBadRequest}
	}
	d.mu.RLock()
	handler, ok := d.handlers[event.Type]
	d.mu.RUnlock()
	if !ok {
		handler = d.fallback
	}

	if d.logg != nil {
		ctx = d.logg.WithEventID(ctx, event.ID, string(event.Type))
	}
	result := handler(ctx, event)
	if result.EventType == "" {
		result.EventType = string(event.Type)
	}
	if result.Status == 0 {
		result.Status = http.StatusOK
	}

	d.metrics.IncDelivery(result.EventType, string(result.Outcome))
	if d.logg != nil {
		logCtx := d.logg.WithFields(ctx, map[string]any{
			"outcome": string(result.Outcome),
			"status":  result.Status,
		})
		d.logg.Info(logCtx, "stripe event dispatched")
	}
	return result
}

func handleUnhandled(_ context.Context, event *stripe.Event) Result {
	return Result{
		Outcome: OutcomeUnhandled,
		Detail:  fmt.Sprintf("Unhandled webhook received: %s", event.Type),
		Status:  http.StatusOK,
	}
}

func handlePaymentFailed(_ context.Context, event *stripe.Event) Result {
	return Result{
		Outcome: OutcomePaymentFailed,
		Detail:  fmt.Sprintf("Webhook received: %s", event.Type),
		Status:  http.StatusOK,
	}
}
