// Package reconciliation makes sure a succeeded payment ends up as exactly
// one order, whichever of the browser or the webhook gets there first.
package reconciliation

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/boutique-checkout/internal/bag"
	"github.com/angelmondragon/boutique-checkout/internal/orders"
	"github.com/angelmondragon/boutique-checkout/internal/profiles"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	"github.com/angelmondragon/boutique-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
	"github.com/angelmondragon/boutique-checkout/pkg/metrics"
)

// State is a step of a reconciliation run.
type State string

const (
	StateLookingUp State = "looking_up"
	StateFound     State = "found"
	StateNotFound  State = "not_found"
	StateCreating  State = "creating"
	StateCreated   State = "created"
	StateFailed    State = "failed"
)

const (
	defaultMaxAttempts = 5
	defaultRetryDelay  = time.Second
)

type orderStore interface {
	FindMatching(ctx context.Context, c orders.MatchCriteria) (*models.Order, error)
	Place(ctx context.Context, in orders.PlaceInput) (*models.Order, error)
}

type profileStore interface {
	FindByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	SaveDefaults(ctx context.Context, profile *models.UserProfile) error
}

// Result is the terminal state of a run.
type Result struct {
	State    State
	Order    *models.Order
	Attempts int
	Err      error
}

// EngineParams groups the collaborators of Engine.
type EngineParams struct {
	Orders      orderStore
	Profiles    profileStore
	MaxAttempts int
	RetryDelay  time.Duration
	Metrics     *metrics.ReconciliationMetrics
	Logger      *logger.Logger
}

// Engine runs LookingUp -> Found, or LookingUp -> NotFound -> Creating ->
// Created | Failed, for one payment event.
type Engine struct {
	orders      orderStore
	profiles    profileStore
	maxAttempts int
	retryDelay  time.Duration
	metrics     *metrics.ReconciliationMetrics
	logg        *logger.Logger
	wait        func(ctx context.Context, d time.Duration) error
	now         func() time.Time
}

func NewEngine(params EngineParams) (*Engine, error) {
	if params.Orders == nil {
		return nil, errors.New("order store required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profile store required")
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	retryDelay := params.RetryDelay
	if retryDelay <= 0 {
		retryDelay = defaultRetryDelay
	}
	return &Engine{
		orders:      params.Orders,
		profiles:    params.Profiles,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
		metrics:     params.Metrics,
		logg:        params.Logger,
		wait:        waitFor,
		now:         time.Now,
	}, nil
}

// Reconcile settles ev. Lookups are retried with a fixed pause so a browser
// commit that is not yet visible is still found.
func (e *Engine) Reconcile(ctx context.Context, ev PaymentEvent) Result {
	started := e.now()
	if e.logg != nil {
		ctx = e.logg.WithStripePID(ctx, ev.StripePID)
	}

	result := e.lookUp(ctx, ev)
	if result.State == StateNotFound {
		attempts := result.Attempts
		result = e.create(ctx, ev)
		result.Attempts = attempts
	}

	e.metrics.Observe(string(result.State), result.Attempts, e.now().Sub(started))
	e.log(ctx, result)
	return result
}

func (e *Engine) lookUp(ctx context.Context, ev PaymentEvent) Result {
	criteria := ev.criteria()
	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		order, err := e.orders.FindMatching(ctx, criteria)
		if err != nil {
			return Result{State: StateFailed, Attempts: attempt, Err: err}
		}
		if order != nil {
			return Result{State: StateFound, Order: order, Attempts: attempt}
		}
		if attempt == e.maxAttempts {
			break
		}
		if err := e.wait(ctx, e.retryDelay); err != nil {
			return Result{State: StateFailed, Attempts: attempt, Err: pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order lookup interrupted")}
		}
	}
	return Result{State: StateNotFound, Attempts: e.maxAttempts}
}

func (e *Engine) create(ctx context.Context, ev PaymentEvent) Result {
	snap, err := bag.Parse(ev.Bag)
	if err != nil {
		return Result{State: StateFailed, Err: err}
	}

	var profileID *uuid.UUID
	if !ev.anonymous() {
		profile, err := e.profiles.FindByUsername(ctx, ev.Username)
		if err != nil {
			return Result{State: StateFailed, Err: err}
		}
		profileID = &profile.ID
		if ev.SaveInfo {
			profiles.ApplyDefaults(profile, ev.profileDefaults())
			if err := e.profiles.SaveDefaults(ctx, profile); err != nil {
				return Result{State: StateFailed, Err: err}
			}
		}
	}

	order, err := e.orders.Place(ctx, orders.PlaceInput{
		Fields:        ev.orderFields(),
		StripePID:     ev.StripePID,
		Bag:           snap,
		UserProfileID: profileID,
		Username:      ev.Username,
		Source:        enums.OrderSourceWebhook,
	})
	if err != nil {
		if errors.Is(err, orders.ErrDuplicateOrder) {
			return Result{State: StateFound}
		}
		return Result{State: StateFailed, Err: err}
	}
	return Result{State: StateCreated, Order: order}
}

func (e *Engine) log(ctx context.Context, result Result) {
	if e.logg == nil {
		return
	}
	ctx = e.logg.WithFields(ctx, map[string]any{
		"reconciliation_state": string(result.State),
		"lookup_attempts":      result.Attempts,
	})
	if result.Order != nil {
		ctx = e.logg.WithOrderNumber(ctx, result.Order.OrderNumber)
	}
	if result.State == StateFailed {
		e.logg.Error(ctx, "reconciliation failed", result.Err)
		return
	}
	e.logg.Info(ctx, "reconciliation settled")
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
