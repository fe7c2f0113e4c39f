// Package idempotency records which deliveries a consumer has already handled.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/boutique-checkout/pkg/redis"
)

// InProgress is the value held under a key while a delivery is being handled.
const InProgress = "in_progress"

// Manager tracks event IDs per consumer in Redis. A delivery first takes a
// short-lived claim with SETNX; only a finished delivery is upgraded to the
// long-lived processed mark, so a crash or failure leaves at most the claim.
// Keys follow the `boutique:idempotency:evt:processed:<consumer>:<event_id>` pattern.
type Manager struct {
	store    redis.IdempotencyStore
	ttl      time.Duration
	claimTTL time.Duration
}

// Claim is the state found when a delivery tries to take an event.
type Claim struct {
	Acquired bool
	// Prior holds the stored value when the claim was not acquired: either
	// InProgress or the outcome recorded by the first delivery.
	Prior string
}

// InFlight reports whether another delivery of the event is still running.
func (c Claim) InFlight() bool {
	return !c.Acquired && c.Prior == InProgress
}

// NewManager builds an idempotency guard. ttl is how long a processed mark is
// kept, claimTTL how long an unfinished claim blocks redelivery.
func NewManager(store redis.IdempotencyStore, ttl, claimTTL time.Duration) (*Manager, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 || claimTTL < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if claimTTL == 0 || (ttl > 0 && claimTTL > ttl) {
		claimTTL = ttl
	}
	return &Manager{
		store:    store,
		ttl:      ttl,
		claimTTL: claimTTL,
	}, nil
}

// Claim takes the event for this delivery unless another delivery holds it or
// already finished it.
func (m *Manager) Claim(ctx context.Context, consumer, eventID string) (Claim, error) {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return Claim{}, err
	}
	set, err := m.store.SetNX(ctx, key, InProgress, m.claimTTL)
	if err != nil {
		return Claim{}, err
	}
	if set {
		return Claim{Acquired: true}, nil
	}
	prior, err := m.store.Get(ctx, key)
	if err != nil {
		return Claim{}, fmt.Errorf("read claim: %w", err)
	}
	return Claim{Prior: prior}, nil
}

// MarkProcessed replaces the claim with the delivery's outcome for the full TTL.
// It runs detached from ctx cancellation so a departed caller cannot skip it.
func (m *Manager) MarkProcessed(ctx context.Context, consumer, eventID, outcome string) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	if outcome == "" {
		outcome = "processed"
	}
	return m.store.Set(context.WithoutCancel(ctx), key, outcome, m.ttl)
}

// Release drops the claim so a redelivery is handled again. Like MarkProcessed
// it ignores ctx cancellation.
func (m *Manager) Release(ctx context.Context, consumer, eventID string) error {
	key, err := m.processedKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(context.WithoutCancel(ctx), key)
}

func (m *Manager) processedKey(consumer, eventID string) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if strings.TrimSpace(eventID) == "" {
		return "", errors.New("event id is required")
	}
	scope := fmt.Sprintf("evt:processed:%s", consumer)
	return m.store.IdempotencyKey(scope, eventID), nil
}
