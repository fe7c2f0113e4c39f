package reconciliation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/boutique-checkout/internal/bag"
	"github.com/angelmondragon/boutique-checkout/internal/orders"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	"github.com/angelmondragon/boutique-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/metrics"
)

func strPtr(s string) *string { return &s }

func browserFields() orders.OrderFields {
	return orders.OrderFields{
		FullName:       "ada lovelace",
		Email:          "ADA@example.com",
		PhoneNumber:    "0123456789",
		Country:        "gb",
		Postcode:       strPtr("ls1 1aa"),
		TownOrCity:     "leeds",
		StreetAddress1: "1 high street",
		StreetAddress2: strPtr(""),
	}
}

func TestReconcileFindsBrowserOrder(t *testing.T) {
	h := newHarness(t)
	tee := h.seedProduct(t, "12.25")
	snap := bag.Snapshot{tee.ID.String(): bag.BySize(map[string]int{"m": 2})}
	raw, err := snap.Marshal()
	require.NoError(t, err)

	placed, err := h.orders.Place(context.Background(), orders.PlaceInput{
		Fields:    browserFields(),
		StripePID: "pi_browser",
		Bag:       snap,
		Source:    enums.OrderSourceCheckout,
	})
	require.NoError(t, err)

	ev, err := PaymentEventFromIntent(succeededIntent("pi_browser", raw, 2450), nil)
	require.NoError(t, err)

	result := h.engine.Reconcile(context.Background(), ev)
	require.Equal(t, StateFound, result.State)
	require.NoError(t, result.Err)
	require.Equal(t, 1, result.Attempts)
	require.Equal(t, placed.OrderNumber, result.Order.OrderNumber)
	require.Empty(t, h.waits)
	require.EqualValues(t, 1, h.count(t, &models.Order{}))
	require.EqualValues(t, 1, h.count(t, &models.OrderLineItem{}))
}

func TestReconcileCreatesMissingOrder(t *testing.T) {
	h := newHarness(t)
	mug := h.seedProduct(t, "4.50")
	tee := h.seedProduct(t, "12.00")
	snap := bag.Snapshot{
		mug.ID.String(): bag.Simple(1),
		tee.ID.String(): bag.BySize(map[string]int{"s": 1, "l": 1}),
	}
	raw, err := snap.Marshal()
	require.NoError(t, err)

	ev, err := PaymentEventFromIntent(succeededIntent("pi_webhook", raw, 2850), nil)
	require.NoError(t, err)

	result := h.engine.Reconcile(context.Background(), ev)
	require.Equal(t, StateCreated, result.State)
	require.NoError(t, result.Err)
	require.Equal(t, 5, result.Attempts)
	require.Len(t, h.waits, 4)
	for _, d := range h.waits {
		require.Equal(t, time.Second, d)
	}

	require.EqualValues(t, 1, h.count(t, &models.Order{}))
	require.EqualValues(t, 3, h.count(t, &models.OrderLineItem{}))
	require.Equal(t, "28.50", result.Order.GrandTotal.StringFixed(2))
	require.Equal(t, raw, result.Order.OriginalBag)
	require.Nil(t, result.Order.StreetAddress2)
	require.Nil(t, result.Order.UserProfileID)

	again := h.engine.Reconcile(context.Background(), ev)
	require.Equal(t, StateFound, again.State)
	require.EqualValues(t, 1, h.count(t, &models.Order{}))
}

func TestReconcileRollsBackOnMissingProduct(t *testing.T) {
	h := newHarness(t)
	tee := h.seedProduct(t, "12.00")
	snap := bag.Snapshot{
		tee.ID.String():   bag.Simple(1),
		uuid.NewString(): bag.Simple(1),
	}
	raw, err := snap.Marshal()
	require.NoError(t, err)

	ev, err := PaymentEventFromIntent(succeededIntent("pi_broken", raw, 1200), nil)
	require.NoError(t, err)

	result := h.engine.Reconcile(context.Background(), ev)
	require.Equal(t, StateFailed, result.State)
	require.Equal(t, pkgerrors.CodeProductNotFound, pkgerrors.As(result.Err).Code())
	require.Zero(t, h.count(t, &models.Order{}))
	require.Zero(t, h.count(t, &models.OrderLineItem{}))
}

func TestReconcileSavesProfileDefaults(t *testing.T) {
	h := newHarness(t)
	profile := h.seedProfile(t, "ada")
	tee := h.seedProduct(t, "12.00")
	raw, err := bag.Snapshot{tee.ID.String(): bag.Simple(1)}.Marshal()
	require.NoError(t, err)

	pi := succeededIntent("pi_profile", raw, 1200)
	pi.Metadata["username"] = "ada"
	pi.Metadata["save_info"] = "true"
	ev, err := PaymentEventFromIntent(pi, nil)
	require.NoError(t, err)

	result := h.engine.Reconcile(context.Background(), ev)
	require.Equal(t, StateCreated, result.State, "%v", result.Err)
	require.NotNil(t, result.Order.UserProfileID)
	require.Equal(t, profile.ID, *result.Order.UserProfileID)

	stored, err := h.profiles.FindByUsername(context.Background(), "ada")
	require.NoError(t, err)
	require.Equal(t, "LS1 1AA", *stored.DefaultPostcode)
	require.Equal(t, "1 High Street", *stored.DefaultStreetAddress1)
	require.Nil(t, stored.DefaultStreetAddress2)
	require.Nil(t, stored.DefaultCounty)
}

func TestReconcileUnknownUserFails(t *testing.T) {
	h := newHarness(t)
	tee := h.seedProduct(t, "12.00")
	raw, err := bag.Snapshot{tee.ID.String(): bag.Simple(1)}.Marshal()
	require.NoError(t, err)

	pi := succeededIntent("pi_ghost", raw, 1200)
	pi.Metadata["username"] = "ghost"
	ev, err := PaymentEventFromIntent(pi, nil)
	require.NoError(t, err)

	result := h.engine.Reconcile(context.Background(), ev)
	require.Equal(t, StateFailed, result.State)
	require.Zero(t, h.count(t, &models.Order{}))
}

type racingStore struct {
	lookups int
}

func (s *racingStore) FindMatching(context.Context, orders.MatchCriteria) (*models.Order, error) {
	s.lookups++
	return nil, nil
}

func (s *racingStore) Place(context.Context, orders.PlaceInput) (*models.Order, error) {
	return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, orders.ErrDuplicateOrder, "order already exists")
}

type noProfiles struct{}

func (noProfiles) FindByUsername(context.Context, string) (*models.UserProfile, error) {
	return nil, errors.New("unexpected profile lookup")
}

func (noProfiles) SaveDefaults(context.Context, *models.UserProfile) error {
	return errors.New("unexpected profile save")
}

func TestReconcileLostRaceCountsAsFound(t *testing.T) {
	reg := prometheus.NewRegistry()
	store := &racingStore{}
	engine, err := NewEngine(EngineParams{
		Orders:      store,
		Profiles:    noProfiles{},
		MaxAttempts: 2,
		Metrics:     metrics.NewReconciliationMetrics(reg),
	})
	require.NoError(t, err)
	engine.wait = func(context.Context, time.Duration) error { return nil }

	result := engine.Reconcile(context.Background(), PaymentEvent{StripePID: "pi_race", Bag: `{}`, Username: "AnonymousUser"})
	require.Equal(t, StateFound, result.State)
	require.Equal(t, 2, store.lookups)
	series, err := testutil.GatherAndCount(reg, "reconciliation_outcomes_total")
	require.NoError(t, err)
	require.Equal(t, 1, series)
}

// lateStore hides the browser's order for the first misses lookups.
type lateStore struct {
	misses  int
	lookups int
	places  int
	order   *models.Order
}

func (s *lateStore) FindMatching(context.Context, orders.MatchCriteria) (*models.Order, error) {
	s.lookups++
	if s.lookups <= s.misses {
		return nil, nil
	}
	return s.order, nil
}

func (s *lateStore) Place(context.Context, orders.PlaceInput) (*models.Order, error) {
	s.places++
	return nil, errors.New("unexpected place")
}

func TestReconcileFindsOrderOnLaterAttempt(t *testing.T) {
	for misses := 1; misses < 5; misses++ {
		t.Run(fmt.Sprintf("misses_%d", misses), func(t *testing.T) {
			store := &lateStore{
				misses: misses,
				order:  &models.Order{ID: uuid.New(), OrderNumber: "LATE0001", StripePID: "pi_late"},
			}
			engine, err := NewEngine(EngineParams{
				Orders:      store,
				Profiles:    noProfiles{},
				MaxAttempts: 5,
				RetryDelay:  time.Second,
			})
			require.NoError(t, err)
			var waits []time.Duration
			engine.wait = func(_ context.Context, d time.Duration) error {
				waits = append(waits, d)
				return nil
			}

			result := engine.Reconcile(context.Background(), PaymentEvent{StripePID: "pi_late", Bag: `{}`, Username: "AnonymousUser"})
			require.Equal(t, StateFound, result.State)
			require.NoError(t, result.Err)
			require.Equal(t, misses+1, result.Attempts)
			require.Len(t, waits, misses)
			for _, d := range waits {
				require.Equal(t, time.Second, d)
			}
			require.Zero(t, store.places)
			require.Equal(t, "LATE0001", result.Order.OrderNumber)
		})
	}
}

func TestReconcileHonoursCancellation(t *testing.T) {
	store := &racingStore{}
	engine, err := NewEngine(EngineParams{Orders: store, Profiles: noProfiles{}, RetryDelay: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result := engine.Reconcile(ctx, PaymentEvent{StripePID: "pi_cancel"})
	require.Equal(t, StateFailed, result.State)
	require.ErrorIs(t, result.Err, context.Canceled)
	require.Equal(t, 1, store.lookups)
}

func TestReconcileRejectsMalformedBag(t *testing.T) {
	engine, err := NewEngine(EngineParams{Orders: &racingStore{}, Profiles: noProfiles{}, MaxAttempts: 1})
	require.NoError(t, err)

	result := engine.Reconcile(context.Background(), PaymentEvent{StripePID: "pi_bad", Bag: `{"x":0}`})
	require.Equal(t, StateFailed, result.State)
	require.Equal(t, pkgerrors.CodeValidation, pkgerrors.As(result.Err).Code())
}
