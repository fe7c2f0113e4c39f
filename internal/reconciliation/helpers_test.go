package reconciliation

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/boutique-checkout/internal/orders"
	"github.com/angelmondragon/boutique-checkout/internal/products"
	"github.com/angelmondragon/boutique-checkout/internal/profiles"
	dbpkg "github.com/angelmondragon/boutique-checkout/pkg/db"
	"github.com/angelmondragon/boutique-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	"github.com/angelmondragon/boutique-checkout/pkg/outbox"
)

type harness struct {
	conn     *gorm.DB
	orders   *orders.Service
	profiles *profiles.Repository
	engine   *Engine
	waits    []time.Duration
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t,
		&models.Product{},
		&models.User{},
		&models.UserProfile{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OutboxEvent{},
	)
	repo := orders.NewRepository(conn)
	writer, err := orders.NewWriter(repo)
	require.NoError(t, err)
	materializer, err := orders.NewMaterializer(repo, products.NewRepository(conn))
	require.NoError(t, err)
	svc, err := orders.NewService(orders.ServiceParams{
		Repo:         repo,
		Writer:       writer,
		Materializer: materializer,
		Tx:           dbpkg.NewFromConn(conn),
		Outbox:       outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)

	h := &harness{conn: conn, orders: svc, profiles: profiles.NewRepository(conn)}
	engine, err := NewEngine(EngineParams{Orders: svc, Profiles: h.profiles})
	require.NoError(t, err)
	engine.wait = func(_ context.Context, d time.Duration) error {
		h.waits = append(h.waits, d)
		return nil
	}
	h.engine = engine
	return h
}

func (h *harness) seedProduct(t *testing.T, price string) models.Product {
	t.Helper()
	product := models.Product{Name: "Item " + price, Price: decimal.RequireFromString(price)}
	require.NoError(t, h.conn.Create(&product).Error)
	return product
}

func (h *harness) seedProfile(t *testing.T, username string) models.UserProfile {
	t.Helper()
	user := models.User{Username: username, Email: username + "@example.com"}
	require.NoError(t, h.conn.Create(&user).Error)
	profile := models.UserProfile{UserID: user.ID}
	require.NoError(t, h.conn.Create(&profile).Error)
	return profile
}

func (h *harness) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, h.conn.Model(model).Count(&n).Error)
	return n
}

func succeededIntent(id, bagJSON string, amount int64) *stripe.PaymentIntent {
	return &stripe.PaymentIntent{
		ID:             id,
		Amount:         amount,
		AmountReceived: amount,
		Metadata: map[string]string{
			"bag":       bagJSON,
			"save_info": "false",
			"username":  "AnonymousUser",
		},
		Shipping: &stripe.ShippingDetails{
			Name:  "Ada Lovelace",
			Phone: "0123456789",
			Address: &stripe.Address{
				Line1:      "1 High Street",
				Line2:      "",
				City:       "Leeds",
				PostalCode: "LS1 1AA",
				Country:    "GB",
				State:      "",
			},
		},
		LatestCharge: &stripe.Charge{
			ID:             "ch_" + id,
			Amount:         amount,
			BillingDetails: &stripe.ChargeBillingDetails{Email: "ada@example.com"},
		},
	}
}
