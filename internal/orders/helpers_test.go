package orders

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/boutique-checkout/internal/products"
	dbpkg "github.com/angelmondragon/boutique-checkout/pkg/db"
	"github.com/angelmondragon/boutique-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	"github.com/angelmondragon/boutique-checkout/pkg/outbox"
)

type fixture struct {
	conn         *gorm.DB
	repo         *Repository
	writer       *Writer
	materializer *Materializer
	outboxRepo   *outbox.Repository
	service      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t,
		&models.Product{},
		&models.User{},
		&models.UserProfile{},
		&models.Order{},
		&models.OrderLineItem{},
		&models.OutboxEvent{},
	)
	return newFixtureWithRunner(t, conn, dbpkg.NewFromConn(conn))
}

func newFixtureWithRunner(t *testing.T, conn *gorm.DB, runner txRunner) *fixture {
	t.Helper()
	repo := NewRepository(conn)
	writer, err := NewWriter(repo)
	require.NoError(t, err)
	materializer, err := NewMaterializer(repo, products.NewRepository(conn))
	require.NoError(t, err)
	outboxRepo := outbox.NewRepository(conn)
	svc, err := NewService(ServiceParams{
		Repo:         repo,
		Writer:       writer,
		Materializer: materializer,
		Tx:           runner,
		Outbox:       outbox.NewService(outboxRepo, nil),
	})
	require.NoError(t, err)
	return &fixture{
		conn:         conn,
		repo:         repo,
		writer:       writer,
		materializer: materializer,
		outboxRepo:   outboxRepo,
		service:      svc,
	}
}

func (f *fixture) seedProduct(t *testing.T, name, price string) models.Product {
	t.Helper()
	product := models.Product{Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, f.conn.Create(&product).Error)
	return product
}

func (f *fixture) countOrders(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	return count
}

func (f *fixture) countLineItems(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.conn.Model(&models.OrderLineItem{}).Count(&count).Error)
	return count
}

// directRunner runs fn on the plain connection with no transaction.
type directRunner struct {
	conn *gorm.DB
}

func (r directRunner) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(r.conn)
}

func strPtr(s string) *string {
	return &s
}

func validFields() OrderFields {
	return OrderFields{
		FullName:       "Ada Lovelace",
		Email:          "ada@example.com",
		PhoneNumber:    "0123456789",
		Country:        "GB",
		Postcode:       strPtr("LS1 1AA"),
		TownOrCity:     "Leeds",
		StreetAddress1: "1 High Street",
	}
}
