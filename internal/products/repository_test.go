package products

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/boutique-checkout/pkg/db/dbtest"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
)

func seedProduct(t *testing.T, repo *Repository, name, price string) models.Product {
	t.Helper()
	product := models.Product{Name: name, Price: decimal.RequireFromString(price)}
	require.NoError(t, repo.db.Create(&product).Error)
	return product
}

func TestFindByIDs(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.Product{}))
	shirt := seedProduct(t, repo, "Shirt", "19.99")
	hat := seedProduct(t, repo, "Hat", "5.00")

	found, err := repo.FindByIDs(context.Background(), []uuid.UUID{shirt.ID, hat.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, found, 2)
	require.True(t, found[shirt.ID].Price.Equal(decimal.RequireFromString("19.99")))
	require.Equal(t, "Hat", found[hat.ID].Name)

	empty, err := repo.FindByIDs(context.Background(), nil)
	require.NoError(t, err)
	require.Empty(t, empty)
}

func TestFindByIDsLeavesUnknownIDsOut(t *testing.T) {
	repo := NewRepository(dbtest.Open(t, &models.Product{}))
	shirt := seedProduct(t, repo, "Shirt", "19.99")
	unknown := uuid.New()

	found, err := repo.FindByIDs(context.Background(), []uuid.UUID{shirt.ID, unknown})
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "Shirt", found[shirt.ID].Name)
	_, ok := found[unknown]
	require.False(t, ok)
}
