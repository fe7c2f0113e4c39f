package products

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

// Repository reads catalogue rows. Checkout never writes products.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

// FindByIDs loads every product in ids and returns them keyed by id. Ids with
// no row are simply absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	found := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load products")
	}
	for _, row := range rows {
		found[row.ID] = row
	}
	return found, nil
}
