package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

// Repository persists orders and their line items.
type Repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit("LineItems", "UserProfile").Create(order).Error
}

func (r *Repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Omit("Product").Create(&items).Error
}

func (r *Repository) UpdateGrandTotal(ctx context.Context, orderID uuid.UUID, total decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", orderID).
		Update("grand_total", total).Error
}

// Delete removes the order and its line items.
func (r *Repository) Delete(ctx context.Context, orderID uuid.UUID) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("order_id = ?", orderID).Delete(&models.OrderLineItem{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", orderID).Delete(&models.Order{}).Error
}

// FindByOrderNumber loads an order with its line items and their products.
func (r *Repository) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	return r.findWithItems(ctx, "order_number = ?", orderNumber)
}

// FindByStripePID loads the order paid for by the given payment intent.
func (r *Repository) FindByStripePID(ctx context.Context, stripePID string) (*models.Order, error) {
	return r.findWithItems(ctx, "stripe_pid = ?", stripePID)
}

func (r *Repository) findWithItems(ctx context.Context, query string, arg any) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("LineItems", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_id ASC").Order("product_size ASC")
		}).
		Preload("LineItems.Product").
		Where(query, arg).
		First(&order).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	return &order, nil
}

// MatchCriteria identifies an order by everything a payment event carries.
// Nil text fields only match NULL columns.
type MatchCriteria struct {
	FullName       *string
	Email          *string
	PhoneNumber    *string
	Country        *string
	Postcode       *string
	TownOrCity     *string
	StreetAddress1 *string
	StreetAddress2 *string
	County         *string
	GrandTotal     decimal.Decimal
	StripePID      string
	OriginalBag    string
}

// FindMatching returns the order matching c, or nil when there is none. Text
// fields compare case-insensitively; total, payment intent and bag compare
// exactly.
func (r *Repository) FindMatching(ctx context.Context, c MatchCriteria) (*models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	q = matchFold(q, "full_name", c.FullName)
	q = matchFold(q, "email", c.Email)
	q = matchFold(q, "phone_number", c.PhoneNumber)
	q = matchFold(q, "country", c.Country)
	q = matchFold(q, "postcode", c.Postcode)
	q = matchFold(q, "town_or_city", c.TownOrCity)
	q = matchFold(q, "street_address1", c.StreetAddress1)
	q = matchFold(q, "street_address2", c.StreetAddress2)
	q = matchFold(q, "county", c.County)
	q = q.Where("grand_total = ?", c.GrandTotal).
		Where("stripe_pid = ?", c.StripePID).
		Where("original_bag = ?", c.OriginalBag)

	var order models.Order
	err := q.Order("created_at ASC").Limit(1).Find(&order).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "match order")
	}
	if order.ID == uuid.Nil {
		return nil, nil
	}
	return &order, nil
}

func matchFold(q *gorm.DB, column string, value *string) *gorm.DB {
	if value == nil {
		return q.Where(column + " IS NULL")
	}
	return q.Where("LOWER("+column+") = LOWER(?)", *value)
}
