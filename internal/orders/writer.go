package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/boutique-checkout/pkg/db"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

// ErrDuplicateOrder marks an attempt to write a second order for a payment
// intent that already has one.
var ErrDuplicateOrder = errors.New("order already exists for payment intent")

const stripePIDConstraint = "stripe_pid"

// NewOrder is the input to Writer.Create.
type NewOrder struct {
	Fields        OrderFields
	StripePID     string
	OriginalBag   string
	UserProfileID *uuid.UUID
}

// Writer creates and rolls back order rows.
type Writer struct {
	repo           *Repository
	newOrderNumber func() string
}

func NewWriter(repo *Repository) (*Writer, error) {
	if repo == nil {
		return nil, errors.New("orders repository required")
	}
	return &Writer{repo: repo, newOrderNumber: NewOrderNumber}, nil
}

// NewOrderNumber returns 32 upper-case hex characters from a random uuid.
func NewOrderNumber() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// Create validates the shopper fields and inserts one order row inside tx.
func (w *Writer) Create(ctx context.Context, tx *gorm.DB, in NewOrder) (*models.Order, error) {
	fields := in.Fields.Normalize()
	if err := fields.Validate(); err != nil {
		return nil, err
	}
	stripePID := strings.TrimSpace(in.StripePID)
	if stripePID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required").
			WithDetails(map[string]string{"client_secret": "is required"})
	}

	order := &models.Order{
		OrderNumber:    w.newOrderNumber(),
		UserProfileID:  in.UserProfileID,
		FullName:       fields.FullName,
		Email:          fields.Email,
		PhoneNumber:    fields.PhoneNumber,
		Country:        fields.Country,
		Postcode:       fields.Postcode,
		TownOrCity:     fields.TownOrCity,
		StreetAddress1: fields.StreetAddress1,
		StreetAddress2: fields.StreetAddress2,
		County:         fields.County,
		OriginalBag:    in.OriginalBag,
		StripePID:      stripePID,
	}
	if err := w.repo.WithTx(tx).Create(ctx, order); err != nil {
		if dbpkg.IsUniqueViolation(err, stripePIDConstraint) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, ErrDuplicateOrder, "order already exists").
				WithDetails(map[string]any{"stripe_pid": stripePID})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create order")
	}
	return order, nil
}

// Delete removes an order created earlier in a failed placement.
func (w *Writer) Delete(ctx context.Context, tx *gorm.DB, order *models.Order) error {
	if order == nil || order.ID == uuid.Nil {
		return nil
	}
	if err := w.repo.WithTx(tx).Delete(ctx, order.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete order")
	}
	return nil
}
