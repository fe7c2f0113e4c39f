package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/boutique-checkout/internal/bag"
	"github.com/angelmondragon/boutique-checkout/internal/products"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

// ProductNotFoundError names the first bag product that has no catalogue row.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %q not found", e.ProductID)
}

func productNotFound(productID string) error {
	return pkgerrors.Wrap(pkgerrors.CodeProductNotFound, &ProductNotFoundError{ProductID: productID},
		"One of the products in your bag wasn't found in our database.").
		WithDetails(map[string]any{"product_id": productID})
}

// MissingProductID returns the product id carried by a ProductNotFoundError in err's chain.
func MissingProductID(err error) (string, bool) {
	var notFound *ProductNotFoundError
	if errors.As(err, &notFound) {
		return notFound.ProductID, true
	}
	return "", false
}

// Materializer turns a bag snapshot into line items of an order.
type Materializer struct {
	orders   *Repository
	products *products.Repository
}

func NewMaterializer(orders *Repository, catalogue *products.Repository) (*Materializer, error) {
	if orders == nil {
		return nil, errors.New("orders repository required")
	}
	if catalogue == nil {
		return nil, errors.New("products repository required")
	}
	return &Materializer{orders: orders, products: catalogue}, nil
}

// Materialize resolves every product before writing anything. Simple entries
// become one size-less line item; sized entries become one line item per size.
// The order's grand total is set to the sum of the line item totals.
func (m *Materializer) Materialize(ctx context.Context, tx *gorm.DB, order *models.Order, snap bag.Snapshot) ([]models.OrderLineItem, error) {
	if order == nil || order.ID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "persisted order required")
	}

	productIDs := snap.ProductIDs()
	ids := make([]uuid.UUID, 0, len(productIDs))
	for _, raw := range productIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, productNotFound(raw)
		}
		ids = append(ids, id)
	}

	catalogue, err := m.products.WithTx(tx).FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i, id := range ids {
		if _, ok := catalogue[id]; !ok {
			return nil, productNotFound(productIDs[i])
		}
	}

	lines := snap.Lines()
	items := make([]models.OrderLineItem, 0, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		id := uuid.MustParse(line.ProductID)
		product := catalogue[id]
		lineTotal := product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2)
		items = append(items, models.OrderLineItem{
			OrderID:       order.ID,
			ProductID:     id,
			ProductSize:   line.Size,
			Quantity:      line.Quantity,
			LineItemTotal: lineTotal,
		})
		total = total.Add(lineTotal)
	}

	repo := m.orders.WithTx(tx)
	if err := repo.CreateLineItems(ctx, items); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "create line items")
	}
	if err := repo.UpdateGrandTotal(ctx, order.ID, total); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update order total")
	}

	for i := range items {
		product := catalogue[items[i].ProductID]
		items[i].Product = &product
	}
	order.GrandTotal = total
	order.LineItems = items
	return items, nil
}

// BagTotal prices a snapshot without writing anything. Unknown products
// fail with the same error Materialize reports.
func (m *Materializer) BagTotal(ctx context.Context, snap bag.Snapshot) (decimal.Decimal, error) {
	productIDs := snap.ProductIDs()
	ids := make([]uuid.UUID, 0, len(productIDs))
	for _, raw := range productIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return decimal.Zero, productNotFound(raw)
		}
		ids = append(ids, id)
	}
	catalogue, err := m.products.FindByIDs(ctx, ids)
	if err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, line := range snap.Lines() {
		product, ok := catalogue[uuid.MustParse(line.ProductID)]
		if !ok {
			return decimal.Zero, productNotFound(line.ProductID)
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))).Round(2))
	}
	return total, nil
}
