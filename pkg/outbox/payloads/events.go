package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/boutique-checkout/pkg/enums"
)

// OrderCreatedEvent announces a confirmed order so confirmation mail and
// fulfilment can pick it up.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	Email       string            `json:"email"`
	GrandTotal  decimal.Decimal   `json:"grand_total"`
	StripePID   string            `json:"stripe_pid"`
	LineItems   int               `json:"line_items"`
	Source      enums.OrderSource `json:"source"`
}
