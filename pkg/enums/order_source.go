package enums

// OrderSource records which path persisted an order.
type OrderSource string

const (
	OrderSourceCheckout OrderSource = "checkout"
	OrderSourceWebhook  OrderSource = "webhook"
)

func (s OrderSource) IsValid() bool {
	return s == OrderSourceCheckout || s == OrderSourceWebhook
}
