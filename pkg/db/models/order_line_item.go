package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// OrderLineItem is one (product, size) row of an order.
type OrderLineItem struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID       uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID     uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	Product       *Product        `gorm:"foreignKey:ProductID"`
	ProductSize   *string         `gorm:"column:product_size;type:varchar(2)"`
	Quantity      int             `gorm:"column:quantity;not null;check:chk_order_line_items_quantity,quantity > 0"`
	LineItemTotal decimal.Decimal `gorm:"column:lineitem_total;type:numeric(10,2);not null"`
}

func (li *OrderLineItem) BeforeCreate(*gorm.DB) error {
	if li.ID == uuid.Nil {
		li.ID = uuid.New()
	}
	return nil
}
