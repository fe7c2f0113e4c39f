package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order is a confirmed purchase. StripePID is unique so at most one order
// exists per payment intent regardless of which path created it.
type Order struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber    string          `gorm:"column:order_number;type:varchar(32);not null;uniqueIndex:ux_orders_order_number"`
	UserProfileID  *uuid.UUID      `gorm:"column:user_profile_id;type:uuid"`
	UserProfile    *UserProfile    `gorm:"foreignKey:UserProfileID;constraint:OnDelete:SET NULL"`
	FullName       string          `gorm:"column:full_name;type:varchar(50);not null"`
	Email          string          `gorm:"column:email;type:varchar(254);not null"`
	PhoneNumber    string          `gorm:"column:phone_number;type:varchar(20);not null"`
	Country        string          `gorm:"column:country;type:varchar(2);not null"`
	Postcode       *string         `gorm:"column:postcode;type:varchar(20)"`
	TownOrCity     string          `gorm:"column:town_or_city;type:varchar(40);not null"`
	StreetAddress1 string          `gorm:"column:street_address1;type:varchar(80);not null"`
	StreetAddress2 *string         `gorm:"column:street_address2;type:varchar(80)"`
	County         *string         `gorm:"column:county;type:varchar(80)"`
	GrandTotal     decimal.Decimal `gorm:"column:grand_total;type:numeric(10,2);not null;default:0"`
	OriginalBag    string          `gorm:"column:original_bag;type:text;not null;default:''"`
	StripePID      string          `gorm:"column:stripe_pid;type:varchar(254);not null;uniqueIndex:ux_orders_stripe_pid"`
	LineItems      []OrderLineItem `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
