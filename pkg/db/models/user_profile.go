package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserProfile holds the delivery defaults pre-filled at checkout.
type UserProfile struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex"`
	User                  *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	DefaultPhoneNumber    *string   `gorm:"column:default_phone_number;type:varchar(20)"`
	DefaultCountry        *string   `gorm:"column:default_country;type:varchar(2)"`
	DefaultPostcode       *string   `gorm:"column:default_postcode;type:varchar(20)"`
	DefaultTownOrCity     *string   `gorm:"column:default_town_or_city;type:varchar(40)"`
	DefaultStreetAddress1 *string   `gorm:"column:default_street_address1;type:varchar(80)"`
	DefaultStreetAddress2 *string   `gorm:"column:default_street_address2;type:varchar(80)"`
	DefaultCounty         *string   `gorm:"column:default_county;type:varchar(80)"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *UserProfile) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
