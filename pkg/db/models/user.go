package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is the shopper identity referenced by the username in payment metadata.
type User struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	Username  string    `gorm:"column:username;type:varchar(150);not null;uniqueIndex"`
	Email     string    `gorm:"column:email;type:varchar(254);not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}
