package profiles

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
)

// Repository exposes user profile persistence.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a profiles repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByUsername loads the profile belonging to the user with username.
func (r *Repository) FindByUsername(ctx context.Context, username string) (*models.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "username required")
	}
	var profile models.UserProfile
	err := r.db.WithContext(ctx).
		Joins("JOIN users ON users.id = user_profiles.user_id").
		Where("users.username = ?", username).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user profile not found").
				WithDetails(map[string]any{"username": username})
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load user profile")
	}
	return &profile, nil
}

// SaveDefaults writes the profile's default delivery columns.
func (r *Repository) SaveDefaults(ctx context.Context, profile *models.UserProfile) error {
	if profile == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "profile required")
	}
	err := r.db.WithContext(ctx).
		Model(profile).
		Select(
			"default_phone_number",
			"default_country",
			"default_postcode",
			"default_town_or_city",
			"default_street_address1",
			"default_street_address2",
			"default_county",
			"updated_at",
		).
		Updates(profile).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save user profile")
	}
	return nil
}
