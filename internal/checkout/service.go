// Package checkout drives the browser half of a purchase: pricing the
// session bag, opening a payment intent and placing the order once the
// shopper confirms.
package checkout

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/boutique-checkout/internal/bag"
	"github.com/angelmondragon/boutique-checkout/internal/orders"
	"github.com/angelmondragon/boutique-checkout/internal/payments"
	"github.com/angelmondragon/boutique-checkout/internal/profiles"
	"github.com/angelmondragon/boutique-checkout/pkg/auth"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	"github.com/angelmondragon/boutique-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

const emptyBagMessage = "There's nothing in your bag at the moment"

type bagStore interface {
	Load(ctx context.Context, sessionID string) (bag.Snapshot, error)
	Clear(ctx context.Context, sessionID string) error
	SetSaveInfo(ctx context.Context, sessionID string, saveInfo bool) error
	SaveInfo(ctx context.Context, sessionID string) (bool, error)
}

type paymentBridge interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal) (*payments.Intent, error)
	AttachMetadata(ctx context.Context, clientSecret string, snap bag.Snapshot, saveInfo bool, username string) error
}

type orderService interface {
	Place(ctx context.Context, in orders.PlaceInput) (*models.Order, error)
	BagTotal(ctx context.Context, snap bag.Snapshot) (decimal.Decimal, error)
	FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByStripePID(ctx context.Context, stripePID string) (*models.Order, error)
}

type profileStore interface {
	FindByUsername(ctx context.Context, username string) (*models.UserProfile, error)
	SaveDefaults(ctx context.Context, profile *models.UserProfile) error
}

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Bags      bagStore
	Payments  paymentBridge
	Orders    orderService
	Profiles  profileStore
	PublicKey string
	Logger    *logger.Logger
}

type Service struct {
	bags      bagStore
	payments  paymentBridge
	orders    orderService
	profiles  profileStore
	publicKey string
	logg      *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Bags == nil {
		return nil, errors.New("bag store required")
	}
	if params.Payments == nil {
		return nil, errors.New("payment bridge required")
	}
	if params.Orders == nil {
		return nil, errors.New("order service required")
	}
	if params.Profiles == nil {
		return nil, errors.New("profile store required")
	}
	return &Service{
		bags:      params.Bags,
		payments:  params.Payments,
		orders:    params.Orders,
		profiles:  params.Profiles,
		publicKey: params.PublicKey,
		logg:      params.Logger,
	}, nil
}

// Started is what the browser needs to confirm payment.
type Started struct {
	ClientSecret    string          `json:"client_secret"`
	StripePublicKey string          `json:"stripe_public_key"`
	GrandTotal      decimal.Decimal `json:"grand_total"`
	// SaveInfo pre-fills the checkbox with the session's last choice.
	SaveInfo bool `json:"save_info"`
}

// Start prices the session bag and opens a payment intent for the total.
func (s *Service) Start(ctx context.Context, sessionID string) (*Started, error) {
	snap, err := s.loadBag(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	total, err := s.orders.BagTotal(ctx, snap)
	if err != nil {
		return nil, err
	}
	intent, err := s.payments.CreateIntent(ctx, total)
	if err != nil {
		return nil, err
	}
	saveInfo, err := s.bags.SaveInfo(ctx, sessionID)
	if err != nil && s.logg != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "could not read session save_info")
	}
	return &Started{
		ClientSecret:    intent.ClientSecret,
		StripePublicKey: s.publicKey,
		GrandTotal:      total,
		SaveInfo:        saveInfo,
	}, nil
}

// CacheInput is posted right before the browser confirms the card payment.
type CacheInput struct {
	SessionID    string
	ClientSecret string
	SaveInfo     bool
	Username     string
}

// CacheData copies the bag and shopper preferences onto the payment intent
// so the webhook path can rebuild the order without the browser.
func (s *Service) CacheData(ctx context.Context, in CacheInput) error {
	if strings.TrimSpace(in.ClientSecret) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "client secret required").
			WithDetails(map[string]string{"client_secret": "is required"})
	}
	snap, err := s.bags.Load(ctx, in.SessionID)
	if err != nil {
		return err
	}
	return s.payments.AttachMetadata(ctx, in.ClientSecret, snap, in.SaveInfo, in.Username)
}

// SubmitInput is the confirmed checkout form.
type SubmitInput struct {
	SessionID    string
	Username     string
	Fields       orders.OrderFields
	ClientSecret string
	SaveInfo     bool
}

// Submit places the order for a confirmed payment. When the webhook has
// already recorded the same payment intent, that order is returned.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*models.Order, error) {
	pid, err := payments.IntentIDFromClientSecret(in.ClientSecret)
	if err != nil {
		return nil, err
	}
	snap, err := s.loadBag(ctx, in.SessionID)
	if err != nil {
		return nil, err
	}

	profile, err := s.profileFor(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	var profileID *uuid.UUID
	if profile != nil {
		profileID = &profile.ID
	}

	order, err := s.orders.Place(ctx, orders.PlaceInput{
		Fields:        in.Fields,
		StripePID:     pid,
		Bag:           snap,
		UserProfileID: profileID,
		Username:      in.Username,
		Source:        enums.OrderSourceCheckout,
	})
	if errors.Is(err, orders.ErrDuplicateOrder) {
		order, err = s.orders.FindByStripePID(ctx, pid)
	}
	if err != nil {
		return nil, err
	}

	if err := s.bags.SetSaveInfo(ctx, in.SessionID, in.SaveInfo); err != nil {
		s.warn(ctx, "failed to store save_info in session", err)
	}
	if profile != nil && in.SaveInfo {
		fields := in.Fields.Normalize()
		profiles.ApplyDefaults(profile, profiles.Defaults{
			PhoneNumber:    fields.PhoneNumber,
			Country:        fields.Country,
			Postcode:       fields.Postcode,
			TownOrCity:     fields.TownOrCity,
			StreetAddress1: fields.StreetAddress1,
			StreetAddress2: fields.StreetAddress2,
			County:         fields.County,
		})
		if err := s.profiles.SaveDefaults(ctx, profile); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// Success loads the placed order and empties the session bag.
func (s *Service) Success(ctx context.Context, sessionID, orderNumber string) (*models.Order, error) {
	order, err := s.orders.FindByOrderNumber(ctx, orderNumber)
	if err != nil {
		return nil, err
	}
	if err := s.bags.Clear(ctx, sessionID); err != nil {
		return nil, err
	}
	if s.logg != nil {
		s.logg.Info(s.logg.WithOrderNumber(ctx, order.OrderNumber), "checkout completed")
	}
	return order, nil
}

func (s *Service) loadBag(ctx context.Context, sessionID string) (bag.Snapshot, error) {
	snap, err := s.bags.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if snap.IsEmpty() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, emptyBagMessage)
	}
	return snap, nil
}

func (s *Service) profileFor(ctx context.Context, username string) (*models.UserProfile, error) {
	username = strings.TrimSpace(username)
	if username == "" || username == auth.AnonymousUsername {
		return nil, nil
	}
	return s.profiles.FindByUsername(ctx, username)
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
