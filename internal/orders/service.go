package orders

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/boutique-checkout/internal/bag"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	"github.com/angelmondragon/boutique-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
	"github.com/angelmondragon/boutique-checkout/pkg/outbox"
	"github.com/angelmondragon/boutique-checkout/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// PlaceInput carries everything needed to persist one order.
type PlaceInput struct {
	Fields        OrderFields
	StripePID     string
	Bag           bag.Snapshot
	UserProfileID *uuid.UUID
	Username      string
	Source        enums.OrderSource
}

// ServiceParams groups the collaborators of Service.
type ServiceParams struct {
	Repo         *Repository
	Writer       *Writer
	Materializer *Materializer
	Tx           txRunner
	Outbox       outboxPublisher
	Logger       *logger.Logger
}

// Service places orders: the order row, its line items and the
// order_created event commit together or not at all.
type Service struct {
	repo         *Repository
	writer       *Writer
	materializer *Materializer
	tx           txRunner
	outbox       outboxPublisher
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repo == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Writer == nil {
		return nil, errors.New("order writer required")
	}
	if params.Materializer == nil {
		return nil, errors.New("line item materializer required")
	}
	if params.Tx == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	return &Service{
		repo:         params.Repo,
		writer:       params.Writer,
		materializer: params.Materializer,
		tx:           params.Tx,
		outbox:       params.Outbox,
		logg:         params.Logger,
	}, nil
}

// Place writes the order, materializes the bag into it and queues the
// order_created event. When materialization fails the order is deleted
// before the transaction is abandoned.
func (s *Service) Place(ctx context.Context, in PlaceInput) (*models.Order, error) {
	originalBag, err := in.Bag.Marshal()
	if err != nil {
		return nil, err
	}
	source := in.Source
	if !source.IsValid() {
		source = enums.OrderSourceCheckout
	}

	var placed *models.Order
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.writer.Create(ctx, tx, NewOrder{
			Fields:        in.Fields,
			StripePID:     in.StripePID,
			OriginalBag:   originalBag,
			UserProfileID: in.UserProfileID,
		})
		if err != nil {
			return err
		}

		items, err := s.materializer.Materialize(ctx, tx, order, in.Bag)
		if err != nil {
			return multierr.Append(err, s.writer.Delete(ctx, tx, order))
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Email:       order.Email,
				GrandTotal:  order.GrandTotal,
				StripePID:   order.StripePID,
				LineItems:   len(items),
				Source:      source,
			},
		}
		if username := strings.TrimSpace(in.Username); username != "" {
			event.Actor = &outbox.ActorRef{Username: username}
		}
		if err := s.outbox.EmitIfNotExists(ctx, tx, event); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "queue order_created event")
		}
		placed = order
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.logg != nil {
		logCtx := s.logg.WithOrderNumber(ctx, placed.OrderNumber)
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"source":      string(source),
			"grand_total": placed.GrandTotal.StringFixed(2),
			"line_items":  len(placed.LineItems),
		})
		s.logg.Info(logCtx, "order placed")
	}
	return placed, nil
}

// FindByOrderNumber loads a placed order with its line items.
func (s *Service) FindByOrderNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	orderNumber = strings.ToUpper(strings.TrimSpace(orderNumber))
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}
	return s.repo.FindByOrderNumber(ctx, orderNumber)
}

// FindByStripePID loads the order recorded against a payment intent.
func (s *Service) FindByStripePID(ctx context.Context, stripePID string) (*models.Order, error) {
	stripePID = strings.TrimSpace(stripePID)
	if stripePID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe pid required")
	}
	return s.repo.FindByStripePID(ctx, stripePID)
}

// FindMatching looks up an order equal to c.
func (s *Service) FindMatching(ctx context.Context, c MatchCriteria) (*models.Order, error) {
	return s.repo.FindMatching(ctx, c)
}

// BagTotal prices a bag against the catalogue.
func (s *Service) BagTotal(ctx context.Context, snap bag.Snapshot) (decimal.Decimal, error) {
	return s.materializer.BagTotal(ctx, snap)
}
