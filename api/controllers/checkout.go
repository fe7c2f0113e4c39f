package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/boutique-checkout/api/middleware"
	"github.com/angelmondragon/boutique-checkout/api/responses"
	"github.com/angelmondragon/boutique-checkout/api/validators"
	checkoutsvc "github.com/angelmondragon/boutique-checkout/internal/checkout"
	"github.com/angelmondragon/boutique-checkout/internal/orders"
	"github.com/angelmondragon/boutique-checkout/pkg/db/models"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

const (
	bagRedirect     = "/bag"
	successRedirect = "/checkout/success/"
)

// CheckoutService is the browser checkout flow.
type CheckoutService interface {
	Start(ctx context.Context, sessionID string) (*checkoutsvc.Started, error)
	CacheData(ctx context.Context, in checkoutsvc.CacheInput) error
	Submit(ctx context.Context, in checkoutsvc.SubmitInput) (*models.Order, error)
	Success(ctx context.Context, sessionID, orderNumber string) (*models.Order, error)
}

type cacheDataRequest struct {
	ClientSecret string `json:"client_secret" validate:"required"`
	SaveInfo     bool   `json:"save_info"`
}

// The embedded fields are validated by the order writer after normalization.
type checkoutRequest struct {
	orders.OrderFields `validate:"-"`
	ClientSecret       string `json:"client_secret" validate:"required"`
	SaveInfo           bool   `json:"save_info"`
}

type placedResponse struct {
	OrderNumber string `json:"order_number"`
	Redirect    string `json:"redirect"`
}

type lineItemResponse struct {
	ProductID     uuid.UUID       `json:"product_id"`
	ProductName   string          `json:"product_name,omitempty"`
	ProductSize   *string         `json:"product_size,omitempty"`
	Quantity      int             `json:"quantity"`
	LineItemTotal decimal.Decimal `json:"lineitem_total"`
}

type orderResponse struct {
	OrderNumber    string             `json:"order_number"`
	FullName       string             `json:"full_name"`
	Email          string             `json:"email"`
	PhoneNumber    string             `json:"phone_number"`
	Country        string             `json:"country"`
	Postcode       *string            `json:"postcode,omitempty"`
	TownOrCity     string             `json:"town_or_city"`
	StreetAddress1 string             `json:"street_address1"`
	StreetAddress2 *string            `json:"street_address2,omitempty"`
	County         *string            `json:"county,omitempty"`
	GrandTotal     decimal.Decimal    `json:"grand_total"`
	CreatedAt      time.Time          `json:"created_at"`
	LineItems      []lineItemResponse `json:"line_items"`
}

func newOrderResponse(o *models.Order) orderResponse {
	resp := orderResponse{
		OrderNumber:    o.OrderNumber,
		FullName:       o.FullName,
		Email:          o.Email,
		PhoneNumber:    o.PhoneNumber,
		Country:        o.Country,
		Postcode:       o.Postcode,
		TownOrCity:     o.TownOrCity,
		StreetAddress1: o.StreetAddress1,
		StreetAddress2: o.StreetAddress2,
		County:         o.County,
		GrandTotal:     o.GrandTotal,
		CreatedAt:      o.CreatedAt,
		LineItems:      make([]lineItemResponse, 0, len(o.LineItems)),
	}
	for _, li := range o.LineItems {
		item := lineItemResponse{
			ProductID:     li.ProductID,
			ProductSize:   li.ProductSize,
			Quantity:      li.Quantity,
			LineItemTotal: li.LineItemTotal,
		}
		if li.Product != nil {
			item.ProductName = li.Product.Name
		}
		resp.LineItems = append(resp.LineItems, item)
	}
	return resp
}

// CheckoutStart opens a payment intent for the session bag.
func CheckoutStart(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		started, err := svc.Start(ctx, middleware.SessionIDFromContext(ctx))
		if err != nil {
			writeCheckoutError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, started)
	}
}

// CheckoutCacheData stores the bag and shopper preferences on the intent.
func CheckoutCacheData(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		var req cacheDataRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		err := svc.CacheData(ctx, checkoutsvc.CacheInput{
			SessionID:    middleware.SessionIDFromContext(ctx),
			ClientSecret: req.ClientSecret,
			SaveInfo:     req.SaveInfo,
			Username:     middleware.UsernameFromContext(ctx),
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "cached"})
	}
}

// CheckoutSubmit places the order once the browser has confirmed payment.
func CheckoutSubmit(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		order, err := svc.Submit(ctx, checkoutsvc.SubmitInput{
			SessionID:    middleware.SessionIDFromContext(ctx),
			Username:     middleware.UsernameFromContext(ctx),
			Fields:       req.OrderFields,
			ClientSecret: req.ClientSecret,
			SaveInfo:     req.SaveInfo,
		})
		if err != nil {
			writeCheckoutError(ctx, logg, w, err)
			return
		}
		redirect := successRedirect + order.OrderNumber
		w.Header().Set("Location", redirect)
		responses.WriteSuccessStatus(w, http.StatusCreated, placedResponse{
			OrderNumber: order.OrderNumber,
			Redirect:    redirect,
		})
	}
}

// CheckoutSuccess shows the placed order and empties the bag.
func CheckoutSuccess(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}
		order, err := svc.Success(ctx, middleware.SessionIDFromContext(ctx), chi.URLParam(r, "orderNumber"))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, newOrderResponse(order))
	}
}

// writeCheckoutError points the shopper back at the bag when a product vanished.
func writeCheckoutError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if productID, ok := orders.MissingProductID(err); ok {
		err = pkgerrors.Wrap(pkgerrors.CodeProductNotFound, err, "product not found").
			WithDetails(map[string]string{"product_id": productID, "redirect": bagRedirect})
	}
	responses.WriteError(ctx, logg, w, err)
}
