package controllers

import (
	"context"
	"io"
	"net/http"

	"github.com/angelmondragon/boutique-checkout/api/middleware"
	"github.com/angelmondragon/boutique-checkout/api/responses"
	"github.com/angelmondragon/boutique-checkout/internal/bag"
	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/logger"
)

const maxBagBytes = 16384

// BagStore reads and replaces the session bag.
type BagStore interface {
	Load(ctx context.Context, sessionID string) (bag.Snapshot, error)
	Save(ctx context.Context, sessionID string, snap bag.Snapshot) error
}

type bagResponse struct {
	Items bag.Snapshot `json:"items"`
	Count int          `json:"count"`
}

// BagGet returns the session bag.
func BagGet(store BagStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bag store unavailable"))
			return
		}
		snap, err := store.Load(ctx, middleware.SessionIDFromContext(ctx))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, bagResponse{Items: snap, Count: snap.Count()})
	}
}

// BagPut replaces the session bag with the snapshot in the body.
func BagPut(store BagStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if store == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bag store unavailable"))
			return
		}
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBagBytes))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid request body"))
			return
		}
		snap, err := bag.Parse(string(raw))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err := store.Save(ctx, middleware.SessionIDFromContext(ctx), snap); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, bagResponse{Items: snap, Count: snap.Count()})
	}
}
