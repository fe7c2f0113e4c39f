package bag

import (
	"context"
	"errors"
	"strconv"
	"time"

	pkgerrors "github.com/angelmondragon/boutique-checkout/pkg/errors"
	"github.com/angelmondragon/boutique-checkout/pkg/redis"
)

const (
	bagField      = "bag"
	saveInfoField = "save_info"
)

type sessionBackend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	SessionKey(sessionID, field string) string
}

// Store keeps the browser session's bag and checkout flags in redis.
type Store struct {
	backend sessionBackend
	ttl     time.Duration
}

func NewStore(backend sessionBackend, ttl time.Duration) (*Store, error) {
	if backend == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "session backend required")
	}
	return &Store{backend: backend, ttl: ttl}, nil
}

// Load returns the session's bag, or an empty bag when none was stored.
func (s *Store) Load(ctx context.Context, sessionID string) (Snapshot, error) {
	if sessionID == "" {
		return Snapshot{}, nil
	}
	raw, err := s.backend.Get(ctx, s.backend.SessionKey(sessionID, bagField))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return Snapshot{}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session bag")
	}
	return Parse(raw)
}

// Save replaces the session's bag.
func (s *Store) Save(ctx context.Context, sessionID string, snap Snapshot) error {
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	raw, err := snap.Marshal()
	if err != nil {
		return err
	}
	if err := s.backend.Set(ctx, s.backend.SessionKey(sessionID, bagField), raw, s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save session bag")
	}
	return nil
}

// Clear empties the bag after a completed checkout.
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.backend.Del(ctx, s.backend.SessionKey(sessionID, bagField)); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear session bag")
	}
	return nil
}

// SetSaveInfo remembers whether the shopper asked to save delivery details.
func (s *Store) SetSaveInfo(ctx context.Context, sessionID string, saveInfo bool) error {
	if sessionID == "" {
		return nil
	}
	if err := s.backend.Set(ctx, s.backend.SessionKey(sessionID, saveInfoField), strconv.FormatBool(saveInfo), s.ttl); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save session flag")
	}
	return nil
}

// SaveInfo reads the flag stored by SetSaveInfo; unset means false.
func (s *Store) SaveInfo(ctx context.Context, sessionID string) (bool, error) {
	if sessionID == "" {
		return false, nil
	}
	raw, err := s.backend.Get(ctx, s.backend.SessionKey(sessionID, saveInfoField))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return false, nil
		}
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load session flag")
	}
	value, _ := strconv.ParseBool(raw)
	return value, nil
}
