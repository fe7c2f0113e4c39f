package bag

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/boutique-checkout/pkg/redis"
)

type memoryBackend struct {
	data   map[string]string
	ttls   map[string]time.Duration
	getErr error
}

func newMemoryBackend() *memoryBackend {
	return &memoryBackend{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (m *memoryBackend) Get(_ context.Context, key string) (string, error) {
	if m.getErr != nil {
		return "", m.getErr
	}
	v, ok := m.data[key]
	if !ok {
		return "", redis.ErrNil
	}
	return v, nil
}

func (m *memoryBackend) Set(_ context.Context, key string, value any, ttl time.Duration) error {
	m.data[key] = fmt.Sprint(value)
	m.ttls[key] = ttl
	return nil
}

func (m *memoryBackend) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(m.data, key)
	}
	return nil
}

func (m *memoryBackend) SessionKey(sessionID, field string) string {
	return "boutique:session:" + sessionID + ":" + field
}

func TestStoreSaveLoadClear(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryBackend()
	store, err := NewStore(backend, time.Hour)
	require.NoError(t, err)

	empty, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, empty.IsEmpty())

	snap := Snapshot{"p1": Simple(2)}
	require.NoError(t, store.Save(ctx, "s1", snap))
	require.Equal(t, `{"p1":2}`, backend.data["boutique:session:s1:bag"])
	require.Equal(t, time.Hour, backend.ttls["boutique:session:s1:bag"])

	loaded, err := store.Load(ctx, "s1")
	require.NoError(t, err)
	require.Equal(t, snap, loaded)

	require.NoError(t, store.Clear(ctx, "s1"))
	loaded, err = store.Load(ctx, "s1")
	require.NoError(t, err)
	require.True(t, loaded.IsEmpty())
}

func TestStoreSaveInfoFlag(t *testing.T) {
	ctx := context.Background()
	store, err := NewStore(newMemoryBackend(), time.Hour)
	require.NoError(t, err)

	saveInfo, err := store.SaveInfo(ctx, "s1")
	require.NoError(t, err)
	require.False(t, saveInfo)

	require.NoError(t, store.SetSaveInfo(ctx, "s1", true))
	saveInfo, err = store.SaveInfo(ctx, "s1")
	require.NoError(t, err)
	require.True(t, saveInfo)
}

func TestStoreBackendFailure(t *testing.T) {
	backend := newMemoryBackend()
	backend.getErr = errors.New("connection refused")
	store, err := NewStore(backend, time.Hour)
	require.NoError(t, err)

	_, err = store.Load(context.Background(), "s1")
	require.Error(t, err)
}

func TestStoreRequiresSession(t *testing.T) {
	store, err := NewStore(newMemoryBackend(), time.Hour)
	require.NoError(t, err)
	require.Error(t, store.Save(context.Background(), "", Snapshot{}))

	_, err = NewStore(nil, time.Hour)
	require.Error(t, err)
}
