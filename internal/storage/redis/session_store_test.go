package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func newTestStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return NewSessionStore(rdb), mr
}

func TestSessionStore_PutGetDelete(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	session := domain.Session{ID: "s-1", AccountID: "a-1", ExpiresAt: time.Now().Add(time.Hour)}
	require.NoError(t, store.Put(ctx, session))
	require.True(t, mr.Exists(sessionKey("s-1")))
	require.Greater(t, mr.TTL(sessionKey("s-1")), time.Duration(0))

	got, err := store.Get(ctx, "s-1")
	require.NoError(t, err)
	require.Equal(t, "a-1", got.AccountID)

	require.NoError(t, store.Delete(ctx, "s-1"))
	_, err = store.Get(ctx, "s-1")
	require.True(t, errors.Is(err, domain.ErrNotFound))
	require.NoError(t, store.Ping(ctx))
}

func TestSessionStore_ExpiresWithTTL(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Put(ctx, domain.Session{ID: "s-1", AccountID: "a-1", ExpiresAt: time.Now().Add(time.Minute)}))
	mr.FastForward(2 * time.Minute)

	_, err := store.Get(ctx, "s-1")
	require.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestSessionStore_SkipsAlreadyExpired(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	require.NoError(t, store.Put(ctx, domain.Session{ID: "s-1", AccountID: "a-1", ExpiresAt: time.Now().Add(-time.Second)}))
	require.False(t, mr.Exists(sessionKey("s-1")))
}

func TestNewClient_Unreachable(t *testing.T) {
	_, err := NewClient(context.Background(), "127.0.0.1:1", "", 0)
	require.Error(t, err)
}
