package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionStore(t *testing.T) (*SessionStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStoreWithClient(client)
	t.Cleanup(func() { store.Close() })
	return store, mr
}

func TestSessionSaveAndLookup(t *testing.T) {
	store, _ := testSessionStore(t)
	ctx := context.Background()

	data := SessionData{UserID: "user-1", Email: "a@b.c", DisplayName: "skater"}
	hash := HashToken("token-1")
	require.NoError(t, store.Save(ctx, hash, data, time.Now().Add(time.Hour)))

	got, err := store.Lookup(ctx, hash)
	require.NoError(t, err)
	assert.Equal(t, "user-1", got.UserID)
	assert.Equal(t, "a@b.c", got.Email)
	assert.Equal(t, "skater", got.DisplayName)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSessionSaveRejectsExpired(t *testing.T) {
	store, _ := testSessionStore(t)

	err := store.Save(context.Background(), HashToken("t"), SessionData{UserID: "u"}, time.Now().Add(-time.Minute))
	assert.Error(t, err)
}

func TestSessionLookupUnknown(t *testing.T) {
	store, _ := testSessionStore(t)

	_, err := store.Lookup(context.Background(), HashToken("nope"))
	assert.Error(t, err)
}

func TestSessionExpiresWithTTL(t *testing.T) {
	store, mr := testSessionStore(t)
	ctx := context.Background()

	hash := HashToken("short-lived")
	require.NoError(t, store.Save(ctx, hash, SessionData{UserID: "u"}, time.Now().Add(time.Minute)))

	mr.FastForward(2 * time.Minute)

	_, err := store.Lookup(ctx, hash)
	assert.Error(t, err)
}

func TestSessionRevoke(t *testing.T) {
	store, _ := testSessionStore(t)
	ctx := context.Background()

	hash := HashToken("revoked")
	require.NoError(t, store.Save(ctx, hash, SessionData{UserID: "u"}, time.Now().Add(time.Hour)))
	require.NoError(t, store.Revoke(ctx, hash))

	_, err := store.Lookup(ctx, hash)
	assert.Error(t, err)

	// Revoking an unknown session is not an error.
	assert.NoError(t, store.Revoke(ctx, HashToken("never-existed")))
}

func TestSessionPing(t *testing.T) {
	store, mr := testSessionStore(t)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}
