package cache

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoerp/internal/core/id"
	"autoerp/internal/domain/portal"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestOTPStore(t *testing.T) {
	mr, client := newRedis(t)
	store := NewOTPStore(client)
	ctx := context.Background()
	clientID := id.New()

	_, err := store.Get(ctx, "t1:0612345678")
	assert.ErrorIs(t, err, portal.ErrNotFound)

	require.NoError(t, store.Put(ctx, "t1:0612345678", portal.OTP{Code: "123456", ClientID: clientID}, 5*time.Minute))
	otp, err := store.Get(ctx, "t1:0612345678")
	require.NoError(t, err)
	assert.Equal(t, "123456", otp.Code)
	assert.Equal(t, clientID, otp.ClientID)
	assert.Zero(t, otp.Attempts)

	n, err := store.Fail(ctx, "t1:0612345678")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, _ = store.Fail(ctx, "t1:0612345678")
	assert.Equal(t, 2, n)

	// A new code resets the attempt counter.
	require.NoError(t, store.Put(ctx, "t1:0612345678", portal.OTP{Code: "654321", ClientID: clientID}, 5*time.Minute))
	otp, err = store.Get(ctx, "t1:0612345678")
	require.NoError(t, err)
	assert.Zero(t, otp.Attempts)

	mr.FastForward(6 * time.Minute)
	_, err = store.Get(ctx, "t1:0612345678")
	assert.ErrorIs(t, err, portal.ErrNotFound)
	_, err = store.Fail(ctx, "t1:0612345678")
	assert.ErrorIs(t, err, portal.ErrNotFound)
	assert.False(t, mr.Exists(otpPrefix+"t1:0612345678"))
}

func TestSessionStore(t *testing.T) {
	mr, client := newRedis(t)
	store := NewSessionStore(client)
	ctx := context.Background()

	sess := &portal.Session{Token: "tok", TenantID: "t1", ClientID: id.New(), Telephone: "0612345678", CreatedAt: time.Now().UTC()}
	require.NoError(t, store.Create(ctx, sess, 24*time.Hour))

	got, err := store.Get(ctx, "tok")
	require.NoError(t, err)
	assert.Equal(t, sess.ClientID, got.ClientID)
	assert.Equal(t, "tok", got.Token)
	assert.Equal(t, 24*time.Hour, mr.TTL(sessionPrefix+"tok"))

	require.NoError(t, store.Delete(ctx, "tok"))
	_, err = store.Get(ctx, "tok")
	assert.ErrorIs(t, err, portal.ErrNotFound)
}
