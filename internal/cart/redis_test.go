package cart

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, ttl time.Duration) (*RedisPersister, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return NewRedisPersister(client, ttl), mr
}

func TestRedisPersister_SaveLoad(t *testing.T) {
	p, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	require.NoError(t, p.Save(ctx, "sess-1", []byte(`{"items":[]}`)))

	stored, err := mr.Get("cart:sess-1")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, stored)
	assert.Equal(t, time.Hour, mr.TTL("cart:sess-1"))

	data, err := p.Load(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, string(data))
}

func TestRedisPersister_Miss(t *testing.T) {
	p, _ := setupTestRedis(t, 0)

	_, err := p.Load(context.Background(), "nobody")
	assert.ErrorIs(t, err, ErrNoRecord)
}

func TestRedisPersister_DefaultTTL(t *testing.T) {
	p, mr := setupTestRedis(t, 0)

	require.NoError(t, p.Save(context.Background(), "sess-1", []byte(`{}`)))
	assert.Equal(t, DefaultSessionTTL, mr.TTL("cart:sess-1"))
}

func TestRedisPersister_Delete(t *testing.T) {
	p, mr := setupTestRedis(t, time.Hour)
	ctx := context.Background()
	require.NoError(t, mr.Set("cart:sess-1", `{"items":[]}`))

	require.NoError(t, p.Delete(ctx, "sess-1"))
	assert.False(t, mr.Exists("cart:sess-1"))

	assert.NoError(t, p.Delete(ctx, "never-existed"))
}

func TestRedisPersister_ServerDown(t *testing.T) {
	p, mr := setupTestRedis(t, time.Hour)
	mr.Close()

	_, err := p.Load(context.Background(), "sess-1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoRecord)
	assert.ErrorContains(t, p.Save(context.Background(), "sess-1", []byte(`{}`)), "redis set failed")
}

func TestRedisPersister_StoreRoundTrip(t *testing.T) {
	p, _ := setupTestRedis(t, time.Hour)
	ctx := context.Background()

	s := newTestStore(p)
	_, err := s.AddToCart(ctx, productInput("P1", "300", 2, red))
	require.NoError(t, err)

	reloaded := Open(ctx, "sess-1", p, DefaultPricing()).Snapshot()
	assertSameItems(t, s.Snapshot().Items, reloaded.Items)
	assertDec(t, "600", reloaded.Total)
}
