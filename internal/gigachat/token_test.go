package gigachat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	data map[string]string
	ttl  map[string]time.Duration
	err  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttl: map[string]time.Duration{}}
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx, "get", key)
	switch v, ok := f.data[key]; {
	case f.err != nil:
		cmd.SetErr(f.err)
	case !ok:
		cmd.SetErr(redis.Nil)
	default:
		cmd.SetVal(v)
	}
	return cmd
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	f.data[key] = string(value.([]byte))
	f.ttl[key] = expiration
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedis) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "del")
	for _, k := range keys {
		delete(f.data, k)
	}
	cmd.SetVal(int64(len(keys)))
	return cmd
}

func TestToken_Usable(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tok := &Token{AccessToken: "a", ExpiresAt: now.Add(2 * time.Minute)}

	assert.True(t, tok.Usable(now, time.Minute))
	assert.False(t, tok.Usable(now, 2*time.Minute))
	assert.False(t, (*Token)(nil).Usable(now, 0))
	assert.False(t, (&Token{ExpiresAt: now.Add(time.Hour)}).Usable(now, 0))
}

func TestMemoryTokenStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryTokenStore()

	tok, err := s.Load(ctx, "scope")
	require.NoError(t, err)
	assert.Nil(t, tok)

	require.NoError(t, s.Save(ctx, "scope", &Token{AccessToken: "a"}))
	tok, err = s.Load(ctx, "scope")
	require.NoError(t, err)
	assert.Equal(t, "a", tok.AccessToken)

	require.NoError(t, s.Delete(ctx, "scope"))
	tok, _ = s.Load(ctx, "scope")
	assert.Nil(t, tok)

	assert.Error(t, s.Save(ctx, "scope", nil))
}

func TestRedisTokenStore_RoundTripWithTTL(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 8, 9, 0, 0, 0, time.UTC)
	rdb := newFakeRedis()
	s := NewRedisTokenStore(rdb)
	s.now = func() time.Time { return now }

	tok, err := s.Load(ctx, DefaultScope)
	require.NoError(t, err)
	assert.Nil(t, tok)

	expires := now.Add(30 * time.Minute)
	require.NoError(t, s.Save(ctx, DefaultScope, &Token{AccessToken: "shared", ExpiresAt: expires}))
	assert.Equal(t, 30*time.Minute, rdb.ttl["gigachat:token:"+DefaultScope])

	tok, err = s.Load(ctx, DefaultScope)
	require.NoError(t, err)
	assert.Equal(t, "shared", tok.AccessToken)
	assert.True(t, expires.Equal(tok.ExpiresAt))

	require.NoError(t, s.Delete(ctx, DefaultScope))
	assert.Empty(t, rdb.data)
}

func TestRedisTokenStore_SkipsExpired(t *testing.T) {
	rdb := newFakeRedis()
	s := NewRedisTokenStore(rdb)

	require.NoError(t, s.Save(context.Background(), "scope", &Token{AccessToken: "old", ExpiresAt: time.Now().Add(-time.Minute)}))
	assert.Empty(t, rdb.data)
}

func TestRedisTokenStore_Errors(t *testing.T) {
	ctx := context.Background()
	rdb := newFakeRedis()
	rdb.err = errors.New("connection refused")
	s := NewRedisTokenStore(rdb)

	_, err := s.Load(ctx, "scope")
	assert.Error(t, err)
	assert.Error(t, s.Save(ctx, "scope", &Token{AccessToken: "a", ExpiresAt: time.Now().Add(time.Hour)}))

	rdb.err = nil
	rdb.data["gigachat:token:scope"] = "{not json"
	_, err = s.Load(ctx, "scope")
	assert.Error(t, err)
}

func TestClient_FallsBackWhenStoreFails(t *testing.T) {
	rdb := newFakeRedis()
	rdb.err = errors.New("redis down")
	f := &fakeAPI{reply: replyMessage{Content: "ok"}}
	c := newTestClient(t, f, WithTokenStore(NewRedisTokenStore(rdb)))

	text, err := c.GenerateContent(context.Background(), "x", "standard")
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}
