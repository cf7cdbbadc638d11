package ratelimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

type fakeEvaler struct {
	calls  int
	keys   []string
	args   []any
	counts map[string]int64
	err    error
}

func (f *fakeEvaler) Eval(ctx context.Context, _ string, keys []string, args ...any) *redis.Cmd {
	f.calls++
	f.keys = keys
	f.args = args
	cmd := redis.NewCmd(ctx)
	if f.err != nil {
		cmd.SetErr(f.err)
		return cmd
	}
	if f.counts == nil {
		f.counts = map[string]int64{}
	}
	f.counts[keys[0]]++
	cmd.SetVal([]interface{}{f.counts[keys[0]], int64(30000)})
	return cmd
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	ev := &fakeEvaler{}
	l := NewRedisLimiter(ev, testConfig(EndpointConfig{
		Path: "/greetings/", Method: http.MethodPost, Limit: 2, Window: time.Minute,
	}), nil)
	ctx := context.Background()

	allowed, info := l.Allow(ctx, "1.2.3.4", "/greetings/text", http.MethodPost)
	assert.True(t, allowed)
	assert.Equal(t, 1, info.Remaining)
	assert.Equal(t, []string{"greeter:rl:1.2.3.4:POST:/greetings/text"}, ev.keys)
	assert.Equal(t, []any{int64(60000)}, ev.args)

	allowed, _ = l.Allow(ctx, "1.2.3.4", "/greetings/text", http.MethodPost)
	assert.True(t, allowed)

	allowed, info = l.Allow(ctx, "1.2.3.4", "/greetings/text", http.MethodPost)
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.Equal(t, 30*time.Second, info.RetryAfter)
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	ev := &fakeEvaler{err: errors.New("connection refused")}
	l := NewRedisLimiter(ev, testConfig(), nil)

	allowed, info := l.Allow(context.Background(), "c", "/classify", http.MethodPost)
	assert.True(t, allowed)
	assert.True(t, info.Allowed)
	assert.Equal(t, 1, ev.calls)
}

func TestRedisLimiter_SkipsRedisForListsAndHealth(t *testing.T) {
	ev := &fakeEvaler{}
	cfg := testConfig()
	cfg.Blacklist = IPSet([]string{"bad"})
	l := NewRedisLimiter(ev, cfg, nil)
	ctx := context.Background()

	allowed, _ := l.Allow(ctx, "bad", "/classify", http.MethodPost)
	assert.False(t, allowed)
	allowed, _ = l.Allow(ctx, "good", "/health", http.MethodGet)
	assert.True(t, allowed)
	assert.Zero(t, ev.calls)
}
