package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/logging"
)

// The first hit of a window sets its expiry; the reply is {count, pttl}.
const redisWindowScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {current, redis.call("PTTL", KEYS[1])}
`

const redisKeyPrefix = "greeter:rl:"

// RedisEvaler is the subset of *redis.Client the limiter uses.
type RedisEvaler interface {
	Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd
}

// RedisLimiter counts requests in fixed windows stored in Redis, so limits
// hold across server replicas. Burst is ignored. When Redis fails the
// request is let through.
type RedisLimiter struct {
	client  RedisEvaler
	config  *Config
	timeout time.Duration
	logger  *zap.Logger
}

// NewRedisLimiter creates a limiter backed by client.
func NewRedisLimiter(client RedisEvaler, config *Config, logger *zap.Logger) *RedisLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &RedisLimiter{
		client:  client,
		config:  config,
		timeout: 500 * time.Millisecond,
		logger:  logging.OrNop(logger),
	}
}

// Allow counts one request from clientID to path.
func (l *RedisLimiter) Allow(ctx context.Context, clientID, path, method string) (bool, Info) {
	if info, done := precheck(l.config, clientID); done {
		return info.Allowed, info
	}

	ec := l.config.resolve(path, method)
	if ec.Limit <= 0 {
		return true, Info{Allowed: true}
	}
	window := ec.Window
	if window <= 0 {
		window = time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	key := redisKeyPrefix + clientID + ":" + method + ":" + path
	reply, err := l.client.Eval(ctx, redisWindowScript, []string{key}, window.Milliseconds()).Int64Slice()
	if err != nil || len(reply) != 2 {
		l.logger.Warn("rate limit check failed, allowing request",
			zap.String("key", key),
			zap.Error(err))
		return true, Info{Allowed: true}
	}

	count, ttl := int(reply[0]), time.Duration(reply[1])*time.Millisecond
	if ttl < 0 {
		ttl = window
	}
	allowed := count <= ec.Limit
	info := Info{
		Allowed:   allowed,
		Limit:     ec.Limit,
		Remaining: max(ec.Limit-count, 0),
		ResetTime: time.Now().Add(ttl),
	}
	if !allowed {
		info.RetryAfter = ttl
	}
	return allowed, info
}
