package gigachat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Token is an OAuth access token issued by the GigaChat auth endpoint.
type Token struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// Usable reports whether the token can still be sent at now, keeping leeway
// in reserve before expiry.
func (t *Token) Usable(now time.Time, leeway time.Duration) bool {
	return t != nil && t.AccessToken != "" && now.Add(leeway).Before(t.ExpiresAt)
}

// TokenStore persists access tokens by OAuth scope. Load returns nil, nil
// when nothing is stored.
type TokenStore interface {
	Load(ctx context.Context, scope string) (*Token, error)
	Save(ctx context.Context, scope string, tok *Token) error
	Delete(ctx context.Context, scope string) error
}

// MemoryTokenStore keeps tokens in process memory.
type MemoryTokenStore struct {
	mu     sync.RWMutex
	tokens map[string]Token
}

// NewMemoryTokenStore returns an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]Token)}
}

func (s *MemoryTokenStore) Load(_ context.Context, scope string) (*Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tok, ok := s.tokens[scope]
	if !ok {
		return nil, nil
	}
	return &tok, nil
}

func (s *MemoryTokenStore) Save(_ context.Context, scope string, tok *Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	s.mu.Lock()
	s.tokens[scope] = *tok
	s.mu.Unlock()
	return nil
}

func (s *MemoryTokenStore) Delete(_ context.Context, scope string) error {
	s.mu.Lock()
	delete(s.tokens, scope)
	s.mu.Unlock()
	return nil
}

// RedisCommands is the subset of *redis.Client used by RedisTokenStore.
type RedisCommands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTokenStore shares tokens between processes. Entries expire together
// with the token they hold.
type RedisTokenStore struct {
	rdb    RedisCommands
	prefix string
	now    func() time.Time
}

// NewRedisTokenStore stores tokens under "gigachat:token:<scope>".
func NewRedisTokenStore(rdb RedisCommands) *RedisTokenStore {
	return &RedisTokenStore{rdb: rdb, prefix: "gigachat:token:", now: time.Now}
}

func (s *RedisTokenStore) key(scope string) string {
	return s.prefix + scope
}

func (s *RedisTokenStore) Load(ctx context.Context, scope string) (*Token, error) {
	raw, err := s.rdb.Get(ctx, s.key(scope)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token from redis: %w", err)
	}

	var tok Token
	if err := json.Unmarshal([]byte(raw), &tok); err != nil {
		return nil, fmt.Errorf("failed to decode cached token: %w", err)
	}
	return &tok, nil
}

func (s *RedisTokenStore) Save(ctx context.Context, scope string, tok *Token) error {
	if tok == nil {
		return errors.New("nil token")
	}
	ttl := tok.ExpiresAt.Sub(s.now())
	if ttl <= 0 {
		return nil
	}
	data, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}
	if err := s.rdb.Set(ctx, s.key(scope), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save token to redis: %w", err)
	}
	return nil
}

func (s *RedisTokenStore) Delete(ctx context.Context, scope string) error {
	if err := s.rdb.Del(ctx, s.key(scope)).Err(); err != nil {
		return fmt.Errorf("failed to delete token from redis: %w", err)
	}
	return nil
}
