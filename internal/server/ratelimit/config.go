package ratelimit

import (
	"net/http"
	"strings"
	"time"

	"github.com/jonathan/greeting-personalizer/internal/config"
)

// EndpointConfig is the limit for one endpoint. A Path ending in "/" also
// matches everything below it.
type EndpointConfig struct {
	Path   string
	Method string
	Limit  int           // requests per Window; 0 means unlimited
	Window time.Duration
	Burst  int // token bucket capacity, defaults to Limit
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	EndpointConfigs []EndpointConfig
}

// DefaultConfig allows 1000 requests a minute per client and endpoint, with
// the stricter DefaultEndpointConfigs on top.
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		EndpointConfigs: DefaultEndpointConfigs(),
	}
}

// DefaultEndpointConfigs limits the endpoints that call paid generation APIs
// and the login endpoint.
func DefaultEndpointConfigs() []EndpointConfig {
	return []EndpointConfig{
		// Image generation: each call is a multi-second provider job.
		{Path: "/greetings/image", Method: http.MethodPost, Limit: 20, Window: time.Hour, Burst: 2},
		{Path: "/greetings/", Method: http.MethodPost, Limit: 60, Window: time.Hour, Burst: 5},
		{Path: "/sincerity/", Method: http.MethodPost, Limit: 120, Window: time.Hour, Burst: 10},
		{Path: "/auth/token", Method: http.MethodPost, Limit: 10, Window: time.Minute, Burst: 5},
	}
}

// IPSet turns a list of addresses into a lookup set, skipping blanks.
func IPSet(ips []string) map[string]bool {
	set := make(map[string]bool, len(ips))
	for _, ip := range ips {
		if ip = strings.TrimSpace(ip); ip != "" {
			set[ip] = true
		}
	}
	return set
}

var unlimited = EndpointConfig{}

// MatchEndpoint returns the configuration for path and method, or nil when
// none applies. Exact paths win over prefixes, and longer prefixes win over
// shorter ones. GET /health is never limited.
func MatchEndpoint(path, method string, configs []EndpointConfig) *EndpointConfig {
	if path == "/health" && method == http.MethodGet {
		return &unlimited
	}

	var best *EndpointConfig
	for i := range configs {
		c := &configs[i]
		if c.Method != method {
			continue
		}
		if c.Path == path {
			return c
		}
		if strings.HasSuffix(c.Path, "/") && strings.HasPrefix(path, c.Path) {
			if best == nil || len(c.Path) > len(best.Path) {
				best = c
			}
		}
	}
	return best
}

// resolve picks the endpoint configuration, falling back to the defaults.
func (c *Config) resolve(path, method string) EndpointConfig {
	if ec := MatchEndpoint(path, method, c.EndpointConfigs); ec != nil {
		return *ec
	}
	return EndpointConfig{Limit: c.DefaultLimit, Window: c.DefaultWindow, Burst: c.DefaultLimit}
}

// FromEnv builds the limiter configuration from RATE_LIMIT_* variables.
func FromEnv(e config.RateLimitEnv) *Config {
	cfg := DefaultConfig()
	cfg.Enabled = e.Enabled
	cfg.DefaultLimit = e.DefaultLimit
	cfg.DefaultWindow = e.DefaultWindow
	cfg.Whitelist = IPSet(e.Whitelist)
	cfg.Blacklist = IPSet(e.Blacklist)
	for i := range cfg.EndpointConfigs {
		if cfg.EndpointConfigs[i].Path == "/greetings/" {
			cfg.EndpointConfigs[i].Limit = e.GreetingLimit
			cfg.EndpointConfigs[i].Window = e.GreetingWindow
		}
	}
	return cfg
}
