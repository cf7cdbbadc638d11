// Package gigachat talks to the Sber GigaChat REST API. The client serves
// both as a text collaborator (llm.Client) and as an image collaborator
// (llm.ImageClient) through the built-in text2image function.
package gigachat

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/logging"
)

const (
	DefaultAuthURL       = "https://ngw.devices.sberbank.ru:9443/api/v2/oauth"
	DefaultAPIURL        = "https://gigachat.devices.sberbank.ru/api/v1"
	DefaultScope         = "GIGACHAT_API_PERS"
	DefaultModel         = "GigaChat"
	DefaultTimeout       = 120 * time.Second
	DefaultRefreshLeeway = 60 * time.Second

	providerName = "gigachat"
)

// Config holds connection settings. Credentials is the base64 "client:secret"
// authorization key issued in the GigaChat console.
type Config struct {
	Credentials   string
	Scope         string
	Model         string
	AuthURL       string
	APIURL        string
	CAFile        string
	Timeout       time.Duration
	RefreshLeeway time.Duration
}

func (c Config) withDefaults() Config {
	if c.Scope == "" {
		c.Scope = DefaultScope
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RefreshLeeway <= 0 {
		c.RefreshLeeway = DefaultRefreshLeeway
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	return c
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client built from Config.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithTokenStore replaces the default in-memory token store.
func WithTokenStore(s TokenStore) Option {
	return func(c *Client) { c.store = s }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// Client is a GigaChat API client. It is safe for concurrent use.
type Client struct {
	cfg    Config
	models *llm.Config
	http   *http.Client
	store  TokenStore
	logger *zap.Logger
	now    func() time.Time

	// serializes token refresh so concurrent callers share one OAuth call
	tokenMu sync.Mutex
}

// New builds a client. No network call is made until the first request.
func New(cfg Config, opts ...Option) (*Client, error) {
	if strings.TrimSpace(cfg.Credentials) == "" {
		return nil, errors.New("gigachat: credentials are required")
	}
	cfg = cfg.withDefaults()

	c := &Client{
		cfg:    cfg,
		models: llm.DefaultGigaChatConfig().WithModel(llm.TierLite, cfg.Model).WithModel(llm.TierStandard, cfg.Model),
		store:  NewMemoryTokenStore(),
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		hc, err := buildHTTPClient(cfg.CAFile, cfg.Timeout)
		if err != nil {
			return nil, err
		}
		c.http = hc
	}
	return c, nil
}

// buildHTTPClient trusts the system roots plus the PEM bundle in caFile.
func buildHTTPClient(caFile string, timeout time.Duration) (*http.Client, error) {
	if caFile == "" {
		return &http.Client{Timeout: timeout}, nil
	}

	pemBytes, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA file: %w", err)
	}
	pool, _ := x509.SystemCertPool()
	if pool == nil {
		pool = x509.NewCertPool()
	}
	if ok := pool.AppendCertsFromPEM(pemBytes); !ok {
		return nil, fmt.Errorf("no certificates found in %s", caFile)
	}

	tr := http.DefaultTransport.(*http.Transport).Clone()
	tr.TLSClientConfig = &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS12}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// GetModel returns the configured model name for every tier.
func (c *Client) GetModel(tier llm.ModelTier) string {
	return c.models.GetModel(tier)
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// accessToken returns a cached token or fetches a new one.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	tok, err := c.store.Load(ctx, c.cfg.Scope)
	if err != nil {
		c.logger.Warn("token store unavailable, requesting a new token", zap.Error(err))
	}
	if tok.Usable(c.now(), c.cfg.RefreshLeeway) {
		return tok.AccessToken, nil
	}

	tok, err = c.fetchToken(ctx)
	if err != nil {
		return "", err
	}
	if err := c.store.Save(ctx, c.cfg.Scope, tok); err != nil {
		c.logger.Warn("failed to cache token", zap.Error(err))
	}
	return tok.AccessToken, nil
}

func (c *Client) fetchToken(ctx context.Context) (*Token, error) {
	form := url.Values{"scope": {c.cfg.Scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.AuthURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Basic "+c.cfg.Credentials)
	req.Header.Set("RqUID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gigachat token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &llm.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if tr.AccessToken == "" || tr.ExpiresAt == 0 {
		return nil, errors.New("gigachat token response is missing access_token or expires_at")
	}

	c.logger.Debug("gigachat token issued", zap.String("scope", c.cfg.Scope))
	return &Token{AccessToken: tr.AccessToken, ExpiresAt: time.UnixMilli(tr.ExpiresAt)}, nil
}

// call sends an authorized request to the API and returns the body of a 2xx
// response. A 401 drops the cached token and retries once.
func (c *Client) call(ctx context.Context, method, path, accept string, payload any) ([]byte, error) {
	var encoded []byte
	if payload != nil {
		var err error
		if encoded, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
	}

	for attempt := 0; ; attempt++ {
		token, err := c.accessToken(ctx)
		if err != nil {
			return nil, err
		}

		var body io.Reader
		if encoded != nil {
			body = bytes.NewReader(encoded)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, body)
		if err != nil {
			return nil, fmt.Errorf("failed to build request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
		req.Header.Set("Accept", accept)
		if encoded != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("gigachat request %s failed: %w", path, err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("failed to read response: %w", readErr)
		}

		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			c.logger.Info("gigachat token rejected, refreshing")
			if err := c.store.Delete(ctx, c.cfg.Scope); err != nil {
				c.logger.Warn("failed to drop cached token", zap.Error(err))
			}
			continue
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, &llm.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(data)}
		}
		return data, nil
	}
}
