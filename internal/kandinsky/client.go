// Package kandinsky is the image collaborator backed by the Fusion Brain
// Kandinsky text2image API.
package kandinsky

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/llm"
	"github.com/jonathan/greeting-personalizer/internal/logging"
)

const (
	DefaultURL          = "https://api-key.fusionbrain.ai"
	DefaultPollInterval = 5 * time.Second
	DefaultMaxPolls     = 60

	providerName = "kandinsky"

	statusDone = "DONE"
	statusFail = "FAIL"
)

var (
	// ErrNoPipeline means the account has no text2image pipeline available.
	ErrNoPipeline = errors.New("kandinsky: no pipeline available")
	// ErrTimeout means the job did not finish within the poll budget.
	ErrTimeout = errors.New("kandinsky: generation timed out")
	// ErrCensored means the service refused the prompt.
	ErrCensored = errors.New("kandinsky: image was censored")
)

// Config holds the API keys and polling settings.
type Config struct {
	APIKey       string
	SecretKey    string
	URL          string
	PollInterval time.Duration
	MaxPolls     int
	Timeout      time.Duration
}

// Client submits generation jobs and waits for their images. The pipeline id
// is looked up once and reused.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger

	mu         sync.Mutex
	pipelineID string
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = logging.OrNop(l) }
}

// New validates cfg and returns a client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, errors.New("kandinsky: api key and secret key are required")
	}
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPolls <= 0 {
		cfg.MaxPolls = DefaultMaxPolls
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &Client{cfg: cfg, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: cfg.Timeout}
	}
	return c, nil
}

// GenerateImage runs one job producing req.Count images and returns the
// decoded image bytes.
func (c *Client) GenerateImage(ctx context.Context, req llm.ImageRequest) ([][]byte, error) {
	req = req.WithDefaults()

	pipeline, err := c.pipeline(ctx)
	if err != nil {
		return nil, err
	}
	jobID, err := c.run(ctx, pipeline, req)
	if err != nil {
		return nil, err
	}
	c.logger.Info("kandinsky job submitted", zap.String("job_id", jobID), zap.Int("count", req.Count))

	encoded, err := c.wait(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if len(encoded) > req.Count {
		encoded = encoded[:req.Count]
	}

	images := make([][]byte, 0, len(encoded))
	for i, s := range encoded {
		img, err := base64.StdEncoding.DecodeString(s)
		if err != nil {
			return nil, fmt.Errorf("kandinsky: failed to decode image %d: %w", i+1, err)
		}
		images = append(images, img)
	}
	return images, nil
}

type pipelineInfo struct {
	ID         string `json:"id"`
	PipelineID string `json:"pipeline_id"`
}

func (p pipelineInfo) id() string {
	if p.ID != "" {
		return p.ID
	}
	return p.PipelineID
}

func (c *Client) pipeline(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pipelineID != "" {
		return c.pipelineID, nil
	}

	data, err := c.do(ctx, http.MethodGet, "/key/api/v1/pipelines", nil, "")
	if err != nil {
		return "", fmt.Errorf("failed to list pipelines: %w", err)
	}

	var list []pipelineInfo
	if err := json.Unmarshal(data, &list); err != nil {
		var single pipelineInfo
		if err := json.Unmarshal(data, &single); err != nil {
			return "", fmt.Errorf("failed to decode pipelines: %w", err)
		}
		list = []pipelineInfo{single}
	}
	for _, p := range list {
		if id := p.id(); id != "" {
			c.pipelineID = id
			return id, nil
		}
	}
	return "", ErrNoPipeline
}

type generateParams struct {
	Type                 string      `json:"type"`
	NumImages            int         `json:"numImages"`
	Width                int         `json:"width"`
	Height               int         `json:"height"`
	GenerateParams       queryParams `json:"generateParams"`
	NegativePromptUnclip string      `json:"negativePromptUnclip,omitempty"`
}

type queryParams struct {
	Query string `json:"query"`
}

type runResponse struct {
	UUID   string `json:"uuid"`
	Status string `json:"status"`
}

func (c *Client) run(ctx context.Context, pipeline string, req llm.ImageRequest) (string, error) {
	params, err := json.Marshal(generateParams{
		Type:                 "GENERATE",
		NumImages:            req.Count,
		Width:                req.Width,
		Height:               req.Height,
		GenerateParams:       queryParams{Query: req.Prompt},
		NegativePromptUnclip: req.NegativePrompt,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode params: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if err := w.WriteField("pipeline_id", pipeline); err != nil {
		return "", err
	}
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", `form-data; name="params"`)
	header.Set("Content-Type", "application/json")
	part, err := w.CreatePart(header)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(params); err != nil {
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}

	data, err := c.do(ctx, http.MethodPost, "/key/api/v1/text2image/run", &body, w.FormDataContentType())
	if err != nil {
		return "", fmt.Errorf("failed to start generation: %w", err)
	}

	var resp runResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("failed to decode run response: %w", err)
	}
	if resp.UUID == "" {
		return "", errors.New("kandinsky: run response has no uuid")
	}
	return resp.UUID, nil
}

type statusResponse struct {
	UUID             string   `json:"uuid"`
	Status           string   `json:"status"`
	ErrorDescription string   `json:"errorDescription"`
	Error            string   `json:"error"`
	Images           []string `json:"images"`
	Censored         bool     `json:"censored"`
	Result           *struct {
		Files    []string `json:"files"`
		Censored bool     `json:"censored"`
	} `json:"result"`
}

func (s statusResponse) files() ([]string, bool) {
	if s.Result != nil {
		return s.Result.Files, s.Result.Censored
	}
	return s.Images, s.Censored
}

// wait polls the job status until it finishes, fails or the poll budget runs
// out.
func (c *Client) wait(ctx context.Context, jobID string) ([]string, error) {
	timer := time.NewTimer(0)
	defer timer.Stop()

	for poll := 1; poll <= c.cfg.MaxPolls; poll++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
		}

		data, err := c.do(ctx, http.MethodGet, "/key/api/v1/text2image/status/"+jobID, nil, "")
		if err != nil {
			return nil, fmt.Errorf("failed to check status: %w", err)
		}
		var st statusResponse
		if err := json.Unmarshal(data, &st); err != nil {
			return nil, fmt.Errorf("failed to decode status: %w", err)
		}

		switch st.Status {
		case statusDone:
			files, censored := st.files()
			if censored {
				return nil, ErrCensored
			}
			if len(files) == 0 {
				return nil, errors.New("kandinsky: job finished without images")
			}
			return files, nil
		case statusFail:
			reason := st.ErrorDescription
			if reason == "" {
				reason = st.Error
			}
			return nil, fmt.Errorf("kandinsky: generation failed: %s", reason)
		}

		c.logger.Debug("kandinsky job pending",
			zap.String("job_id", jobID),
			zap.String("status", st.Status),
			zap.Int("poll", poll))
		timer.Reset(c.cfg.PollInterval)
	}
	return nil, fmt.Errorf("%w after %d polls", ErrTimeout, c.cfg.MaxPolls)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.cfg.URL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Key", "Key "+c.cfg.APIKey)
	req.Header.Set("X-Secret", "Secret "+c.cfg.SecretKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, &llm.StatusError{Provider: providerName, StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}
