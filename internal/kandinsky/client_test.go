package kandinsky

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/greeting-personalizer/internal/llm"
)

type fakeFusionBrain struct {
	pipelineCalls atomic.Int32
	statusCalls   atomic.Int32
	pendingPolls  int32
	final         map[string]any
	params        generateParams
	pipelineField string
}

func (f *fakeFusionBrain) server(t *testing.T) *httptest.Server {
	mux := http.NewServeMux()

	check := func(r *http.Request) {
		assert.Equal(t, "Key api", r.Header.Get("X-Key"))
		assert.Equal(t, "Secret sec", r.Header.Get("X-Secret"))
	}

	mux.HandleFunc("GET /key/api/v1/pipelines", func(w http.ResponseWriter, r *http.Request) {
		check(r)
		f.pipelineCalls.Add(1)
		_ = json.NewEncoder(w).Encode([]map[string]any{{"id": "pipe-1", "name": "Kandinsky"}})
	})

	mux.HandleFunc("POST /key/api/v1/text2image/run", func(w http.ResponseWriter, r *http.Request) {
		check(r)
		if !assert.NoError(t, r.ParseMultipartForm(1<<20)) {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		f.pipelineField = r.FormValue("pipeline_id")
		assert.NoError(t, json.Unmarshal([]byte(r.FormValue("params")), &f.params))
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"uuid": "job-7", "status": "INITIAL"})
	})

	mux.HandleFunc("GET /key/api/v1/text2image/status/{id}", func(w http.ResponseWriter, r *http.Request) {
		check(r)
		assert.Equal(t, "job-7", r.PathValue("id"))
		n := f.statusCalls.Add(1)
		if n <= f.pendingPolls {
			_ = json.NewEncoder(w).Encode(map[string]any{"uuid": "job-7", "status": "PROCESSING"})
			return
		}
		_ = json.NewEncoder(w).Encode(f.final)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, f *fakeFusionBrain, maxPolls int) *Client {
	t.Helper()
	srv := f.server(t)
	c, err := New(Config{
		APIKey:       "api",
		SecretKey:    "sec",
		URL:          srv.URL + "/",
		PollInterval: time.Millisecond,
		MaxPolls:     maxPolls,
	}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func b64(s string) string { return base64.StdEncoding.EncodeToString([]byte(s)) }

func TestNew_RequiresKeys(t *testing.T) {
	_, err := New(Config{APIKey: "a"})
	assert.Error(t, err)

	c, err := New(Config{APIKey: "a", SecretKey: "b"})
	require.NoError(t, err)
	assert.Equal(t, DefaultURL, c.cfg.URL)
	assert.Equal(t, DefaultPollInterval, c.cfg.PollInterval)
	assert.Equal(t, DefaultMaxPolls, c.cfg.MaxPolls)
}

func TestGenerateImage_PollsUntilDone(t *testing.T) {
	f := &fakeFusionBrain{
		pendingPolls: 2,
		final: map[string]any{
			"uuid":   "job-7",
			"status": "DONE",
			"result": map[string]any{"files": []string{b64("img-1"), b64("img-2"), b64("img-3")}, "censored": false},
		},
	}
	c := newTestClient(t, f, 10)

	images, err := c.GenerateImage(context.Background(), llm.ImageRequest{
		Prompt:         "spring flowers, tulips",
		NegativePrompt: "text, letters",
		Count:          2,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("img-1"), []byte("img-2")}, images)
	assert.Equal(t, int32(3), f.statusCalls.Load())

	assert.Equal(t, "pipe-1", f.pipelineField)
	assert.Equal(t, "GENERATE", f.params.Type)
	assert.Equal(t, 2, f.params.NumImages)
	assert.Equal(t, 1024, f.params.Width)
	assert.Equal(t, 1024, f.params.Height)
	assert.Equal(t, "spring flowers, tulips", f.params.GenerateParams.Query)
	assert.Equal(t, "text, letters", f.params.NegativePromptUnclip)
}

func TestGenerateImage_CachesPipeline(t *testing.T) {
	f := &fakeFusionBrain{final: map[string]any{"status": "DONE", "images": []string{b64("x")}}}
	c := newTestClient(t, f, 3)

	for i := 0; i < 2; i++ {
		_, err := c.GenerateImage(context.Background(), llm.ImageRequest{Prompt: "p"})
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.pipelineCalls.Load())
}

func TestGenerateImage_Fail(t *testing.T) {
	f := &fakeFusionBrain{final: map[string]any{"status": "FAIL", "errorDescription": "prompt rejected"}}
	_, err := newTestClient(t, f, 3).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "prompt rejected")
}

func TestGenerateImage_Censored(t *testing.T) {
	f := &fakeFusionBrain{final: map[string]any{"status": "DONE", "result": map[string]any{"files": []string{b64("x")}, "censored": true}}}
	_, err := newTestClient(t, f, 3).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "p"})
	assert.True(t, errors.Is(err, ErrCensored))
}

func TestGenerateImage_Timeout(t *testing.T) {
	f := &fakeFusionBrain{pendingPolls: 100}
	_, err := newTestClient(t, f, 3).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "p"})
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.Equal(t, int32(3), f.statusCalls.Load())
}

func TestGenerateImage_ContextCancelled(t *testing.T) {
	f := &fakeFusionBrain{pendingPolls: 100}
	srv := f.server(t)
	c, err := New(Config{APIKey: "api", SecretKey: "sec", URL: srv.URL, PollInterval: time.Hour, MaxPolls: 5},
		WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err = c.GenerateImage(ctx, llm.ImageRequest{Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), f.statusCalls.Load())
}

func TestGenerateImage_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "a", SecretKey: "b", URL: srv.URL}, WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	_, err = c.GenerateImage(context.Background(), llm.ImageRequest{Prompt: "p"})
	var se *llm.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, "kandinsky", se.Provider)
	assert.True(t, llm.IsRateLimited(err))
}

func TestGenerateImage_BadBase64(t *testing.T) {
	f := &fakeFusionBrain{final: map[string]any{"status": "DONE", "images": []string{"!!not-base64!!"}}}
	_, err := newTestClient(t, f, 3).GenerateImage(context.Background(), llm.ImageRequest{Prompt: "p"})
	assert.Error(t, err)
}
