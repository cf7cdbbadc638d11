package main

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/config"
	"github.com/jonathan/greeting-personalizer/internal/db"
	"github.com/jonathan/greeting-personalizer/internal/gigachat"
	"github.com/jonathan/greeting-personalizer/internal/greeter"
	"github.com/jonathan/greeting-personalizer/internal/greeting"
	"github.com/jonathan/greeting-personalizer/internal/kandinsky"
	"github.com/jonathan/greeting-personalizer/internal/llm"
)

// deps are the clients a command opened. close releases all of them.
type deps struct {
	redis   *redis.Client
	text    llm.Client
	images  llm.ImageClient
	history *db.DB
}

func (d *deps) close() {
	if d.text != nil {
		_ = d.text.Close()
	}
	if d.history != nil {
		d.history.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}

// openRedis returns a client for REDIS_ADDR, or nil when Redis is not
// configured.
func openRedis(ctx context.Context, e config.RedisEnv) (*redis.Client, error) {
	if !e.Enabled() {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: e.Addr, Password: e.Password, DB: e.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", e.Addr, err)
	}
	return rdb, nil
}

func gigachatClient(e *config.Env, rdb *redis.Client) (*gigachat.Client, error) {
	opts := []gigachat.Option{gigachat.WithLogger(logger.With(zap.String("provider", config.ProviderGigaChat)))}
	if rdb != nil {
		opts = append(opts, gigachat.WithTokenStore(gigachat.NewRedisTokenStore(rdb)))
	}
	return gigachat.New(gigachat.Config{
		Credentials: e.GigaChat.Credentials,
		Scope:       e.GigaChat.Scope,
		Model:       e.GigaChat.Model,
		AuthURL:     e.GigaChat.AuthURL,
		APIURL:      e.GigaChat.APIURL,
		CAFile:      e.GigaChat.CAFile,
		Timeout:     e.GigaChat.Timeout,
	}, opts...)
}

// newTextClient builds the TEXT_PROVIDER client wrapped with rate-limit retries.
func newTextClient(ctx context.Context, e *config.Env, rdb *redis.Client) (llm.Client, error) {
	var client llm.Client
	switch e.TextProvider {
	case config.ProviderGigaChat:
		c, err := gigachatClient(e, rdb)
		if err != nil {
			return nil, err
		}
		client = c
	case config.ProviderGemini:
		if e.Gemini.APIKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for the gemini provider")
		}
		c, err := llm.NewClient(ctx, llm.ConfigFor(llm.ProviderGemini), e.Gemini.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create gemini client: %w", err)
		}
		client = c
	case config.ProviderOpenAI:
		cfg := llm.ConfigFor(llm.ProviderOpenAI)
		cfg.BaseURL = e.OpenAI.BaseURL
		if e.OpenAI.Model != "" {
			cfg = cfg.WithModel(llm.TierLite, e.OpenAI.Model).WithModel(llm.TierStandard, e.OpenAI.Model)
		}
		c, err := llm.NewClient(ctx, cfg, e.OpenAI.APIKey)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		client = c
	default:
		return nil, fmt.Errorf("unknown text provider %q", e.TextProvider)
	}

	logger.Debug("text client ready", zap.String("provider", e.TextProvider), zap.String("model", client.GetModel(llm.TierStandard)))
	return llm.WithRateLimitRetry(client, llm.DefaultRetryPolicy(), logger), nil
}

// newImageClient builds the IMAGE_PROVIDER client wrapped with rate-limit retries.
func newImageClient(e *config.Env, rdb *redis.Client) (llm.ImageClient, error) {
	var client llm.ImageClient
	switch e.ImageProvider {
	case config.ProviderKandinsky:
		c, err := kandinsky.New(kandinsky.Config{
			APIKey:       e.Kandinsky.APIKey,
			SecretKey:    e.Kandinsky.SecretKey,
			URL:          e.Kandinsky.URL,
			PollInterval: e.Kandinsky.PollInterval,
			MaxPolls:     e.Kandinsky.MaxPolls,
		}, kandinsky.WithLogger(logger.With(zap.String("provider", config.ProviderKandinsky))))
		if err != nil {
			return nil, err
		}
		client = c
	case config.ProviderGigaChat:
		c, err := gigachatClient(e, rdb)
		if err != nil {
			return nil, err
		}
		client = c
	default:
		return nil, fmt.Errorf("unknown image provider %q", e.ImageProvider)
	}
	return llm.WithImageRateLimitRetry(client, llm.DefaultRetryPolicy(), logger), nil
}

// imageLanguage picks the prompt language: the configured one, else the
// language the image provider understands best.
func imageLanguage(g config.Generation, provider string) greeting.Language {
	if g.ImageLanguage != "" {
		return greeting.Language(g.ImageLanguage)
	}
	if provider == config.ProviderGigaChat {
		return greeting.Russian
	}
	return greeting.English
}

// openHistory connects to DATABASE_URL and migrates it, or returns nil when
// run history is not configured.
func openHistory(ctx context.Context, e *config.Env) (*db.DB, error) {
	if e.DatabaseURL == "" {
		return nil, nil
	}
	history, err := db.Connect(ctx, e.DatabaseURL)
	if err != nil {
		return nil, err
	}
	if err := history.Migrate(ctx); err != nil {
		history.Close()
		return nil, err
	}
	return history, nil
}

// serviceOptions selects the collaborators a command needs.
type serviceOptions struct {
	text   bool
	images bool
	// optionalImages downgrades a missing image provider to a warning.
	optionalImages bool
	history        bool
}

// newService opens the requested collaborators and builds a greeter.Service.
// The caller must close the returned deps.
func newService(ctx context.Context, opts serviceOptions) (*greeter.Service, *deps, error) {
	d := &deps{}
	fail := func(err error) (*greeter.Service, *deps, error) {
		d.close()
		return nil, nil, err
	}

	rdb, err := openRedis(ctx, appEnv.Redis)
	if err != nil {
		return fail(err)
	}
	d.redis = rdb

	if opts.text {
		if d.text, err = newTextClient(ctx, appEnv, rdb); err != nil {
			return fail(err)
		}
	}
	if opts.images || opts.optionalImages {
		images, err := newImageClient(appEnv, rdb)
		switch {
		case err == nil:
			d.images = images
		case opts.optionalImages:
			logger.Warn("image generation disabled", zap.Error(err))
		default:
			return fail(err)
		}
	}

	svcOpts := greeter.Options{
		ImageLanguage: imageLanguage(generation, appEnv.ImageProvider),
		Logger:        logger,
	}
	if opts.history {
		if d.history, err = openHistory(ctx, appEnv); err != nil {
			return fail(err)
		}
		if d.history != nil {
			svcOpts.Recorder = db.NewRecorder(d.history)
		}
	}
	return greeter.NewService(d.text, d.images, svcOpts), d, nil
}
