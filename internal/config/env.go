package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Text and image provider names accepted in the environment.
const (
	ProviderGigaChat  = "gigachat"
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderKandinsky = "kandinsky"
)

// Env is the process configuration read from environment variables.
type Env struct {
	TextProvider  string `env:"TEXT_PROVIDER" envDefault:"gigachat"`
	ImageProvider string `env:"IMAGE_PROVIDER" envDefault:"kandinsky"`

	GigaChat  GigaChatEnv  `envPrefix:"GIGACHAT_"`
	Kandinsky KandinskyEnv `envPrefix:"KANDINSKY_"`
	Gemini    GeminiEnv    `envPrefix:"GEMINI_"`
	OpenAI    OpenAIEnv    `envPrefix:"OPENAI_"`
	Redis     RedisEnv     `envPrefix:"REDIS_"`
	Auth      AuthEnv      `envPrefix:"AUTH_"`
	RateLimit RateLimitEnv `envPrefix:"RATE_LIMIT_"`
	Log       LogEnv       `envPrefix:"LOG_"`

	DatabaseURL   string `env:"DATABASE_URL"`
	DirectoryPath string `env:"DIRECTORY_PATH" envDefault:"data/directory.db"`
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
}

type GigaChatEnv struct {
	Credentials string        `env:"CREDENTIALS"`
	Scope       string        `env:"SCOPE" envDefault:"GIGACHAT_API_PERS"`
	Model       string        `env:"MODEL" envDefault:"GigaChat"`
	AuthURL     string        `env:"AUTH_URL" envDefault:"https://ngw.devices.sberbank.ru:9443/api/v2/oauth"`
	APIURL      string        `env:"API_URL" envDefault:"https://gigachat.devices.sberbank.ru/api/v1"`
	CAFile      string        `env:"CA_FILE"`
	Timeout     time.Duration `env:"TIMEOUT" envDefault:"120s"`
}

type KandinskyEnv struct {
	APIKey       string        `env:"API_KEY"`
	SecretKey    string        `env:"SECRET_KEY"`
	URL          string        `env:"URL" envDefault:"https://api-key.fusionbrain.ai"`
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"5s"`
	MaxPolls     int           `env:"MAX_POLLS" envDefault:"60"`
}

type GeminiEnv struct {
	APIKey string `env:"API_KEY"`
}

type OpenAIEnv struct {
	APIKey  string `env:"API_KEY"`
	BaseURL string `env:"BASE_URL"`
	Model   string `env:"MODEL"`
}

// RedisEnv configures the optional shared Redis. An empty Addr disables it.
type RedisEnv struct {
	Addr     string `env:"ADDR"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisEnv) Enabled() bool { return r.Addr != "" }

type AuthEnv struct {
	JWTSecret          string `env:"JWT_SECRET"`
	JWTExpirationHours int    `env:"JWT_EXPIRATION_HOURS" envDefault:"24"`
	AdminUser          string `env:"ADMIN_USER" envDefault:"admin"`
	AdminPasswordHash  string `env:"ADMIN_PASSWORD_HASH"`
	BcryptCost         int    `env:"BCRYPT_COST" envDefault:"12"`
	PasswordPepper     string `env:"PASSWORD_PEPPER"`
}

// Enabled reports whether the HTTP API requires bearer tokens.
func (a AuthEnv) Enabled() bool { return a.JWTSecret != "" }

// RateLimitEnv configures HTTP rate limiting. Greeting limits apply to the
// generation endpoints, the defaults to everything else.
type RateLimitEnv struct {
	Enabled        bool          `env:"ENABLED" envDefault:"true"`
	DefaultLimit   int           `env:"DEFAULT_LIMIT" envDefault:"1000"`
	DefaultWindow  time.Duration `env:"DEFAULT_WINDOW" envDefault:"1m"`
	GreetingLimit  int           `env:"GREETING_LIMIT" envDefault:"60"`
	GreetingWindow time.Duration `env:"GREETING_WINDOW" envDefault:"1h"`
	Whitelist      []string      `env:"WHITELIST"`
	Blacklist      []string      `env:"BLACKLIST"`
}

type LogEnv struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"json"`
}

// LoadEnv reads .env files (missing files are ignored) and then parses the
// process environment.
func LoadEnv(files ...string) (*Env, error) {
	_ = godotenv.Load(files...)
	return parseEnv(env.Options{})
}

// ParseEnv parses the given variables instead of the process environment.
func ParseEnv(vars map[string]string) (*Env, error) {
	return parseEnv(env.Options{Environment: vars})
}

func parseEnv(opts env.Options) (*Env, error) {
	var cfg Env
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks provider names and numeric ranges. Credentials are
// checked when a client is built, so commands that need none still run.
func (e *Env) Validate() error {
	switch e.TextProvider {
	case ProviderGigaChat, ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("config error: TEXT_PROVIDER must be gigachat, gemini or openai, got %q", e.TextProvider)
	}
	switch e.ImageProvider {
	case ProviderKandinsky, ProviderGigaChat:
	default:
		return fmt.Errorf("config error: IMAGE_PROVIDER must be kandinsky or gigachat, got %q", e.ImageProvider)
	}
	if e.Kandinsky.MaxPolls < 1 {
		return fmt.Errorf("config error: KANDINSKY_MAX_POLLS must be at least 1")
	}
	if e.RateLimit.DefaultLimit < 0 || e.RateLimit.GreetingLimit < 0 {
		return fmt.Errorf("config error: rate limits must be non-negative")
	}
	if e.Redis.DB < 0 {
		return fmt.Errorf("config error: REDIS_DB must be non-negative")
	}
	return nil
}
