package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jonathan/greeting-personalizer/internal/config"
	"github.com/jonathan/greeting-personalizer/internal/directory"
	"github.com/jonathan/greeting-personalizer/internal/server"
	"github.com/jonathan/greeting-personalizer/internal/server/ratelimit"
)

var servePort string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start an HTTP server that exposes the greeting operations as REST endpoints.

Bearer tokens are required when AUTH_JWT_SECRET is set. Run history endpoints
need DATABASE_URL; rate limits are shared through Redis when REDIS_ADDR is set.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&servePort, "port", "p", "", "Port to listen on (defaults to HTTP_PORT)")
	rootCmd.AddCommand(serveCmd)
}

// newLimiter returns a Redis fixed-window limiter when rdb is set and an
// in-memory token bucket limiter otherwise. stop releases the limiter.
func newLimiter(e config.RateLimitEnv, rdb *redis.Client) (limiter ratelimit.Allower, stop func()) {
	cfg := ratelimit.FromEnv(e)
	if rdb != nil {
		return ratelimit.NewRedisLimiter(rdb, cfg, logger), func() {}
	}
	l := ratelimit.NewLimiter(cfg)
	return l, l.Stop
}

// authConfig returns the JWT service and admin account, or a nil service
// when AUTH_JWT_SECRET is unset.
func authConfig(a config.AuthEnv) (*server.JWTService, server.Admin, error) {
	if !a.Enabled() {
		return nil, server.Admin{}, nil
	}
	jwtCfg, err := a.JWT()
	if err != nil {
		return nil, server.Admin{}, err
	}
	pw, err := a.Password()
	if err != nil {
		return nil, server.Admin{}, err
	}
	if a.AdminPasswordHash == "" {
		logger.Warn("AUTH_ADMIN_PASSWORD_HASH is not set, /auth/token is disabled")
	}
	admin := server.Admin{Username: a.AdminUser, PasswordHash: a.AdminPasswordHash, Password: pw}
	return server.NewJWTService(jwtCfg), admin, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, d, err := newService(ctx, serviceOptions{text: true, optionalImages: true, history: true})
	if err != nil {
		return err
	}
	defer d.close()

	jwtService, admin, err := authConfig(appEnv.Auth)
	if err != nil {
		return err
	}

	limiter, stopLimiter := newLimiter(appEnv.RateLimit, d.redis)
	defer stopLimiter()

	cfg := server.Config{
		Port:       appEnv.HTTPPort,
		Service:    svc,
		Limiter:    limiter,
		JWT:        jwtService,
		Admin:      admin,
		Generation: generation,
		Logger:     logger,
	}
	if servePort != "" {
		cfg.Port = servePort
	}
	if d.history != nil {
		cfg.Runs = d.history
	}

	store, err := directory.Open(ctx, appEnv.DirectoryPath, logger)
	if err != nil {
		logger.Warn("user directory unavailable, /celebrations is disabled", zap.Error(err))
	} else {
		defer store.Close()
		cfg.Celebrations = store
	}

	srv, err := server.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}
	return srv.Start(ctx)
}
