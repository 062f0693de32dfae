package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strings"
	"time"

	"teamspend/internal/auth"
	"teamspend/internal/cli"
	apphttp "teamspend/internal/http"
	"teamspend/internal/log"
	"teamspend/internal/metrics"
	"teamspend/internal/middleware/ratelimit"
	"teamspend/internal/middleware/security"
)

func main() {
	cli.LoadEnvFile()

	cfg := cli.LoadAndValidateConfig(cli.SetupLogger(nil))
	logger := cli.SetupLogger(cfg)

	reg := metrics.New()
	res := cli.InitBackend(context.Background(), logger, cfg, reg)

	opts := apphttp.Options{
		Logger:      logger,
		Metrics:     reg,
		RequireAuth: cfg.RequireAuth,
		RateLimit:   ratelimit.DefaultConfig(),
		CORS:        security.DefaultCORSConfig(),
	}
	opts.RateLimit.RequestsPerMinute = cfg.RateLimitPerMin
	opts.CORS.AllowedOrigins = splitOrigins(cfg.CORSAllowedOrigin)

	if cfg.LoginEnabled() {
		authn, err := auth.NewPasswordAuthenticator(cfg.AuthUsername, cfg.AuthPassword)
		if err != nil {
			logger.Error("Failed to initialize authenticator", log.FieldError, err)
			os.Exit(1)
		}
		opts.Authenticator = authn
		opts.Tokens = auth.NewJWTManager(cfg.AuthSecret, cfg.AuthTokenTTL)
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Service, opts)

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	})

	logger.Info("Starting teamspend server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		"events", res.EventsEnabled,
		"login", cfg.LoginEnabled(),
		"require_auth", cfg.RequireAuth)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		_ = res.Cleanup()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
