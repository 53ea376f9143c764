package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/talkline/chat-app/internal/audit"
	"github.com/talkline/chat-app/internal/config"
	"github.com/talkline/chat-app/internal/logging"
	"github.com/talkline/chat-app/internal/ratelimit"
	"github.com/talkline/chat-app/internal/registry"
	"github.com/talkline/chat-app/internal/server"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "path to the JSON config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fallback, _ := logging.New(config.LoggingConfig{Level: "ERROR"})
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		fallback, _ := logging.New(config.LoggingConfig{Level: "ERROR"})
		fallback.Fatal().Err(err).Msg("failed to set up logging")
	}
	logger.Info().Str("config", *configPath).Msg("configuration loaded")

	auditLog := audit.NewLog()
	reg := registry.New(registry.Options{
		MaxNameLength: cfg.Limits.MaxNameLength,
		RateLimit: ratelimit.Rule{
			Limit:  cfg.Limits.RateLimitMessagesPerSecond,
			Window: cfg.Limits.RateLimitWindow(),
		},
		Audit: auditLog,
	})

	srv := server.New(server.Config{
		Addr:           cfg.Server.Addr(),
		MaxMessageSize: cfg.Limits.MaxMessageSize,
		ReadTimeout:    cfg.Limits.ReadTimeout(),
		RateLimit: ratelimit.Rule{
			Limit:  cfg.Limits.RateLimitMessagesPerSecond,
			Window: cfg.Limits.RateLimitWindow(),
		},
	}, reg, logger)

	startedAt := time.Now()
	if err := srv.Listen(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start server")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	var admin *http.Server
	if cfg.Admin.Enabled {
		admin = &http.Server{
			Addr:    cfg.Admin.ListenAddr,
			Handler: server.AdminHandler(reg, startedAt),
		}
		g.Go(func() error {
			logger.Info().Str("addr", cfg.Admin.ListenAddr).Msg("admin endpoint listening")
			if err := admin.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		logger.Info().Msg("shutdown signal received")

		srv.Shutdown()
		if admin != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = admin.Shutdown(shutdownCtx)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error().Err(err).Msg("server error")
	}

	if auditLog.Len() > 0 {
		name := audit.ExportFilename(time.Now())
		if err := auditLog.ExportFile(name); err != nil {
			logger.Error().Err(err).Msg("failed to export audit log")
		} else {
			logger.Info().Str("file", name).Int("records", auditLog.Len()).Msg("audit log exported")
		}
	}
	logger.Info().Msg("server exited")
}
