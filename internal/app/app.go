// Package app assembles a configured send run: logger, sent log,
// composer, delivery client, throttler, optional DKIM signing and
// metrics, and the pipeline that drives them.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/foxzi/outreach/internal/compose"
	"github.com/foxzi/outreach/internal/config"
	"github.com/foxzi/outreach/internal/deliver"
	"github.com/foxzi/outreach/internal/dkim"
	"github.com/foxzi/outreach/internal/metrics"
	"github.com/foxzi/outreach/internal/pipeline"
	"github.com/foxzi/outreach/internal/recipient"
	"github.com/foxzi/outreach/internal/sentlog"
	"github.com/foxzi/outreach/internal/throttle"
)

// App holds the assembled components of one run.
type App struct {
	config *config.Config
	logger *slog.Logger

	store         sentlog.Store
	pipe          *pipeline.Pipeline
	metricsServer *metrics.Server
}

// New builds an application from configuration. Every startup check
// happens here: template validation, attachment load, sent-log open,
// DKIM key load, and (for real sends) credential presence.
func New(cfg *config.Config, dryRun bool) (*App, error) {
	logger := setupLogger(cfg.Logging)

	if !dryRun {
		if err := cfg.RequireCredentials(); err != nil {
			return nil, err
		}
	}
	if cfg.Sender.Address == "" {
		return nil, fmt.Errorf("sender.address is not configured (set it in the config file or OUTREACH_SENDER_ADDRESS)")
	}

	body, err := cfg.BodyTemplate()
	if err != nil {
		return nil, err
	}
	composer, err := compose.New(compose.Options{
		FromAddress:    cfg.Sender.Address,
		FromName:       cfg.Sender.Name,
		Template:       compose.Template{Subject: cfg.Message.Subject, Body: body},
		AttachmentPath: cfg.Message.Attachment,
		AttachmentName: cfg.Message.AttachmentName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare message template: %w", err)
	}

	store, err := sentlog.Open(cfg.SentLog.Backend, cfg.SentLog.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sent log: %w", err)
	}

	client := deliver.NewClient(deliver.Config{
		Host:       cfg.SMTP.Host,
		Port:       cfg.SMTP.Port,
		Username:   cfg.SMTP.Username,
		Password:   cfg.SMTP.Password,
		Timeout:    cfg.SMTP.Timeout,
		MaxRetries: cfg.SMTP.MaxRetries,
		Backoff:    cfg.SMTP.RetryBackoff,
	}, logger)

	if cfg.DKIM.Enabled {
		signer, err := dkim.NewSignerFromFile(cfg.DKIM.KeyFile, cfg.DKIM.Domain, cfg.DKIM.Selector)
		if err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to initialize DKIM signer: %w", err)
		}
		client.SetSigner(signer)
		logger.Info("DKIM signing enabled", "domain", cfg.DKIM.Domain, "selector", cfg.DKIM.Selector)
	}

	throttler := throttle.New(cfg.Throttle.MinDelay, cfg.Throttle.MaxDelay, cfg.Throttle.MessageJitter, logger)

	var m *metrics.Metrics
	var metricsServer *metrics.Server
	if cfg.Metrics.Enabled {
		m = metrics.New()
		metricsServer = metrics.NewServer(cfg.Metrics.ListenAddr, cfg.Metrics.Path, m, logger)
	}

	pipe := pipeline.New(pipeline.Options{
		Loader:      recipient.NewLoader(cfg.Recipients.Columns, logger),
		Store:       store,
		Composer:    composer,
		Sender:      client,
		Throttler:   throttler,
		Metrics:     m,
		Logger:      logger,
		FromAddress: cfg.Sender.Address,
		BatchSize:   cfg.Throttle.BatchSize,
		MaxPerRun:   cfg.Limits.MaxPerRun,
		DryRun:      dryRun,
	})

	return &App{
		config:        cfg,
		logger:        logger,
		store:         store,
		pipe:          pipe,
		metricsServer: metricsServer,
	}, nil
}

// Logger returns the application logger.
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// Run executes the send pipeline, stopping cleanly on SIGINT/SIGTERM.
func (a *App) Run(ctx context.Context) (*pipeline.Report, error) {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if a.metricsServer != nil {
		a.metricsServer.Start()
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			if err := a.metricsServer.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("metrics server shutdown failed", "error", err)
			}
		}()
	}
	defer func() {
		if err := a.store.Close(); err != nil {
			a.logger.Error("failed to close sent log", "error", err)
		}
	}()

	return a.pipe.Run(ctx, a.config.Recipients.File)
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var handler slog.Handler

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}
