package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"wasender/internal/config"
	"wasender/internal/constants"
	"wasender/internal/database"
	"wasender/internal/errors"
	"wasender/internal/models"
	"wasender/internal/retry"
	"wasender/internal/service"
	"wasender/internal/tracing"
	"wasender/pkg/assist"
	"wasender/pkg/circuitbreaker"
	"wasender/pkg/delivery"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

var (
	// Version information (set at build time)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	// CLI flags
	verbose    = flag.Bool("verbose", false, "Enable verbose logging")
	configPath = flag.String("config", "config.json", "Path to configuration file")
	version    = flag.Bool("version", false, "Show version information")
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("WASender %s\nBuild Time: %s\nGit Commit: %s\n", Version, BuildTime, GitCommit)
		os.Exit(0)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logrus.Fatalf("Application error: %v", err)
	}
}

func run(ctx context.Context) error {
	if err := godotenv.Load(); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}

	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})

	logger.WithFields(logrus.Fields{
		"version": Version,
		"build":   BuildTime,
		"commit":  GitCommit,
	}).Info("Starting WASender")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	configureLogLevel(logger, cfg)

	tracingManager := tracing.NewManager(cfg.Tracing, logger)
	if err := tracingManager.Initialize(ctx); err != nil {
		logger.Warnf("Failed to initialize tracing: %v", err)
	}
	defer func() {
		if err := tracingManager.Shutdown(context.Background()); err != nil {
			logger.Warnf("Failed to shutdown tracing: %v", err)
		}
	}()

	// Initialize database with exponential backoff retry
	var db *database.Database
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(cfg.Retry.InitialBackoffMs) * time.Millisecond,
		MaxDelay:     time.Duration(cfg.Retry.MaxBackoffMs) * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  cfg.Retry.MaxAttempts,
		Jitter:       true,
	})

	err = backoff.Retry(ctx, func() error {
		var initErr error
		db, initErr = database.New(cfg.Database.Path)
		if initErr != nil {
			logger.Warnf("Failed to initialize database: %v", initErr)
		}
		return initErr
	})
	if err != nil {
		return fmt.Errorf("failed to initialize database after retries: %w", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Warnf("Failed to close database: %v", err)
		}
	}()

	hub := service.NewProgressHub()
	store := service.NewCampaignStore(db, hub, logger)

	identity := service.NewIdentityLinkManager(
		time.Duration(cfg.Identity.VerifyTimeoutMs)*time.Millisecond, logger)

	pool, err := service.NewNumberPool(ctx, db, cfg.Pool, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize number pool: %w", err)
	}

	deliveryClient := delivery.NewClient(
		cfg.Delivery.APIBaseURL,
		time.Duration(cfg.Delivery.TimeoutSec)*time.Second,
		cfg.Delivery.RetryCount,
		logger,
	)

	pipeline := service.NewDispatchPipeline(store, pool, identity,
		&deliverySender{client: deliveryClient}, cfg.Dispatch, logger)

	if err := pipeline.RecoverStuck(ctx); err != nil {
		return fmt.Errorf("failed to recover interrupted campaigns: %w", err)
	}

	poller := service.NewSchedulePoller(store, pipeline,
		time.Duration(cfg.Dispatch.SchedulePollSec)*time.Second, logger)
	poller.Start(ctx)
	defer poller.Stop()

	assistGateway := buildAssistGateway(ctx, cfg, logger)

	server := NewServer(cfg, store, pipeline, identity, pool, assistGateway, logger)
	serverErrCh := make(chan error, constants.ServerErrorChannelSize)
	go func() {
		if err := server.Start(); err != nil {
			serverErrCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("Received shutdown signal")
	case err := <-serverErrCh:
		logger.Error(err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(constants.DefaultGracefulShutdownSec)*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	logger.Info("Shutdown complete")
	return nil
}

func configureLogLevel(logger *logrus.Logger, cfg *models.Config) {
	if *verbose {
		logger.SetLevel(logrus.DebugLevel)
		return
	}

	if cfg.LogLevel != "" {
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			logger.Warnf("Invalid log level %q, defaulting to info", cfg.LogLevel)
			logger.SetLevel(logrus.InfoLevel)
			return
		}
		logger.SetLevel(level)
		return
	}

	logger.SetLevel(logrus.InfoLevel)
}

func buildAssistGateway(ctx context.Context, cfg *models.Config, logger *logrus.Logger) assist.Gateway {
	if !cfg.Assist.Enabled {
		logger.Info("Content assist is disabled")
		return assist.Disabled{}
	}

	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Warn("GEMINI_API_KEY not set, content assist disabled")
		return assist.Disabled{}
	}

	breaker := circuitbreaker.New("assist",
		constants.DefaultAssistBreakerFailures,
		time.Duration(constants.DefaultAssistBreakerResetSec)*time.Second,
		logger,
	)

	gateway, err := assist.NewGeminiClient(ctx, apiKey, cfg.Assist.Model,
		time.Duration(cfg.Assist.TimeoutSec)*time.Second, breaker, logger)
	if err != nil {
		logger.Warnf("Failed to initialize content assist: %v", err)
		return assist.Disabled{}
	}

	logger.WithField("model", cfg.Assist.Model).Info("Content assist enabled")
	return gateway
}

// deliverySender adapts the delivery client to the dispatch pipeline.
type deliverySender struct {
	client *delivery.Client
}

func (s *deliverySender) SendBatch(ctx context.Context, fromNumber string, campaign *models.Campaign, recipients []string) (int, error) {
	resp, err := s.client.SendBatch(ctx, &delivery.BatchRequest{
		From:       fromNumber,
		Message:    campaign.Message,
		LinkURL:    campaign.LinkURL,
		CallNumber: campaign.CallNumber,
		MediaRef:   campaign.MediaRef,
		Recipients: recipients,
	})
	if err != nil {
		return 0, errors.Wrap(err, errors.ErrCodeBatchDeliveryFailure, "batch delivery failed")
	}
	return resp.Delivered, nil
}
