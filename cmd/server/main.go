package main

import (
	"context"
	"errors"
	"fmt"
	stdhttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"parkadmin/app/internal/auth"
	"parkadmin/app/internal/config"
	"parkadmin/app/internal/content"
	appdb "parkadmin/app/internal/db"
	apphttp "parkadmin/app/internal/http"
	applog "parkadmin/app/internal/log"
	"parkadmin/app/internal/media"
	"parkadmin/app/internal/metrics"
	"parkadmin/app/internal/users"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return eris.Wrap(err, "failure loading configuration")
	}

	logger, err := applog.NewLogger(cfg.LogLevel)
	if err != nil {
		return eris.Wrap(err, "failure initialising logger")
	}

	sentryHub, flush, err := applog.InitSentry(logger, applog.SentrySettings{
		DSN:         cfg.SentryDSN,
		Environment: cfg.Environment,
	})
	if err != nil {
		return eris.Wrap(err, "failure initialising sentry")
	}
	defer flush()

	dbConn, err := appdb.Open(appdb.Options{Path: cfg.DBPath})
	if err != nil {
		return eris.Wrap(err, "opening database")
	}
	defer func() {
		if closeErr := appdb.Close(dbConn); closeErr != nil {
			logger.WithError(closeErr).Error("closing database")
		}
	}()

	if err := content.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running content migrations")
	}
	if err := users.Migrate(ctx, dbConn, logger); err != nil {
		return eris.Wrap(err, "running user migrations")
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewCollector(registry)

	images, err := buildImagePipeline(cfg, logger, recorder)
	if err != nil {
		return err
	}

	repository, err := content.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building content repository")
	}

	contentOpts := content.Options{
		Repository:         repository,
		Logger:             logger,
		SentryHub:          sentryHub,
		Recorder:           recorder,
		MaxImagesPerRecord: cfg.Images.MaxPerRecord,
	}
	if images != nil {
		contentOpts.Images = images
	}

	contentService, err := content.NewService(contentOpts)
	if err != nil {
		return eris.Wrap(err, "creating content service")
	}

	userRepository, err := users.NewRepository(dbConn, logger)
	if err != nil {
		return eris.Wrap(err, "building user repository")
	}

	userService, err := users.NewService(userRepository, cfg.AdminEmails, logger, sentryHub)
	if err != nil {
		return eris.Wrap(err, "creating user service")
	}

	var verifier auth.Verifier
	if cfg.GoogleClientID != "" {
		googleVerifier, err := auth.NewGoogleVerifier(cfg.GoogleClientID)
		if err != nil {
			return eris.Wrap(err, "creating token verifier")
		}
		verifier = googleVerifier
	} else {
		logger.Warn("GOOGLE_CLIENT_ID is not set; protected routes will reject every request")
	}

	transport, err := apphttp.NewServer(apphttp.Options{
		Content:        contentService,
		Users:          userService,
		Verifier:       verifier,
		Logger:         logger,
		SentryHub:      sentryHub,
		Recorder:       recorder,
		MetricsHandler: metrics.Handler(registry),
		CORSOrigins:    cfg.CORSOrigins,
		RateLimiter: apphttp.RateLimiterSettings{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
			ClientTTL:         cfg.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		return eris.Wrap(err, "initialising http transport")
	}
	defer transport.Close()

	httpServer := &stdhttp.Server{
		Addr:    fmt.Sprintf("0.0.0.0:%d", cfg.ServerPort),
		Handler: transport.Handler(),
	}

	logger.WithFields(logrus.Fields{
		"addr":        httpServer.Addr,
		"environment": cfg.Environment,
		"images":      images != nil,
	}).Info("starting http server")

	serverErrCh := make(chan error, 1)
	go func() {
		err := httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, stdhttp.ErrServerClosed) {
			serverErrCh <- err
		} else {
			serverErrCh <- nil
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErrCh:
		if err != nil {
			return eris.Wrap(err, "http server error")
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return eris.Wrap(err, "shutting down http server")
	}

	logger.Info("http server shut down cleanly")
	return nil
}

// buildImagePipeline returns nil when no CDN credentials are configured. Records then only
// accept images that already are http(s) URLs.
func buildImagePipeline(cfg *config.Config, logger *logrus.Logger, recorder metrics.Recorder) (*media.Pipeline, error) {
	if !cfg.Cloudinary.Configured() {
		logger.Warn("cloudinary is not configured; image uploads are disabled")
		return nil, nil
	}

	cdn, err := media.NewCloudinary(media.CloudinarySettings{
		URL:       cfg.Cloudinary.URL,
		CloudName: cfg.Cloudinary.CloudName,
		APIKey:    cfg.Cloudinary.APIKey,
		APISecret: cfg.Cloudinary.APISecret,
		Folder:    cfg.Cloudinary.Folder,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating cloudinary client")
	}

	pipeline, err := media.NewPipeline(cdn, media.Options{
		Timeout:       cfg.Images.Timeout,
		Retries:       cfg.Images.Retries,
		MaxConcurrent: cfg.Images.MaxConcurrent,
		MaxBytes:      cfg.Images.MaxBytes,
		MaxWidth:      cfg.Images.MaxWidth,
		Logger:        logger,
		Recorder:      recorder,
	})
	if err != nil {
		return nil, eris.Wrap(err, "creating image pipeline")
	}
	return pipeline, nil
}
