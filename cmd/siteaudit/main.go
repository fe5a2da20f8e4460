package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/pubsub"
	gcstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/apexsuite/siteaudit/internal/api"
	"github.com/apexsuite/siteaudit/internal/audit"
	"github.com/apexsuite/siteaudit/internal/auditlog"
	"github.com/apexsuite/siteaudit/internal/auth"
	"github.com/apexsuite/siteaudit/internal/clock/system"
	"github.com/apexsuite/siteaudit/internal/config"
	"github.com/apexsuite/siteaudit/internal/content"
	"github.com/apexsuite/siteaudit/internal/crawl"
	"github.com/apexsuite/siteaudit/internal/id/uuid"
	"github.com/apexsuite/siteaudit/internal/logging"
	"github.com/apexsuite/siteaudit/internal/pipeline"
	pubsubpublisher "github.com/apexsuite/siteaudit/internal/publisher/pubsub"
	"github.com/apexsuite/siteaudit/internal/report"
	"github.com/apexsuite/siteaudit/internal/screenshot"
	gcsstorage "github.com/apexsuite/siteaudit/internal/storage/gcs"
	memorystorage "github.com/apexsuite/siteaudit/internal/storage/memory"
	"github.com/apexsuite/siteaudit/internal/storage/postgres"
	"github.com/apexsuite/siteaudit/internal/validate"
)

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var jobs audit.JobStore
	switch cfg.Storage.Backend {
	case "postgres":
		store, err := postgres.NewJobStore(ctx, postgres.JobStoreConfig{
			DSN:      cfg.DB.DSN,
			MaxConns: cfg.DB.MaxConns,
			MinConns: cfg.DB.MinConns,
		})
		if err != nil {
			logger.Fatal("postgres job store init failed", zap.Error(err))
		}
		defer store.Close()
		jobs = store
	default:
		jobs = memorystorage.NewJobStore()
	}

	var blobs audit.BlobStore
	if cfg.Storage.GCSBucket != "" {
		client, err := gcstorage.NewClient(ctx)
		if err != nil {
			logger.Fatal("gcs client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("gcs client close failed", zap.Error(closeErr))
			}
		}()
		blobs, err = gcsstorage.New(client, gcsstorage.Config{Bucket: cfg.Storage.GCSBucket})
		if err != nil {
			logger.Fatal("gcs blob store init failed", zap.Error(err))
		}
	} else {
		blobs = memorystorage.NewBlobStore()
	}

	var shots audit.Screenshotter = screenshot.NewNoop()
	if cfg.Screenshot.Enabled {
		svc, err := screenshot.New(screenshot.Config{
			MaxParallel:    cfg.Screenshot.MaxParallel,
			UserAgent:      cfg.Audit.UserAgent,
			CaptureTimeout: time.Duration(cfg.Screenshot.CaptureTimeoutSeconds) * time.Second,
		})
		if err != nil {
			logger.Warn("screenshot service init failed", zap.Error(err))
		} else {
			defer svc.Close()
			shots = svc
		}
	}

	fetcher := crawl.NewFetcher(crawl.FetchConfig{
		UserAgent: cfg.Audit.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Guard:     validate.DialGuard,
	})
	crawlStage := crawl.NewStage(fetcher, shots, blobs, crawl.StageConfig{
		BlobPrefix:   cfg.Storage.Prefix,
		ProbeTimeout: cfg.ProbeTimeout(),
	}, logger.Named("crawl"))

	var analyzer audit.ContentAnalyzer
	if cfg.Content.Enabled {
		a, err := content.New(content.Config{
			APIKey:  cfg.Content.APIKey,
			Model:   cfg.Content.Model,
			Timeout: cfg.FetchTimeout(),
		}, logger.Named("content"))
		if err != nil {
			logger.Fatal("content analyzer init failed", zap.Error(err))
		}
		analyzer = a
	}

	var renderer pipeline.ReportRenderer
	if cfg.Report.Enabled {
		engine := report.NewChromiumEngine(time.Duration(cfg.Report.PrintTimeoutSeconds) * time.Second)
		defer engine.Close()
		renderer = report.New(engine, blobs, cfg.Storage.Prefix, logger.Named("report"))
	}

	auditLogOpts := []auditlog.Option{}
	if cfg.PubSub.Enabled {
		client, err := pubsub.NewClient(ctx, cfg.PubSub.ProjectID)
		if err != nil {
			logger.Fatal("pubsub client init failed", zap.Error(err))
		}
		defer func() {
			if closeErr := client.Close(); closeErr != nil {
				logger.Warn("pubsub client close failed", zap.Error(closeErr))
			}
		}()
		publisher := pubsubpublisher.New(client.Topic(cfg.PubSub.TopicName))
		defer publisher.Stop()
		auditLogOpts = append(auditLogOpts, auditlog.WithPublisher(publisher, cfg.PubSub.TopicName))
	}
	auditLog := auditlog.New(logger.Named("auditlog"), auditLogOpts...)

	manager := pipeline.New(
		jobs,
		blobs,
		validate.New(validate.Config{MaxURLs: cfg.Audit.MaxURLs}),
		crawlStage,
		analyzer,
		renderer,
		auth.NewPermissive(),
		auditLog,
		system.New(),
		uuid.New(),
		pipeline.Config{
			BlobPrefix:      cfg.Storage.Prefix,
			DefaultLanguage: cfg.Audit.DefaultLanguage,
		},
		logger.Named("pipeline"),
	)

	apiServer := api.NewServer(manager, cfg, logger.Named("api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}
