package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/lumenlabs/mediakit/internal/api"
	"github.com/lumenlabs/mediakit/internal/config"
	"github.com/lumenlabs/mediakit/internal/events"
	"github.com/lumenlabs/mediakit/internal/logging"
	"github.com/lumenlabs/mediakit/internal/media"
	"github.com/lumenlabs/mediakit/internal/metrics"
	"github.com/lumenlabs/mediakit/internal/storage"
	"github.com/lumenlabs/mediakit/internal/storage/bunny"
	"github.com/lumenlabs/mediakit/internal/storage/local"
	"github.com/lumenlabs/mediakit/internal/storage/memory"
	"github.com/lumenlabs/mediakit/internal/storage/s3"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newBackend(ctx, cfg)
	if err != nil {
		logging.Fatal("storage backend init failed", zap.Error(err))
	}
	defer store.Close()

	logging.Info("storage backend ready", zap.String("type", store.Type()))

	broadcaster := events.NewBroadcaster()

	server := api.NewServer(store, broadcaster,
		media.Limits{
			MaxImageBytes: cfg.MaxImageBytes,
			MaxVideoBytes: cfg.MaxVideoBytes,
		},
		media.Options{
			TargetBytes:    cfg.CompressTargetBytes,
			MaxWidth:       cfg.CompressMaxWidth,
			InitialQuality: cfg.CompressInitialQuality,
			QualityStep:    cfg.CompressQualityStep,
			QualityFloor:   cfg.CompressQualityFloor,
			MaxAttempts:    cfg.CompressMaxAttempts,
		},
		cfg.DefaultUploadFolder,
	)

	metricsSrv := &http.Server{
		Addr:    cfg.MetricsAddr,
		Handler: metrics.Handler(),
	}
	go func() {
		logging.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("metrics server failed", zap.Error(err))
		}
	}()

	httpSrv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logging.Info("server listening", zap.String("addr", cfg.ListenAddr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal("http server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logging.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("http shutdown", zap.Error(err))
	}
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		logging.Warn("metrics shutdown", zap.Error(err))
	}
}

func newBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	switch cfg.StorageBackend {
	case "bunny":
		return bunny.New(bunny.Config{
			Endpoint:  cfg.StorageEndpoint,
			Zone:      cfg.StorageZone,
			AccessKey: cfg.StorageAccessKey,
			CDNBase:   cfg.CDNBaseURL,
		})
	case "s3":
		return s3.New(ctx, s3.Config{
			Endpoint:   cfg.S3Endpoint,
			Bucket:     cfg.S3Bucket,
			AccessKey:  cfg.S3AccessKey,
			SecretKey:  cfg.S3SecretKey,
			Region:     cfg.S3Region,
			UseSSL:     cfg.S3UseSSL,
			PublicBase: cfg.CDNBaseURL,
		})
	case "local":
		return local.New(local.Config{
			RootPath:   cfg.LocalStoragePath,
			PublicBase: cfg.LocalPublicBase,
			CreateDirs: true,
		})
	case "memory":
		return memory.New(memory.Config{PublicBase: cfg.CDNBaseURL}), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
