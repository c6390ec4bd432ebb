//	@title			quickshare API
//	@version		1.0
//	@description	Upload a file behind basic auth, get a short link to it, and serve it back by name.
//
//	@BasePath	/
//
//	@securityDefinitions.basic	BasicAuth

//go:generate swag init --dir ../../ --generalInfo cmd/api/main.go --output ../../docs/swagger

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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"github.com/quickshare/service/internal/config"
	"github.com/quickshare/service/internal/health"
	"github.com/quickshare/service/internal/logging"
	"github.com/quickshare/service/internal/metrics"
	"github.com/quickshare/service/internal/share"
	"github.com/quickshare/service/internal/shortener"
	"github.com/quickshare/service/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(logging.Options{
		Level:         cfg.LogLevel,
		Development:   !cfg.IsProduction(),
		Path:          cfg.LogPath,
		MaxSizeMB:     cfg.LogMaxSizeMB,
		MaxBackups:    cfg.LogMaxBackups,
		MaxAgeDays:    cfg.LogMaxAgeDays,
		CompressFiles: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped with error", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := newStorage(ctx, cfg)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// Wire dependencies: storage + shortener → service → handler
	sh := shortener.NewClient(cfg.ShlinkAPI, cfg.ShlinkAPIKey, shortener.Options{
		Timeout:     cfg.ShortenerTimeout,
		MaxRetries:  cfg.ShortenerMaxRetries,
		RetryPeriod: cfg.ShortenerRetryPeriod,
	})
	svc, err := share.NewService(store, sh, cfg.FullHost, m, log)
	if err != nil {
		return err
	}
	shareHandler := share.NewHandler(svc, m, share.Limits{
		MaxUploadBytes:  cfg.UploadMaxBytes,
		TransferTimeout: cfg.TransferTimeout,
	}, log)
	checker := health.NewChecker(store, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           newRouter(cfg, log, shareHandler, m, checker),
		ReadHeaderTimeout: 10 * time.Second,
		// Upload and download handlers extend these to TransferTimeout.
		ReadTimeout:  5 * time.Minute,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening",
			zap.String("addr", srv.Addr),
			zap.String("env", cfg.AppEnv),
			zap.String("storage", cfg.StorageDriver),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("forced shutdown: %w", err)
	}

	log.Info("server stopped")
	return nil
}

func newStorage(ctx context.Context, cfg *config.Config) (storage.Storage, error) {
	switch cfg.StorageDriver {
	case config.DriverMinio:
		return storage.NewMinioStorage(ctx, storage.MinioOptions{
			Endpoint:  cfg.StorageEndpoint,
			AccessKey: cfg.StorageAccessKey,
			SecretKey: cfg.StorageSecretKey,
			Bucket:    cfg.StorageBucket,
			UseSSL:    cfg.StorageUseSSL,
			Region:    cfg.StorageRegion,
			PartSize:  cfg.StoragePartSize,
		})
	default:
		return storage.NewLocalStorage(cfg.DataDir)
	}
}
