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

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	"github.com/bnema/scenefetch/config"
	"github.com/bnema/scenefetch/internal/adapter/downloader/direct"
	"github.com/bnema/scenefetch/internal/adapter/downloader/ytdlp"
	HTTPAdapter "github.com/bnema/scenefetch/internal/adapter/http"
	"github.com/bnema/scenefetch/internal/adapter/media/ffmpeg"
	"github.com/bnema/scenefetch/internal/adapter/storage/jsonfile"
	sqlitestore "github.com/bnema/scenefetch/internal/adapter/storage/sqlite"
	"github.com/bnema/scenefetch/internal/adapter/system"
	"github.com/bnema/scenefetch/internal/domain"
	"github.com/bnema/scenefetch/internal/infrastructure/logger"
	"github.com/bnema/scenefetch/internal/port"
	"github.com/bnema/scenefetch/internal/service"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Error.Printf("failed to load config: %v", err)
		os.Exit(1)
	}
	logger.Configure(logger.Options{Level: cfg.Log.Level, JSON: cfg.Log.JSON})

	if err := run(cfg); err != nil {
		logger.Error.Printf("scenefetch: %v", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	logger.Info.Printf("starting scenefetch %s on port %d", version, cfg.Port)

	for _, dir := range []string{cfg.DataDir, cfg.TempRoot, cfg.OutputDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}

	history, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = history.Close() }()

	disk := system.NewDiskSpace()
	if usage, err := disk.Usage(context.Background(), cfg.TempRoot); err == nil {
		logger.Info.Printf("temp root %s: %s free of %s", cfg.TempRoot, humanize.Bytes(usage.Free), humanize.Bytes(usage.Total))
	}

	classifier := service.NewClassifier(overrides(cfg)...)
	policy := service.RetryPolicy{
		MaxRetries:        cfg.Retry.MaxRetries,
		BaseDelay:         cfg.Retry.BaseDelay,
		MaxDelay:          cfg.Retry.MaxDelay,
		BackoffMultiplier: cfg.Retry.BackoffMultiplier,
	}

	downloaders := []port.Downloader{
		ytdlp.New(cfg.Tools.YtDlp),
		direct.New(nil),
	}
	prober := service.NewProbeService(classifier, policy, cfg.Timeouts.Network, downloaders...)

	runner := service.NewRunner(service.RunnerConfig{
		OutputDir:       cfg.OutputDir,
		TransferTimeout: cfg.Timeouts.Transfer,
		Retry:           policy,
		RandomDelayMin:  cfg.Delay.Min,
		RandomDelayMax:  cfg.Delay.Max,
	}, classifier, service.NewIdentityPool(cfg.UserAgents...), prober,
		ffmpeg.NewInspector(cfg.Tools.FFprobe), disk, downloaders...)

	cleanup := service.NewCleanupService(service.CleanupConfig{
		TempRoot:         cfg.TempRoot,
		MaxAge:           cfg.Cleanup.MaxAge,
		Interval:         cfg.Cleanup.Interval,
		SessionRetention: cfg.Cleanup.SessionRetention,
		HistoryRetention: cfg.Cleanup.HistoryRetention,
	}, history)

	bus := service.NewEventBus()
	queue := service.NewQueueManager(service.QueueConfig{
		ConcurrencyLimit: cfg.Concurrency,
		QueueSize:        cfg.QueueSize,
		TempRoot:         cfg.TempRoot,
	}, runner, classifier, bus, cleanup)
	cleanup.SetRegistry(queue)

	recorder := service.NewHistoryRecorder(bus, history)

	authSvc, err := service.NewAuthService(cfg.Auth.Username, cfg.Auth.Password, cfg.Auth.PasswordHash, cfg.Auth.SecretKey)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	logger.Info.Printf("api operator account: %s", authSvc.Username())

	server := HTTPAdapter.NewServer(HTTPAdapter.Deps{
		Auth:        authSvc,
		Queue:       queue,
		Events:      bus,
		Prober:      prober,
		Maintenance: cleanup,
		History:     history,
		Disk:        disk,
		TempRoot:    cfg.TempRoot,
		Version:     version,
		BehindProxy: cfg.BehindProxy,
	})
	defer server.Close()

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           server,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Event streams stay open for the whole download.
		WriteTimeout: 0,
		IdleTimeout:  120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// The recorder outlives the queue so sessions cancelled at shutdown
	// still reach history.
	recorderCtx, stopRecorder := context.WithCancel(context.Background())
	defer stopRecorder()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return cleanup.Start(gctx) })
	g.Go(func() error { return recorder.Run(recorderCtx) })
	g.Go(func() error {
		logger.Info.Printf("server listening on %s", cfg.Addr())
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info.Printf("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Timeouts.Shutdown)
		defer cancel()

		if err := queue.Shutdown(shutdownCtx); err != nil {
			logger.Warn.Printf("queue shutdown: %v", err)
		}
		stopRecorder()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error.Printf("http shutdown error: %v", err)
		}
		return nil
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	logger.Info.Printf("shutdown complete")
	return err
}

func openHistory(cfg *config.Config) (port.SessionHistory, error) {
	switch cfg.History.Backend {
	case "json":
		store, err := jsonfile.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open json history: %w", err)
		}
		return store, nil
	default:
		store, err := sqlitestore.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("open sqlite history: %w", err)
		}
		return store, nil
	}
}

func overrides(cfg *config.Config) []service.ClassifierOption {
	opts := make([]service.ClassifierOption, 0, len(cfg.Overrides))
	for _, o := range cfg.Overrides {
		opts = append(opts, service.WithStrategyOverride(domain.ErrorKind(o.Kind), o.MaxRetries, o.BaseDelay))
	}
	return opts
}
