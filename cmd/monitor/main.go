package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/monitor"
	"github.com/your-org/facewatch/internal/notify"
	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/video"
	"github.com/your-org/facewatch/internal/vision"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	if err := run(cfg); err != nil {
		slog.Error("monitor failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting facewatch monitor",
		"video_backend", cfg.Video.Backend,
		"recognition_backend", cfg.Recognition.Backend,
		"database", cfg.Database.Driver,
	)

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	images, err := storage.OpenImages(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open image store: %w", err)
	}

	rec, err := vision.New(cfg.Recognition)
	if err != nil {
		return fmt.Errorf("load recognizer: %w", err)
	}
	defer rec.Close()

	source, err := video.New(cfg.Video)
	if err != nil {
		return fmt.Errorf("video source: %w", err)
	}

	feed, err := notify.NewFeed(cfg.Storage.FeedPath, cfg.Storage.FeedCapacity)
	if err != nil {
		return err
	}
	client := &http.Client{Timeout: cfg.Notifications.Timeout()}
	notifier := notify.New(feed, cfg.Notifications.Timeout(),
		notify.BuildChannels(ctx, cfg.Notifications, client)...)
	defer func() {
		if err := notifier.Close(); err != nil {
			slog.Warn("close notifier", "error", err)
		}
	}()

	metricsSrv := startMetricsServer(cfg.Server.MetricsPort)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsSrv.Shutdown(shutdownCtx)
	}()

	loop := monitor.New(source, rec, store, images, notifier, monitor.SettingsFromConfig(cfg))
	err = loop.Run(ctx)
	slog.Info("monitor stopped")
	return err
}

func startMetricsServer(port int) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		slog.Info("monitor metrics listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
	return srv
}
