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

	"github.com/your-org/facewatch/internal/api"
	"github.com/your-org/facewatch/internal/api/handlers"
	"github.com/your-org/facewatch/internal/api/ws"
	"github.com/your-org/facewatch/internal/config"
	"github.com/your-org/facewatch/internal/models"
	"github.com/your-org/facewatch/internal/notify"
	"github.com/your-org/facewatch/internal/observability"
	"github.com/your-org/facewatch/internal/queue"
	"github.com/your-org/facewatch/internal/storage"
	"github.com/your-org/facewatch/internal/vision"
)

const feedPollInterval = 2 * time.Second

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

	if err := run(cfg, *configPath); err != nil {
		slog.Error("dashboard failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	slog.Info("starting facewatch dashboard", "port", cfg.Server.Port)

	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	images, err := storage.OpenImages(ctx, cfg.Storage)
	if err != nil {
		return fmt.Errorf("open image store: %w", err)
	}

	feed, err := notify.NewFeed(cfg.Storage.FeedPath, cfg.Storage.FeedCapacity)
	if err != nil {
		return err
	}

	hub := ws.NewHub()
	go hub.Run(ctx)

	var natsPing handlers.Pinger
	if notify.PublishesToNATS(cfg.Notifications) {
		if p, err := subscribeNotifications(ctx, cfg.Notifications.NATS.URL, hub); err != nil {
			slog.Warn("nats live feed unavailable, polling the feed file instead", "error", err)
			go ws.PollFeed(ctx, feed, hub, feedPollInterval)
		} else {
			defer p.Close()
			natsPing = p
		}
	} else {
		go ws.PollFeed(ctx, feed, hub, feedPollInterval)
	}

	// enrollment works without models; those endpoints just answer 503
	var rec vision.Recognizer
	if r, err := vision.New(cfg.Recognition); err != nil {
		slog.Warn("recognizer unavailable, enrollment disabled", "error", err)
	} else {
		rec = r
		defer r.Close()
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:     cfg.Server.APIKey,
		Store:      store,
		Images:     images,
		Feed:       feed,
		Hub:        hub,
		ConfigPath: configPath,
		Recognizer: rec,
		NATS:       natsPing,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("dashboard listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	slog.Info("shutting down dashboard...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("dashboard stopped")
	return nil
}

type natsFeed struct {
	producer *queue.Producer
	consumer *queue.Consumer
}

func (n *natsFeed) Ping() error { return n.producer.Ping() }

func (n *natsFeed) Close() {
	n.consumer.Close()
	n.producer.Close()
}

// subscribeNotifications relays notifications published by the monitor to
// websocket clients.
func subscribeNotifications(ctx context.Context, url string, hub *ws.Hub) (*natsFeed, error) {
	producer, err := queue.NewProducer(url)
	if err != nil {
		return nil, err
	}
	if err := producer.EnsureStreams(ctx); err != nil {
		producer.Close()
		return nil, err
	}

	consumer, err := queue.NewConsumer(url)
	if err != nil {
		producer.Close()
		return nil, err
	}

	err = consumer.ConsumeNotifications(ctx, "dashboard-ws", func(_ context.Context, n models.Notification) error {
		hub.BroadcastNotification(&n)
		return nil
	})
	if err != nil {
		consumer.Close()
		producer.Close()
		return nil, err
	}
	return &natsFeed{producer: producer, consumer: consumer}, nil
}
