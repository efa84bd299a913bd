package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/memento/internal/api"
	"github.com/your-org/memento/internal/api/ws"
	"github.com/your-org/memento/internal/config"
	"github.com/your-org/memento/internal/embed"
	"github.com/your-org/memento/internal/faceindex"
	"github.com/your-org/memento/internal/observability"
	"github.com/your-org/memento/internal/queue"
	"github.com/your-org/memento/internal/recognition"
	"github.com/your-org/memento/internal/reconciler"
	"github.com/your-org/memento/internal/storage"
	"github.com/your-org/memento/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting memento API service", "port", cfg.Server.Port)

	// Connect to Postgres
	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Connect to MinIO
	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	// Connect to NATS
	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	// WebSocket hub
	hub := ws.NewHub()
	go hub.Run()

	// Consume sightings and broadcast them to WebSocket clients
	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create sighting consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = consumer.ConsumeSightings(ctx, "api-sightings", func(ctx context.Context, msg jetstream.Msg) error {
		var sighting recognition.Sighting
		if err := json.Unmarshal(msg.Data(), &sighting); err != nil {
			return err
		}

		hub.BroadcastSighting(&dto.WSEvent{
			Type:    "sighting",
			EventID: sighting.EventID,
			Data:    sighting,
		})
		return nil
	})
	if err != nil {
		slog.Warn("start sighting consumer", "error", err)
	}

	// Face index backend
	var index faceindex.Client
	switch cfg.Recognition.Backend {
	case "local":
		embedder := embed.NewClient(cfg.Recognition.EmbedderURL, cfg.Recognition.CallTimeout)
		index = faceindex.NewLocalClient(db.Pool(), embedder, minioStore)
		slog.Info("face index backend", "backend", "local", "embedder", cfg.Recognition.EmbedderURL)
	default:
		index, err = faceindex.NewRekognitionClient(ctx, cfg.Recognition)
		if err != nil {
			slog.Error("create rekognition client", "error", err)
			os.Exit(1)
		}
		slog.Info("face index backend", "backend", "rekognition", "region", cfg.Recognition.AWSRegion)
	}

	recogSvc := recognition.NewService(index, producer, cfg.Recognition)

	rec := reconciler.New(db, db, db, index, reconciler.Options{
		CollectionPrefix: cfg.Recognition.CollectionPrefix,
		PhotoBucket:      minioStore.Bucket(),
		EvictOnRevoke:    cfg.Reconciler.EvictOnRevoke,
	})

	// Setup router
	router := api.NewRouter(api.RouterConfig{
		APIKey:        cfg.Server.APIKey,
		DB:            db,
		MinIO:         minioStore,
		Producer:      producer,
		Hub:           hub,
		Recognition:   recogSvc,
		Reconciler:    rec,
		WindowMinutes: cfg.Reconciler.WindowMinutes,
	})

	// Start HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}
