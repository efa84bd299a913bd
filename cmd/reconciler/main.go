package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/memento/internal/config"
	"github.com/your-org/memento/internal/embed"
	"github.com/your-org/memento/internal/faceindex"
	"github.com/your-org/memento/internal/observability"
	"github.com/your-org/memento/internal/reconciler"
	"github.com/your-org/memento/internal/storage"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single reconciliation pass and exit")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting memento reconciler",
		"interval", cfg.Reconciler.Interval.String(),
		"window_minutes", cfg.Reconciler.WindowMinutes,
	)

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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Face index backend
	var index faceindex.Client
	switch cfg.Recognition.Backend {
	case "local":
		embedder := embed.NewClient(cfg.Recognition.EmbedderURL, cfg.Recognition.CallTimeout)
		index = faceindex.NewLocalClient(db.Pool(), embedder, minioStore)
	default:
		index, err = faceindex.NewRekognitionClient(ctx, cfg.Recognition)
		if err != nil {
			slog.Error("create rekognition client", "error", err)
			os.Exit(1)
		}
	}

	rec := reconciler.New(db, db, db, index, reconciler.Options{
		CollectionPrefix: cfg.Recognition.CollectionPrefix,
		PhotoBucket:      minioStore.Bucket(),
		EvictOnRevoke:    cfg.Reconciler.EvictOnRevoke,
	})

	if *once {
		if _, err := rec.Run(ctx, cfg.Reconciler.WindowMinutes); err != nil {
			slog.Error("reconciliation pass", "error", err)
			os.Exit(1)
		}
		return
	}

	// Metrics endpoint
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("reconciler metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	// Run on startup, then on every tick
	go func() {
		if _, err := rec.Run(ctx, cfg.Reconciler.WindowMinutes); err != nil {
			slog.Error("reconciliation pass", "error", err)
		}

		ticker := time.NewTicker(cfg.Reconciler.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := rec.Run(ctx, cfg.Reconciler.WindowMinutes); err != nil {
					slog.Error("reconciliation pass", "error", err)
				}
			}
		}
	}()

	// Wait for shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down reconciler...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("reconciler stopped")
}
