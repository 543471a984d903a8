package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/illegalcall/mentora/internal/config"
	"github.com/illegalcall/mentora/internal/credits"
	"github.com/illegalcall/mentora/internal/jobs"
	"github.com/illegalcall/mentora/internal/llm"
	"github.com/illegalcall/mentora/internal/usage"
	"github.com/illegalcall/mentora/internal/vector"
	"github.com/illegalcall/mentora/internal/worker"
	"github.com/illegalcall/mentora/pkg/database"
	"github.com/illegalcall/mentora/pkg/kafka"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment")
	}

	// Load configuration
	cfg := config.LoadConfig()

	// Initialize database clients
	db, err := database.NewClients(cfg.Database.URL, cfg.Redis.Addr)
	if err != nil {
		slog.Error("Failed to initialize database clients", "error", err)
		os.Exit(1)
	}
	defer db.DB.Close()
	if err := db.EnsureSchema(); err != nil {
		slog.Error("Failed to ensure schema", "error", err)
		os.Exit(1)
	}
	slog.Info("✅ Connected to databases")

	// Initialize Kafka consumer
	consumer, err := kafka.NewConsumer(cfg.Kafka.Broker, cfg.Kafka.Group)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()
	slog.Info("✅ Connected to Kafka")

	// Initialize the embedding client and the ingestion handler
	llmClient, err := llm.NewClient(&cfg.Gemini)
	if err != nil {
		slog.Error("Failed to create LLM client", "error", err)
		os.Exit(1)
	}

	tracker := jobs.NewIngestTracker(jobs.IngestTrackerConfig{
		WebhookURL:     cfg.Webhook.URL,
		WebhookEnabled: cfg.Webhook.Enabled,
	})
	handler := jobs.NewIngestHandler(
		db,
		vector.NewStore(db.DB),
		llmClient,
		credits.NewLedger(db.DB),
		usage.NewRecorder(db.DB),
		tracker,
	)

	// Create and start worker
	w := worker.NewWorker(cfg, consumer, handler)

	ctx := context.Background()
	if err := w.Start(ctx); err != nil {
		slog.Error("Worker error", "error", err)
		os.Exit(1)
	}
}
