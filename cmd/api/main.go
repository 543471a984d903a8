package main

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/illegalcall/mentora/internal/api"
	"github.com/illegalcall/mentora/internal/chat"
	"github.com/illegalcall/mentora/internal/config"
	"github.com/illegalcall/mentora/internal/credits"
	"github.com/illegalcall/mentora/internal/llm"
	"github.com/illegalcall/mentora/internal/pkg/supabase"
	"github.com/illegalcall/mentora/internal/usage"
	"github.com/illegalcall/mentora/internal/vector"
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

	// Initialize Supabase auth client
	if err := supabase.InitClient(cfg.Supabase.URL, cfg.Supabase.ServiceKey); err != nil {
		slog.Error("Failed to initialize Supabase client", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer
	producer, err := kafka.NewProducer(cfg.Kafka.Broker, cfg.Kafka.RetryMax, cfg.Kafka.RetryBackoff)
	if err != nil {
		slog.Error("Failed to create Kafka producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()
	slog.Info("✅ Connected to Kafka")

	// Initialize the LLM client and the chat pipeline
	llmClient, err := llm.NewClient(&cfg.Gemini)
	if err != nil {
		slog.Error("Failed to create LLM client", "error", err)
		os.Exit(1)
	}

	store := vector.NewStore(db.DB)
	retriever := vector.NewRetriever(store, llmClient)
	chatStore := chat.NewStore(db.DB)
	assembler := chat.NewAssembler(
		llmClient,
		retriever,
		credits.NewLedger(db.DB),
		chatStore,
		chatStore,
		usage.NewRecorder(db.DB),
	)

	// Create and start server
	server, err := api.NewServer(cfg, db, producer, assembler, llmClient)
	if err != nil {
		slog.Error("Failed to create server", "error", err)
		os.Exit(1)
	}
	if err := server.Start(); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}
}
