package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL, redisAddr string) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

// EnsureSchema creates all tables the service relies on. Embeddings use the
// pgvector extension; the 768 dimension matches text-embedding-004.
func (c *Clients) EnsureSchema() error {
	schema := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS profiles (
		id UUID PRIMARY KEY,
		credits NUMERIC NOT NULL DEFAULT 100,
		level TEXT NOT NULL DEFAULT 'beginner',
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS prices (
		name TEXT PRIMARY KEY,
		value NUMERIC NOT NULL
	);

	CREATE TABLE IF NOT EXISTS conversations (
		id SERIAL PRIMARY KEY,
		user_id UUID NOT NULL,
		name TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id SERIAL PRIMARY KEY,
		conversation_id INT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		seq SERIAL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS usage (
		user_id UUID NOT NULL,
		month TEXT NOT NULL,
		used_credits NUMERIC NOT NULL DEFAULT 0,
		total_messages INT NOT NULL DEFAULT 0,
		total_docs INT NOT NULL DEFAULT 0,
		total_reports INT NOT NULL DEFAULT 0,
		PRIMARY KEY (user_id, month)
	);

	CREATE TABLE IF NOT EXISTS reports (
		id SERIAL PRIMARY KEY,
		user_id UUID NOT NULL,
		title TEXT NOT NULL,
		text TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS collections (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		collection_id INT NOT NULL REFERENCES collections(id) ON DELETE CASCADE,
		user_id UUID NOT NULL,
		file_name TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		error TEXT NOT NULL DEFAULT '',
		chars INT NOT NULL DEFAULT 0,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS chunks (
		id SERIAL PRIMARY KEY,
		collection_id INT NOT NULL,
		document_id UUID NOT NULL,
		document_file TEXT NOT NULL,
		content TEXT NOT NULL,
		embedding vector(768)
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_collection ON chunks(collection_id);

	CREATE TABLE IF NOT EXISTS categories (
		id SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS announcements (
		id SERIAL PRIMARY KEY,
		category_id INT NOT NULL DEFAULT 0,
		title TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS prompts (
		id SERIAL PRIMARY KEY,
		kind TEXT NOT NULL,
		key TEXT NOT NULL,
		text TEXT NOT NULL,
		UNIQUE (kind, key)
	);

	CREATE TABLE IF NOT EXISTS questions (
		id SERIAL PRIMARY KEY,
		category_id INT NOT NULL DEFAULT 0,
		level TEXT NOT NULL,
		text TEXT NOT NULL
	);`

	if _, err := c.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	slog.Info("✅ Database schema is ready!")
	return nil
}
