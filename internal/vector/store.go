package vector

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/pgvector/pgvector-go"
)

// Chunk is one embedded passage of a document.
type Chunk struct {
	CollectionID int
	DocumentID   string
	DocumentFile string
	Content      string
	Embedding    []float32
}

// Passage is a retrieval result. Score is the cosine distance reported by
// pgvector; smaller means closer.
type Passage struct {
	DocumentID   string  `db:"document_id"`
	DocumentFile string  `db:"document_file"`
	Content      string  `db:"content"`
	Score        float64 `db:"score"`
}

// Store persists and searches document chunks in the chunks table.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Add inserts one embedded chunk.
func (s *Store) Add(ctx context.Context, c Chunk) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chunks (collection_id, document_id, document_file, content, embedding)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.CollectionID, c.DocumentID, c.DocumentFile, c.Content, pgvector.NewVector(c.Embedding),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chunk: %w", err)
	}
	return nil
}

// Search returns the k nearest chunks of the collection by cosine distance.
func (s *Store) Search(ctx context.Context, collectionID int, query []float32, k int) ([]Passage, error) {
	var passages []Passage
	err := s.db.SelectContext(ctx, &passages,
		`SELECT document_id, document_file, content, embedding <=> $1 AS score
		 FROM chunks WHERE collection_id = $2
		 ORDER BY embedding <=> $1 LIMIT $3`,
		pgvector.NewVector(query), collectionID, k,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	return passages, nil
}

// DeleteByDocument removes all chunks of one document, used when a document
// is deleted or re-ingested.
func (s *Store) DeleteByDocument(ctx context.Context, documentID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID)
	if err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// Embedder produces a vector for a piece of text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever composes an Embedder with the Store so callers retrieve by
// query text rather than by vector.
type Retriever struct {
	store    *Store
	embedder Embedder
}

func NewRetriever(store *Store, embedder Embedder) *Retriever {
	return &Retriever{store: store, embedder: embedder}
}

func (r *Retriever) Retrieve(ctx context.Context, collectionID int, query string, k int) ([]Passage, error) {
	embedding, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	return r.store.Search(ctx, collectionID, embedding, k)
}
