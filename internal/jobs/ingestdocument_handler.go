package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/illegalcall/mentora/internal/models"
	"github.com/illegalcall/mentora/internal/vector"
	"github.com/illegalcall/mentora/pkg/database"
)

// Ledger is the slice of the credits ledger the worker needs.
type Ledger interface {
	Debit(ctx context.Context, userID string, units int, kind string) (float64, error)
}

// UsageRecorder bumps the monthly document counter.
type UsageRecorder interface {
	AddDocument(ctx context.Context, userID string) error
}

// ReadDocument loads the stored upload as text. A variable so tests can
// substitute content without touching the filesystem.
var ReadDocument = readDocumentImpl

func readDocumentImpl(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return string(content), nil
}

// IngestHandler turns an uploaded document into searchable chunks: extract
// text, chunk, embed, upsert vectors, then settle billing and counters.
type IngestHandler struct {
	db       *database.Clients
	store    *vector.Store
	embedder vector.Embedder
	ledger   Ledger
	usage    UsageRecorder
	tracker  *IngestTracker
}

func NewIngestHandler(db *database.Clients, store *vector.Store, embedder vector.Embedder, ledger Ledger, usage UsageRecorder, tracker *IngestTracker) *IngestHandler {
	return &IngestHandler{
		db:       db,
		store:    store,
		embedder: embedder,
		ledger:   ledger,
		usage:    usage,
		tracker:  tracker,
	}
}

// Handle processes one ingestion job. The document row moves pending →
// ready, or pending → failed with the cause recorded; a failed debit after
// embedding rolls the chunks back so unpaid documents are never searchable.
func (h *IngestHandler) Handle(ctx context.Context, payload []byte) (Result, error) {
	if err := ValidateWithGJSON(payload); err != nil {
		return Result{}, err
	}

	var p IngestDocumentPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return Result{}, fmt.Errorf("failed to unmarshal payload: %w", err)
	}
	if err := p.Validate(); err != nil {
		return Result{}, err
	}

	h.tracker.SetStage(p.DocumentID, StageExtracting, nil)
	h.setRedisStatus(ctx, p.DocumentID, string(StageExtracting))

	text, err := ReadDocument(p.Path)
	if err != nil {
		return Result{}, h.fail(ctx, p.DocumentID, err)
	}

	chunks := ChunkText(text)
	if len(chunks) == 0 {
		return Result{}, h.fail(ctx, p.DocumentID, fmt.Errorf("document %s contains no text", p.DocumentID))
	}

	h.tracker.SetStage(p.DocumentID, StageEmbedding, nil)
	h.setRedisStatus(ctx, p.DocumentID, string(StageEmbedding))

	for _, chunk := range chunks {
		embedding, err := h.embedder.Embed(ctx, chunk)
		if err != nil {
			return Result{}, h.fail(ctx, p.DocumentID, fmt.Errorf("failed to embed chunk: %w", err))
		}
		err = h.store.Add(ctx, vector.Chunk{
			CollectionID: p.CollectionID,
			DocumentID:   p.DocumentID,
			DocumentFile: p.FileName,
			Content:      chunk,
			Embedding:    embedding,
		})
		if err != nil {
			return Result{}, h.fail(ctx, p.DocumentID, err)
		}
	}

	if _, err := h.ledger.Debit(ctx, p.UserID, len(text), models.PriceDocument); err != nil {
		// Unpaid chunks must not serve grounded answers.
		if delErr := h.store.DeleteByDocument(ctx, p.DocumentID); delErr != nil {
			slog.Error("Failed to roll back chunks", "error", delErr, "document_id", p.DocumentID)
		}
		return Result{}, h.fail(ctx, p.DocumentID, err)
	}

	if err := h.usage.AddDocument(ctx, p.UserID); err != nil {
		slog.Error("Failed to record document usage", "error", err, "user_id", p.UserID)
	}

	_, err = h.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1, chars = $2 WHERE id = $3`,
		models.DocStatusReady, len(text), p.DocumentID,
	)
	if err != nil {
		return Result{}, h.fail(ctx, p.DocumentID, err)
	}

	h.tracker.SetStage(p.DocumentID, StageReady, nil)
	h.setRedisStatus(ctx, p.DocumentID, models.DocStatusReady)

	return Result{
		Data: map[string]interface{}{
			"documentID": p.DocumentID,
			"chunks":     len(chunks),
		},
	}, nil
}

// fail marks the document failed everywhere and returns the original cause.
func (h *IngestHandler) fail(ctx context.Context, documentID string, cause error) error {
	h.tracker.SetStage(documentID, StageFailed, cause)
	h.setRedisStatus(ctx, documentID, models.DocStatusFailed)

	_, err := h.db.DB.ExecContext(ctx,
		`UPDATE documents SET status = $1, error = $2 WHERE id = $3`,
		models.DocStatusFailed, cause.Error(), documentID,
	)
	if err != nil {
		slog.Error("Failed to mark document failed", "error", err, "document_id", documentID)
	}
	return cause
}

func (h *IngestHandler) setRedisStatus(ctx context.Context, documentID, status string) {
	key := fmt.Sprintf("doc:%s", documentID)
	if err := h.db.Redis.Set(ctx, key, status, 0).Err(); err != nil {
		slog.Error("Failed to set document status in Redis", "error", err, "document_id", documentID)
	}
}
