package vector

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
)

func setupStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	assert.NoError(t, err)
	return NewStore(sqlx.NewDb(mockDB, "sqlmock")), mock
}

func TestStoreAdd(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(`INSERT INTO chunks`).
		WithArgs(3, "doc-123", "notes.txt", "bonds pay coupons", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.Add(context.Background(), Chunk{
		CollectionID: 3,
		DocumentID:   "doc-123",
		DocumentFile: "notes.txt",
		Content:      "bonds pay coupons",
		Embedding:    []float32{0.1, 0.2, 0.3},
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreSearch(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectQuery(`SELECT document_id, document_file, content`).
		WithArgs(sqlmock.AnyArg(), 3, 2).
		WillReturnRows(sqlmock.NewRows(
			[]string{"document_id", "document_file", "content", "score"}).
			AddRow("doc-1", "a.txt", "closest passage", 0.12).
			AddRow("doc-2", "b.txt", "second passage", 0.31))

	passages, err := store.Search(context.Background(), 3, []float32{0.1, 0.2, 0.3}, 2)
	assert.NoError(t, err)
	assert.Len(t, passages, 2)
	assert.Equal(t, "closest passage", passages[0].Content)
	assert.Equal(t, "a.txt", passages[0].DocumentFile)
	assert.Equal(t, 0.12, passages[0].Score)
}

func TestStoreDeleteByDocument(t *testing.T) {
	store, mock := setupStore(t)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM chunks WHERE document_id = $1`)).
		WithArgs("doc-123").
		WillReturnResult(sqlmock.NewResult(0, 4))

	err := store.DeleteByDocument(context.Background(), "doc-123")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

type staticEmbedder struct {
	embedding []float32
	err       error
	texts     []string
}

func (s *staticEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.texts = append(s.texts, text)
	return s.embedding, s.err
}

func TestRetrieverEmbedsQuery(t *testing.T) {
	store, mock := setupStore(t)
	embedder := &staticEmbedder{embedding: []float32{0.5, 0.5}}
	retriever := NewRetriever(store, embedder)

	mock.ExpectQuery(`SELECT document_id, document_file, content`).
		WithArgs(sqlmock.AnyArg(), 3, 3).
		WillReturnRows(sqlmock.NewRows(
			[]string{"document_id", "document_file", "content", "score"}).
			AddRow("doc-1", "a.txt", "passage", 0.2))

	passages, err := retriever.Retrieve(context.Background(), 3, "what is a bond?", 3)
	assert.NoError(t, err)
	assert.Len(t, passages, 1)
	assert.Equal(t, []string{"what is a bond?"}, embedder.texts)
}

func TestRetrieverEmbedFailure(t *testing.T) {
	store, _ := setupStore(t)
	embedder := &staticEmbedder{err: errors.New("embedding unavailable")}
	retriever := NewRetriever(store, embedder)

	_, err := retriever.Retrieve(context.Background(), 3, "query", 3)
	assert.Error(t, err)
}
