package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/mentora/internal/models"
)

// ErrPromptNotFound means no system prompt is configured for a level; the
// chat turn fails rather than running unprompted.
var ErrPromptNotFound = errors.New("prompt not found")

// Store is the SQL-backed implementation of HistoryStore and PromptStore.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Messages returns the conversation's turns in chat order.
func (s *Store) Messages(ctx context.Context, conversationID int) ([]models.Message, error) {
	messages := []models.Message{}
	err := s.db.SelectContext(ctx, &messages,
		`SELECT id, conversation_id, seq, role, content, created_at
		 FROM messages WHERE conversation_id = $1 ORDER BY seq`,
		conversationID,
	)
	if err != nil {
		return nil, err
	}
	return messages, nil
}

// Append inserts turns one row each; seq is database-assigned so concurrent
// appends interleave instead of overwriting each other.
func (s *Store) Append(ctx context.Context, conversationID int, turns ...models.Message) error {
	for _, t := range turns {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO messages (conversation_id, role, content) VALUES ($1, $2, $3)`,
			conversationID, t.Role, t.Content,
		)
		if err != nil {
			return err
		}
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET updated_at = CURRENT_TIMESTAMP WHERE id = $1`,
		conversationID,
	)
	return err
}

func (s *Store) UserLevel(ctx context.Context, userID string) (string, error) {
	var level string
	err := s.db.GetContext(ctx, &level, `SELECT level FROM profiles WHERE id = $1`, userID)
	if err != nil {
		return "", err
	}
	return level, nil
}

func (s *Store) LevelPrompt(ctx context.Context, level string) (string, error) {
	var text string
	err := s.db.GetContext(ctx, &text,
		`SELECT text FROM prompts WHERE kind = $1 AND key = $2`,
		models.PromptKindLevel, level,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: level %s", ErrPromptNotFound, level)
		}
		return "", err
	}
	return text, nil
}
