package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/mentora/internal/models"
)

// Recorder maintains the per-user monthly counters. used_credits is written
// by the credits ledger; the counters here track operation counts.
type Recorder struct {
	db *sqlx.DB
}

func NewRecorder(db *sqlx.DB) *Recorder {
	return &Recorder{db: db}
}

func (r *Recorder) AddMessage(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, "total_messages")
}

func (r *Recorder) AddDocument(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, "total_docs")
}

func (r *Recorder) AddReport(ctx context.Context, userID string) error {
	return r.increment(ctx, userID, "total_reports")
}

func (r *Recorder) increment(ctx context.Context, userID, column string) error {
	// column is one of our own constants, never caller input.
	query := `INSERT INTO usage (user_id, month, ` + column + `) VALUES ($1, $2, 1)
	 ON CONFLICT (user_id, month) DO UPDATE SET ` + column + ` = usage.` + column + ` + 1`
	_, err := r.db.ExecContext(ctx, query, userID, currentMonth())
	return err
}

// Current returns this month's aggregate for the user, zeroed when the user
// has no activity yet.
func (r *Recorder) Current(ctx context.Context, userID string) (*models.Usage, error) {
	var u models.Usage
	err := r.db.GetContext(ctx, &u,
		`SELECT user_id, month, used_credits, total_messages, total_docs, total_reports
		 FROM usage WHERE user_id = $1 AND month = $2`,
		userID, currentMonth(),
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Usage{UserID: userID, Month: currentMonth()}, nil
		}
		return nil, err
	}
	return &u, nil
}

func currentMonth() string {
	return time.Now().Format("2006-01")
}
