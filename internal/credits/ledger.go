package credits

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/illegalcall/mentora/internal/models"
)

// Billing math: chat_input, chat_output and document prices are rates per
// 10000 units (a unit is one character of processed text); search is a flat
// per-call price. The pre-check reserves a nominal 1000 output units before
// the real reply size is known.
const (
	unitDivisor         = 10000
	reservedOutputUnits = 1000
)

var (
	// ErrInsufficientCredits is the business-rule failure (402-class); it is
	// distinct from infrastructure errors so handlers can map it.
	ErrInsufficientCredits = errors.New("not enough credits")
	// ErrPriceNotFound means the price table has no row for the requested kind.
	ErrPriceNotFound = errors.New("price not found")
	// ErrProfileNotFound means the user has no profile row.
	ErrProfileNotFound = errors.New("profile not found")
)

// Ledger gates billable operations on the stored balance and debits it.
type Ledger struct {
	db *sqlx.DB
}

func NewLedger(db *sqlx.DB) *Ledger {
	return &Ledger{db: db}
}

// CheckOptions selects the cost formula for a pre-check.
type CheckOptions struct {
	// IncludeSearch adds the flat retrieval price (grounded chat).
	IncludeSearch bool
	// Document switches to the document-ingestion formula.
	Document bool
}

// Check is the read-only affordability gate. It returns nil when the user
// can afford the operation, ErrInsufficientCredits when they cannot, and a
// wrapped infrastructure error when a lookup fails. No balance is changed.
func (l *Ledger) Check(ctx context.Context, userID string, units int, opts CheckOptions) error {
	cost, err := l.estimate(ctx, units, opts)
	if err != nil {
		return err
	}

	balance, err := l.Balance(ctx, userID)
	if err != nil {
		return err
	}

	if balance < cost {
		return ErrInsufficientCredits
	}
	return nil
}

// estimate computes the pre-check cost for an operation of the given size.
func (l *Ledger) estimate(ctx context.Context, units int, opts CheckOptions) (float64, error) {
	if opts.Document {
		docPrice, err := l.price(ctx, models.PriceDocument)
		if err != nil {
			return 0, err
		}
		return float64(units) * docPrice / unitDivisor, nil
	}

	inputPrice, err := l.price(ctx, models.PriceChatInput)
	if err != nil {
		return 0, err
	}
	outputPrice, err := l.price(ctx, models.PriceChatOutput)
	if err != nil {
		return 0, err
	}

	cost := float64(units)*inputPrice/unitDivisor + reservedOutputUnits*outputPrice/unitDivisor

	if opts.IncludeSearch {
		searchPrice, err := l.price(ctx, models.PriceSearch)
		if err != nil {
			return 0, err
		}
		cost += searchPrice
	}
	return cost, nil
}

// Debit converts consumed units into a deducted amount and applies it as a
// single conditional update, so concurrent debits can never race the balance
// below zero. The returned cost is what was actually charged.
func (l *Ledger) Debit(ctx context.Context, userID string, units int, kind string) (float64, error) {
	p, err := l.price(ctx, kind)
	if err != nil {
		return 0, err
	}

	cost := float64(units) * p / unitDivisor
	if kind == models.PriceSearch {
		cost = p // flat price per retrieval
	}

	res, err := l.db.ExecContext(ctx,
		`UPDATE profiles SET credits = credits - $1 WHERE id = $2 AND credits >= $1`,
		cost, userID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to decrease credits: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to decrease credits: %w", err)
	}
	if affected == 0 {
		// Distinguish a missing profile from an insufficient balance.
		if _, err := l.Balance(ctx, userID); err != nil {
			return 0, err
		}
		return 0, ErrInsufficientCredits
	}

	// Best-effort monthly aggregate; a failed counter update must not fail
	// an operation whose debit already went through.
	if err := l.recordUsedCredits(ctx, userID, cost); err != nil {
		slog.Error("Failed to record used credits", "error", err, "user_id", userID)
	}

	return cost, nil
}

// Balance returns the user's current credit balance.
func (l *Ledger) Balance(ctx context.Context, userID string) (float64, error) {
	var balance float64
	err := l.db.GetContext(ctx, &balance, `SELECT credits FROM profiles WHERE id = $1`, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrProfileNotFound
		}
		return 0, fmt.Errorf("failed to get credits: %w", err)
	}
	return balance, nil
}

func (l *Ledger) price(ctx context.Context, name string) (float64, error) {
	var value float64
	err := l.db.GetContext(ctx, &value, `SELECT value FROM prices WHERE name = $1`, name)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrPriceNotFound, name)
		}
		return 0, fmt.Errorf("failed to get price: %w", err)
	}
	return value, nil
}

func (l *Ledger) recordUsedCredits(ctx context.Context, userID string, cost float64) error {
	month := time.Now().Format("2006-01")
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage (user_id, month, used_credits) VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, month) DO UPDATE SET used_credits = usage.used_credits + $3`,
		userID, month, cost,
	)
	return err
}
