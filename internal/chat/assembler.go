package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/illegalcall/mentora/internal/credits"
	"github.com/illegalcall/mentora/internal/llm"
	"github.com/illegalcall/mentora/internal/models"
	"github.com/illegalcall/mentora/internal/vector"
)

// topK is how many passages ground a collection-backed reply.
const topK = 3

var (
	// ErrRateLimited is surfaced when the LLM provider reports a rate limit.
	// The turn is not retried; nothing has been persisted when it fires.
	ErrRateLimited = errors.New("llm rate limit exceeded")
	// ErrNoAnswer means grounded chat retrieved zero passages. Grounded mode
	// never falls back to ungrounded chat.
	ErrNoAnswer = errors.New("no answer found in collection")
)

// LLM is the chat-completion collaborator.
type LLM interface {
	Chat(ctx context.Context, messages []llm.Message) (string, error)
}

// Retriever fetches ranked passages from a named collection.
type Retriever interface {
	Retrieve(ctx context.Context, collectionID int, query string, k int) ([]vector.Passage, error)
}

// Ledger gates and charges billable operations.
type Ledger interface {
	Check(ctx context.Context, userID string, units int, opts credits.CheckOptions) error
	Debit(ctx context.Context, userID string, units int, kind string) (float64, error)
}

// HistoryStore reads and appends conversation turns.
type HistoryStore interface {
	Messages(ctx context.Context, conversationID int) ([]models.Message, error)
	Append(ctx context.Context, conversationID int, turns ...models.Message) error
}

// PromptStore resolves the user's knowledge level and its system prompt.
type PromptStore interface {
	UserLevel(ctx context.Context, userID string) (string, error)
	LevelPrompt(ctx context.Context, level string) (string, error)
}

// UsageRecorder bumps the monthly message counter.
type UsageRecorder interface {
	AddMessage(ctx context.Context, userID string) error
}

// Assembler builds the ordered message list for a chat turn, runs the LLM
// round-trip, and folds the exchange back into persisted state.
type Assembler struct {
	llm       LLM
	retriever Retriever
	ledger    Ledger
	history   HistoryStore
	prompts   PromptStore
	usage     UsageRecorder
}

func NewAssembler(l LLM, r Retriever, ledger Ledger, h HistoryStore, p PromptStore, u UsageRecorder) *Assembler {
	return &Assembler{llm: l, retriever: r, ledger: ledger, history: h, prompts: p, usage: u}
}

// SendInput describes one chat turn. CollectionID zero means plain chat;
// non-zero grounds the reply in that collection.
type SendInput struct {
	UserID         string
	ConversationID int
	Message        string
	CollectionID   int
}

// Send runs one chat turn. Failure before the LLM call leaves no side
// effects. Failure after it (persistence, counters, debits) is reported to
// the caller even though the reply was produced; this window is accepted
// rather than papered over with retries, keeping the external call
// at-most-once.
func (a *Assembler) Send(ctx context.Context, in SendInput) (string, error) {
	grounded := in.CollectionID != 0

	if err := a.ledger.Check(ctx, in.UserID, len(in.Message), credits.CheckOptions{IncludeSearch: grounded}); err != nil {
		return "", err
	}

	level, err := a.prompts.UserLevel(ctx, in.UserID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve user level: %w", err)
	}
	systemPrompt, err := a.prompts.LevelPrompt(ctx, level)
	if err != nil {
		return "", fmt.Errorf("failed to resolve system prompt: %w", err)
	}

	history, err := a.history.Messages(ctx, in.ConversationID)
	if err != nil {
		return "", fmt.Errorf("failed to load history: %w", err)
	}

	// The prompt content sent to the model; for grounded chat this is the
	// context-wrapped query, while the persisted turn keeps the raw message.
	promptContent := in.Message
	if grounded {
		promptContent, err = a.groundMessage(ctx, in, history)
		if err != nil {
			return "", err
		}
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: models.RoleSystem, Content: systemPrompt})
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: promptContent})

	reply, err := a.llm.Chat(ctx, messages)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "rate_limit_exceeded") {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", fmt.Errorf("failed to process message: %w", err)
	}

	// The system prompt exists only for this call; stored history holds
	// user and assistant turns exclusively.
	err = a.history.Append(ctx, in.ConversationID,
		models.Message{Role: models.RoleUser, Content: in.Message},
		models.Message{Role: models.RoleAssistant, Content: reply},
	)
	if err != nil {
		return "", fmt.Errorf("failed to persist turns: %w", err)
	}

	if err := a.usage.AddMessage(ctx, in.UserID); err != nil {
		return "", fmt.Errorf("failed to record usage: %w", err)
	}

	if _, err := a.ledger.Debit(ctx, in.UserID, len(in.Message), models.PriceChatInput); err != nil {
		return "", fmt.Errorf("failed to charge input: %w", err)
	}
	if _, err := a.ledger.Debit(ctx, in.UserID, len(reply), models.PriceChatOutput); err != nil {
		return "", fmt.Errorf("failed to charge output: %w", err)
	}

	return reply, nil
}

// groundMessage rewrites the message into a standalone query, retrieves
// passages from the collection and wraps everything into the final prompt.
// Zero passages abort with ErrNoAnswer before any LLM chat call is made.
func (a *Assembler) groundMessage(ctx context.Context, in SendInput, history []models.Message) (string, error) {
	query := in.Message
	if len(history) > 0 {
		rewritten, err := a.rewriteQuery(ctx, in.Message, history)
		if err != nil {
			return "", fmt.Errorf("failed to rewrite query: %w", err)
		}
		query = rewritten
	}

	passages, err := a.retriever.Retrieve(ctx, in.CollectionID, query, topK)
	if err != nil {
		return "", fmt.Errorf("failed to retrieve context: %w", err)
	}
	if len(passages) == 0 {
		return "", ErrNoAnswer
	}

	if _, err := a.ledger.Debit(ctx, in.UserID, 0, models.PriceSearch); err != nil {
		return "", fmt.Errorf("failed to charge search: %w", err)
	}

	return contextPrompt(passages, query), nil
}

// rewriteQuery makes follow-up questions resolve their own referents by
// asking the model for a context-free rephrasing seeded with prior history.
func (a *Assembler) rewriteQuery(ctx context.Context, message string, history []models.Message) (string, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	for _, m := range history {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: models.RoleUser, Content: rewritePrompt(message)})

	rewritten, err := a.llm.Chat(ctx, messages)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "rate_limit_exceeded") {
			return "", fmt.Errorf("%w: %v", ErrRateLimited, err)
		}
		return "", err
	}
	return strings.TrimSpace(rewritten), nil
}
