package chat

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/illegalcall/mentora/internal/credits"
	"github.com/illegalcall/mentora/internal/llm"
	"github.com/illegalcall/mentora/internal/models"
	"github.com/illegalcall/mentora/internal/vector"
)

// fakeLLM returns canned replies and records every call it receives.
type fakeLLM struct {
	replies []string
	err     error
	calls   [][]llm.Message
}

func (f *fakeLLM) Chat(ctx context.Context, messages []llm.Message) (string, error) {
	f.calls = append(f.calls, messages)
	if f.err != nil {
		return "", f.err
	}
	reply := "default reply"
	if len(f.replies) > 0 {
		reply = f.replies[0]
		f.replies = f.replies[1:]
	}
	return reply, nil
}

type fakeRetriever struct {
	passages []vector.Passage
	err      error
	queries  []string
}

func (f *fakeRetriever) Retrieve(ctx context.Context, collectionID int, query string, k int) ([]vector.Passage, error) {
	f.queries = append(f.queries, query)
	return f.passages, f.err
}

type debitCall struct {
	units int
	kind  string
}

type fakeLedger struct {
	checkErr error
	debitErr error
	checks   []credits.CheckOptions
	debits   []debitCall
}

func (f *fakeLedger) Check(ctx context.Context, userID string, units int, opts credits.CheckOptions) error {
	f.checks = append(f.checks, opts)
	return f.checkErr
}

func (f *fakeLedger) Debit(ctx context.Context, userID string, units int, kind string) (float64, error) {
	if f.debitErr != nil {
		return 0, f.debitErr
	}
	f.debits = append(f.debits, debitCall{units: units, kind: kind})
	return 1, nil
}

type fakeHistory struct {
	messages []models.Message
	appended []models.Message
}

func (f *fakeHistory) Messages(ctx context.Context, conversationID int) ([]models.Message, error) {
	return f.messages, nil
}

func (f *fakeHistory) Append(ctx context.Context, conversationID int, turns ...models.Message) error {
	f.appended = append(f.appended, turns...)
	return nil
}

type fakePrompts struct {
	level  string
	prompt string
}

func (f *fakePrompts) UserLevel(ctx context.Context, userID string) (string, error) {
	return f.level, nil
}

func (f *fakePrompts) LevelPrompt(ctx context.Context, level string) (string, error) {
	return f.prompt, nil
}

type fakeUsage struct {
	messages int
}

func (f *fakeUsage) AddMessage(ctx context.Context, userID string) error {
	f.messages++
	return nil
}

type fixture struct {
	llm       *fakeLLM
	retriever *fakeRetriever
	ledger    *fakeLedger
	history   *fakeHistory
	prompts   *fakePrompts
	usage     *fakeUsage
	assembler *Assembler
}

func setupAssembler() *fixture {
	f := &fixture{
		llm:       &fakeLLM{},
		retriever: &fakeRetriever{},
		ledger:    &fakeLedger{},
		history:   &fakeHistory{},
		prompts:   &fakePrompts{level: models.LevelBeginner, prompt: "You teach beginners."},
		usage:     &fakeUsage{},
	}
	f.assembler = NewAssembler(f.llm, f.retriever, f.ledger, f.history, f.prompts, f.usage)
	return f
}

func TestSendPlainChat(t *testing.T) {
	f := setupAssembler()
	f.llm.replies = []string{"Hello there"}
	f.history.messages = []models.Message{
		{Role: models.RoleUser, Content: "earlier question"},
		{Role: models.RoleAssistant, Content: "earlier answer"},
	}

	reply, err := f.assembler.Send(context.Background(), SendInput{
		UserID:         "user-1",
		ConversationID: 7,
		Message:        "what is a bond?",
	})
	assert.NoError(t, err)
	assert.Equal(t, "Hello there", reply)

	// One LLM call: system prompt first, then history in order, query last.
	assert.Len(t, f.llm.calls, 1)
	msgs := f.llm.calls[0]
	assert.Len(t, msgs, 4)
	assert.Equal(t, models.RoleSystem, msgs[0].Role)
	assert.Equal(t, "You teach beginners.", msgs[0].Content)
	assert.Equal(t, "earlier question", msgs[1].Content)
	assert.Equal(t, "earlier answer", msgs[2].Content)
	assert.Equal(t, models.RoleUser, msgs[3].Role)
	assert.Equal(t, "what is a bond?", msgs[3].Content)

	// Both turns persisted, counter bumped, input and output debited.
	assert.Len(t, f.history.appended, 2)
	assert.Equal(t, "what is a bond?", f.history.appended[0].Content)
	assert.Equal(t, "Hello there", f.history.appended[1].Content)
	assert.Equal(t, 1, f.usage.messages)
	assert.Equal(t, []debitCall{
		{units: len("what is a bond?"), kind: models.PriceChatInput},
		{units: len("Hello there"), kind: models.PriceChatOutput},
	}, f.ledger.debits)
}

func TestSendInsufficientCredits(t *testing.T) {
	f := setupAssembler()
	f.ledger.checkErr = credits.ErrInsufficientCredits

	_, err := f.assembler.Send(context.Background(), SendInput{
		UserID: "user-1", ConversationID: 7, Message: "hi",
	})
	assert.ErrorIs(t, err, credits.ErrInsufficientCredits)

	// The gate fails before any model call or state change.
	assert.Empty(t, f.llm.calls)
	assert.Empty(t, f.history.appended)
	assert.Equal(t, 0, f.usage.messages)
	assert.Empty(t, f.ledger.debits)
}

func TestSendRateLimited(t *testing.T) {
	f := setupAssembler()
	f.llm.err = errors.New(`API request failed with status 429: {"code":"rate_limit_exceeded"}`)

	_, err := f.assembler.Send(context.Background(), SendInput{
		UserID: "user-1", ConversationID: 7, Message: "hi",
	})
	assert.ErrorIs(t, err, ErrRateLimited)

	// A rate-limited turn leaves history and balance untouched.
	assert.Empty(t, f.history.appended)
	assert.Empty(t, f.ledger.debits)
	assert.Equal(t, 0, f.usage.messages)
}

func TestSendGroundedFirstTurnSkipsRewrite(t *testing.T) {
	f := setupAssembler()
	f.llm.replies = []string{"Grounded answer"}
	f.retriever.passages = []vector.Passage{
		{DocumentFile: "notes.txt", Content: "bonds pay coupons"},
	}

	reply, err := f.assembler.Send(context.Background(), SendInput{
		UserID:         "user-1",
		ConversationID: 7,
		Message:        "what is a bond?",
		CollectionID:   3,
	})
	assert.NoError(t, err)
	assert.Equal(t, "Grounded answer", reply)

	// Empty history: the raw message goes straight to retrieval, with no
	// rewrite round-trip.
	assert.Equal(t, []string{"what is a bond?"}, f.retriever.queries)
	assert.Len(t, f.llm.calls, 1)

	// The model sees the context-wrapped prompt, the stored turn keeps the
	// raw message.
	prompt := f.llm.calls[0][len(f.llm.calls[0])-1].Content
	assert.Contains(t, prompt, "Context information is below.")
	assert.Contains(t, prompt, "notes.txt: bonds pay coupons")
	assert.Equal(t, "what is a bond?", f.history.appended[0].Content)

	// Flat search debit plus the usual input and output debits.
	assert.Equal(t, []debitCall{
		{units: 0, kind: models.PriceSearch},
		{units: len("what is a bond?"), kind: models.PriceChatInput},
		{units: len("Grounded answer"), kind: models.PriceChatOutput},
	}, f.ledger.debits)

	// The pre-check covered the search price.
	assert.Equal(t, []credits.CheckOptions{{IncludeSearch: true}}, f.ledger.checks)
}

func TestSendGroundedRewritesFollowUp(t *testing.T) {
	f := setupAssembler()
	f.llm.replies = []string{"what is a corporate bond?", "Grounded answer"}
	f.history.messages = []models.Message{
		{Role: models.RoleUser, Content: "tell me about corporate bonds"},
		{Role: models.RoleAssistant, Content: "they are debt securities"},
	}
	f.retriever.passages = []vector.Passage{
		{DocumentFile: "notes.txt", Content: "issued by companies"},
	}

	_, err := f.assembler.Send(context.Background(), SendInput{
		UserID:         "user-1",
		ConversationID: 7,
		Message:        "what are they exactly?",
		CollectionID:   3,
	})
	assert.NoError(t, err)

	// First LLM call rewrites, second answers; retrieval uses the rewrite.
	assert.Len(t, f.llm.calls, 2)
	rewriteReq := f.llm.calls[0][len(f.llm.calls[0])-1].Content
	assert.Contains(t, rewriteReq, "what are they exactly?")
	assert.Equal(t, []string{"what is a corporate bond?"}, f.retriever.queries)
}

func TestSendGroundedNoPassages(t *testing.T) {
	f := setupAssembler()
	f.retriever.passages = nil

	_, err := f.assembler.Send(context.Background(), SendInput{
		UserID:         "user-1",
		ConversationID: 7,
		Message:        "what is a bond?",
		CollectionID:   3,
	})
	assert.ErrorIs(t, err, ErrNoAnswer)

	// No chat completion, no persistence, no charge.
	assert.Empty(t, f.llm.calls)
	assert.Empty(t, f.history.appended)
	assert.Empty(t, f.ledger.debits)
}

func TestContextPrompt(t *testing.T) {
	got := contextPrompt([]vector.Passage{
		{DocumentFile: "a.txt", Content: "first passage"},
		{DocumentFile: "b.txt", Content: "second passage"},
	}, "the query")

	assert.True(t, strings.HasPrefix(got, "Context information is below.\n---------------------\n"))
	assert.Contains(t, got, "a.txt: first passage\n")
	assert.Contains(t, got, "b.txt: second passage\n")
	assert.True(t, strings.HasSuffix(got, "Query: the query\nAnswer:"))
}
