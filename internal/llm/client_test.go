package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/illegalcall/mentora/internal/models"
)

func TestChat(t *testing.T) {
	var captured generateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "chat-model:generateContent")
		assert.Equal(t, "test-key", r.URL.Query().Get("key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&captured))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{
					"parts": []map[string]string{{"text": "Hello "}, {"text": "there"}},
				}},
			},
		})
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-key", "chat-model", "embed-model", server.URL)

	reply, err := client.Chat(context.Background(), []Message{
		{Role: models.RoleSystem, Content: "You teach beginners."},
		{Role: models.RoleUser, Content: "what is a bond?"},
		{Role: models.RoleAssistant, Content: "a debt security"},
		{Role: models.RoleUser, Content: "who issues them?"},
	})
	assert.NoError(t, err)
	// Multi-part candidates concatenate and trim
	assert.Equal(t, "Hello there", reply)

	// The system turn becomes the system instruction, not a content entry
	assert.NotNil(t, captured.SystemInstruction)
	assert.Equal(t, "You teach beginners.", captured.SystemInstruction.Parts[0].Text)
	assert.Len(t, captured.Contents, 3)
	assert.Equal(t, "user", captured.Contents[0].Role)
	assert.Equal(t, "model", captured.Contents[1].Role)
	assert.Equal(t, "user", captured.Contents[2].Role)
}

func TestChatProviderErrorPassedThrough(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"status":"rate_limit_exceeded"}}`))
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-key", "chat-model", "embed-model", server.URL)

	_, err := client.Chat(context.Background(), []Message{
		{Role: models.RoleUser, Content: "hi"},
	})
	assert.Error(t, err)
	// The provider body survives verbatim so callers can classify it
	assert.Contains(t, err.Error(), "status 429")
	assert.Contains(t, err.Error(), "rate_limit_exceeded")
}

func TestChatEmptyCandidates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{"candidates": []interface{}{}})
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-key", "chat-model", "embed-model", server.URL)

	_, err := client.Chat(context.Background(), []Message{
		{Role: models.RoleUser, Content: "hi"},
	})
	assert.Error(t, err)
}

func TestEmbed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "embed-model:embedContent")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{
				"values": []float32{0.1, 0.2, 0.3},
			},
		})
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-key", "chat-model", "embed-model", server.URL)

	embedding, err := client.Embed(context.Background(), "bonds pay coupons")
	assert.NoError(t, err)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, embedding)
}

func TestEmbedEmptyResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": []float32{}},
		})
	}))
	defer server.Close()

	client := NewClientWithBaseURL("test-key", "chat-model", "embed-model", server.URL)

	_, err := client.Embed(context.Background(), "text")
	assert.Error(t, err)
}
