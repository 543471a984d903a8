package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/illegalcall/mentora/internal/config"
	"github.com/illegalcall/mentora/internal/models"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// Message is one turn handed to the chat model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to the Gemini API over plain HTTP.
type Client struct {
	apiKey         string
	chatModel      string
	embeddingModel string
	baseURL        string
	httpClient     *http.Client

	// Optional overrides for testing/mocking
	chatFunc  func(ctx context.Context, messages []Message) (string, error)
	embedFunc func(ctx context.Context, text string) ([]float32, error)
}

// NewClient creates a Gemini client from config. The API key must be set.
func NewClient(cfg *config.GeminiConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini API key is not set")
	}
	return &Client{
		apiKey:         cfg.APIKey,
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		baseURL:        defaultBaseURL,
		httpClient:     &http.Client{},
	}, nil
}

// NewClientWithBaseURL is used by tests to point the client at a local server.
func NewClientWithBaseURL(apiKey, chatModel, embeddingModel, baseURL string) *Client {
	return &Client{
		apiKey:         apiKey,
		chatModel:      chatModel,
		embeddingModel: embeddingModel,
		baseURL:        baseURL,
		httpClient:     &http.Client{},
	}
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

type embedRequest struct {
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Chat sends the ordered message list to the chat model and returns the
// reply text. A leading system message becomes the model's system
// instruction; assistant turns map to the "model" role.
func (c *Client) Chat(ctx context.Context, messages []Message) (string, error) {
	if c.chatFunc != nil {
		return c.chatFunc(ctx, messages)
	}
	if len(messages) == 0 {
		return "", errors.New("no messages to send")
	}

	var req generateRequest
	for _, m := range messages {
		switch m.Role {
		case models.RoleSystem:
			req.SystemInstruction = &content{Parts: []part{{Text: m.Content}}}
		case models.RoleAssistant:
			req.Contents = append(req.Contents, content{Role: "model", Parts: []part{{Text: m.Content}}})
		default:
			req.Contents = append(req.Contents, content{Role: "user", Parts: []part{{Text: m.Content}}})
		}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.chatModel, c.apiKey)

	var resp generateResponse
	if err := c.post(ctx, url, req, &resp); err != nil {
		return "", err
	}

	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", errors.New("no response generated")
	}

	var reply strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		reply.WriteString(p.Text)
	}
	return strings.TrimSpace(reply.String()), nil
}

// Embed returns the embedding vector for the given text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.embedFunc != nil {
		return c.embedFunc(ctx, text)
	}

	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.baseURL, c.embeddingModel, c.apiKey)
	req := embedRequest{Content: content{Parts: []part{{Text: text}}}}

	var resp embedResponse
	if err := c.post(ctx, url, req, &resp); err != nil {
		return nil, err
	}

	if len(resp.Embedding.Values) == 0 {
		return nil, errors.New("no embedding data received")
	}
	return resp.Embedding.Values, nil
}

// post marshals the request, sends it, and decodes the response. Non-200
// bodies are passed through verbatim so callers can classify provider
// errors (rate limits in particular).
func (c *Client) post(ctx context.Context, url string, reqBody, respBody interface{}) error {
	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(respBody); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
