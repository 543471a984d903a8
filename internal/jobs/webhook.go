package jobs

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"
)

// WebhookClient notifies an external endpoint about ingestion stage changes.
type WebhookClient interface {
	Send(url string, data interface{}) error
}

// HTTPWebhookClient posts stage updates as JSON.
type HTTPWebhookClient struct {
	client *http.Client
}

func (c *HTTPWebhookClient) Send(url string, data interface{}) error {
	if c.client == nil {
		c.client = &http.Client{Timeout: 10 * time.Second}
	}

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook data: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}
	return nil
}

// noopWebhookClient is used when webhooks are disabled.
type noopWebhookClient struct{}

func (c *noopWebhookClient) Send(url string, data interface{}) error { return nil }

// MockWebhookClient records calls for tests.
type MockWebhookClient struct {
	Calls []WebhookCall
	mu    sync.Mutex
}

type WebhookCall struct {
	URL  string
	Data interface{}
}

func (m *MockWebhookClient) Send(url string, data interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, WebhookCall{URL: url, Data: data})
	return nil
}
