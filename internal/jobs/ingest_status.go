package jobs

import (
	"fmt"
	"sync"
	"time"
)

// IngestStage is the current stage of a document ingestion job as seen by
// the worker process. The coarse pending/ready/failed state lives on the
// documents row; stages here are finer-grained and in-memory only.
type IngestStage string

const (
	// StageQueued means the job was consumed from Kafka and is waiting to run
	StageQueued IngestStage = "queued"
	// StageExtracting means text extraction from the stored file is in progress
	StageExtracting IngestStage = "extracting"
	// StageEmbedding means chunks are being embedded and upserted
	StageEmbedding IngestStage = "embedding"
	// StageReady means the document is fully ingested and searchable
	StageReady IngestStage = "ready"
	// StageFailed means ingestion failed; the error is recorded on the update
	StageFailed IngestStage = "failed"
)

// IngestMetrics aggregates counters across all documents this worker has seen.
type IngestMetrics struct {
	TotalCount              int   `json:"totalCount"`
	SuccessCount            int   `json:"successCount"`
	FailureCount            int   `json:"failureCount"`
	TotalProcessingTimeMs   int64 `json:"totalProcessingTimeMs"`
	AverageProcessingTimeMs int64 `json:"averageProcessingTimeMs"`
}

// IngestStatusUpdate is one stage transition of one document.
type IngestStatusUpdate struct {
	DocumentID string      `json:"documentID"`
	Stage      IngestStage `json:"stage"`
	Error      string      `json:"error,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}

// IngestTrackerConfig holds configuration for the tracker.
type IngestTrackerConfig struct {
	// WebhookURL is notified on every stage change when WebhookEnabled is set.
	WebhookURL     string
	WebhookEnabled bool
}

// IngestTracker tracks stage transitions of ingestion jobs, maintains
// metrics, and fans updates out to subscribers and an optional webhook.
type IngestTracker struct {
	statuses    map[string]IngestStatusUpdate
	started     map[string]time.Time
	webhook     WebhookClient
	metrics     IngestMetrics
	config      IngestTrackerConfig
	subscribers []chan<- IngestStatusUpdate
	mu          sync.RWMutex
}

func NewIngestTracker(config IngestTrackerConfig) *IngestTracker {
	var webhook WebhookClient
	if config.WebhookEnabled {
		webhook = &HTTPWebhookClient{}
	} else {
		webhook = &noopWebhookClient{}
	}

	return &IngestTracker{
		statuses: make(map[string]IngestStatusUpdate),
		started:  make(map[string]time.Time),
		webhook:  webhook,
		config:   config,
	}
}

// SetStage records a stage transition for a document.
func (t *IngestTracker) SetStage(documentID string, stage IngestStage, cause error) {
	t.mu.Lock()

	update := IngestStatusUpdate{
		DocumentID: documentID,
		Stage:      stage,
		Timestamp:  time.Now(),
	}
	if cause != nil {
		update.Error = cause.Error()
	}

	if _, seen := t.started[documentID]; !seen {
		t.started[documentID] = update.Timestamp
		t.metrics.TotalCount++
	}

	switch stage {
	case StageReady:
		t.metrics.SuccessCount++
		elapsed := update.Timestamp.Sub(t.started[documentID]).Milliseconds()
		t.metrics.TotalProcessingTimeMs += elapsed
		t.metrics.AverageProcessingTimeMs = t.metrics.TotalProcessingTimeMs / int64(t.metrics.SuccessCount)
	case StageFailed:
		t.metrics.FailureCount++
	}

	t.statuses[documentID] = update

	subscribers := make([]chan<- IngestStatusUpdate, len(t.subscribers))
	copy(subscribers, t.subscribers)

	t.mu.Unlock()

	if t.config.WebhookEnabled && t.config.WebhookURL != "" {
		go func() {
			_ = t.webhook.Send(t.config.WebhookURL, update)
		}()
	}

	for _, ch := range subscribers {
		select {
		case ch <- update:
		default:
			// Subscriber not ready; drop rather than block the worker.
		}
	}
}

// Status returns the last recorded update for a document.
func (t *IngestTracker) Status(documentID string) (IngestStatusUpdate, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	status, exists := t.statuses[documentID]
	if !exists {
		return IngestStatusUpdate{}, fmt.Errorf("no status found for document %s", documentID)
	}
	return status, nil
}

// Metrics returns a snapshot of the aggregate counters.
func (t *IngestTracker) Metrics() IngestMetrics {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.metrics
}

// Subscribe adds a channel that receives every stage transition.
func (t *IngestTracker) Subscribe(ch chan<- IngestStatusUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.subscribers = append(t.subscribers, ch)
}

// Unsubscribe removes a previously subscribed channel.
func (t *IngestTracker) Unsubscribe(ch chan<- IngestStatusUpdate) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i, subscriber := range t.subscribers {
		if subscriber == ch {
			t.subscribers = append(t.subscribers[:i], t.subscribers[i+1:]...)
			return
		}
	}
}
