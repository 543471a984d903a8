package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// Result represents the outcome of a job execution
type Result struct {
	// Data contains the job result data
	Data interface{} `json:"data"`
	// Metadata contains additional information about the result
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// JobHandlerFunc defines the signature for job handler functions
type JobHandlerFunc func(ctx context.Context, payload []byte) (Result, error)

// IngestDocumentPayload is the Kafka payload for document ingestion jobs.
type IngestDocumentPayload struct {
	// DocumentID is the UUID of the documents row created at upload time
	DocumentID string `json:"documentID"`
	// CollectionID names the vector collection the chunks belong to
	CollectionID int `json:"collectionID"`
	// UserID is the uploader; ingestion is billed against their balance
	UserID string `json:"userID"`
	// FileName is kept on every chunk so grounded answers can cite it
	FileName string `json:"fileName"`
	// Path is where the API stored the uploaded payload on shared storage
	Path string `json:"path"`
}

// Validate checks if the IngestDocumentPayload is valid
func (p *IngestDocumentPayload) Validate() error {
	if p.DocumentID == "" {
		return errors.New("documentID is required")
	}
	if p.CollectionID <= 0 {
		return errors.New("collectionID must be positive")
	}
	if p.UserID == "" {
		return errors.New("userID is required")
	}
	if p.Path == "" {
		return errors.New("path is required")
	}
	return nil
}

// ValidateWithGJSON performs payload validation without unmarshalling.
func ValidateWithGJSON(payload []byte) error {
	if !gjson.ValidBytes(payload) {
		return errors.New("invalid JSON payload")
	}

	data := gjson.ParseBytes(payload)

	requiredFields := []string{"documentID", "collectionID", "userID", "path"}
	for _, field := range requiredFields {
		if !data.Get(field).Exists() {
			return fmt.Errorf("missing required field: %s", field)
		}
	}

	if data.Get("documentID").String() == "" {
		return errors.New("documentID must not be empty")
	}
	if data.Get("collectionID").Int() <= 0 {
		return errors.New("collectionID must be positive")
	}
	if data.Get("userID").String() == "" {
		return errors.New("userID must not be empty")
	}
	if data.Get("path").String() == "" {
		return errors.New("path must not be empty")
	}

	return nil
}
