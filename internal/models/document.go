package models

import "time"

// Document ingestion states as stored on the documents row (and mirrored in
// Redis under doc:<id> while the worker runs).
const (
	DocStatusPending = "pending"
	DocStatusReady   = "ready"
	DocStatusFailed  = "failed"
)

// Document is one ingested file or text blob inside a collection.
type Document struct {
	ID           string    `json:"id" db:"id"` // UUID
	CollectionID int       `json:"collection_id" db:"collection_id"`
	UserID       string    `json:"user_id" db:"user_id"`
	FileName     string    `json:"file_name" db:"file_name"`
	Status       string    `json:"status" db:"status"`
	Error        string    `json:"error,omitempty" db:"error"`
	Chars        int       `json:"chars" db:"chars"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// Collection is a named partition of the vector store. A collection with an
// empty UserID is global and readable by everyone.
type Collection struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	UserID    string    `json:"user_id,omitempty" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewCollectionRequest is the body for the admin collection endpoint
type NewCollectionRequest struct {
	Name   string `json:"name"`
	UserID string `json:"user_id,omitempty"`
}
