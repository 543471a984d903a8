package models

import "time"

// Report holds a generated title and text, produced by one LLM call over a
// prompt plus the supplied document texts.
type Report struct {
	ID        int       `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Title     string    `json:"title" db:"title"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// NewReportRequest is the body for POST /api/reports. DocumentIDs name
// ready documents whose extracted text seeds the report.
type NewReportRequest struct {
	Title       string   `json:"title"`
	PromptType  string   `json:"prompt_type"`
	DocumentIDs []string `json:"document_ids"`
}
