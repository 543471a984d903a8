package models

import "time"

// Category groups announcements and predefined questions.
type Category struct {
	ID        int       `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Announcement is shown to all users.
type Announcement struct {
	ID         int       `json:"id" db:"id"`
	CategoryID int       `json:"category_id" db:"category_id"`
	Title      string    `json:"title" db:"title"`
	Body       string    `json:"body" db:"body"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Prompt maps a key to prompt text. Kind is either "level" (system prompts
// keyed by knowledge level) or "report" (report templates keyed by type).
type Prompt struct {
	ID   int    `json:"id" db:"id"`
	Kind string `json:"kind" db:"kind"`
	Key  string `json:"key" db:"key"`
	Text string `json:"text" db:"text"`
}

const (
	PromptKindLevel  = "level"
	PromptKindReport = "report"
)

// Question is a predefined question surfaced to users of a matching level.
type Question struct {
	ID         int    `json:"id" db:"id"`
	CategoryID int    `json:"category_id" db:"category_id"`
	Level      string `json:"level" db:"level"`
	Text       string `json:"text" db:"text"`
}
