package models

import "time"

// Knowledge levels a user can self-assign. The level selects the system
// prompt used for chat and filters the predefined questions.
const (
	LevelBeginner     = "beginner"
	LevelIntermediate = "intermediate"
	LevelPro          = "pro"
)

// Profile represents a user profile in the system
type Profile struct {
	ID        string    `json:"id" db:"id"` // UUID that matches auth.users.id
	Credits   float64   `json:"credits" db:"credits"`
	Level     string    `json:"level" db:"level"`
	IsAdmin   bool      `json:"is_admin" db:"is_admin"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidLevel reports whether s is one of the supported knowledge levels.
func ValidLevel(s string) bool {
	switch s {
	case LevelBeginner, LevelIntermediate, LevelPro:
		return true
	}
	return false
}

// UpdateLevelRequest is the body for PATCH /api/profile/level
type UpdateLevelRequest struct {
	Level string `json:"level"`
}

// GrantCreditsRequest is the body for the admin credit grant endpoint
type GrantCreditsRequest struct {
	UserID string  `json:"user_id"`
	Amount float64 `json:"amount"`
}
