package models

import "time"

// Message roles as stored in the messages table and sent to the LLM.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Conversation belongs to exactly one user. Its turns live in the messages
// table, one row per turn, ordered by seq.
type Conversation struct {
	ID        int       `json:"id" db:"id"`
	UserID    string    `json:"user_id" db:"user_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Message is a single turn of a conversation. Seq is assigned by the
// database so concurrent appends never clobber each other.
type Message struct {
	ID             int       `json:"id" db:"id"`
	ConversationID int       `json:"conversation_id" db:"conversation_id"`
	Seq            int       `json:"seq" db:"seq"`
	Role           string    `json:"role" db:"role"`
	Content        string    `json:"content" db:"content"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// SendMessageRequest is the body for POST /api/conversations/:id/messages.
// Collection is optional; when set the reply is grounded in that collection.
type SendMessageRequest struct {
	Message    string `json:"message"`
	Collection string `json:"collection,omitempty"`
}

// SendMessageResponse carries the assistant reply for a chat turn.
type SendMessageResponse struct {
	ConversationID int    `json:"conversation_id"`
	Reply          string `json:"reply"`
}

// NewConversationRequest is the body for POST /api/conversations
type NewConversationRequest struct {
	Name    string `json:"name"`
	Message string `json:"message,omitempty"`
}

// RenameConversationRequest is the body for PATCH /api/conversations/:id
type RenameConversationRequest struct {
	Name string `json:"name"`
}
