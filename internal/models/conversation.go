package models

import "time"

// DefaultTitle is the placeholder given to a conversation on creation. The
// title synthesizer only ever replaces this exact value.
const DefaultTitle = "New Conversation"

// Conversation groups the messages of one chat thread. The orchestrator
// mutates title, generating flag and timestamps; it never deletes rows.
type Conversation struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	Title        string    `json:"title"`
	Vendor       Vendor    `json:"vendor"`
	ModelID      string    `json:"model_id"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
	Generating   bool      `json:"generating"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
