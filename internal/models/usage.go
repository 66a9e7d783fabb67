package models

import "time"

// UsageRecord is one immutable accounting row per completed generation.
// Records are only ever appended, never mutated or deleted.
type UsageRecord struct {
	ID               string    `json:"id"`
	UserID           int64     `json:"user_id"`
	ConversationID   int64     `json:"conversation_id"`
	Vendor           Vendor    `json:"vendor"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	CostUSD          float64   `json:"cost_usd"`
	CreatedAt        time.Time `json:"created_at"`
}
