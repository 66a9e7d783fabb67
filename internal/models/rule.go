package models

import "time"

// Rule is a user-authored reusable prompt fragment. Rules marked AlwaysApply
// join every generation; others join when mentioned as @name in a message.
type Rule struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Name        string    `json:"name"`
	Content     string    `json:"content"`
	AlwaysApply bool      `json:"always_apply"`
	CreatedAt   time.Time `json:"created_at"`
}
