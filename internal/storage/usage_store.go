package storage

import (
	"context"
	"fmt"
	"time"

	"omnichat/internal/models"

	"github.com/google/uuid"
)

// RecordUsage appends one immutable usage record. There is deliberately no
// update or delete counterpart.
func (s *Store) RecordUsage(ctx context.Context, rec *models.UsageRecord) error {
	if rec == nil {
		return fmt.Errorf("%w: usage record is required", models.ErrValidation)
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, user_id, conversation_id, vendor, model, prompt_tokens, completion_tokens, total_tokens, cost_usd, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserID, rec.ConversationID, rec.Vendor, rec.Model,
		rec.PromptTokens, rec.CompletionTokens, rec.TotalTokens, rec.CostUSD, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// ListUsage returns a user's usage records, newest first.
func (s *Store) ListUsage(ctx context.Context, userID int64, limit int) ([]models.UsageRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, conversation_id, vendor, model, prompt_tokens, completion_tokens, total_tokens, cost_usd, created_at
		 FROM usage_records WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list usage: %w", err)
	}
	defer rows.Close()

	var records []models.UsageRecord
	for rows.Next() {
		var rec models.UsageRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.ConversationID, &rec.Vendor, &rec.Model,
			&rec.PromptTokens, &rec.CompletionTokens, &rec.TotalTokens, &rec.CostUSD, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan usage record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
