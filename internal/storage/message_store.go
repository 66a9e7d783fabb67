package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"omnichat/internal/models"
)

func marshalJSON(v any) (sql.NullString, error) {
	switch x := v.(type) {
	case []models.ToolInvocation:
		if len(x) == 0 {
			return sql.NullString{}, nil
		}
	case []models.Attachment:
		if len(x) == 0 {
			return sql.NullString{}, nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// GetMessages returns the conversation's messages in creation order.
func (s *Store) GetMessages(ctx context.Context, conversationID int64) ([]*models.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, conversation_id, user_id, role, content, reasoning, tool_calls, attachments,
		        vendor, model, prompt_tokens, completion_tokens, total_tokens,
		        finish_reason, error_kind, error_message, created_at
		 FROM messages WHERE conversation_id = ? ORDER BY created_at ASC, id ASC`,
		conversationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []*models.Message
	for rows.Next() {
		m := new(models.Message)
		var toolCalls, attachments sql.NullString
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.Reasoning,
			&toolCalls, &attachments, &m.Vendor, &m.Model,
			&m.Usage.PromptTokens, &m.Usage.CompletionTokens, &m.Usage.TotalTokens,
			&m.FinishReason, &m.ErrorKind, &m.ErrorMessage, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if toolCalls.Valid && toolCalls.String != "" {
			if err := json.Unmarshal([]byte(toolCalls.String), &m.ToolCalls); err != nil {
				return nil, fmt.Errorf("decode tool calls: %w", err)
			}
		}
		if attachments.Valid && attachments.String != "" {
			if err := json.Unmarshal([]byte(attachments.String), &m.Attachments); err != nil {
				return nil, fmt.Errorf("decode attachments: %w", err)
			}
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

// AppendUserMessage persists the user's turn, including attachment
// descriptors, and touches the conversation timestamp.
func (s *Store) AppendUserMessage(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg == nil || msg.ConversationID <= 0 {
		return nil, fmt.Errorf("%w: conversation_id is required", models.ErrValidation)
	}
	attachments, err := marshalJSON(msg.Attachments)
	if err != nil {
		return nil, fmt.Errorf("encode attachments: %w", err)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, reasoning, attachments, vendor, model, created_at)
		 VALUES (?, ?, ?, ?, '', ?, '', '', ?)`,
		msg.ConversationID, msg.UserID, models.RoleUser, msg.Content, attachments, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `UPDATE conversations SET updated_at = ? WHERE id = ?`, now, msg.ConversationID); err != nil {
		return nil, fmt.Errorf("touch conversation: %w", err)
	}
	out := *msg
	out.ID = id
	out.Role = models.RoleUser
	out.CreatedAt = now
	return &out, nil
}

// CreateAssistantMessage inserts the empty assistant row that a streaming
// generation mutates in place until finalized.
func (s *Store) CreateAssistantMessage(ctx context.Context, conversationID, userID int64, vendor models.Vendor, model string) (*models.Message, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, reasoning, vendor, model, created_at)
		 VALUES (?, ?, ?, '', '', ?, ?, ?)`,
		conversationID, userID, models.RoleAssistant, vendor, model, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert assistant message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("message id: %w", err)
	}
	return &models.Message{
		ID:             id,
		ConversationID: conversationID,
		UserID:         userID,
		Role:           models.RoleAssistant,
		Vendor:         vendor,
		Model:          model,
		CreatedAt:      now,
	}, nil
}

// UpsertAssistantMessage overwrites the assistant row by id. Writing the same
// snapshot twice is a no-op, which keeps per-chunk persistence idempotent.
func (s *Store) UpsertAssistantMessage(ctx context.Context, msg *models.Message) error {
	if msg == nil || msg.ID <= 0 {
		return fmt.Errorf("%w: message id is required", models.ErrValidation)
	}
	toolCalls, err := marshalJSON(msg.ToolCalls)
	if err != nil {
		return fmt.Errorf("encode tool calls: %w", err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE messages SET content = ?, reasoning = ?, tool_calls = ?,
		        prompt_tokens = ?, completion_tokens = ?, total_tokens = ?,
		        finish_reason = ?, error_kind = ?, error_message = ?
		 WHERE id = ?`,
		msg.Content, msg.Reasoning, toolCalls,
		msg.Usage.PromptTokens, msg.Usage.CompletionTokens, msg.Usage.TotalTokens,
		msg.FinishReason, msg.ErrorKind, msg.ErrorMessage,
		msg.ID,
	)
	if err != nil {
		return fmt.Errorf("update assistant message: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		// The row may exist and simply carry identical values already; only
		// report missing rows when they are truly absent.
		var exists bool
		if err := s.db.QueryRowContext(ctx,
			`SELECT EXISTS(SELECT 1 FROM messages WHERE id = ?)`, msg.ID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("verify message: %w", err)
		}
		if !exists {
			return fmt.Errorf("%w: message %d", models.ErrNotFound, msg.ID)
		}
	}
	return nil
}

// CountAssistantMessages reports how many assistant turns the conversation
// already holds, used to gate title synthesis to the first turn.
func (s *Store) CountAssistantMessages(ctx context.Context, conversationID int64) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM messages WHERE conversation_id = ? AND role = ?`,
		conversationID, models.RoleAssistant,
	).Scan(&count)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count assistant messages: %w", err)
	}
	return count, nil
}
