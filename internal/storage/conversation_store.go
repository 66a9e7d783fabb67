package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"omnichat/internal/models"
)

// CreateConversation inserts a new conversation with the default title and
// the generating flag cleared.
func (s *Store) CreateConversation(ctx context.Context, userID int64, vendor models.Vendor, modelID, systemPrompt string) (*models.Conversation, error) {
	if userID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", models.ErrValidation)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO conversations (user_id, title, vendor, model_id, system_prompt, generating, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
		userID, models.DefaultTitle, vendor, modelID, systemPrompt, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("conversation id: %w", err)
	}
	return &models.Conversation{
		ID:           id,
		UserID:       userID,
		Title:        models.DefaultTitle,
		Vendor:       vendor,
		ModelID:      modelID,
		SystemPrompt: systemPrompt,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// GetConversation returns one conversation owned by the user.
func (s *Store) GetConversation(ctx context.Context, userID, conversationID int64) (*models.Conversation, error) {
	var c models.Conversation
	var generating int
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, title, vendor, model_id, system_prompt, generating, created_at, updated_at
		 FROM conversations WHERE id = ? AND user_id = ?`,
		conversationID, userID,
	).Scan(&c.ID, &c.UserID, &c.Title, &c.Vendor, &c.ModelID, &c.SystemPrompt, &generating, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: conversation %d", models.ErrNotFound, conversationID)
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	c.Generating = generating != 0
	return &c, nil
}

// ListConversations returns all conversations for a user ordered by last activity.
func (s *Store) ListConversations(ctx context.Context, userID int64) ([]models.Conversation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, title, vendor, model_id, system_prompt, generating, created_at, updated_at
		 FROM conversations WHERE user_id = ? ORDER BY updated_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var conversations []models.Conversation
	for rows.Next() {
		var c models.Conversation
		var generating int
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Vendor, &c.ModelID, &c.SystemPrompt, &generating, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		c.Generating = generating != 0
		conversations = append(conversations, c)
	}
	return conversations, rows.Err()
}

// BeginGenerating flips the generating flag only if it is currently clear.
// Returns ErrGenerationConflict when another generation already holds it.
func (s *Store) BeginGenerating(ctx context.Context, conversationID int64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET generating = 1, updated_at = ? WHERE id = ? AND generating = 0`,
		time.Now().UTC(), conversationID,
	)
	if err != nil {
		return fmt.Errorf("begin generating: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("begin generating rows: %w", err)
	}
	if affected == 0 {
		return models.ErrGenerationConflict
	}
	return nil
}

// SetGenerating force-sets the generating flag. Used by the single cleanup
// path, so it must succeed regardless of current state.
func (s *Store) SetGenerating(ctx context.Context, conversationID int64, generating bool) error {
	val := 0
	if generating {
		val = 1
	}
	if _, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET generating = ?, updated_at = ? WHERE id = ?`,
		val, time.Now().UTC(), conversationID,
	); err != nil {
		return fmt.Errorf("set generating: %w", err)
	}
	return nil
}

// GetTitle returns just the current title of a conversation.
func (s *Store) GetTitle(ctx context.Context, conversationID int64) (string, error) {
	var title string
	err := s.db.QueryRowContext(ctx, `SELECT title FROM conversations WHERE id = ?`, conversationID).Scan(&title)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("%w: conversation %d", models.ErrNotFound, conversationID)
		}
		return "", fmt.Errorf("get title: %w", err)
	}
	return title, nil
}

// UpdateTitleIfDefault replaces the title only while it still carries the
// default placeholder, closing the race with a concurrent user rename.
func (s *Store) UpdateTitleIfDefault(ctx context.Context, conversationID int64, title string) (bool, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return false, fmt.Errorf("%w: title cannot be empty", models.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND title = ?`,
		title, time.Now().UTC(), conversationID, models.DefaultTitle,
	)
	if err != nil {
		return false, fmt.Errorf("update title: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("title rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateTitle sets a conversation title unconditionally (user rename path).
func (s *Store) UpdateTitle(ctx context.Context, userID, conversationID int64, title string) error {
	title = strings.TrimSpace(title)
	if title == "" {
		return fmt.Errorf("%w: title cannot be empty", models.ErrValidation)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE conversations SET title = ?, updated_at = ? WHERE id = ? AND user_id = ?`,
		title, time.Now().UTC(), conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("rename conversation: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: conversation %d", models.ErrNotFound, conversationID)
	}
	return nil
}
