package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"omnichat/internal/models"
)

// CreateRule stores a reusable prompt fragment for the user.
func (s *Store) CreateRule(ctx context.Context, rule *models.Rule) (*models.Rule, error) {
	if rule == nil || rule.UserID <= 0 {
		return nil, fmt.Errorf("%w: user_id is required", models.ErrValidation)
	}
	name := strings.TrimSpace(rule.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: rule name is required", models.ErrValidation)
	}
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO rules (user_id, name, content, always_apply, created_at) VALUES (?, ?, ?, ?, ?)`,
		rule.UserID, name, rule.Content, rule.AlwaysApply, now,
	)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("rule id: %w", err)
	}
	out := *rule
	out.ID = id
	out.Name = name
	out.CreatedAt = now
	return &out, nil
}

// ListRules returns all rules for a user.
func (s *Store) ListRules(ctx context.Context, userID int64) ([]models.Rule, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, name, content, always_apply, created_at FROM rules WHERE user_id = ? ORDER BY name ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.Rule
	for rows.Next() {
		var r models.Rule
		var always int
		if err := rows.Scan(&r.ID, &r.UserID, &r.Name, &r.Content, &always, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		r.AlwaysApply = always != 0
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// DeleteRule removes a user's rule by name.
func (s *Store) DeleteRule(ctx context.Context, userID int64, name string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rules WHERE user_id = ? AND name = ?`,
		userID, strings.TrimSpace(name),
	)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: rule %q", models.ErrNotFound, name)
	}
	return nil
}
