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

// upsertCredentialQuery picks the upsert form the driver understands: mysql
// has no ON CONFLICT clause and wants ON DUPLICATE KEY UPDATE instead.
func upsertCredentialQuery(driver string) string {
	if driver == "mysql" {
		return `INSERT INTO provider_credentials (user_id, vendor, secret_enc, enabled, status, default_model, custom_models, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON DUPLICATE KEY UPDATE
		   secret_enc = VALUES(secret_enc),
		   enabled = VALUES(enabled),
		   status = VALUES(status),
		   default_model = VALUES(default_model),
		   custom_models = VALUES(custom_models),
		   updated_at = VALUES(updated_at)`
	}
	return `INSERT INTO provider_credentials (user_id, vendor, secret_enc, enabled, status, default_model, custom_models, created_at, updated_at)
	 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	 ON CONFLICT(user_id, vendor) DO UPDATE SET
	   secret_enc = excluded.secret_enc,
	   enabled = excluded.enabled,
	   status = excluded.status,
	   default_model = excluded.default_model,
	   custom_models = excluded.custom_models,
	   updated_at = excluded.updated_at`
}

// UpsertCredential stores or replaces the encrypted secret for a user/vendor
// pair. A replaced secret resets the validation status to pending.
func (s *Store) UpsertCredential(ctx context.Context, cred *models.ProviderCredential) error {
	if cred == nil || cred.UserID <= 0 {
		return fmt.Errorf("%w: user_id is required", models.ErrValidation)
	}
	if cred.SecretEnc == "" {
		return fmt.Errorf("%w: secret is required", models.ErrValidation)
	}
	var customModels sql.NullString
	if len(cred.CustomModels) > 0 {
		data, err := json.Marshal(cred.CustomModels)
		if err != nil {
			return fmt.Errorf("encode custom models: %w", err)
		}
		customModels = sql.NullString{String: string(data), Valid: true}
	}
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, upsertCredentialQuery(s.driver),
		cred.UserID, cred.Vendor, cred.SecretEnc, cred.Enabled, models.ValidationPending,
		cred.DefaultModel, customModels, now, now,
	)
	if err != nil {
		return fmt.Errorf("store credential: %w", err)
	}
	return nil
}

// GetCredential returns the stored credential for a user/vendor pair.
func (s *Store) GetCredential(ctx context.Context, userID int64, vendor models.Vendor) (*models.ProviderCredential, error) {
	var cred models.ProviderCredential
	var enabled int
	var lastValidated sql.NullTime
	var customModels sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, vendor, secret_enc, enabled, status, last_validated_at, default_model, custom_models, created_at, updated_at
		 FROM provider_credentials WHERE user_id = ? AND vendor = ?`,
		userID, vendor,
	).Scan(&cred.ID, &cred.UserID, &cred.Vendor, &cred.SecretEnc, &enabled, &cred.Status,
		&lastValidated, &cred.DefaultModel, &customModels, &cred.CreatedAt, &cred.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: credential for %s", models.ErrNotFound, vendor)
		}
		return nil, fmt.Errorf("get credential: %w", err)
	}
	cred.Enabled = enabled != 0
	if lastValidated.Valid {
		t := lastValidated.Time
		cred.LastValidatedAt = &t
	}
	if customModels.Valid && customModels.String != "" {
		if err := json.Unmarshal([]byte(customModels.String), &cred.CustomModels); err != nil {
			return nil, fmt.Errorf("decode custom models: %w", err)
		}
	}
	return &cred, nil
}

// ListCredentials returns all credentials stored for a user.
func (s *Store) ListCredentials(ctx context.Context, userID int64) ([]*models.ProviderCredential, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, vendor, secret_enc, enabled, status, last_validated_at, default_model, custom_models, created_at, updated_at
		 FROM provider_credentials WHERE user_id = ? ORDER BY vendor ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.ProviderCredential
	for rows.Next() {
		cred := new(models.ProviderCredential)
		var enabled int
		var lastValidated sql.NullTime
		var customModels sql.NullString
		if err := rows.Scan(&cred.ID, &cred.UserID, &cred.Vendor, &cred.SecretEnc, &enabled, &cred.Status,
			&lastValidated, &cred.DefaultModel, &customModels, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		cred.Enabled = enabled != 0
		if lastValidated.Valid {
			t := lastValidated.Time
			cred.LastValidatedAt = &t
		}
		if customModels.Valid && customModels.String != "" {
			if err := json.Unmarshal([]byte(customModels.String), &cred.CustomModels); err != nil {
				return nil, fmt.Errorf("decode custom models: %w", err)
			}
		}
		creds = append(creds, cred)
	}
	return creds, rows.Err()
}

// SetValidationStatus records the outcome of an explicit validation call.
// Nothing else ever moves a credential out of pending.
func (s *Store) SetValidationStatus(ctx context.Context, userID int64, vendor models.Vendor, status models.ValidationStatus) error {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE provider_credentials SET status = ?, last_validated_at = ?, updated_at = ? WHERE user_id = ? AND vendor = ?`,
		status, now, now, userID, vendor,
	)
	if err != nil {
		return fmt.Errorf("set validation status: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: credential for %s", models.ErrNotFound, vendor)
	}
	return nil
}

// DeleteCredential removes the stored secret for a user/vendor pair.
func (s *Store) DeleteCredential(ctx context.Context, userID int64, vendor models.Vendor) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM provider_credentials WHERE user_id = ? AND vendor = ?`,
		userID, vendor,
	)
	if err != nil {
		return fmt.Errorf("delete credential: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("%w: credential for %s", models.ErrNotFound, vendor)
	}
	return nil
}
