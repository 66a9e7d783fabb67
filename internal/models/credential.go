package models

import "time"

// ValidationStatus tracks the last explicit validation outcome of a stored
// credential. It only changes as the result of a validation call.
type ValidationStatus string

const (
	ValidationPending ValidationStatus = "pending"
	ValidationValid   ValidationStatus = "valid"
	ValidationInvalid ValidationStatus = "invalid"
)

// ProviderCredential is a per-user per-vendor secret. The secret is stored as
// an AES-GCM blob and never leaves the credential service in clear form.
type ProviderCredential struct {
	ID              int64            `json:"id"`
	UserID          int64            `json:"user_id"`
	Vendor          Vendor           `json:"vendor"`
	SecretEnc       string           `json:"-"`
	Enabled         bool             `json:"enabled"`
	Status          ValidationStatus `json:"status"`
	LastValidatedAt *time.Time       `json:"last_validated_at,omitempty"`
	DefaultModel    string           `json:"default_model,omitempty"`
	CustomModels    []string         `json:"custom_models,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
