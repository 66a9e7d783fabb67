package credentials

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"omnichat/internal/config"
	"omnichat/internal/models"
	"omnichat/internal/storage"

	"golang.org/x/sync/errgroup"
)

// BatchConcurrency bounds how many probes run at once during batch
// validation.
const BatchConcurrency = 5

// Service is the credential store: it seals secrets at rest, probes vendors
// for liveness and tracks validation status in the database.
type Service struct {
	store  *storage.Store
	cipher *secretCipher
	client *http.Client
	cfg    *config.Config
}

// NewService builds the service; the encryption key comes from the
// OMNICHAT_SECRET_KEY environment variable.
func NewService(store *storage.Store, cfg *config.Config) (*Service, error) {
	cipher, err := newSecretCipherFromEnv()
	if err != nil {
		return nil, fmt.Errorf("init secret cipher: %w", err)
	}
	return &Service{
		store:  store,
		cipher: cipher,
		client: &http.Client{Timeout: ProbeTimeout},
		cfg:    cfg,
	}, nil
}

// Encrypt seals a secret for storage.
func (s *Service) Encrypt(plain string) (string, error) {
	return s.cipher.Encrypt(plain)
}

// Decrypt opens a stored secret blob.
func (s *Service) Decrypt(blob string) (string, error) {
	return s.cipher.Decrypt(blob)
}

// Save encrypts and stores a credential, resetting its status to pending.
func (s *Service) Save(ctx context.Context, userID int64, vendor models.Vendor, secret, defaultModel string, customModels []string) error {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return fmt.Errorf("%w: secret is required", models.ErrValidation)
	}
	blob, err := s.cipher.Encrypt(secret)
	if err != nil {
		return fmt.Errorf("encrypt secret: %w", err)
	}
	return s.store.UpsertCredential(ctx, &models.ProviderCredential{
		UserID:       userID,
		Vendor:       vendor,
		SecretEnc:    blob,
		Enabled:      true,
		DefaultModel: defaultModel,
		CustomModels: customModels,
	})
}

// Secret returns the decrypted secret for a user/vendor pair. A missing or
// disabled credential is an auth error, not a lookup error: the caller was
// about to spend vendor money with it.
func (s *Service) Secret(ctx context.Context, userID int64, vendor models.Vendor) (string, error) {
	cred, err := s.store.GetCredential(ctx, userID, vendor)
	if err != nil {
		return "", fmt.Errorf("%w: no credential for %s", models.ErrAuth, vendor)
	}
	if !cred.Enabled {
		return "", fmt.Errorf("%w: credential for %s is disabled", models.ErrAuth, vendor)
	}
	secret, err := s.cipher.Decrypt(cred.SecretEnc)
	if err != nil {
		return "", fmt.Errorf("%w: credential for %s cannot be decrypted", models.ErrAuth, vendor)
	}
	return secret, nil
}

// MaskedList returns the user's credentials with secrets redacted for
// display.
func (s *Service) MaskedList(ctx context.Context, userID int64) ([]MaskedCredential, error) {
	creds, err := s.store.ListCredentials(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make([]MaskedCredential, 0, len(creds))
	for _, cred := range creds {
		masked := "********"
		if secret, err := s.cipher.Decrypt(cred.SecretEnc); err == nil {
			masked = Mask(secret)
		}
		out = append(out, MaskedCredential{
			Vendor:          cred.Vendor,
			Secret:          masked,
			Enabled:         cred.Enabled,
			Status:          cred.Status,
			LastValidatedAt: cred.LastValidatedAt,
			DefaultModel:    cred.DefaultModel,
			CustomModels:    cred.CustomModels,
		})
	}
	return out, nil
}

// MaskedCredential is the display form of a stored credential.
type MaskedCredential struct {
	Vendor          models.Vendor           `json:"vendor"`
	Secret          string                  `json:"secret"`
	Enabled         bool                    `json:"enabled"`
	Status          models.ValidationStatus `json:"status"`
	LastValidatedAt *time.Time              `json:"last_validated_at,omitempty"`
	DefaultModel    string                  `json:"default_model,omitempty"`
	CustomModels    []string                `json:"custom_models,omitempty"`
}

// Validate runs the vendor's liveness probe against a secret. Probe failures
// resolve to a typed result; they never surface as errors.
func (s *Service) Validate(ctx context.Context, vendor models.Vendor, secret string) ProbeResult {
	probe, ok := probers[vendor]
	if !ok {
		return ProbeResult{
			Vendor: vendor,
			Status: StatusError,
			Error:  fmt.Sprintf("validation not implemented for vendor %s", vendor),
		}
	}
	probeCtx, cancel := context.WithTimeout(ctx, ProbeTimeout)
	defer cancel()

	start := time.Now()
	result := probe(probeCtx, s.client, s.cfg.BaseURL(string(vendor)), secret)
	result.ResponseTimeMs = time.Since(start).Milliseconds()
	return result
}

// ValidateStored validates the user's stored credential and persists the
// outcome. Only this path moves a credential out of pending.
func (s *Service) ValidateStored(ctx context.Context, userID int64, vendor models.Vendor) (ProbeResult, error) {
	secret, err := s.Secret(ctx, userID, vendor)
	if err != nil {
		return ProbeResult{}, err
	}
	result := s.Validate(ctx, vendor, secret)

	status := models.ValidationInvalid
	if result.Valid {
		status = models.ValidationValid
	} else if result.Status != StatusInvalid {
		// Timeouts and vendor errors prove nothing about the key.
		status = models.ValidationPending
	}
	if err := s.store.SetValidationStatus(ctx, userID, vendor, status); err != nil {
		return result, err
	}
	return result, nil
}

// BatchItem is one entry of a batch validation request.
type BatchItem struct {
	Vendor models.Vendor `json:"vendor"`
	Secret string        `json:"secret"`
}

// BatchSummary aggregates a batch validation run.
type BatchSummary struct {
	Total             int   `json:"total"`
	Valid             int   `json:"valid"`
	Invalid           int   `json:"invalid"`
	AvgResponseTimeMs int64 `json:"avg_response_time_ms"`
}

// ValidateBatch probes a list of credentials with at most BatchConcurrency
// probes in flight at any instant.
func (s *Service) ValidateBatch(ctx context.Context, items []BatchItem) ([]ProbeResult, BatchSummary) {
	results := make([]ProbeResult, len(items))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(BatchConcurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i] = s.Validate(gctx, item.Vendor, item.Secret)
			return nil
		})
	}
	// Probes never return errors; Wait only joins the goroutines.
	_ = g.Wait()

	summary := BatchSummary{Total: len(items)}
	var totalMs int64
	for _, r := range results {
		if r.Valid {
			summary.Valid++
		} else {
			summary.Invalid++
		}
		totalMs += r.ResponseTimeMs
	}
	if len(results) > 0 {
		summary.AvgResponseTimeMs = totalMs / int64(len(results))
	}
	return results, summary
}
