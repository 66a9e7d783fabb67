package models

import "errors"

// Error taxonomy shared across the core. Callers classify with errors.Is and
// map to transport codes at the API boundary.
var (
	// ErrValidation marks malformed input caught before any vendor call.
	ErrValidation = errors.New("validation error")

	// ErrAuth marks a missing, invalid or expired credential.
	ErrAuth = errors.New("auth error")

	// ErrProvider marks a vendor 4xx/5xx not otherwise classified.
	ErrProvider = errors.New("provider error")

	// ErrTimeout marks a probe or stream that exceeded its bound.
	ErrTimeout = errors.New("timeout")

	// ErrCancelled marks a user-initiated cancellation.
	ErrCancelled = errors.New("cancelled")

	// ErrUnsupportedCapability marks an attachment/model mismatch.
	ErrUnsupportedCapability = errors.New("unsupported capability")

	// ErrNotFound marks an unknown model, conversation or message.
	ErrNotFound = errors.New("not found")

	// ErrModelNotFound is returned by the catalog for unknown model ids.
	ErrModelNotFound = errors.New("model not found")

	// ErrGenerationConflict is returned when a generation is requested on a
	// conversation that is already generating.
	ErrGenerationConflict = errors.New("generation already in progress")

	// ErrDecryption is returned when a credential blob is malformed or was
	// sealed with a different key.
	ErrDecryption = errors.New("invalid credential ciphertext")
)

// ErrorKind maps a taxonomy error to the short name persisted on a failed
// message. Unclassified errors degrade to "provider".
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrCancelled):
		return "cancelled"
	case errors.Is(err, ErrUnsupportedCapability):
		return "unsupported_capability"
	case errors.Is(err, ErrModelNotFound), errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "provider"
	}
}
