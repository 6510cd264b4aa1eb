package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound            = errors.New("entity not found")
	ErrUserNotFound        = errors.New("user not found")
	ErrPurchaseNotFound    = errors.New("purchase not found")
	ErrDocumentNotFound    = errors.New("document not found")
	ErrAlreadyExists       = errors.New("entity already exists")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidTransition   = errors.New("invalid purchase status transition")
	ErrProviderUnavailable = errors.New("payment provider unavailable")
	ErrGenerationFailed    = errors.New("document generation failed")
	ErrPromptTooLarge      = errors.New("prompt exceeds model context")
	ErrRateLimited         = errors.New("too many requests")
	ErrInvalidSignature    = errors.New("invalid webhook signature")
	ErrLocked              = errors.New("resource locked")

	// Infra errors surfaced by repositories
	ErrInvalidExecContext = errors.New("invalid execution context")
	ErrOperationFailed    = errors.New("operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
)

// Reason maps an error to the short machine-checkable code returned to callers.
// A nil error is "ok".
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientCredits):
		return "insufficient_credits"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	case errors.Is(err, ErrPurchaseNotFound):
		return "purchase_not_found"
	case errors.Is(err, ErrDocumentNotFound):
		return "document_not_found"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrPromptTooLarge):
		return "prompt_too_large"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrProviderUnavailable):
		return "provider_unavailable"
	case errors.Is(err, ErrGenerationFailed):
		return "generation_failed"
	case errors.Is(err, ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, ErrInvalidSignature):
		return "invalid_signature"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrLocked):
		return "locked"
	default:
		return "internal_error"
	}
}
