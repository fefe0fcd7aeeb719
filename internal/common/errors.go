package common

import "errors"

// Sentinel errors shared across client and server layers. Callers should
// match them with errors.Is.
var (
	// Crypto errors. These are never retried automatically.
	ErrInvalidKeyLength     = errors.New("invalid key length")
	ErrAuthenticationFailed = errors.New("authentication failed")
	ErrChunkIDMismatch      = errors.New("chunk id mismatch")
	ErrSignatureMismatch    = errors.New("signature mismatch")
	ErrMetadataTooLarge     = errors.New("metadata too large")
	ErrInvalidState         = errors.New("invalid state")

	// Directory / session errors.
	ErrNotFound                = errors.New("not found")
	ErrOwnershipMismatch       = errors.New("ownership mismatch")
	ErrFolderHasNoPhysicalFile = errors.New("folder has no physical file")
	ErrRangeNotSatisfiable     = errors.New("range not satisfiable")
	ErrMissingFileData         = errors.New("physical file missing for handle")

	// Transfer errors.
	ErrRateLimited      = errors.New("rate limited")
	ErrUploadIncomplete = errors.New("upload incomplete")
	ErrQuotaExceeded    = errors.New("storage quota exceeded")

	// ErrCancelled is a terminal outcome, not a failure. Progress reporting
	// keeps it distinct from errors so a user-initiated cancellation is not
	// presented as one.
	ErrCancelled = errors.New("cancelled")

	// Auth errors.
	ErrInvalidToken = errors.New("invalid token")
	ErrUnauthorized = errors.New("unauthorized")
)
