package pattern

import "errors"

// Domain errors for the pattern package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, pattern.ErrIndexOutOfRange) {
//	    // surface to the user as a rejected service call
//	}
var (
	// ErrIndexOutOfRange is returned when a learned-pattern index is outside
	// the learned-only view's bounds.
	ErrIndexOutOfRange = errors.New("pattern: index out of range")

	// ErrProtectedPattern is returned when a caller attempts to delete or
	// rewrite a built-in pattern.
	ErrProtectedPattern = errors.New("pattern: built-in patterns cannot be modified")

	// ErrPatternNotFound is returned when a pattern ID does not exist in the store.
	ErrPatternNotFound = errors.New("pattern: not found")

	// ErrStorageCorrupt indicates the persisted learned-pattern blob could not
	// be decoded. The store recovers by falling back to built-ins only; this
	// error is logged, never surfaced to callers of Load.
	ErrStorageCorrupt = errors.New("pattern: persisted patterns corrupt")

	// ErrInvalidRole is returned when a role value is not recognised.
	ErrInvalidRole = errors.New("pattern: invalid role")

	// ErrInvalidBrand is returned when a brand key is empty.
	ErrInvalidBrand = errors.New("pattern: invalid brand")

	// ErrNoSignificantTokens is returned when a novel mapping yields no
	// brand-significant tokens to synthesise a pattern from.
	ErrNoSignificantTokens = errors.New("pattern: no brand-significant tokens")
)
