package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure, with no infrastructure dependency.

var (
	// Configuration errors are hard failures, never recovered locally.
	ErrConfigNotFound = errors.New("configuration file not found")
	ErrConfigInvalid  = errors.New("configuration subtree missing or malformed")

	// Classifier errors
	ErrClassifierUnavailable = errors.New("content classifier unavailable")
	ErrModelNotFound         = errors.New("classifier model not found")

	// Store errors
	ErrUserIDEmpty = errors.New("user id must not be empty")
)
