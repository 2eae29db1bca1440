package models

import "errors"

// Error kinds surfaced by the registry core. Callers match with errors.Is;
// the transport layer maps each kind to a distinct status code.
var (
	// ErrInvalidSchema indicates a malformed input schema (missing name,
	// nested metadata). Non-retryable; the caller must fix the input.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrInvalidQuery indicates malformed query parameters. Non-retryable.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrEmbedding indicates embedding computation failed (empty text,
	// model unavailable).
	ErrEmbedding = errors.New("embedding failed")
	// ErrStore indicates a collection operation failed. Not-found on
	// optional lookups (delete of a missing id) is a no-op, not ErrStore.
	ErrStore = errors.New("store operation failed")
	// ErrNotFound indicates a required lookup found no entry.
	ErrNotFound = errors.New("not found")
)
