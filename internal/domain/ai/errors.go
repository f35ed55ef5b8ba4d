package ai

import "errors"

var (
	// ErrQuotaExceeded indicates the AI provider returned a quota/limit error (HTTP 429 or similar).
	ErrQuotaExceeded = errors.New("ai quota exceeded")
	// ErrEmptyCompletion means the provider answered without any choices or content.
	ErrEmptyCompletion = errors.New("ai returned empty completion")
)
