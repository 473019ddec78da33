package domain

import "errors"

// Error taxonomy shared by the pipeline. Wrap with fmt.Errorf("...: %w", Err...)
// and test with errors.Is.
var (
	// ErrValidation marks a missing or invalid required payload field.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound marks an absent ticker, holding or portfolio.
	ErrNotFound = errors.New("not found")
	// ErrStore marks a persistence failure.
	ErrStore = errors.New("store failure")
	// ErrInsufficientData is returned by the risk engine when no priced holdings exist.
	ErrInsufficientData = errors.New("insufficient data")
)
