package bioactivity

import (
	"errors"
	"fmt"
)

// Error taxonomy. Stages wrap these with fmt.Errorf("%w: ...") so callers
// can classify failures with errors.Is.
var (
	// ErrDataQuality reports missing mandatory fields or empty inputs.
	ErrDataQuality = errors.New("data quality error")

	// ErrConfiguration reports zero or ambiguous descriptor specifications and invalid settings.
	ErrConfiguration = errors.New("configuration error")

	// ErrExternalTool reports a failed fingerprint generator or an unreadable output artifact.
	ErrExternalTool = errors.New("external tool error")

	// ErrDataAlignment reports descriptor rows that do not line up with the manifest.
	ErrDataAlignment = errors.New("data alignment error")

	// ErrRowCountMismatch reports feature and target tables of different lengths.
	ErrRowCountMismatch = errors.New("row count mismatch")

	// ErrInsufficientData reports a degenerate (constant) target column.
	ErrInsufficientData = errors.New("insufficient data")

	// ErrRemoteService reports a training job in the error state or a failed remote call.
	ErrRemoteService = errors.New("remote service error")

	// ErrTimeoutIncomplete reports a poll budget exhausted before training finished.
	ErrTimeoutIncomplete = errors.New("training incomplete after poll budget")

	// ErrModelNotFound reports a model name unknown to the remote service.
	ErrModelNotFound = errors.New("model not found")

	// ErrModelNotReady reports a prediction attempted against a model that is not complete.
	ErrModelNotReady = errors.New("model not ready")
)

// RowCountMismatchError carries the two lengths that disagreed at assembly.
type RowCountMismatchError struct {
	Features int
	Targets  int
}

func (e *RowCountMismatchError) Error() string {
	return fmt.Sprintf("%s: %d descriptor rows vs %d target rows", ErrRowCountMismatch, e.Features, e.Targets)
}

// Is makes errors.Is(err, ErrRowCountMismatch) match.
func (e *RowCountMismatchError) Is(target error) bool {
	return target == ErrRowCountMismatch
}
