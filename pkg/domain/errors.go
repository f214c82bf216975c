package domain

import (
	"errors"
	"fmt"
)

// ErrModelNotFound is returned by stores when a model ID resolves to nothing.
var ErrModelNotFound = errors.New("model not found")

// ErrUnknownRankBy is returned when a ranking request names a criterion
// outside the supported set.
var ErrUnknownRankBy = errors.New("unknown ranking criterion")

// ValidationError reports a structural problem with caller-supplied data.
// Not retryable without different inputs.
type ValidationError struct {
	msg string
}

// NewValidationError builds a ValidationError with a formatted message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string { return e.msg }

// InsufficientOverlapError indicates that fewer than two individuals are
// present in both the genotype matrix and the phenotype map. Two is the
// minimum for any variance estimate.
type InsufficientOverlapError struct {
	Overlap int
}

func (e *InsufficientOverlapError) Error() string {
	return fmt.Sprintf("insufficient overlap between genotypes and phenotypes: found %d matches, need at least 2", e.Overlap)
}

// InvalidHeritabilityError indicates a heritability outside (0,1]. Rejected
// before any computation: zero heritability would divide by zero in the
// ridge parameter.
type InvalidHeritabilityError struct {
	Heritability float64
}

func (e *InvalidHeritabilityError) Error() string {
	return fmt.Sprintf("heritability %v outside (0,1]", e.Heritability)
}

// SingularSystemError indicates the ridge mixed-model equations could not be
// solved. Retrying with the same inputs cannot succeed; no partial artifact
// is persisted.
type SingularSystemError struct {
	Markers int
	Lambda  float64
}

func (e *SingularSystemError) Error() string {
	return fmt.Sprintf("singular system solving RR-BLUP equations (%d markers, lambda=%v)", e.Markers, e.Lambda)
}

// ColumnOrderMismatchError is the prediction-time safeguard raised when a
// model's marker count disagrees with the matrix it is applied to. The
// predictor never truncates or pads silently.
type ColumnOrderMismatchError struct {
	ModelMarkers int
	InputMarkers int
}

func (e *ColumnOrderMismatchError) Error() string {
	return fmt.Sprintf("model has %d marker effects but input matrix has %d columns", e.ModelMarkers, e.InputMarkers)
}
