package engram

import (
	"errors"
	"fmt"

	"github.com/hupe1980/engram/hnsw"
	"github.com/hupe1980/engram/mnemo"
)

var (
	// ErrNotFound is returned when the requested record does not exist or
	// has been deleted.
	ErrNotFound = errors.New("record not found")

	// ErrClosed is returned by operations on a closed handle.
	ErrClosed = errors.New("database is closed")

	// ErrNoEmbedder is returned by text operations when no embedder was
	// configured at open time.
	ErrNoEmbedder = errors.New("no embedder configured")

	// ErrInvalidLimit is returned when a recall limit is not positive.
	ErrInvalidLimit = errors.New("limit must be positive")

	// ErrNonFiniteVector is returned when a vector contains NaN or Inf
	// components. Such vectors have no usable distance to anything.
	ErrNonFiniteVector = errors.New("vector contains NaN or Inf")
)

// DimensionMismatchError indicates a vector whose length does not match the
// configured dimension.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type DimensionMismatchError struct {
	Expected int
	Actual   int
	cause    error
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error { return e.cause }

// LogCorruptError indicates damage in the middle of the append log. Replay
// cannot be trusted past the damage, so open is refused. Only a torn final
// frame is recoverable; everything else is this error.
//
// The frame-level error can be accessed via errors.Unwrap.
type LogCorruptError struct {
	Path  string
	cause error
}

func (e *LogCorruptError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("corrupt log: %v", e.cause)
	}
	return fmt.Sprintf("corrupt log %s: %v", e.Path, e.cause)
}

func (e *LogCorruptError) Unwrap() error { return e.cause }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	// Argument normalization.
	var dm *hnsw.DimensionMismatchError
	if errors.As(err, &dm) {
		return &DimensionMismatchError{Expected: dm.Expected, Actual: dm.Actual, cause: err}
	}
	if errors.Is(err, hnsw.ErrInvalidK) {
		return fmt.Errorf("%w: %w", ErrInvalidLimit, err)
	}

	// Corruption unification.
	var cf *mnemo.CorruptFrameError
	if errors.As(err, &cf) {
		var lc *LogCorruptError
		if !errors.As(err, &lc) {
			return &LogCorruptError{cause: err}
		}
	}

	return err
}
