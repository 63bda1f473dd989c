// pkg/sql/executor/errors.go
package executor

import "github.com/cockroachdb/errors"

// Error kinds surfaced by the window operator. Callers match them with
// errors.Is.
var (
	// ErrUnsupportedBoundary reports an unreachable frame boundary kind,
	// e.g. UNBOUNDED FOLLOWING as a frame start.
	ErrUnsupportedBoundary = errors.New("unsupported window boundary")
	// ErrUnsupportedWindowFunction reports a window function variant the
	// dispatch does not know.
	ErrUnsupportedWindowFunction = errors.New("unsupported window function")
	// ErrInvalidWindowBoundary reports a computed frame bound that is
	// negative after clamping, or a negative boundary offset.
	ErrInvalidWindowBoundary = errors.New("invalid window boundary")
	// ErrInternal reports a broken invariant; callers cannot recover.
	ErrInternal = errors.New("internal error")
)
