package waterfall

import "errors"

// Errors returned by the waterfall package. Errors fall into three classes
// with different handling contracts:
//
//   - configuration errors (gradient loading, invalid dimensions) are fatal
//     at construction time and New fails,
//   - input errors (oversized row, invalid window) reject the offending
//     input and leave the displayed frame unchanged,
//   - transient render errors abandon the current tick; the scheduler
//     retries the same logical state on the next tick.
var (
	// ErrGradientMissing indicates the gradient resource could not be opened.
	ErrGradientMissing = errors.New("waterfall: gradient resource missing")

	// ErrGradientTruncated indicates the gradient resource ended before
	// the declared number of entries was read.
	ErrGradientTruncated = errors.New("waterfall: gradient resource truncated")

	// ErrUnknownPreset indicates GradientPreset was given a name it does
	// not recognize.
	ErrUnknownPreset = errors.New("waterfall: unknown gradient preset")

	// ErrRowTooWide indicates PushRow was given more samples than the
	// strip has frequency bins. The row is dropped.
	ErrRowTooWide = errors.New("waterfall: sample row wider than strip")

	// ErrInvalidWindow indicates SetVisibleWindow was given a window that
	// is empty or extends past the strip bounds. The previous window stays
	// in effect.
	ErrInvalidWindow = errors.New("waterfall: invalid visible window")

	// ErrInvalidConfig indicates New was given an unusable Config.
	ErrInvalidConfig = errors.New("waterfall: invalid configuration")

	// ErrClosed is returned by operations on a closed Waterfall.
	ErrClosed = errors.New("waterfall: closed")
)

// IsInputError reports whether err rejects a single input while leaving the
// pipeline and the displayed frame intact.
func IsInputError(err error) bool {
	return errors.Is(err, ErrRowTooWide) || errors.Is(err, ErrInvalidWindow)
}
