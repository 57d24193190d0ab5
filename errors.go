package cosmod

import "errors"

// Lookup and data quality errors surfaced by Cosm. These are recoverable by the
// caller; the panicking convenience wrappers exist only for call sites where a
// failure is a programming error.
var (
	// ErrObjectNotFound is returned when a frame or ephemeris path cannot be resolved.
	ErrObjectNotFound = errors.New("object not found")
	// ErrNoInterpolationData is returned when an ephemeris has no interpolation windows.
	ErrNoInterpolationData = errors.New("no interpolation data")
	// ErrNoStateData is returned when the requested epoch is outside of the ephemeris coverage.
	ErrNoStateData = errors.New("no state data for this epoch")
	// ErrInvalidInterpolationData is returned when the position degree is too low to
	// evaluate both the position and its derivative. This is corrupt data: it must
	// fail instead of silently degrading.
	ErrInvalidInterpolationData = errors.New("invalid interpolation data")
)

// Filter errors. Precondition errors are programmer errors in the orchestration
// and must fail loudly rather than use stale matrices.
var (
	// ErrStateTransitionMatrixNotUpdated is returned when UpdateSTM was not called
	// prior to a time or measurement update.
	ErrStateTransitionMatrixNotUpdated = errors.New("STM was not updated prior to time or measurement update")
	// ErrSensitivityNotUpdated is returned when UpdateHTilde was not called prior
	// to a measurement update.
	ErrSensitivityNotUpdated = errors.New("H tilde was not updated prior to measurement update")
	// ErrSingularKalmanGain is returned when H·P̄·Hᵀ + R is not invertible.
	ErrSingularKalmanGain = errors.New("gain could not be computed because H*P_bar*H' + R is singular")
	// ErrStateTransitionMatrixSingular is returned by the smoother when an STM
	// cannot be inverted.
	ErrStateTransitionMatrixSingular = errors.New("STM is singular, smoothing cannot proceed")
	// ErrSingularCovarianceMatrix is returned by the smoother when a covariance
	// cannot be inverted.
	ErrSingularCovarianceMatrix = errors.New("covariance matrix is singular")
)
