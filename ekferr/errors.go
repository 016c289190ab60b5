// Package ekferr defines the filter's error taxonomy (spec.md §7) as
// sentinel values wrapped with context via fmt.Errorf("...: %w", ...), the
// same idiom the teacher uses in fusion/config_parser.go and binlog/parser.go.
package ekferr

import "errors"

// Sentinel error kinds. Use errors.Is against these to classify a returned
// error; the propagation policy for each is documented in spec.md §7.
var (
	// ErrConfigInvalid marks a configuration problem detected at startup:
	// unknown sensor reference, bad array length, multiple prediction IMUs.
	// Fatal: the process aborts before running.
	ErrConfigInvalid = errors.New("config invalid")

	// ErrSealedState marks a registration attempted after the first
	// measurement update. Fatal: the process aborts.
	ErrSealedState = errors.New("state sealed: registration after first update")

	// ErrDimensionMismatch marks a covariance/state-size mismatch detected
	// at assembly. Fatal internal error: the filter is corrupt.
	ErrDimensionMismatch = errors.New("state/covariance dimension mismatch")

	// ErrNumericalSingular marks an uninvertible innovation covariance or a
	// rank-deficient triangulation system. The offending update is dropped,
	// no state mutation occurs, and a WARN is logged.
	ErrNumericalSingular = errors.New("numerical singularity")

	// ErrStaleMessage marks a message whose timestamp is too old relative
	// to the filter's current_time and the configured lateness tolerance.
	// Dropped, no mutation.
	ErrStaleMessage = errors.New("stale message")

	// ErrUnknownSensorId marks a message referencing a sensor id with no
	// matching registration. Dropped + logged WARN.
	ErrUnknownSensorId = errors.New("unknown sensor id")

	// ErrAlreadyRegistered marks a Registrar call reusing a sensor id.
	ErrAlreadyRegistered = errors.New("sensor id already registered")

	// ErrInvalidShape marks a Registrar call whose initial covariance block
	// does not match the sensor's declared extrinsic/intrinsic bits.
	ErrInvalidShape = errors.New("initial covariance block shape mismatch")
)

// Fatal reports whether an error kind aborts the program (ConfigInvalid,
// SealedState, DimensionMismatch) rather than being dropped in place.
func Fatal(err error) bool {
	return errors.Is(err, ErrConfigInvalid) ||
		errors.Is(err, ErrSealedState) ||
		errors.Is(err, ErrDimensionMismatch)
}
