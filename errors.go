package isodep

import "errors"

// Configuration errors are returned before any numerical work starts.
var (
	// ErrUnknownMethod is returned when a solver method name is not recognized.
	ErrUnknownMethod = errors.New("isodep: unknown solver method")
	// ErrPowerFlux is returned when both or neither of power and flux are given.
	ErrPowerFlux = errors.New("isodep: exactly one of power or flux must be provided")
	// ErrNegative is returned for negative physical quantities.
	ErrNegative = errors.New("isodep: negative value")
	// ErrLength is returned when vector lengths do not match.
	ErrLength = errors.New("isodep: length mismatch")
	// ErrShape is returned when a matrix is not nIsotopes x nIsotopes.
	ErrShape = errors.New("isodep: matrix shape mismatch")
	// ErrDuplicateID is returned when an isotope list holds the same ZAID twice.
	ErrDuplicateID = errors.New("isodep: duplicate isotope id")
	// ErrTimeUnit is returned for an unrecognized time unit label.
	ErrTimeUnit = errors.New("isodep: unrecognized time unit")
	// ErrIncompleteGrid is returned when interpolation states do not form a rectilinear grid.
	ErrIncompleteGrid = errors.New("isodep: incomplete interpolation grid")
	// ErrEmpty is returned when a required list is empty.
	ErrEmpty = errors.New("isodep: empty input")
	// ErrWeight is returned when a weighting factor lies outside [0, 1].
	ErrWeight = errors.New("isodep: weight outside [0, 1]")
)

// Consistency errors are returned at the point of first use.
var (
	// ErrIsotopeOrder is returned when data sets do not share the same isotope ordering.
	ErrIsotopeOrder = errors.New("isodep: isotope ordering differs between data sets")
	// ErrMissingAttribute is returned when a computation needs an attribute which was never set.
	ErrMissingAttribute = errors.New("isodep: missing attribute")
	// ErrState is returned when a driver operation is called out of order.
	ErrState = errors.New("isodep: invalid driver state")
	// ErrNotFound is returned when an isotope, attribute or stored run does not exist.
	ErrNotFound = errors.New("isodep: not found")
)

// Numerical errors.
var (
	// ErrSingular is returned when a shifted system in the rational approximation cannot be solved.
	ErrSingular = errors.New("isodep: singular linear system")
	// ErrOutOfRange is returned when an interpolation query falls outside the grid and extrapolation is off.
	ErrOutOfRange = errors.New("isodep: value outside interpolation range")
	// ErrNoFission is returned when a positive power is requested from a composition without
	// fission source, or when the reactivity of such a composition is asked for.
	ErrNoFission = errors.New("isodep: no fission source for the requested power")
)
