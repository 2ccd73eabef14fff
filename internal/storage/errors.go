package storage

import "errors"

// Sentinel errors shared by every SimulationRunStore backend. Callers
// branch with errors.Is; backends translate driver-specific failures
// into these at the boundary.
var (
	// ErrNotFound is returned when no row matches the requested id.
	ErrNotFound = errors.New("simulation run not found")

	// ErrDuplicateKey is returned when an insert collides with an
	// existing row id. Rows are append-only; a sweep cell can only be
	// persisted once.
	ErrDuplicateKey = errors.New("duplicate simulation run id")

	// ErrInvalidInput is returned for nil rows, empty ids and unknown
	// query metrics.
	ErrInvalidInput = errors.New("invalid input")
)
