package badger

import "errors"

var (
	// ErrBackendRequired is returned when a repository is created without a backend.
	ErrBackendRequired = errors.New("badger backend required")

	// ErrInvalidCollection is returned for empty collection names or names containing ':'.
	ErrInvalidCollection = errors.New("invalid collection name")
)
