package registry

import "errors"

var (
	// ErrNotFound is returned for a position id outside the registry.
	ErrNotFound = errors.New("position not found")
	// ErrOutOfRange is returned by Swap when either id is invalid.
	ErrOutOfRange = errors.New("position out of range")
	// ErrSamePosition is returned by Swap when both ids are the same slot.
	ErrSamePosition = errors.New("cannot swap a position with itself")
	// ErrPersistence wraps failures to write the registry file.
	ErrPersistence = errors.New("registry persistence failed")
	// ErrCorrupt is returned when the file does not map offsets to positions.
	ErrCorrupt = errors.New("registry file corrupt")
)
