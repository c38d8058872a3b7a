package module

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidDescriptor marks a candidate without the module shape.
	ErrInvalidDescriptor = errors.New("invalid module descriptor")

	ErrMissingName       = fmt.Errorf("%w: missing config.name", ErrInvalidDescriptor)
	ErrMissingInitialize = fmt.Errorf("%w: missing initialize", ErrInvalidDescriptor)
	ErrInvalidName       = fmt.Errorf("%w: name is not a single path segment", ErrInvalidDescriptor)

	// ErrNoDescriptor is returned by loaders when a file loads cleanly but
	// does not export a module. Such files are skipped without noise.
	ErrNoDescriptor = errors.New("file exports no module descriptor")

	// ErrInvalidStatus is recorded when a module sets a status code outside
	// 100-999.
	ErrInvalidStatus = errors.New("invalid status code")

	// ErrResponseClosed is returned for writes after the response was flushed.
	ErrResponseClosed = errors.New("response already flushed")
)
