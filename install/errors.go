package install

import "errors"

// Sentinel errors for installs.
var (
	// ErrInvalidLocation is returned when the game directory does not hold
	// the requested vanilla version.
	ErrInvalidLocation = errors.New("install: invalid install location")

	// ErrMissingLoaderVersion is returned when the loader jar's manifest has
	// no loader version attribute.
	ErrMissingLoaderVersion = errors.New("install: loader version missing from manifest")
)
