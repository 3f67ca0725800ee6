package mapping

import (
	"errors"
	"fmt"
)

// Sentinel errors for mapping table loading.
var (
	// ErrMalformedMapping is returned when a mapping record cannot be parsed.
	ErrMalformedMapping = errors.New("mapping: malformed mapping")

	// ErrAmbiguousMapping is returned when a name maps to two different targets
	// in either direction.
	ErrAmbiguousMapping = errors.New("mapping: ambiguous mapping")
)

// ParseError locates a load failure in a mapping source.
type ParseError struct {
	File string
	Line int
	Err  error
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.File, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.File, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedMapping, fmt.Sprintf(format, args...))
}
