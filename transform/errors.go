package transform

import (
	"errors"
	"fmt"
)

// ErrDuplicateEntry is returned when two input entries map to the same
// output path.
var ErrDuplicateEntry = errors.New("transform: duplicate output entry")

// EntryError reports the archive entry a transform failed on.
type EntryError struct {
	Path string
	Err  error
}

func (e *EntryError) Error() string {
	return fmt.Sprintf("transform: %s: %v", e.Path, e.Err)
}

func (e *EntryError) Unwrap() error { return e.Err }
