package jarmap

import (
	"errors"

	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/classindex"
	"github.com/meigma/jarmap/mapping"
	"github.com/meigma/jarmap/transform"
)

// ErrNilTable is returned when Remap is called without a mapping table.
var ErrNilTable = errors.New("jarmap: nil mapping table")

// Errors re-exported from mapping.
var (
	// ErrMalformedMapping is returned when a mapping record cannot be parsed.
	ErrMalformedMapping = mapping.ErrMalformedMapping

	// ErrAmbiguousMapping is returned when a name maps to two different targets.
	ErrAmbiguousMapping = mapping.ErrAmbiguousMapping
)

// Errors re-exported from classfile.
var (
	// ErrTruncatedClass is returned when a class file is structurally invalid.
	ErrTruncatedClass = classfile.ErrTruncatedClass

	// ErrCorruptReference is returned when a constant-pool index is invalid.
	ErrCorruptReference = classfile.ErrCorruptReference

	// ErrPoolOverflow is returned when rewriting would exceed the pool limit.
	ErrPoolOverflow = classfile.ErrPoolOverflow
)

// Errors re-exported from classindex and transform.
var (
	// ErrCycleDetected is returned when an inheritance walk does not terminate.
	ErrCycleDetected = classindex.ErrCycleDetected

	// ErrDuplicateEntry is returned when two entries map to the same output path.
	ErrDuplicateEntry = transform.ErrDuplicateEntry
)

// EntryError reports the archive entry a remap failed on.
type EntryError = transform.EntryError
