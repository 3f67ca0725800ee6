package classfile

import "errors"

// Sentinel errors for class-file decoding and encoding.
var (
	// ErrTruncatedClass is returned when data is not a structurally valid class file.
	ErrTruncatedClass = errors.New("classfile: truncated or invalid class file")

	// ErrCorruptReference is returned when a constant-pool index is out of range
	// or points at an entry of the wrong kind.
	ErrCorruptReference = errors.New("classfile: corrupt constant pool reference")

	// ErrPoolOverflow is returned when a constant pool grows past 65535 entries.
	ErrPoolOverflow = errors.New("classfile: constant pool overflow")

	// ErrInvalidDescriptor is returned when a type descriptor cannot be parsed.
	ErrInvalidDescriptor = errors.New("classfile: invalid descriptor")
)
