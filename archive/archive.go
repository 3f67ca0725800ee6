package archive

import (
	"errors"

	"github.com/meigma/jarmap/internal/pathutil"
)

// Sentinel errors for archive access.
var (
	// ErrNotExist is returned when an entry is not present in an archive.
	ErrNotExist = errors.New("archive: entry does not exist")

	// ErrInvalidPath is returned for absolute or parent-relative entry paths.
	ErrInvalidPath = errors.New("archive: invalid entry path")

	// ErrEntryTooLarge is returned when an entry exceeds the read limit.
	ErrEntryTooLarge = errors.New("archive: entry too large")

	// ErrClosed is returned when writing to a committed or discarded writer.
	ErrClosed = errors.New("archive: writer closed")
)

// MaxEntrySize bounds the decompressed size of a single entry.
const MaxEntrySize = 1 << 30

// Reader lists and reads archive entries.
type Reader interface {
	// Entries returns entry paths in archive order. Directories are omitted.
	Entries() []string

	// ReadEntry returns the contents of the entry at path.
	ReadEntry(path string) ([]byte, error)
}

// Writer accepts archive entries in output order.
type Writer interface {
	WriteEntry(path string, data []byte) error
}

// Entry is one archive member.
type Entry struct {
	Path    string
	Data    []byte
	IsClass bool
}

// NewEntry returns an Entry for path, classifying it by extension.
func NewEntry(path string, data []byte) Entry {
	return Entry{Path: path, Data: data, IsClass: pathutil.IsClass(path)}
}
