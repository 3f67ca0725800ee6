package archive

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/meigma/jarmap/internal/sizing"
)

// ZipReader reads entries from a zip archive. It is safe for concurrent use.
type ZipReader struct {
	zr      *zip.Reader
	closer  io.Closer
	entries []string
	files   map[string]*zip.File
}

// OpenZip opens the zip archive at path.
func OpenZip(path string) (*ZipReader, error) {
	f, err := os.Open(path) //nolint:gosec // caller-supplied archive path
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	r, err := NewZipReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.closer = f
	return r, nil
}

// NewZipReader reads a zip archive of the given size from ra.
func NewZipReader(ra io.ReaderAt, size int64) (*ZipReader, error) {
	zr, err := zip.NewReader(ra, size)
	if err != nil {
		return nil, fmt.Errorf("archive: open zip: %w", err)
	}
	r := &ZipReader{
		zr:      zr,
		entries: make([]string, 0, len(zr.File)),
		files:   make(map[string]*zip.File, len(zr.File)),
	}
	for _, f := range zr.File {
		if strings.HasSuffix(f.Name, "/") {
			continue
		}
		// First occurrence wins for archives with repeated names.
		if _, dup := r.files[f.Name]; dup {
			continue
		}
		r.entries = append(r.entries, f.Name)
		r.files[f.Name] = f
	}
	return r, nil
}

// Entries returns entry paths in archive order.
func (r *ZipReader) Entries() []string {
	return r.entries
}

// ReadEntry returns the decompressed contents of the entry at path.
func (r *ZipReader) ReadEntry(path string) ([]byte, error) {
	f, ok := r.files[path]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	if f.UncompressedSize64 > MaxEntrySize {
		return nil, fmt.Errorf("%w: %s", ErrEntryTooLarge, path)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("archive: open %s: %w", path, err)
	}
	defer rc.Close()
	data, err := sizing.ReadAllWithLimit(rc, MaxEntrySize, ErrEntryTooLarge)
	if err != nil {
		return nil, fmt.Errorf("archive: read %s: %w", path, err)
	}
	return data, nil
}

// FS exposes the archive as a read-only file system.
func (r *ZipReader) FS() fs.FS {
	return r.zr
}

// Close releases the underlying file when the reader was opened by OpenZip.
func (r *ZipReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}
