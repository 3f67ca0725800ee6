package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
	"github.com/opencontainers/go-digest"

	"github.com/meigma/jarmap/internal/pathutil"
)

// entryTime is stamped on every written entry so identical inputs produce
// identical archives.
var entryTime = time.Date(1980, time.February, 1, 0, 0, 0, 0, time.UTC)

// ZipWriter writes entries to a temporary zip file and moves it into place
// on Commit. WriteEntry is safe for concurrent use; entries appear in the
// order the calls complete.
type ZipWriter struct {
	mu       sync.Mutex
	target   string
	tmp      *os.File
	zw       *zip.Writer
	digester digest.Digester
	digest   digest.Digest
	count    int
	closed   bool
}

// ZipOption configures a ZipWriter.
type ZipOption func(*ZipWriter)

// WithCompressionLevel sets the deflate level used for entries.
func WithCompressionLevel(level int) ZipOption {
	return func(w *ZipWriter) {
		w.zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
			return flate.NewWriter(out, level)
		})
	}
}

// CreateZip starts writing a zip archive destined for path. Parent
// directories are created as needed.
func CreateZip(path string, opts ...ZipOption) (*ZipWriter, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("archive: create directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".jarmap-*")
	if err != nil {
		return nil, fmt.Errorf("archive: create temp file: %w", err)
	}
	d := digest.Canonical.Digester()
	w := &ZipWriter{
		target:   path,
		tmp:      tmp,
		digester: d,
		zw:       zip.NewWriter(io.MultiWriter(tmp, d.Hash())),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// WriteEntry appends an entry to the archive.
func (w *ZipWriter) WriteEntry(path string, data []byte) error {
	if _, ok := pathutil.Clean(path); !ok {
		return fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	hdr := &zip.FileHeader{
		Name:     path,
		Method:   zip.Deflate,
		Modified: entryTime,
	}
	hdr.SetMode(0o644)
	ew, err := w.zw.CreateHeader(hdr)
	if err != nil {
		return fmt.Errorf("archive: create entry %s: %w", path, err)
	}
	if _, err := ew.Write(data); err != nil {
		return fmt.Errorf("archive: write entry %s: %w", path, err)
	}
	w.count++
	return nil
}

// Len returns the number of entries written.
func (w *ZipWriter) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Commit finishes the archive and atomically replaces the destination.
func (w *ZipWriter) Commit() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return ErrClosed
	}
	w.closed = true
	tmpPath := w.tmp.Name()

	if err := w.zw.Close(); err != nil {
		w.tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("archive: finish zip: %w", err)
	}
	if err := w.tmp.Sync(); err != nil {
		w.tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("archive: sync: %w", err)
	}
	if err := w.tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("archive: close: %w", err)
	}
	if err := os.Rename(tmpPath, w.target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("archive: commit: %w", err)
	}
	w.digest = w.digester.Digest()
	return nil
}

// Discard abandons the archive and removes the temporary file. It is a
// no-op after Commit.
func (w *ZipWriter) Discard() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	tmpPath := w.tmp.Name()
	w.tmp.Close()
	if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Digest identifies the committed archive's bytes. It is empty before a
// successful Commit.
func (w *ZipWriter) Digest() digest.Digest {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.digest
}

// Path returns the destination path.
func (w *ZipWriter) Path() string {
	return w.target
}

// FileDigest computes the digest of the file at path.
func FileDigest(path string) (digest.Digest, error) {
	f, err := os.Open(path) //nolint:gosec // caller-supplied archive path
	if err != nil {
		return "", err
	}
	defer f.Close()
	return digest.Canonical.FromReader(f)
}
