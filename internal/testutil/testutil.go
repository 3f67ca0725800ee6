// Package testutil provides fixtures for building class files and jars in tests.
package testutil

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zip"
)

// File is one archive entry fixture.
type File struct {
	Name string
	Data []byte
}

// JarBytes builds an in-memory zip archive holding files in order.
func JarBytes(tb testing.TB, files ...File) []byte {
	tb.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			tb.Fatalf("create %s: %v", f.Name, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			tb.Fatalf("write %s: %v", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		tb.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

// WriteJar writes a zip archive holding files to path, creating parent
// directories as needed.
func WriteJar(tb testing.TB, path string, files ...File) {
	tb.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		tb.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, JarBytes(tb, files...), 0o600); err != nil {
		tb.Fatalf("write jar: %v", err)
	}
}

// ReadJar returns the entries of the zip archive at path in archive order.
func ReadJar(tb testing.TB, path string) []File {
	tb.Helper()
	zr, err := zip.OpenReader(path)
	if err != nil {
		tb.Fatalf("open %s: %v", path, err)
	}
	defer zr.Close()
	files := make([]File, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			tb.Fatalf("open entry %s: %v", f.Name, err)
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(rc); err != nil {
			rc.Close()
			tb.Fatalf("read entry %s: %v", f.Name, err)
		}
		rc.Close()
		files = append(files, File{Name: f.Name, Data: buf.Bytes()})
	}
	return files
}

// Names returns the entry names of files in order.
func Names(files []File) []string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return names
}
