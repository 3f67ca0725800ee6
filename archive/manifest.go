package archive

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"
)

// ManifestPath is the location of the jar manifest.
const ManifestPath = "META-INF/MANIFEST.MF"

// Manifest returns the main attributes of the archive's manifest.
// Returns ErrNotExist when the archive has no manifest.
func Manifest(r Reader) (map[string]string, error) {
	data, err := r.ReadEntry(ManifestPath)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data)
}

// Manifest returns the main attributes of the archive's manifest.
func (r *ZipReader) Manifest() (map[string]string, error) {
	return Manifest(r)
}

// ParseManifest parses the main section of a jar manifest. Continuation
// lines start with a single space. Parsing stops at the first blank line.
func ParseManifest(data []byte) (map[string]string, error) {
	attrs := make(map[string]string)
	sc := bufio.NewScanner(bytes.NewReader(data))
	var key string
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			break
		}
		if strings.HasPrefix(line, " ") {
			if key == "" {
				return nil, errors.New("archive: manifest continuation without attribute")
			}
			attrs[key] += line[1:]
			continue
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok || name == "" {
			return nil, fmt.Errorf("archive: malformed manifest line %q", line)
		}
		key = name
		attrs[key] = strings.TrimPrefix(value, " ")
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("archive: read manifest: %w", err)
	}
	return attrs, nil
}
