package mapping

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"slices"
	"strings"
)

// ErrNoMappings is returned by Load when a source contains no mapping files.
var ErrNoMappings = errors.New("mapping: no mapping files found")

// LoadOption configures Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	logger *slog.Logger
	format Format
}

func (c *loadConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// WithLogger sets the logger for load diagnostics.
func WithLogger(logger *slog.Logger) LoadOption {
	return func(c *loadConfig) {
		c.logger = logger
	}
}

// WithFormat forces a format instead of detecting it per file.
func WithFormat(f Format) LoadOption {
	return func(c *loadConfig) {
		c.format = f
	}
}

// IsMappingFile reports whether name has a mapping file extension.
func IsMappingFile(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".mapping", ".mappings", ".tiny":
		return true
	}
	return false
}

// Load reads every mapping file under fsys into one Table. Files are read
// in lexical path order. Entries repeated across files must agree.
func Load(fsys fs.FS, opts ...LoadOption) (*Table, error) {
	cfg := &loadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	var files []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && IsMappingFile(p) {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("mapping: walk: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoMappings
	}
	slices.Sort(files)

	b := NewBuilder()
	for _, name := range files {
		if err := parseFile(fsys, name, cfg.format, b); err != nil {
			return nil, err
		}
		cfg.log().Debug("loaded mapping file", slog.String("file", name))
	}
	t := b.Build()
	classes, members := t.Len()
	cfg.log().Info("mapping table loaded",
		slog.Int("files", len(files)),
		slog.Int("classes", classes),
		slog.Int("members", members),
		slog.String("digest", t.Digest().String()))
	return t, nil
}

// LoadDir loads every mapping file under dir.
func LoadDir(dir string, opts ...LoadOption) (*Table, error) {
	return Load(os.DirFS(dir), opts...)
}

// LoadFile loads a single mapping file.
func LoadFile(name string, opts ...LoadOption) (*Table, error) {
	cfg := &loadConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	f, err := os.Open(name)
	if err != nil {
		return nil, fmt.Errorf("mapping: %w", err)
	}
	defer f.Close()

	b := NewBuilder()
	if err := parseWith(f, name, cfg.format, b); err != nil {
		return nil, err
	}
	return b.Build(), nil
}

func parseFile(fsys fs.FS, name string, format Format, b *Builder) error {
	f, err := fsys.Open(name)
	if err != nil {
		return &ParseError{File: name, Err: err}
	}
	defer f.Close()
	return parseWith(f, name, format, b)
}

func parseWith(f fs.File, name string, format Format, b *Builder) error {
	if format == FormatAuto {
		return Parse(f, name, b)
	}
	return ParseFormat(f, name, format, b)
}
