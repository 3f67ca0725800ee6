package classindex

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/jarmap/archive"
	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/internal/pathutil"
	"github.com/meigma/jarmap/mapping"
)

type config struct {
	workers  int
	maxDepth int
	logger   *slog.Logger
}

func newConfig(opts []Option) *config {
	cfg := &config{maxDepth: DefaultMaxDepth}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.maxDepth < 1 {
		cfg.maxDepth = DefaultMaxDepth
	}
	return cfg
}

func (c *config) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// WithWorkers sets the number of classes parsed concurrently by Build.
// Values < 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(c *config) {
		c.workers = n
	}
}

// WithMaxDepth bounds ancestor walks. Values < 1 use DefaultMaxDepth.
func WithMaxDepth(n int) Option {
	return func(c *config) {
		c.maxDepth = n
	}
}

// WithLogger sets the logger for Build.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// Build parses every class entry of src and indexes it. Class entries under
// a multi-release directory are indexed only when no base entry declares the
// same class.
func Build(ctx context.Context, src archive.Reader, opts ...Option) (*Index, error) {
	cfg := newConfig(opts)

	var paths []string
	for _, p := range src.Entries() {
		if pathutil.IsClass(p) {
			paths = append(paths, p)
		}
	}
	// Base entries first so they win over versioned duplicates.
	ordered := make([]string, 0, len(paths))
	for _, p := range paths {
		if prefix, _ := pathutil.SplitVersion(p); prefix == "" {
			ordered = append(ordered, p)
		}
	}
	for _, p := range paths {
		if prefix, _ := pathutil.SplitVersion(p); prefix != "" {
			ordered = append(ordered, p)
		}
	}

	workers := cfg.workers
	if workers < 1 {
		workers = runtime.GOMAXPROCS(0)
	}

	descs := make([]ClassDescriptor, len(ordered))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, p := range ordered {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			data, err := src.ReadEntry(p)
			if err != nil {
				return err
			}
			d, err := Describe(data)
			if err != nil {
				return fmt.Errorf("classindex: %s: %w", p, err)
			}
			descs[i] = d
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	ix := newIndex(descs, cfg.maxDepth)
	cfg.log().Debug("class index built",
		slog.Int("entries", len(ordered)),
		slog.Int("classes", ix.Len()))
	return ix, nil
}

// Describe parses a class file into its structural summary.
func Describe(data []byte) (ClassDescriptor, error) {
	cf, err := classfile.Parse(data)
	if err != nil {
		return ClassDescriptor{}, err
	}
	name, err := cf.Name()
	if err != nil {
		return ClassDescriptor{}, err
	}
	super, err := cf.SuperName()
	if err != nil {
		return ClassDescriptor{}, err
	}
	ifaces, err := cf.InterfaceNames()
	if err != nil {
		return ClassDescriptor{}, err
	}
	fields, err := members(cf, name, cf.Fields)
	if err != nil {
		return ClassDescriptor{}, err
	}
	methods, err := members(cf, name, cf.Methods)
	if err != nil {
		return ClassDescriptor{}, err
	}
	return ClassDescriptor{
		Name:        name,
		Super:       super,
		Interfaces:  ifaces,
		Fields:      fields,
		Methods:     methods,
		AccessFlags: cf.AccessFlags,
	}, nil
}

func members(cf *classfile.ClassFile, owner string, ms []classfile.Member) ([]mapping.MemberSignature, error) {
	out := make([]mapping.MemberSignature, 0, len(ms))
	for _, m := range ms {
		name, desc, err := cf.MemberInfo(m)
		if err != nil {
			return nil, err
		}
		out = append(out, mapping.MemberSignature{Owner: owner, Name: name, Descriptor: desc})
	}
	return out, nil
}
