package transform

import (
	"log/slog"

	"github.com/meigma/jarmap/internal/jartype"
)

// Option configures a Transformer.
type Option func(*Transformer)

// WithWorkers sets the number of concurrent class rewrites.
// Values < 1 use GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(t *Transformer) {
		t.workers = n
	}
}

// WithWindow bounds how many entries may be read ahead of the writer.
// Values < 1 use four times the worker count.
func WithWindow(n int) Option {
	return func(t *Transformer) {
		t.window = n
	}
}

// WithLogger sets the logger for transform diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Transformer) {
		t.logger = logger
	}
}

// WithProgress sets a callback for progress updates. Calls come from a
// single goroutine.
func WithProgress(fn jartype.ProgressFunc) Option {
	return func(t *Transformer) {
		t.progress = fn
	}
}

// WithStripSignatures controls whether jar signature files are dropped.
// Signatures no longer verify after rewriting. Defaults to true.
func WithStripSignatures(strip bool) Option {
	return func(t *Transformer) {
		t.stripSignatures = strip
	}
}
