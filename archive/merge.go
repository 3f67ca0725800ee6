package archive

import (
	"context"
	"fmt"
)

// MergeOption configures Merge.
type MergeOption func(*mergeConfig)

type mergeConfig struct {
	baseFilter func(path string) bool
}

// WithBaseFilter restricts which base entries are carried into the output.
// Overlay entries are never filtered.
func WithBaseFilter(keep func(path string) bool) MergeOption {
	return func(c *mergeConfig) {
		c.baseFilter = keep
	}
}

// Merge writes every overlay entry in overlay order, then every base entry
// whose path the overlay does not contain, in base order. The overlay wins
// on path collisions. Returns the number of entries written.
func Merge(ctx context.Context, dst Writer, base, overlay Reader, opts ...MergeOption) (int, error) {
	cfg := &mergeConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	overlayPaths := overlay.Entries()
	seen := make(map[string]struct{}, len(overlayPaths))
	written := 0
	for _, p := range overlayPaths {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		data, err := overlay.ReadEntry(p)
		if err != nil {
			return written, err
		}
		if err := dst.WriteEntry(p, data); err != nil {
			return written, fmt.Errorf("archive: merge %s: %w", p, err)
		}
		seen[p] = struct{}{}
		written++
	}

	for _, p := range base.Entries() {
		if err := ctx.Err(); err != nil {
			return written, err
		}
		if _, ok := seen[p]; ok {
			continue
		}
		if cfg.baseFilter != nil && !cfg.baseFilter(p) {
			continue
		}
		data, err := base.ReadEntry(p)
		if err != nil {
			return written, err
		}
		if err := dst.WriteEntry(p, data); err != nil {
			return written, fmt.Errorf("archive: merge %s: %w", p, err)
		}
		seen[p] = struct{}{}
		written++
	}
	return written, nil
}
