package jarmap

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opencontainers/go-digest"
	"golang.org/x/sync/singleflight"

	"github.com/meigma/jarmap/archive"
	"github.com/meigma/jarmap/cache/disk"
	"github.com/meigma/jarmap/classindex"
	"github.com/meigma/jarmap/internal/jartype"
	"github.com/meigma/jarmap/mapping"
	"github.com/meigma/jarmap/rewrite"
	"github.com/meigma/jarmap/transform"
	"github.com/meigma/jarmap/translate"
)

// Stats summarizes the entries written by a remap.
type Stats = transform.Stats

// Result describes a finished remap.
type Result struct {
	// Stats is zero when the output came from the cache.
	Stats Stats

	// Digest identifies the bytes of the output archive.
	Digest digest.Digest

	// Cached reports whether the output was restored from the cache.
	Cached bool
}

// Progress bands of a remap.
const (
	indexingPercent  = 2
	remappingPercent = 10
)

// Concurrent remaps of the same cache key share one rewrite.
var remapGroup singleflight.Group

// Remap rewrites the jar at inPath through table and writes the result to
// outPath. The output only appears once the whole archive has been
// rewritten; on failure outPath is left untouched.
func Remap(ctx context.Context, inPath, outPath string, table *mapping.Table, opts ...RemapOption) (Result, error) {
	if table == nil {
		return Result{}, ErrNilTable
	}
	cfg := newRemapConfig(opts)
	progress := jartype.Monotonic(cfg.progress)
	emit(progress, StagePreparing, 0, "preparing remap")

	if cfg.cache == nil {
		return remapFile(ctx, inPath, outPath, table, cfg, progress)
	}

	inDigest, err := archive.FileDigest(inPath)
	if err != nil {
		return Result{}, fmt.Errorf("jarmap: digest input: %w", err)
	}
	key := disk.Key{
		Input:           inDigest,
		Table:           table.Digest(),
		Direction:       cfg.direction.String(),
		Policy:          cfg.policyID,
		StripSignatures: cfg.stripSignatures,
	}.Digest()
	log := cfg.log().With(slog.String("key", key.String()))

	if res, ok, err := restore(cfg.cache, key, outPath); err != nil {
		return Result{}, err
	} else if ok {
		log.Debug("remap cache hit")
		emit(progress, StageDone, 100, "restored from cache")
		return res, nil
	}

	ran := false
	v, err, _ := remapGroup.Do(key.String(), func() (any, error) {
		// Another caller may have stored the result since the check above.
		if cfg.cache.Has(key) {
			return nil, nil
		}
		ran = true
		res, err := remapFile(ctx, inPath, outPath, table, cfg, progress)
		if err != nil {
			return nil, err
		}
		if err := cfg.cache.PutFile(key, outPath); err != nil {
			log.Warn("caching remap result failed", slog.Any("error", err))
		}
		return res, nil
	})
	if err != nil {
		return Result{}, err
	}
	if ran {
		res, _ := v.(Result) //nolint:errcheck // type assertion always succeeds when err is nil
		return res, nil
	}

	if res, ok, err := restore(cfg.cache, key, outPath); err != nil {
		return Result{}, err
	} else if ok {
		emit(progress, StageDone, 100, "restored from cache")
		return res, nil
	}
	// The shared result was not cacheable.
	return remapFile(ctx, inPath, outPath, table, cfg, progress)
}

func remapFile(ctx context.Context, inPath, outPath string, table *mapping.Table, cfg *remapConfig, progress ProgressFunc) (Result, error) {
	src, err := archive.OpenZip(inPath)
	if err != nil {
		return Result{}, fmt.Errorf("jarmap: open input: %w", err)
	}
	defer src.Close()

	emit(progress, StageIndexing, indexingPercent, "indexing classes")
	index, err := classindex.Build(ctx, src,
		classindex.WithWorkers(cfg.workers),
		classindex.WithMaxDepth(cfg.maxDepth),
		classindex.WithLogger(cfg.logger),
	)
	if err != nil {
		return Result{}, err
	}

	trOpts := []translate.Option{translate.WithLogger(cfg.logger)}
	switch {
	case cfg.cacheSize < 0:
		trOpts = append(trOpts, translate.WithCacheSize(0))
	case cfg.cacheSize > 0:
		trOpts = append(trOpts, translate.WithCacheSize(cfg.cacheSize))
	}
	tr, err := translate.New(table, index, cfg.direction, trOpts...)
	if err != nil {
		return Result{}, err
	}

	dst, err := archive.CreateZip(outPath)
	if err != nil {
		return Result{}, fmt.Errorf("jarmap: create output: %w", err)
	}
	t := transform.New(rewrite.New(tr, cfg.policy),
		transform.WithWorkers(cfg.workers),
		transform.WithLogger(cfg.logger),
		transform.WithStripSignatures(cfg.stripSignatures),
		transform.WithProgress(jartype.Band(progress, remappingPercent, 100)),
	)
	stats, err := t.Transform(ctx, src, dst)
	if err != nil {
		if discardErr := dst.Discard(); discardErr != nil {
			cfg.log().Warn("discarding partial output failed", slog.String("output", dst.Path()), slog.Any("error", discardErr))
		}
		return Result{}, err
	}
	if err := dst.Commit(); err != nil {
		return Result{}, err
	}

	res := Result{Stats: stats, Digest: dst.Digest()}
	cfg.log().Info("remap complete",
		slog.String("input", inPath),
		slog.String("output", dst.Path()),
		slog.String("direction", cfg.direction.String()),
		slog.String("digest", res.Digest.String()))
	emit(progress, StageDone, 100, "remap complete")
	return res, nil
}

// restore copies the archive cached under key to outPath.
func restore(c *disk.Cache, key digest.Digest, outPath string) (Result, bool, error) {
	f, ok := c.Get(key)
	if !ok {
		return Result{}, false, nil
	}
	defer f.Close()

	tmp, err := os.CreateTemp(filepath.Dir(outPath), ".jarmap-*")
	if err != nil {
		return Result{}, false, fmt.Errorf("jarmap: restore: %w", err)
	}
	tmpPath := tmp.Name()
	digester := digest.Canonical.Digester()
	if _, err := io.Copy(io.MultiWriter(tmp, digester.Hash()), f); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return Result{}, false, fmt.Errorf("jarmap: restore: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return Result{}, false, fmt.Errorf("jarmap: restore: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		os.Remove(tmpPath)
		return Result{}, false, fmt.Errorf("jarmap: restore: %w", err)
	}
	return Result{Digest: digester.Digest(), Cached: true}, true, nil
}

func emit(fn ProgressFunc, stage ProgressStage, percent int, msg string) {
	if fn == nil {
		return
	}
	fn(ProgressEvent{Stage: stage, Percent: percent, Message: msg})
}

// IsStructural reports whether err is a class-file structure failure.
func IsStructural(err error) bool {
	return errors.Is(err, ErrTruncatedClass) || errors.Is(err, ErrCorruptReference)
}
