package transform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/meigma/jarmap/archive"
	"github.com/meigma/jarmap/internal/jartype"
	"github.com/meigma/jarmap/internal/pathutil"
	"github.com/meigma/jarmap/rewrite"
)

// Rewriter rewrites one class file. *rewrite.Rewriter implements it.
type Rewriter interface {
	Rewrite(data []byte) (rewrite.Class, error)
}

// Stats summarizes a transform.
type Stats struct {
	// Entries is the number of entries written.
	Entries int
	// Classes is the number of class entries rewritten.
	Classes int
	// Renamed is the number of class entries written under a new path.
	Renamed int
	// Resources is the number of non-class entries copied.
	Resources int
	// Stripped is the number of signature files dropped.
	Stripped int
	// BytesIn and BytesOut total the entry sizes read and written.
	BytesIn  int64
	BytesOut int64
}

// Transformer rewrites archives with a fixed Rewriter.
type Transformer struct {
	rw              Rewriter
	workers         int
	window          int
	logger          *slog.Logger
	progress        jartype.ProgressFunc
	stripSignatures bool
}

// New returns a Transformer.
func New(rw Rewriter, opts ...Option) *Transformer {
	t := &Transformer{
		rw:              rw,
		stripSignatures: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.workers < 1 {
		t.workers = runtime.GOMAXPROCS(0)
	}
	if t.window < 1 {
		t.window = 4 * t.workers
	}
	return t
}

func (t *Transformer) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

func (t *Transformer) report(path string, percent, done, total int, msg string) {
	if t.progress == nil {
		return
	}
	t.progress(jartype.ProgressEvent{
		Stage:   jartype.StageRemapping,
		Path:    path,
		Percent: percent,
		Message: msg,
		Done:    done,
		Total:   total,
	})
}

type task struct {
	index int
	path  string
}

type result struct {
	index   int
	src     string
	dst     string
	data    []byte
	inSize  int
	isClass bool
}

// Transform rewrites every entry of src into dst in src's listing order.
func (t *Transformer) Transform(ctx context.Context, src archive.Reader, dst archive.Writer) (Stats, error) {
	var stats Stats
	var tasks []task
	for _, p := range src.Entries() {
		if t.stripSignatures && pathutil.IsSignatureFile(p) {
			stats.Stripped++
			t.log().Debug("dropping signature file", slog.String("path", p))
			continue
		}
		tasks = append(tasks, task{index: len(tasks), path: p})
	}
	total := len(tasks)
	t.report("", 0, 0, total, fmt.Sprintf("remapping %d entries", total))

	window := semaphore.NewWeighted(int64(t.window))
	taskCh := make(chan task)
	resCh := make(chan result, t.workers)
	eg, ctx := errgroup.WithContext(ctx)

	// Slots are acquired in listing order, so the entry the writer waits
	// for always holds one.
	eg.Go(func() error {
		defer close(taskCh)
		for _, tk := range tasks {
			if err := window.Acquire(ctx, 1); err != nil {
				return err
			}
			select {
			case taskCh <- tk:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	workers := min(t.workers, max(total, 1))
	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		eg.Go(func() error {
			defer wg.Done()
			for tk := range taskCh {
				if err := ctx.Err(); err != nil {
					return err
				}
				res, err := t.process(tk, src)
				if err != nil {
					return err
				}
				select {
				case resCh <- res:
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(resCh)
	}()

	eg.Go(func() error {
		written := make(map[string]string, total)
		pending := make(map[int]result, t.window)
		next := 0
		for next < total {
			select {
			case res, ok := <-resCh:
				if !ok {
					if err := ctx.Err(); err != nil {
						return err
					}
					return errors.New("transform: worker pipeline ended unexpectedly")
				}
				pending[res.index] = res
				for {
					res, ok := pending[next]
					if !ok {
						break
					}
					delete(pending, next)
					if prev, dup := written[res.dst]; dup {
						return &EntryError{Path: res.src, Err: fmt.Errorf("%w: %s (also written by %s)", ErrDuplicateEntry, res.dst, prev)}
					}
					if err := dst.WriteEntry(res.dst, res.data); err != nil {
						return &EntryError{Path: res.src, Err: err}
					}
					written[res.dst] = res.src
					window.Release(1)
					stats.Entries++
					stats.BytesIn += int64(res.inSize)
					stats.BytesOut += int64(len(res.data))
					if res.isClass {
						stats.Classes++
						if res.dst != res.src {
							stats.Renamed++
						}
					} else {
						stats.Resources++
					}
					next++
					t.report(res.src, next*100/total, next, total, "remapped "+res.src)
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		return Stats{}, err
	}
	t.report("", 100, total, total, "archive remapped")
	t.log().Info("archive transformed",
		slog.Int("entries", stats.Entries),
		slog.Int("classes", stats.Classes),
		slog.Int("renamed", stats.Renamed),
		slog.Int("stripped", stats.Stripped))
	return stats, nil
}

// process reads one entry and rewrites it if it is a class.
func (t *Transformer) process(tk task, src archive.Reader) (result, error) {
	data, err := src.ReadEntry(tk.path)
	if err != nil {
		return result{}, &EntryError{Path: tk.path, Err: err}
	}
	res := result{index: tk.index, src: tk.path, dst: tk.path, data: data, inSize: len(data)}
	if !pathutil.IsClass(tk.path) {
		return res, nil
	}
	class, err := t.rw.Rewrite(data)
	if err != nil {
		return result{}, &EntryError{Path: tk.path, Err: err}
	}
	prefix, _ := pathutil.SplitVersion(tk.path)
	res.dst = prefix + class.Name + ".class"
	res.data = class.Data
	res.isClass = true
	return res, nil
}
