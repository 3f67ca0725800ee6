package main

import (
	"flag"
	"log/slog"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // opt-in profiling endpoint
	"os"
	"runtime"
	"runtime/pprof"
	"runtime/trace"

	"github.com/felixge/fgprof"
)

type profileFlags struct {
	pprofAddr  string
	cpuProfile string
	memProfile string
	traceFile  string
	fgProfile  string
}

func (p *profileFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&p.pprofAddr, "pprof-addr", "", "pprof listen address (e.g. :6060)")
	fs.StringVar(&p.cpuProfile, "cpuprofile", "", "write CPU profile to file")
	fs.StringVar(&p.memProfile, "memprofile", "", "write heap profile to file")
	fs.StringVar(&p.traceFile, "trace", "", "write trace to file")
	fs.StringVar(&p.fgProfile, "fgprofile", "", "write fgprof (wall clock) profile to file")
}

// start begins the requested profiles. The returned stop function flushes
// them and must be called once.
func (p *profileFlags) start(logger *slog.Logger) (func(), error) {
	var stops []func()
	stop := func() {
		for i := len(stops) - 1; i >= 0; i-- {
			stops[i]()
		}
	}

	if p.pprofAddr != "" {
		go func() {
			logger.Info("pprof listening", slog.String("addr", p.pprofAddr))
			//nolint:gosec // profiling server without timeouts
			if err := http.ListenAndServe(p.pprofAddr, nil); err != nil {
				logger.Warn("pprof server error", slog.Any("error", err))
			}
		}()
	}

	if p.fgProfile != "" {
		f, err := os.Create(p.fgProfile)
		if err != nil {
			return stop, err
		}
		stopFG := fgprof.Start(f, fgprof.FormatPprof)
		stops = append(stops, func() {
			if err := stopFG(); err != nil {
				logger.Warn("fgprof stop error", slog.Any("error", err))
			}
			_ = f.Close()
		})
	}

	if p.cpuProfile != "" {
		f, err := os.Create(p.cpuProfile)
		if err != nil {
			return stop, err
		}
		if err := pprof.StartCPUProfile(f); err != nil {
			_ = f.Close()
			return stop, err
		}
		stops = append(stops, func() {
			pprof.StopCPUProfile()
			_ = f.Close()
		})
	}

	if p.traceFile != "" {
		f, err := os.Create(p.traceFile)
		if err != nil {
			return stop, err
		}
		if err := trace.Start(f); err != nil {
			_ = f.Close()
			return stop, err
		}
		stops = append(stops, func() {
			trace.Stop()
			_ = f.Close()
		})
	}

	if p.memProfile != "" {
		path := p.memProfile
		// Runs first on stop, before the other profiles close.
		stops = append(stops, func() {
			runtime.GC()
			f, err := os.Create(path)
			if err != nil {
				logger.Warn("heap profile error", slog.Any("error", err))
				return
			}
			if err := pprof.WriteHeapProfile(f); err != nil {
				logger.Warn("heap profile error", slog.Any("error", err))
			}
			_ = f.Close()
		})
	}
	return stop, nil
}
