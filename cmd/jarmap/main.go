// Command jarmap remaps obfuscated JVM archives and installs loader
// versions into a game directory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/meigma/jarmap"
	"github.com/meigma/jarmap/cache/disk"
	"github.com/meigma/jarmap/install"
	"github.com/meigma/jarmap/internal/config"
	"github.com/meigma/jarmap/mapping"
	"github.com/meigma/jarmap/rewrite"
)

const usage = `usage: jarmap <command> [flags]

commands:
  remap     rewrite a jar through a mapping table
  install   install a loader version into a game directory
  mappings  summarize a mapping table
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(stderr, err)
		return 1
	}

	var cmdErr error
	switch args[0] {
	case "remap":
		cmdErr = runRemap(ctx, cfg, args[1:], stdout, stderr)
	case "install":
		cmdErr = runInstall(ctx, cfg, args[1:], stdout, stderr)
	case "mappings":
		cmdErr = runMappings(cfg, args[1:], stdout, stderr)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(stdout, usage)
		return 0
	default:
		fmt.Fprintf(stderr, "jarmap: unknown command %q\n%s", args[0], usage)
		return 2
	}

	switch {
	case cmdErr == nil:
		return 0
	case errors.Is(cmdErr, flag.ErrHelp):
		return 0
	case errors.Is(cmdErr, errUsage):
		return 2
	default:
		fmt.Fprintf(stderr, "jarmap: %v\n", cmdErr)
		if jarmap.IsStructural(cmdErr) {
			fmt.Fprintln(stderr, "jarmap: the input archive holds a malformed class file")
		}
		return 1
	}
}

var errUsage = errors.New("usage error")

// commonFlags are shared by remap and install.
type commonFlags struct {
	direction     string
	policy        string
	workers       int
	maxDepth      int
	cacheDir      string
	cacheMaxBytes int64
	logLevel      string
	logFormat     string
	quiet         bool
	profile       profileFlags
}

func (c *commonFlags) register(fs *flag.FlagSet, cfg config.Config) {
	fs.StringVar(&c.direction, "direction", cfg.Direction.String(), "translation direction: deobfuscating or obfuscating")
	fs.StringVar(&c.policy, "policy", jarmap.PolicyPublicify, "access policy: publicify or preserve")
	fs.IntVar(&c.workers, "workers", cfg.Workers, "concurrent class rewrites (0 = GOMAXPROCS)")
	fs.IntVar(&c.maxDepth, "max-depth", cfg.MaxDepth, "inheritance walk bound (0 = default)")
	fs.StringVar(&c.cacheDir, "cache-dir", cfg.CacheDir, "remap cache directory (empty disables caching)")
	fs.Int64Var(&c.cacheMaxBytes, "cache-max-bytes", cfg.CacheMaxBytes, "remap cache size limit (0 = unlimited)")
	fs.StringVar(&c.logLevel, "log-level", cfg.LogLevel.String(), "log level: debug, info, warn, error")
	fs.StringVar(&c.logFormat, "log-format", cfg.LogFormat, "log format: text or json")
	fs.BoolVar(&c.quiet, "quiet", false, "do not print progress")
	c.profile.register(fs)
}

func (c *commonFlags) logger(cfg config.Config, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(c.logLevel)
	if err != nil {
		return nil, fmt.Errorf("log-level: %w", err)
	}
	cfg.LogLevel = level
	cfg.LogFormat = c.logFormat
	return cfg.Logger(w), nil
}

func (c *commonFlags) remapOptions(logger *slog.Logger, progress io.Writer) ([]jarmap.RemapOption, error) {
	dir, ok := mapping.ParseDirection(c.direction)
	if !ok {
		return nil, fmt.Errorf("unknown direction %q", c.direction)
	}
	opts := []jarmap.RemapOption{
		jarmap.RemapWithDirection(dir),
		jarmap.RemapWithWorkers(c.workers),
		jarmap.RemapWithMaxDepth(c.maxDepth),
		jarmap.RemapWithLogger(logger),
	}
	switch c.policy {
	case jarmap.PolicyPublicify:
		opts = append(opts, jarmap.RemapWithPolicy(jarmap.PolicyPublicify, rewrite.Publicify))
	case "preserve":
		opts = append(opts, jarmap.RemapWithPolicy("preserve", rewrite.Preserve))
	default:
		return nil, fmt.Errorf("unknown policy %q", c.policy)
	}
	if c.cacheDir != "" {
		cache, err := disk.New(c.cacheDir, disk.WithMaxBytes(c.cacheMaxBytes))
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
		opts = append(opts, jarmap.RemapWithCache(cache))
	}
	if !c.quiet {
		opts = append(opts, jarmap.RemapWithProgress(printProgress(progress)))
	}
	return opts, nil
}

func printProgress(w io.Writer) jarmap.ProgressFunc {
	last := -1
	return func(ev jarmap.ProgressEvent) {
		if ev.Percent == last && ev.Message == "" {
			return
		}
		last = ev.Percent
		if ev.Message != "" {
			fmt.Fprintf(w, "[%3d%%] %s: %s\n", ev.Percent, ev.Stage, ev.Message)
			return
		}
		fmt.Fprintf(w, "[%3d%%] %s %d/%d\n", ev.Percent, ev.Stage, ev.Done, ev.Total)
	}
}

func loadTable(path string, logger *slog.Logger) (*mapping.Table, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return mapping.LoadDir(path, mapping.WithLogger(logger))
	}
	return mapping.LoadFile(path, mapping.WithLogger(logger))
}

func runRemap(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("remap", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	var mappingsPath, in, out string
	var keepSignatures bool
	fs.StringVar(&mappingsPath, "mappings", "", "mapping file or directory")
	fs.StringVar(&in, "in", "", "input jar")
	fs.StringVar(&out, "out", "", "output jar")
	fs.BoolVar(&keepSignatures, "keep-signatures", false, "keep jar signature files")
	common.register(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if mappingsPath == "" || in == "" || out == "" {
		fmt.Fprintln(stderr, "remap: -mappings, -in and -out are required")
		fs.Usage()
		return errUsage
	}

	logger, err := common.logger(cfg, stderr)
	if err != nil {
		return err
	}
	stopProfiles, err := common.profile.start(logger)
	defer stopProfiles()
	if err != nil {
		return err
	}

	table, err := loadTable(mappingsPath, logger)
	if err != nil {
		return err
	}
	opts, err := common.remapOptions(logger, stderr)
	if err != nil {
		return err
	}
	opts = append(opts, jarmap.RemapWithStripSignatures(!keepSignatures))

	res, err := jarmap.Remap(ctx, in, out, table, opts...)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "%s digest=%s cached=%t entries=%d classes=%d renamed=%d stripped=%d\n",
		out, res.Digest, res.Cached, res.Stats.Entries, res.Stats.Classes, res.Stats.Renamed, res.Stats.Stripped)
	return nil
}

func runInstall(ctx context.Context, cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("install", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var common commonFlags
	var req install.Request
	fs.StringVar(&req.GameDir, "game-dir", "", "game directory")
	fs.StringVar(&req.Version, "version", "", "install version (<game>-<loader>)")
	fs.StringVar(&req.LoaderJar, "loader", "", "loader jar (default <game-dir>/fabricData/<version>.jar)")
	common.register(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if req.GameDir == "" || req.Version == "" {
		fmt.Fprintln(stderr, "install: -game-dir and -version are required")
		fs.Usage()
		return errUsage
	}

	logger, err := common.logger(cfg, stderr)
	if err != nil {
		return err
	}
	stopProfiles, err := common.profile.start(logger)
	defer stopProfiles()
	if err != nil {
		return err
	}

	remapOpts, err := common.remapOptions(logger, io.Discard)
	if err != nil {
		return err
	}
	opts := []install.Option{
		install.WithLogger(logger),
		install.WithRemapOptions(remapOpts...),
	}
	if !common.quiet {
		opts = append(opts, install.WithProgress(printProgress(stderr)))
	}

	res, err := install.New(opts...).Install(ctx, req)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "installed %s into %s (classes=%d)\n", res.ID, res.Jar, res.Remap.Stats.Classes)
	return nil
}

func runMappings(cfg config.Config, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("mappings", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var check string
	logLevel := cfg.LogLevel.String()
	fs.StringVar(&check, "check", "", "also verify the table inverts for this direction")
	fs.StringVar(&logLevel, "log-level", logLevel, "log level")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "mappings: expected one mapping file or directory")
		return errUsage
	}
	level, err := config.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("log-level: %w", err)
	}
	cfg.LogLevel = level
	logger := cfg.Logger(stderr)

	table, err := loadTable(fs.Arg(0), logger)
	if err != nil {
		return err
	}
	if check != "" {
		dir, ok := mapping.ParseDirection(check)
		if !ok {
			return fmt.Errorf("unknown direction %q", check)
		}
		if err := table.Prepare(dir); err != nil {
			return err
		}
	}
	classes, members := table.Len()
	fmt.Fprintf(stdout, "classes=%d members=%d digest=%s\n", classes, members, table.Digest())
	return nil
}
