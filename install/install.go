package install

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/meigma/jarmap"
	"github.com/meigma/jarmap/archive"
	"github.com/meigma/jarmap/internal/jartype"
	"github.com/meigma/jarmap/mapping"
)

// LoaderVersionAttribute is the manifest attribute naming the loader version.
const LoaderVersionAttribute = "FabricVersion"

// Progress checkpoints of an install.
const (
	percentRemoveOld  = 10
	percentDescriptor = 20
	percentWorkDir    = 40
	percentMappings   = 50
	percentRemapStart = 60
	percentRemapEnd   = 80
	percentCleanup    = 90
)

// Request describes one install.
type Request struct {
	// GameDir is the game's root directory, holding versions/.
	GameDir string

	// Version is the install version. The game version is the part before
	// the first '-'.
	Version string

	// LoaderJar is the loader jar. Empty means
	// <GameDir>/fabricData/<Version>.jar.
	LoaderJar string
}

// Result describes a finished install.
type Result struct {
	// ID is the installed version id, "fabric-<loader version>".
	ID string

	// Jar is the merged game jar.
	Jar string

	// Descriptor is the copied launch descriptor.
	Descriptor string

	// Remap describes the remapped game jar.
	Remap jarmap.Result

	// Resources is the number of vanilla entries merged into Jar.
	Resources int
}

// Descriptor is handed to a DescriptorPatcher after the vanilla launch
// descriptor has been copied.
type Descriptor struct {
	// Path is the copied descriptor, versions/<id>/<id>.json.
	Path string

	ID            string
	GameVersion   string
	LoaderVersion string

	// Loader reads the loader jar, for metadata such as dependency lists.
	Loader archive.Reader
}

// DescriptorPatcher edits a copied launch descriptor in place.
type DescriptorPatcher interface {
	PatchDescriptor(ctx context.Context, d Descriptor) error
}

// DescriptorPatcherFunc adapts a function to DescriptorPatcher.
type DescriptorPatcherFunc func(ctx context.Context, d Descriptor) error

// PatchDescriptor calls f.
func (f DescriptorPatcherFunc) PatchDescriptor(ctx context.Context, d Descriptor) error {
	return f(ctx, d)
}

// Installer performs installs. It is safe for concurrent use on distinct
// version ids.
type Installer struct {
	logger       *slog.Logger
	progress     jarmap.ProgressFunc
	patcher      DescriptorPatcher
	mappingsPath func(game string) string
	keep         func(path string) bool
	remapOpts    []jarmap.RemapOption
}

// New returns an Installer.
func New(opts ...Option) *Installer {
	i := &Installer{
		mappingsPath: DefaultMappingsPath,
		keep:         DefaultResourceFilter,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func (i *Installer) log() *slog.Logger {
	if i.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return i.logger
}

// GameVersion returns the game version part of an install version.
func GameVersion(version string) string {
	game, _, _ := strings.Cut(version, "-")
	return game
}

// ValidateLocation checks that gameDir holds vanilla version game.
func ValidateLocation(gameDir, game string) error {
	if game == "" {
		return fmt.Errorf("%w: empty game version", ErrInvalidLocation)
	}
	info, err := os.Stat(gameDir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", ErrInvalidLocation, gameDir)
	}
	versionDir := filepath.Join(gameDir, "versions", game)
	if info, err := os.Stat(versionDir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: launch vanilla version %s first", ErrInvalidLocation, game)
	}
	for _, ext := range []string{".json", ".jar"} {
		if _, err := os.Stat(filepath.Join(versionDir, game+ext)); err != nil {
			return fmt.Errorf("%w: launch vanilla version %s first", ErrInvalidLocation, game)
		}
	}
	return nil
}

// Install installs req. On failure the version directory it created is
// removed.
func (i *Installer) Install(ctx context.Context, req Request) (Result, error) {
	progress := jartype.Monotonic(i.progress)
	report := func(stage jarmap.ProgressStage, percent int, msg string) {
		if progress != nil {
			progress(jarmap.ProgressEvent{Stage: stage, Percent: percent, Message: msg})
		}
	}
	report(jarmap.StagePreparing, 0, "Installing: "+req.Version)

	game := GameVersion(req.Version)
	if err := ValidateLocation(req.GameDir, game); err != nil {
		return Result{}, err
	}
	loaderPath := req.LoaderJar
	if loaderPath == "" {
		loaderPath = filepath.Join(req.GameDir, "fabricData", req.Version+".jar")
	}
	loader, err := archive.OpenZip(loaderPath)
	if err != nil {
		return Result{}, fmt.Errorf("install: open loader jar: %w", err)
	}
	defer loader.Close()

	attrs, err := loader.Manifest()
	if err != nil && !errors.Is(err, archive.ErrNotExist) {
		return Result{}, fmt.Errorf("install: read loader manifest: %w", err)
	}
	loaderVersion := attrs[LoaderVersionAttribute]
	if loaderVersion == "" {
		return Result{}, fmt.Errorf("%w: %s", ErrMissingLoaderVersion, loaderPath)
	}
	id := "fabric-" + loaderVersion
	log := i.log().With(slog.String("id", id), slog.String("game", game))
	log.Info("installing")

	versionsDir := filepath.Join(req.GameDir, "versions")
	gameDir := filepath.Join(versionsDir, game)
	outDir := filepath.Join(versionsDir, id)
	res := Result{
		ID:         id,
		Jar:        filepath.Join(outDir, id+".jar"),
		Descriptor: filepath.Join(outDir, id+".json"),
	}

	if _, err := os.Stat(outDir); err == nil {
		report(jarmap.StagePreparing, percentRemoveOld, "Removing old version")
		if err := os.RemoveAll(outDir); err != nil {
			return Result{}, fmt.Errorf("install: remove old version: %w", err)
		}
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil { //nolint:gosec // launcher reads version dirs
		return Result{}, fmt.Errorf("install: create version dir: %w", err)
	}
	ok := false
	defer func() {
		if !ok {
			if err := os.RemoveAll(outDir); err != nil {
				log.Warn("removing partial install failed", slog.Any("error", err))
			}
		}
	}()

	if err := copyFile(filepath.Join(gameDir, game+".json"), res.Descriptor); err != nil {
		return Result{}, fmt.Errorf("install: copy descriptor: %w", err)
	}
	report(jarmap.StagePreparing, percentDescriptor, "Creating version descriptor")
	if i.patcher != nil {
		err := i.patcher.PatchDescriptor(ctx, Descriptor{
			Path:          res.Descriptor,
			ID:            id,
			GameVersion:   game,
			LoaderVersion: loaderVersion,
			Loader:        loader,
		})
		if err != nil {
			return Result{}, fmt.Errorf("install: patch descriptor: %w", err)
		}
	}

	report(jarmap.StagePreparing, percentWorkDir, "Creating temporary directory")
	workDir := filepath.Join(outDir, "temp")
	if err := os.MkdirAll(workDir, 0o700); err != nil {
		return Result{}, fmt.Errorf("install: create work dir: %w", err)
	}

	report(jarmap.StageLoadingMappings, percentMappings, "Reading mappings")
	table, err := i.loadMappings(loader, game)
	if err != nil {
		return Result{}, err
	}

	remapped := filepath.Join(workDir, id+"-remapped.jar")
	gameJar := filepath.Join(gameDir, game+".jar")
	opts := append([]jarmap.RemapOption{
		jarmap.RemapWithLogger(i.logger),
		jarmap.RemapWithProgress(remapBand(progress)),
	}, i.remapOpts...)
	res.Remap, err = jarmap.Remap(ctx, gameJar, remapped, table, opts...)
	if err != nil {
		return Result{}, err
	}

	report(jarmap.StageMerging, percentRemapEnd, "Merging resources")
	res.Resources, err = i.merge(ctx, gameJar, remapped, res.Jar)
	if err != nil {
		return Result{}, err
	}

	report(jarmap.StageDone, percentCleanup, "Removing temp directory")
	if err := os.RemoveAll(workDir); err != nil {
		return Result{}, fmt.Errorf("install: remove work dir: %w", err)
	}
	ok = true
	log.Info("install complete",
		slog.String("jar", res.Jar),
		slog.Int("classes", res.Remap.Stats.Classes),
		slog.Int("resources", res.Resources))
	report(jarmap.StageDone, 100, "Done!")
	return res, nil
}

// remapBand places remap progress in the install's remap range. The
// remap's own completion event is not the install's.
func remapBand(progress jarmap.ProgressFunc) jarmap.ProgressFunc {
	band := jartype.Band(progress, percentRemapStart, percentRemapEnd)
	if band == nil {
		return nil
	}
	return func(ev jarmap.ProgressEvent) {
		if ev.Stage == jarmap.StageDone || ev.Stage == jarmap.StagePreparing {
			ev.Stage = jarmap.StageRemapping
		}
		band(ev)
	}
}

func (i *Installer) loadMappings(loader *archive.ZipReader, game string) (*mapping.Table, error) {
	dir := i.mappingsPath(game)
	sub, err := fs.Sub(loader.FS(), dir)
	if err != nil {
		return nil, fmt.Errorf("install: mappings %s: %w", dir, err)
	}
	table, err := mapping.Load(sub, mapping.WithLogger(i.logger))
	if err != nil {
		return nil, fmt.Errorf("install: mappings %s: %w", dir, err)
	}
	return table, nil
}

// merge writes the remapped jar with the filtered vanilla entries under it
// to target.
func (i *Installer) merge(ctx context.Context, gameJar, remapped, target string) (int, error) {
	base, err := archive.OpenZip(gameJar)
	if err != nil {
		return 0, fmt.Errorf("install: open game jar: %w", err)
	}
	defer base.Close()
	overlay, err := archive.OpenZip(remapped)
	if err != nil {
		return 0, fmt.Errorf("install: open remapped jar: %w", err)
	}
	defer overlay.Close()

	dst, err := archive.CreateZip(target)
	if err != nil {
		return 0, fmt.Errorf("install: create jar: %w", err)
	}
	n, err := archive.Merge(ctx, dst, base, overlay, archive.WithBaseFilter(i.keep))
	if err != nil {
		_ = dst.Discard() //nolint:errcheck // best-effort cleanup
		return 0, fmt.Errorf("install: merge: %w", err)
	}
	if err := dst.Commit(); err != nil {
		return 0, fmt.Errorf("install: merge: %w", err)
	}
	return n - len(overlay.Entries()), nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src) //nolint:gosec // path derived from the game dir
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst) //nolint:gosec // path derived from the game dir
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
