package install_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/jarmap"
	"github.com/meigma/jarmap/archive"
	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/install"
	"github.com/meigma/jarmap/internal/testutil"
)

const (
	game    = "1.12"
	version = "1.12-0.1.0"
)

const mappings = `CLASS a net/example/Thing
	FIELD b count I
`

func writeGame(t *testing.T, dir string) {
	t.Helper()
	versionDir := filepath.Join(dir, "versions", game)
	thing := testutil.NewClass("a", "java/lang/Object").
		Field(classfile.AccPrivate, "b", "I").
		Bytes(t)
	testutil.WriteJar(t, filepath.Join(versionDir, game+".jar"),
		testutil.File{Name: "META-INF/MANIFEST.MF", Data: []byte("Manifest-Version: 1.0\n")},
		testutil.File{Name: "a.class", Data: thing},
		testutil.File{Name: "assets/lang/en_us.lang", Data: []byte("a=b")},
		testutil.File{Name: "log4j2.xml", Data: []byte("<xml/>")},
		testutil.File{Name: "pack.png", Data: []byte("png")},
	)
	require.NoError(t, os.WriteFile(filepath.Join(versionDir, game+".json"), []byte(`{"id":"1.12"}`), 0o600))
}

func writeLoader(t *testing.T, path, manifest string, files ...testutil.File) {
	t.Helper()
	all := append([]testutil.File{{Name: "META-INF/MANIFEST.MF", Data: []byte(manifest)}}, files...)
	testutil.WriteJar(t, path, all...)
}

func defaultLoader(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "loader.jar")
	writeLoader(t, path, "Manifest-Version: 1.0\nFabricVersion: 0.1.0\n",
		testutil.File{Name: "pomf-1.12/mappings/a.mapping", Data: []byte(mappings)},
		testutil.File{Name: "dependencies.json", Data: []byte(`{"libraries":[]}`)},
	)
	return path
}

func TestInstall(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGame(t, dir)
	loader := defaultLoader(t, dir)

	// A previous install is replaced.
	stale := filepath.Join(dir, "versions", "fabric-0.1.0", "stale.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0o750))
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	var patched install.Descriptor
	var events []jarmap.ProgressEvent
	inst := install.New(
		install.WithDescriptorPatcher(install.DescriptorPatcherFunc(func(_ context.Context, d install.Descriptor) error {
			patched = d
			deps, err := d.Loader.ReadEntry("dependencies.json")
			require.NoError(t, err)
			assert.JSONEq(t, `{"libraries":[]}`, string(deps))
			return os.WriteFile(d.Path, []byte(`{"id":"`+d.ID+`"}`), 0o600)
		})),
		install.WithProgress(func(ev jarmap.ProgressEvent) {
			events = append(events, ev)
		}),
	)

	res, err := inst.Install(context.Background(), install.Request{GameDir: dir, Version: version, LoaderJar: loader})
	require.NoError(t, err)

	assert.Equal(t, "fabric-0.1.0", res.ID)
	assert.Equal(t, "fabric-0.1.0", patched.ID)
	assert.Equal(t, game, patched.GameVersion)
	assert.Equal(t, "0.1.0", patched.LoaderVersion)

	desc, err := os.ReadFile(res.Descriptor)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"fabric-0.1.0"}`, string(desc))

	files := testutil.ReadJar(t, res.Jar)
	assert.Equal(t, []string{
		"META-INF/MANIFEST.MF",
		"net/example/Thing.class",
		"assets/lang/en_us.lang",
		"log4j2.xml",
		"pack.png",
	}, testutil.Names(files))
	assert.Equal(t, 1, res.Remap.Stats.Classes)

	d, err := archive.FileDigest(res.Jar)
	require.NoError(t, err)
	assert.NotEmpty(t, d)

	_, err = os.Stat(stale)
	assert.True(t, os.IsNotExist(err), "old install contents survived")
	_, err = os.Stat(filepath.Join(dir, "versions", "fabric-0.1.0", "temp"))
	assert.True(t, os.IsNotExist(err), "work dir survived")

	require.NotEmpty(t, events)
	assert.Equal(t, 0, events[0].Percent)
	assert.Equal(t, 100, events[len(events)-1].Percent)
	assert.Equal(t, jarmap.StageDone, events[len(events)-1].Stage)
	for i := 1; i < len(events); i++ {
		assert.GreaterOrEqual(t, events[i].Percent, events[i-1].Percent)
		if events[i].Stage == jarmap.StageDone {
			assert.GreaterOrEqual(t, events[i].Percent, 90, "only the install itself reports done")
		}
	}
}

func TestInstallDefaultLoaderPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGame(t, dir)
	writeLoader(t, filepath.Join(dir, "fabricData", version+".jar"), "FabricVersion: 0.2.0\n",
		testutil.File{Name: "pomf-1.12/mappings/a.mapping", Data: []byte(mappings)})

	res, err := install.New().Install(context.Background(), install.Request{GameDir: dir, Version: version})
	require.NoError(t, err)
	assert.Equal(t, "fabric-0.2.0", res.ID)
	assert.FileExists(t, res.Jar)
}

func TestInstallInvalidLocation(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	loader := defaultLoader(t, dir)

	_, err := install.New().Install(context.Background(), install.Request{GameDir: dir, Version: version, LoaderJar: loader})
	require.ErrorIs(t, err, install.ErrInvalidLocation)

	_, err = install.New().Install(context.Background(), install.Request{GameDir: filepath.Join(dir, "missing"), Version: version})
	require.ErrorIs(t, err, install.ErrInvalidLocation)

	require.ErrorIs(t, install.ValidateLocation(dir, ""), install.ErrInvalidLocation)
}

func TestInstallMissingLoaderVersion(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGame(t, dir)
	loader := filepath.Join(dir, "loader.jar")
	writeLoader(t, loader, "Manifest-Version: 1.0\n")

	_, err := install.New().Install(context.Background(), install.Request{GameDir: dir, Version: version, LoaderJar: loader})
	require.ErrorIs(t, err, install.ErrMissingLoaderVersion)

	entries, err := os.ReadDir(filepath.Join(dir, "versions"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "only the vanilla version should exist")
}

func TestInstallFailureRemovesPartialOutput(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGame(t, dir)
	loader := filepath.Join(dir, "loader.jar")
	writeLoader(t, loader, "FabricVersion: 0.1.0\n") // no mappings

	_, err := install.New().Install(context.Background(), install.Request{GameDir: dir, Version: version, LoaderJar: loader})
	require.Error(t, err)

	_, err = os.Stat(filepath.Join(dir, "versions", "fabric-0.1.0"))
	assert.True(t, os.IsNotExist(err), "partial install left behind")
}

func TestInstallCustomMappingsPath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeGame(t, dir)
	loader := filepath.Join(dir, "loader.jar")
	writeLoader(t, loader, "FabricVersion: 0.3.0\n",
		testutil.File{Name: "mappings/1.12/a.mapping", Data: []byte(mappings)})

	inst := install.New(
		install.WithMappingsPath(func(game string) string { return "mappings/" + game }),
		install.WithRemapOptions(jarmap.RemapWithWorkers(1)),
	)
	res, err := inst.Install(context.Background(), install.Request{GameDir: dir, Version: version, LoaderJar: loader})
	require.NoError(t, err)
	assert.Equal(t, "fabric-0.3.0", res.ID)
}

func TestDefaultResourceFilter(t *testing.T) {
	t.Parallel()

	assert.True(t, install.DefaultResourceFilter("assets/icons/icon.png"))
	assert.True(t, install.DefaultResourceFilter("log4j2.xml"))
	assert.True(t, install.DefaultResourceFilter("pack.png"))
	assert.False(t, install.DefaultResourceFilter("a.class"))
	assert.False(t, install.DefaultResourceFilter("META-INF/MANIFEST.MF"))
	assert.Equal(t, "1.12", install.GameVersion("1.12-0.1.0"))
	assert.Equal(t, "pomf-1.12/mappings", install.DefaultMappingsPath("1.12"))
}
