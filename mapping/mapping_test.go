package mapping_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/jarmap/mapping"
)

const enigmaSample = `CLASS a com/example/Widget
	FIELD b count I
	METHOD c render (La;Lnone/d;)V
		ARG 1 target
	METHOD <init> ()V
	CLASS e Part ACC:PUBLIC
		FIELD f owner La;
CLASS none/d com/example/Target # trailing comment
CLASS g
	COMMENT an unnamed class with a mapped member
	METHOD h tick ()V
`

func parse(t *testing.T, src string) *mapping.Table {
	t.Helper()
	b := mapping.NewBuilder()
	require.NoError(t, mapping.Parse(strings.NewReader(src), "test.mapping", b))
	return b.Build()
}

func TestParseEnigma(t *testing.T) {
	t.Parallel()

	table := parse(t, enigmaSample)

	classes, members := table.Len()
	assert.Equal(t, 3, classes)
	assert.Equal(t, 4, members)

	name, ok := table.ResolveClass("a", mapping.Deobfuscating)
	require.True(t, ok)
	assert.Equal(t, "com/example/Widget", name)

	name, ok = table.ResolveClass("a$e", mapping.Deobfuscating)
	require.True(t, ok)
	assert.Equal(t, "com/example/Widget$Part", name)

	name, ok = table.ResolveClass("d", mapping.Deobfuscating)
	require.True(t, ok, "legacy none/ prefix is stripped")
	assert.Equal(t, "com/example/Target", name)

	_, ok = table.ResolveClass("g", mapping.Deobfuscating)
	assert.False(t, ok)

	sig, ok := table.ResolveMember(mapping.MemberSignature{Owner: "a", Name: "c", Descriptor: "(La;Ld;)V"}, mapping.Deobfuscating)
	require.True(t, ok)
	assert.Equal(t, mapping.MemberSignature{
		Owner:      "com/example/Widget",
		Name:       "render",
		Descriptor: "(Lcom/example/Widget;Lcom/example/Target;)V",
	}, sig)

	sig, ok = table.ResolveMember(mapping.MemberSignature{Owner: "a$e", Name: "f", Descriptor: "La;"}, mapping.Deobfuscating)
	require.True(t, ok)
	assert.Equal(t, "owner", sig.Name)

	sig, ok = table.ResolveMember(mapping.MemberSignature{Owner: "g", Name: "h", Descriptor: "()V"}, mapping.Deobfuscating)
	require.True(t, ok)
	assert.Equal(t, mapping.MemberSignature{Owner: "g", Name: "tick", Descriptor: "()V"}, sig)
}

func TestParseTiny(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
	}{
		{
			name: "v1",
			src: "v1\tofficial\tnamed\n" +
				"CLASS\ta\tcom/example/Widget\n" +
				"FIELD\ta\tI\tb\tcount\n" +
				"METHOD\ta\t(La;)V\tc\trender\n",
		},
		{
			name: "v2",
			src: "tiny\t2\t0\tofficial\tnamed\n" +
				"\tescaped-names\n" +
				"c\ta\tcom/example/Widget\n" +
				"\tc\tA widget.\n" +
				"\tf\tI\tb\tcount\n" +
				"\tm\t(La;)V\tc\trender\n" +
				"\t\tp\t1\t\ttarget\n" +
				"\t\tc\tRenders.\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			table := parse(t, tt.src)

			name, ok := table.ResolveClass("a", mapping.Deobfuscating)
			require.True(t, ok)
			assert.Equal(t, "com/example/Widget", name)

			sig, ok := table.ResolveMember(mapping.MemberSignature{Owner: "a", Name: "b", Descriptor: "I"}, mapping.Deobfuscating)
			require.True(t, ok)
			assert.Equal(t, "count", sig.Name)

			sig, ok = table.ResolveMember(mapping.MemberSignature{Owner: "a", Name: "c", Descriptor: "(La;)V"}, mapping.Deobfuscating)
			require.True(t, ok)
			assert.Equal(t, "(Lcom/example/Widget;)V", sig.Descriptor)
		})
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		line int
	}{
		{name: "field outside class", src: "FIELD a b I\n", line: 1},
		{name: "bad indentation", src: "CLASS a b\n\t\tFIELD c d I\n", line: 2},
		{name: "arg under field", src: "CLASS a b\n\tFIELD c d I\n\t\tARG 1 x\n", line: 3},
		{name: "unknown record", src: "CLASS a b\nPACKAGE x\n", line: 2},
		{name: "method with field descriptor", src: "CLASS a b\n\tMETHOD c d I\n", line: 2},
		{name: "invalid descriptor", src: "CLASS a b\n\tFIELD c d Q\n", line: 2},
		{name: "too many class names", src: "CLASS a b c\n", line: 1},
		{name: "tiny v2 member at top level", src: "tiny\t2\t0\ta\tb\nf\tI\ta\tb\n", line: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := mapping.Parse(strings.NewReader(tt.src), "bad.mapping", mapping.NewBuilder())
			require.ErrorIs(t, err, mapping.ErrMalformedMapping)

			var perr *mapping.ParseError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, "bad.mapping", perr.File)
			assert.Equal(t, tt.line, perr.Line)
		})
	}
}

func TestBuilderAmbiguous(t *testing.T) {
	t.Parallel()

	b := mapping.NewBuilder()
	require.NoError(t, b.AddClass("a", "Widget"))
	require.NoError(t, b.AddClass("a", "Widget"), "identical re-add is allowed")
	require.ErrorIs(t, b.AddClass("a", "Gadget"), mapping.ErrAmbiguousMapping)

	sig := mapping.MemberSignature{Owner: "a", Name: "b", Descriptor: "I"}
	require.NoError(t, b.AddMember(sig, "count"))
	require.ErrorIs(t, b.AddMember(sig, "total"), mapping.ErrAmbiguousMapping)
}

func TestInverse(t *testing.T) {
	t.Parallel()

	table := parse(t, enigmaSample)
	require.NoError(t, table.Prepare(mapping.Obfuscating))

	name, ok := table.ResolveClass("com/example/Widget", mapping.Obfuscating)
	require.True(t, ok)
	assert.Equal(t, "a", name)

	sig, ok := table.ResolveMember(mapping.MemberSignature{
		Owner:      "com/example/Widget",
		Name:       "render",
		Descriptor: "(Lcom/example/Widget;Lcom/example/Target;)V",
	}, mapping.Obfuscating)
	require.True(t, ok)
	assert.Equal(t, mapping.MemberSignature{Owner: "a", Name: "c", Descriptor: "(La;Ld;)V"}, sig)

	inv, err := table.Invert()
	require.NoError(t, err)
	name, ok = inv.ResolveClass("com/example/Target", mapping.Deobfuscating)
	require.True(t, ok)
	assert.Equal(t, "d", name)
	assert.NotEqual(t, table.Digest(), inv.Digest())
}

func TestInverseAmbiguous(t *testing.T) {
	t.Parallel()

	t.Run("classes", func(t *testing.T) {
		t.Parallel()
		table := parse(t, "CLASS a Widget\nCLASS b Widget\n")
		require.NoError(t, table.Prepare(mapping.Deobfuscating))
		require.ErrorIs(t, table.Prepare(mapping.Obfuscating), mapping.ErrAmbiguousMapping)
		_, err := table.Invert()
		require.ErrorIs(t, err, mapping.ErrAmbiguousMapping)
	})

	t.Run("members", func(t *testing.T) {
		t.Parallel()
		table := parse(t, "CLASS a Widget\n\tMETHOD b run ()V\n\tMETHOD c run ()V\n")
		require.ErrorIs(t, table.Prepare(mapping.Obfuscating), mapping.ErrAmbiguousMapping)
	})
}

func TestDigestIgnoresLoadOrder(t *testing.T) {
	t.Parallel()

	one := parse(t, "CLASS a Widget\nCLASS b Gadget\n")
	two := parse(t, "CLASS b Gadget\nCLASS a Widget\n")
	assert.Equal(t, one.Digest(), two.Digest())
	assert.NotEqual(t, one.Digest(), parse(t, "CLASS a Widget\n").Digest())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"mappings/a.mapping":      {Data: []byte("CLASS a Widget\n")},
		"mappings/net/b.mapping":  {Data: []byte("CLASS b Gadget\n\tFIELD c size J\n")},
		"mappings/extra.tiny":     {Data: []byte("v1\tofficial\tnamed\nCLASS\tc\tSprocket\n")},
		"mappings/README.md":      {Data: []byte("not a mapping")},
		"mappings/dup/a.mappings": {Data: []byte("CLASS a Widget\n")},
	}

	table, err := mapping.Load(fsys)
	require.NoError(t, err)
	classes, members := table.Len()
	assert.Equal(t, 3, classes)
	assert.Equal(t, 1, members)

	_, err = mapping.Load(fstest.MapFS{"README.md": {Data: []byte("x")}})
	require.ErrorIs(t, err, mapping.ErrNoMappings)

	fsys["mappings/z.mapping"] = &fstest.MapFile{Data: []byte("CLASS a Other\n")}
	_, err = mapping.Load(fsys)
	require.ErrorIs(t, err, mapping.ErrAmbiguousMapping)
	var perr *mapping.ParseError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "mappings/z.mapping", perr.File)
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "one.mapping")
	require.NoError(t, os.WriteFile(path, []byte("CLASS a Widget\n"), 0o644))

	table, err := mapping.LoadFile(path)
	require.NoError(t, err)
	name, ok := table.ResolveClass("a", mapping.Deobfuscating)
	require.True(t, ok)
	assert.Equal(t, "Widget", name)

	fromDir, err := mapping.LoadDir(dir)
	require.NoError(t, err)
	assert.Equal(t, table.Digest(), fromDir.Digest())
}

func TestParseDirection(t *testing.T) {
	t.Parallel()

	dir, ok := mapping.ParseDirection("obf")
	require.True(t, ok)
	assert.Equal(t, mapping.Obfuscating, dir)
	dir, ok = mapping.ParseDirection(mapping.Deobfuscating.String())
	require.True(t, ok)
	assert.Equal(t, mapping.Deobfuscating, dir)
	_, ok = mapping.ParseDirection("sideways")
	assert.False(t, ok)
}
