package rewrite_test

import (
	"bytes"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/classindex"
	"github.com/meigma/jarmap/internal/testutil"
	"github.com/meigma/jarmap/mapping"
	"github.com/meigma/jarmap/rewrite"
	"github.com/meigma/jarmap/translate"
)

const mappings = `CLASS a net/example/Base
	FIELD f size I
	METHOD m render (La;)V
	CLASS b Inner
CLASS c net/example/User
	METHOD x helper ()V
`

func newTable(t *testing.T) *mapping.Table {
	t.Helper()
	b := mapping.NewBuilder()
	require.NoError(t, mapping.Parse(strings.NewReader(mappings), "test.mapping", b))
	return b.Build()
}

// fixture is a class c extending a with references covering every rewrite
// path.
type fixture struct {
	data       []byte
	code       []byte
	baseRef    uint16
	otherRef   uint16
	fieldRef   uint16
	stringRef  uint16
	methodType uint16
}

func buildFixture(t *testing.T) fixture {
	t.Helper()
	var f fixture
	b := testutil.NewClass("c", "a")
	f.baseRef = b.Methodref("a", "m", "(La;)V")
	f.otherRef = b.Methodref("d", "m", "(La;)V") // shares the NameAndType above
	f.fieldRef = b.Fieldref("c", "f", "I")
	f.stringRef = b.StringConst("a")
	f.methodType = b.MethodType("(La;)V")
	f.code = testutil.Invoke(testutil.OpInvokeVirtual, f.baseRef)

	var annot []byte
	annot = append(annot, testutil.U2(1)...)
	annot = append(annot, testutil.U2(b.Utf8("La;"))...)
	annot = append(annot, testutil.U2(2)...)
	annot = append(annot, testutil.U2(b.Utf8("value"))...)
	annot = append(annot, 'c')
	annot = append(annot, testutil.U2(b.Utf8("Lc;"))...)
	annot = append(annot, testutil.U2(b.Utf8("kind"))...)
	annot = append(annot, 'e')
	annot = append(annot, testutil.U2(b.Utf8("La;"))...)
	annot = append(annot, testutil.U2(b.Utf8("FOO"))...)

	b.Field(classfile.AccPrivate, "g", "La;", b.Signature("Ljava/util/List<La;>;")).
		Method(classfile.AccProtected, "x", "()V", f.code,
			[]classfile.Attribute{b.LocalVariableTable("this", "Lc;", 0)},
			b.Attr("RuntimeVisibleAnnotations", annot)).
		Method(classfile.AccPublic, "<init>", "()V", []byte{testutil.OpReturn}, nil).
		InnerClass("a$b", "a", "b", classfile.AccPrivate|classfile.AccStatic).
		ClassAttr(b.Signature("La;Ljava/lang/Comparable<Lc;>;"))
	f.data = b.Bytes(t)
	return f
}

func newIndex(t *testing.T, classes ...[]byte) *classindex.Index {
	t.Helper()
	base := testutil.NewClass("a", "java/lang/Object").
		Field(classfile.AccProtected, "f", "I").
		Method(classfile.AccPublic, "m", "(La;)V", []byte{testutil.OpReturn}, nil)
	descs := make([]classindex.ClassDescriptor, 0, len(classes)+1)
	for _, data := range append([][]byte{base.Bytes(t)}, classes...) {
		d, err := classindex.Describe(data)
		require.NoError(t, err)
		descs = append(descs, d)
	}
	return classindex.New(descs...)
}

func attr(t *testing.T, cf *classfile.ClassFile, attrs []classfile.Attribute, name string) []byte {
	t.Helper()
	a, ok := cf.FindAttribute(attrs, name)
	require.True(t, ok, "missing %s", name)
	return a.Data
}

func u2(b []byte, off int) uint16 {
	return uint16(b[off])<<8 | uint16(b[off+1])
}

func TestRewrite(t *testing.T) {
	t.Parallel()

	f := buildFixture(t)
	original := bytes.Clone(f.data)
	tr, err := translate.New(newTable(t), newIndex(t, f.data), mapping.Deobfuscating)
	require.NoError(t, err)

	out, err := rewrite.New(tr, rewrite.Publicify).Rewrite(f.data)
	require.NoError(t, err)
	assert.Equal(t, original, f.data, "input is not modified")
	assert.Equal(t, "net/example/User", out.Name)

	cf, err := classfile.Parse(out.Data)
	require.NoError(t, err)
	pool := cf.Pool

	name, err := cf.Name()
	require.NoError(t, err)
	assert.Equal(t, "net/example/User", name)
	super, err := cf.SuperName()
	require.NoError(t, err)
	assert.Equal(t, "net/example/Base", super)
	assert.Equal(t, classfile.AccPublic|classfile.AccSuper, cf.AccessFlags, "class flags are left alone")

	t.Run("member references", func(t *testing.T) {
		owner, mname, desc, err := pool.MemberRef(f.baseRef)
		require.NoError(t, err)
		assert.Equal(t, []string{"net/example/Base", "render", "(Lnet/example/Base;)V"}, []string{owner, mname, desc})

		owner, mname, desc, err = pool.MemberRef(f.otherRef)
		require.NoError(t, err)
		assert.Equal(t, []string{"d", "m", "(Lnet/example/Base;)V"}, []string{owner, mname, desc})

		owner, mname, desc, err = pool.MemberRef(f.fieldRef)
		require.NoError(t, err)
		assert.Equal(t, []string{"net/example/User", "size", "I"}, []string{owner, mname, desc}, "resolved through the superclass")
	})

	t.Run("constants", func(t *testing.T) {
		str, err := pool.Get(f.stringRef, classfile.TagString)
		require.NoError(t, err)
		text, err := pool.Utf8(str.Index1)
		require.NoError(t, err)
		assert.Equal(t, "a", text, "string literals are not class names")

		mt, err := pool.Get(f.methodType, classfile.TagMethodType)
		require.NoError(t, err)
		text, err = pool.Utf8(mt.Index1)
		require.NoError(t, err)
		assert.Equal(t, "(Lnet/example/Base;)V", text)
	})

	t.Run("declarations", func(t *testing.T) {
		require.Len(t, cf.Fields, 1)
		fname, fdesc, err := cf.MemberInfo(cf.Fields[0])
		require.NoError(t, err)
		assert.Equal(t, "g", fname)
		assert.Equal(t, "Lnet/example/Base;", fdesc)
		assert.Equal(t, classfile.AccPublic, cf.Fields[0].AccessFlags)

		sig := attr(t, cf, cf.Fields[0].Attributes, "Signature")
		text, err := pool.Utf8(u2(sig, 0))
		require.NoError(t, err)
		assert.Equal(t, "Ljava/util/List<Lnet/example/Base;>;", text)

		require.Len(t, cf.Methods, 2)
		mname, mdesc, err := cf.MemberInfo(cf.Methods[0])
		require.NoError(t, err)
		assert.Equal(t, "helper", mname)
		assert.Equal(t, "()V", mdesc)
		assert.Equal(t, classfile.AccPublic, cf.Methods[0].AccessFlags)

		mname, _, err = cf.MemberInfo(cf.Methods[1])
		require.NoError(t, err)
		assert.Equal(t, "<init>", mname)
	})

	t.Run("code", func(t *testing.T) {
		code := attr(t, cf, cf.Methods[0].Attributes, "Code")
		assert.Equal(t, f.code, code[8:8+len(f.code)], "bytecode is unchanged")

		// LocalVariableTable follows the empty exception table.
		lvt := code[8+len(f.code)+2+2+6:]
		text, err := pool.Utf8(u2(lvt, 2+6))
		require.NoError(t, err)
		assert.Equal(t, "Lnet/example/User;", text)
	})

	t.Run("annotations", func(t *testing.T) {
		data := attr(t, cf, cf.Methods[0].Attributes, "RuntimeVisibleAnnotations")
		typ, err := pool.Utf8(u2(data, 2))
		require.NoError(t, err)
		assert.Equal(t, "Lnet/example/Base;", typ)

		class, err := pool.Utf8(u2(data, 9))
		require.NoError(t, err)
		assert.Equal(t, "Lnet/example/User;", class)

		enumType, err := pool.Utf8(u2(data, 14))
		require.NoError(t, err)
		assert.Equal(t, "Lnet/example/Base;", enumType)
		enumConst, err := pool.Utf8(u2(data, 16))
		require.NoError(t, err)
		assert.Equal(t, "FOO", enumConst)
	})

	t.Run("class attributes", func(t *testing.T) {
		sig := attr(t, cf, cf.Attributes, "Signature")
		text, err := pool.Utf8(u2(sig, 0))
		require.NoError(t, err)
		assert.Equal(t, "Lnet/example/Base;Ljava/lang/Comparable<Lnet/example/User;>;", text)

		inner := attr(t, cf, cf.Attributes, "InnerClasses")
		require.Equal(t, uint16(1), u2(inner, 0))
		innerName, err := pool.ClassName(u2(inner, 2))
		require.NoError(t, err)
		assert.Equal(t, "net/example/Base$Inner", innerName)
		simple, err := pool.Utf8(u2(inner, 6))
		require.NoError(t, err)
		assert.Equal(t, "Inner", simple)
		assert.Equal(t, classfile.AccPublic|classfile.AccStatic, u2(inner, 8))
	})
}

func TestRewriteKeepsPoolIndices(t *testing.T) {
	t.Parallel()

	f := buildFixture(t)
	before, err := classfile.Parse(f.data)
	require.NoError(t, err)

	tr, err := translate.New(newTable(t), newIndex(t, f.data), mapping.Deobfuscating)
	require.NoError(t, err)
	out, err := rewrite.Rewrite(f.data, tr, rewrite.Preserve)
	require.NoError(t, err)
	after, err := classfile.Parse(out.Data)
	require.NoError(t, err)

	require.Greater(t, after.Pool.Count(), before.Pool.Count())
	for i := 1; i < before.Pool.Count(); i++ {
		assert.Equal(t, before.Pool[i].Tag, after.Pool[i].Tag, "slot %d", i)
		if before.Pool[i].Tag == classfile.TagUtf8 {
			assert.Equal(t, before.Pool[i].Text, after.Pool[i].Text, "Utf8 entries are never edited")
		}
	}
	assert.Equal(t, classfile.AccProtected, after.Methods[0].AccessFlags, "Preserve keeps flags")
}

func TestRewriteRoundTrip(t *testing.T) {
	t.Parallel()

	f := buildFixture(t)
	table := newTable(t)

	fwd, err := translate.New(table, newIndex(t, f.data), mapping.Deobfuscating)
	require.NoError(t, err)
	readable, err := rewrite.Rewrite(f.data, fwd, rewrite.Preserve)
	require.NoError(t, err)

	// The reverse pass resolves inherited members against readable names.
	base := testutil.NewClass("net/example/Base", "java/lang/Object").
		Field(classfile.AccProtected, "size", "I").
		Method(classfile.AccPublic, "render", "(Lnet/example/Base;)V", []byte{testutil.OpReturn}, nil)
	var descs []classindex.ClassDescriptor
	for _, data := range [][]byte{base.Bytes(t), readable.Data} {
		d, err := classindex.Describe(data)
		require.NoError(t, err)
		descs = append(descs, d)
	}
	rev, err := translate.New(table, classindex.New(descs...), mapping.Obfuscating)
	require.NoError(t, err)
	back, err := rewrite.Rewrite(readable.Data, rev, rewrite.Preserve)
	require.NoError(t, err)
	assert.Equal(t, "c", back.Name)

	orig, err := classindex.Describe(f.data)
	require.NoError(t, err)
	got, err := classindex.Describe(back.Data)
	require.NoError(t, err)
	assert.Equal(t, orig, got)

	cf, err := classfile.Parse(back.Data)
	require.NoError(t, err)
	for _, idx := range []uint16{f.baseRef, f.otherRef, f.fieldRef} {
		wantOwner, wantName, wantDesc, err := mustParse(t, f.data).Pool.MemberRef(idx)
		require.NoError(t, err)
		owner, name, desc, err := cf.Pool.MemberRef(idx)
		require.NoError(t, err)
		assert.Equal(t, []string{wantOwner, wantName, wantDesc}, []string{owner, name, desc})
	}
}

func mustParse(t *testing.T, data []byte) *classfile.ClassFile {
	t.Helper()
	cf, err := classfile.Parse(data)
	require.NoError(t, err)
	return cf
}

func TestRewriteErrors(t *testing.T) {
	t.Parallel()

	tr, err := translate.New(newTable(t), nil, mapping.Deobfuscating)
	require.NoError(t, err)
	rw := rewrite.New(tr, nil)

	t.Run("truncated", func(t *testing.T) {
		t.Parallel()
		data := testutil.NewClass("a", "java/lang/Object").Bytes(t)
		_, err := rw.Rewrite(data[:12])
		require.ErrorIs(t, err, classfile.ErrTruncatedClass)
	})

	t.Run("wrong tag", func(t *testing.T) {
		t.Parallel()
		cf := testutil.NewClass("a", "java/lang/Object").Build()
		_, err := cf.Pool.Append(classfile.Constant{Tag: classfile.TagMethodref, Index1: cf.ThisClass, Index2: cf.ThisClass})
		require.NoError(t, err)
		data, err := cf.Bytes()
		require.NoError(t, err)
		_, err = rw.Rewrite(data)
		require.ErrorIs(t, err, classfile.ErrCorruptReference)
	})

	t.Run("bad annotation", func(t *testing.T) {
		t.Parallel()
		b := testutil.NewClass("a", "java/lang/Object")
		var annot []byte
		annot = append(annot, testutil.U2(1)...)
		annot = append(annot, testutil.U2(b.Utf8("La;"))...)
		annot = append(annot, testutil.U2(1)...)
		annot = append(annot, testutil.U2(b.Utf8("v"))...)
		annot = append(annot, '?', 0, 0)
		data := b.ClassAttr(b.Attr("RuntimeInvisibleAnnotations", annot)).Bytes(t)
		_, err := rw.Rewrite(data)
		require.ErrorIs(t, err, classfile.ErrTruncatedClass)
	})

	t.Run("pool overflow", func(t *testing.T) {
		t.Parallel()
		b := testutil.NewClass("a", "java/lang/Object")
		for i := 0; b.Build().Pool.Count() < 0xFFFF; i++ {
			b.Utf8(strconv.Itoa(i))
		}
		_, err := rw.Rewrite(b.Bytes(t))
		require.ErrorIs(t, err, classfile.ErrPoolOverflow)
	})
}

func TestPublicify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want uint16
	}{
		{0, classfile.AccPublic},
		{classfile.AccPrivate | classfile.AccStatic, classfile.AccPublic | classfile.AccStatic},
		{classfile.AccProtected | classfile.AccFinal, classfile.AccPublic | classfile.AccFinal},
		{classfile.AccPublic | classfile.AccPrivate, classfile.AccPublic | classfile.AccPrivate},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, rewrite.Publicify(tt.in, rewrite.KindMethod))
	}

	for flags := range 1 << 16 {
		once := rewrite.Publicify(uint16(flags), rewrite.KindField)
		require.Equal(t, once, rewrite.Publicify(once, rewrite.KindField))
	}
}

func TestComposePolicies(t *testing.T) {
	t.Parallel()

	clearFinal := func(flags uint16, _ rewrite.EntityKind) uint16 {
		return flags &^ classfile.AccFinal
	}
	p := rewrite.Compose(rewrite.Publicify, nil, rewrite.ForKinds(clearFinal, rewrite.KindField))
	assert.Equal(t, classfile.AccPublic, p(classfile.AccPrivate|classfile.AccFinal, rewrite.KindField))
	assert.Equal(t, classfile.AccPublic|classfile.AccFinal, p(classfile.AccFinal, rewrite.KindMethod))
	assert.Equal(t, "inner-class", rewrite.KindInnerClass.String())
}
