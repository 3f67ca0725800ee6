package rewrite_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/internal/testutil"
	"github.com/meigma/jarmap/mapping"
	"github.com/meigma/jarmap/rewrite"
	"github.com/meigma/jarmap/translate"
)

const attrMappings = `CLASS a net/example/Base
	FIELD f size I
	METHOD m render (La;)V
CLASS c net/example/User
	METHOD x helper ()V
	FIELD p point La;
CLASS e net/example/Color
	FIELD r RED Le;
CLASS i net/example/Action
	METHOD a run ()V
CLASS q net/example/Tag
	METHOD v value ()Le;
`

const lambdaMetafactory = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;" +
	"Ljava/lang/invoke/MethodType;Ljava/lang/invoke/MethodHandle;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"

// refInvokeStatic is the MethodHandle reference kind of a static method.
const refInvokeStatic = 6

// callSites are the dynamic constants of the attribute fixture.
type callSites struct {
	lambda, concat, condy uint16
}

func attrFixture(t *testing.T) ([]byte, callSites) {
	t.Helper()
	var cs callSites
	b := testutil.NewClass("c", "a")

	metafactory := b.MethodHandle(refInvokeStatic, b.Methodref("java/lang/invoke/LambdaMetafactory", "metafactory", lambdaMetafactory))
	impl := b.MethodHandle(refInvokeStatic, b.Methodref("c", "lambda$x$0", "()V"))
	cs.lambda = b.InvokeDynamic(b.BootstrapMethod(metafactory, b.MethodType("()V"), impl, b.MethodType("()V")), "a", "()Li;")
	concat := b.MethodHandle(refInvokeStatic, b.Methodref("java/lang/invoke/StringConcatFactory", "makeConcatWithConstants", "()V"))
	cs.concat = b.InvokeDynamic(b.BootstrapMethod(concat, b.StringConst("\x01")), "makeConcatWithConstants", "(La;)Ljava/lang/String;")
	constant := b.MethodHandle(refInvokeStatic, b.Methodref("c", "make", "()La;"))
	cs.condy = b.Dynamic(b.BootstrapMethod(constant), "k", "La;")

	enclosing := append(testutil.U2(b.Class("a")), testutil.U2(b.NameAndType("m", "(La;)V"))...)

	var record []byte
	record = append(record, testutil.U2(1)...)
	record = append(record, testutil.U2(b.Utf8("p"))...)
	record = append(record, testutil.U2(b.Utf8("La;"))...)
	record = append(record, testutil.U2(1)...)
	record = append(record, testutil.U2(b.Utf8("Signature"))...)
	record = append(record, testutil.U4(2)...)
	record = append(record, testutil.U2(b.Utf8("La;"))...)

	var annot []byte
	annot = append(annot, testutil.U2(1)...)
	annot = append(annot, testutil.U2(b.Utf8("Lq;"))...)
	annot = append(annot, testutil.U2(1)...)
	annot = append(annot, testutil.U2(b.Utf8("v"))...)
	annot = append(annot, 'e')
	annot = append(annot, testutil.U2(b.Utf8("Le;"))...)
	annot = append(annot, testutil.U2(b.Utf8("r"))...)

	var lvtt []byte
	lvtt = append(lvtt, testutil.U2(1)...)
	lvtt = append(lvtt, testutil.U2(0)...)
	lvtt = append(lvtt, testutil.U2(1)...)
	lvtt = append(lvtt, testutil.U2(b.Utf8("list"))...)
	lvtt = append(lvtt, testutil.U2(b.Utf8("Ljava/util/List<La;>;"))...)
	lvtt = append(lvtt, testutil.U2(1)...)

	var params []byte
	params = append(params, 1)
	params = append(params, testutil.U2(1)...)
	params = append(params, testutil.U2(b.Utf8("La;"))...)
	params = append(params, testutil.U2(0)...)

	var typeAnnots []byte
	typeAnnots = append(typeAnnots, testutil.U2(2)...)
	typeAnnots = append(typeAnnots, 0x16, 0, 0) // formal parameter 0, empty path
	typeAnnots = append(typeAnnots, testutil.U2(b.Utf8("La;"))...)
	typeAnnots = append(typeAnnots, testutil.U2(0)...)
	typeAnnots = append(typeAnnots, 0x40) // local variable, one range
	typeAnnots = append(typeAnnots, testutil.U2(1)...)
	typeAnnots = append(typeAnnots, 0, 0, 0, 1, 0, 1)
	typeAnnots = append(typeAnnots, 1, 3, 0) // one path entry
	typeAnnots = append(typeAnnots, testutil.U2(b.Utf8("Lc;"))...)
	typeAnnots = append(typeAnnots, testutil.U2(0)...)

	var fieldTypeAnnots []byte
	fieldTypeAnnots = append(fieldTypeAnnots, testutil.U2(1)...)
	fieldTypeAnnots = append(fieldTypeAnnots, 0x13, 0) // field, empty path
	fieldTypeAnnots = append(fieldTypeAnnots, testutil.U2(b.Utf8("Le;"))...)
	fieldTypeAnnots = append(fieldTypeAnnots, testutil.U2(0)...)

	var def []byte
	def = append(def, '[')
	def = append(def, testutil.U2(1)...)
	def = append(def, 'e')
	def = append(def, testutil.U2(b.Utf8("Le;"))...)
	def = append(def, testutil.U2(b.Utf8("r"))...)

	b.Field(classfile.AccPrivate|classfile.AccFinal, "p", "La;", b.Attr("RuntimeVisibleTypeAnnotations", fieldTypeAnnots)).
		Method(classfile.AccPublic, "x", "(La;)V", []byte{testutil.OpReturn},
			[]classfile.Attribute{b.Attr("LocalVariableTypeTable", lvtt)},
			b.Attr("RuntimeVisibleParameterAnnotations", params),
			b.Attr("RuntimeInvisibleTypeAnnotations", typeAnnots)).
		Method(classfile.AccPublic|classfile.AccAbstract, "colors", "()[Le;", nil, nil,
			b.Attr("AnnotationDefault", def)).
		ClassAttr(b.Attr("EnclosingMethod", enclosing)).
		ClassAttr(b.Attr("Record", record)).
		ClassAttr(b.Attr("RuntimeVisibleAnnotations", annot))
	return b.Bytes(t), cs
}

func attrTable(t *testing.T) *mapping.Table {
	t.Helper()
	b := mapping.NewBuilder()
	require.NoError(t, mapping.Parse(strings.NewReader(attrMappings), "attrs.mapping", b))
	return b.Build()
}

func TestRewriteAttributes(t *testing.T) {
	t.Parallel()

	data, cs := attrFixture(t)
	annotationType := testutil.NewClass("q", "java/lang/Object", "java/lang/annotation/Annotation").
		Method(classfile.AccPublic|classfile.AccAbstract, "v", "()Le;", nil, nil)
	tr, err := translate.New(attrTable(t), newIndex(t, data, annotationType.Bytes(t)), mapping.Deobfuscating)
	require.NoError(t, err)

	out, err := rewrite.Rewrite(data, tr, rewrite.Preserve)
	require.NoError(t, err)
	cf := mustParse(t, out.Data)
	pool := cf.Pool

	utf8 := func(t *testing.T, b []byte, off int) string {
		t.Helper()
		s, err := pool.Utf8(u2(b, off))
		require.NoError(t, err)
		return s
	}
	nameAndType := func(t *testing.T, idx uint16, tag classfile.Tag) []string {
		t.Helper()
		c, err := pool.Get(idx, tag)
		require.NoError(t, err)
		name, desc, err := pool.NameAndType(c.Index2)
		require.NoError(t, err)
		return []string{name, desc}
	}

	t.Run("call sites", func(t *testing.T) {
		assert.Equal(t, []string{"run", "()Lnet/example/Action;"}, nameAndType(t, cs.lambda, classfile.TagInvokeDynamic),
			"lambda takes the name of the interface method it implements")
		assert.Equal(t, []string{"makeConcatWithConstants", "(Lnet/example/Base;)Ljava/lang/String;"},
			nameAndType(t, cs.concat, classfile.TagInvokeDynamic))
		assert.Equal(t, []string{"k", "Lnet/example/Base;"}, nameAndType(t, cs.condy, classfile.TagDynamic))

		lambda, err := pool.Get(cs.lambda)
		require.NoError(t, err)
		assert.Equal(t, uint16(0), lambda.Index1, "bootstrap method index is kept")
	})

	t.Run("enclosing method", func(t *testing.T) {
		em := attr(t, cf, cf.Attributes, "EnclosingMethod")
		owner, err := pool.ClassName(u2(em, 0))
		require.NoError(t, err)
		assert.Equal(t, "net/example/Base", owner)
		name, desc, err := pool.NameAndType(u2(em, 2))
		require.NoError(t, err)
		assert.Equal(t, []string{"render", "(Lnet/example/Base;)V"}, []string{name, desc})
	})

	t.Run("record", func(t *testing.T) {
		rec := attr(t, cf, cf.Attributes, "Record")
		require.Equal(t, uint16(1), u2(rec, 0))
		assert.Equal(t, "point", utf8(t, rec, 2))
		assert.Equal(t, "Lnet/example/Base;", utf8(t, rec, 4))
		assert.Equal(t, "Signature", utf8(t, rec, 8))
		assert.Equal(t, "Lnet/example/Base;", utf8(t, rec, 14), "component attributes are walked")
	})

	t.Run("annotation elements", func(t *testing.T) {
		ann := attr(t, cf, cf.Attributes, "RuntimeVisibleAnnotations")
		assert.Equal(t, "Lnet/example/Tag;", utf8(t, ann, 2))
		assert.Equal(t, "value", utf8(t, ann, 6))
		assert.Equal(t, "Lnet/example/Color;", utf8(t, ann, 9))
		assert.Equal(t, "RED", utf8(t, ann, 11))
	})

	t.Run("local variable types", func(t *testing.T) {
		code := attr(t, cf, cf.Methods[0].Attributes, "Code")
		lvtt := code[8+1+2+2+6:]
		assert.Equal(t, "list", utf8(t, lvtt, 2+4))
		assert.Equal(t, "Ljava/util/List<Lnet/example/Base;>;", utf8(t, lvtt, 2+6))
	})

	t.Run("parameter annotations", func(t *testing.T) {
		params := attr(t, cf, cf.Methods[0].Attributes, "RuntimeVisibleParameterAnnotations")
		assert.Equal(t, byte(1), params[0])
		assert.Equal(t, "Lnet/example/Base;", utf8(t, params, 3))
	})

	t.Run("type annotations", func(t *testing.T) {
		ta := attr(t, cf, cf.Methods[0].Attributes, "RuntimeInvisibleTypeAnnotations")
		assert.Equal(t, "Lnet/example/Base;", utf8(t, ta, 5))
		assert.Equal(t, "Lnet/example/User;", utf8(t, ta, 21))

		fta := attr(t, cf, cf.Fields[0].Attributes, "RuntimeVisibleTypeAnnotations")
		assert.Equal(t, "Lnet/example/Color;", utf8(t, fta, 4))
	})

	t.Run("annotation default", func(t *testing.T) {
		def := attr(t, cf, cf.Methods[1].Attributes, "AnnotationDefault")
		assert.Equal(t, byte('['), def[0])
		assert.Equal(t, "Lnet/example/Color;", utf8(t, def, 4))
		assert.Equal(t, "RED", utf8(t, def, 6))
	})
}

func TestRewriteCallSiteWithoutBootstrap(t *testing.T) {
	t.Parallel()

	b := testutil.NewClass("c", "java/lang/Object")
	b.InvokeDynamic(0, "a", "()Li;")
	tr, err := translate.New(attrTable(t), nil, mapping.Deobfuscating)
	require.NoError(t, err)

	_, err = rewrite.Rewrite(b.Bytes(t), tr, rewrite.Preserve)
	require.ErrorIs(t, err, classfile.ErrCorruptReference)
}
