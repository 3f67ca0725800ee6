package testutil

import (
	"encoding/binary"
	"testing"

	"github.com/meigma/jarmap/classfile"
)

// Opcodes used by the fixtures.
const (
	OpAload0          byte = 0x2a
	OpReturn          byte = 0xb1
	OpGetField        byte = 0xb4
	OpInvokeVirtual   byte = 0xb6
	OpInvokeSpecial   byte = 0xb7
	OpInvokeStatic    byte = 0xb8
	OpInvokeInterface byte = 0xb9
	OpNew             byte = 0xbb
	OpCheckCast       byte = 0xc0
)

// ClassBuilder assembles class files for tests.
//
// Constants are interned, so asking twice for the same Utf8, Class or
// NameAndType returns the same index, which mirrors what javac emits and
// lets tests exercise shared pool entries.
type ClassBuilder struct {
	cf    classfile.ClassFile
	utf8  map[string]uint16
	class map[string]uint16
	nat   map[[2]string]uint16
	inner []byte
	rows  uint16
	bsm   []byte
	bsms  uint16
}

// NewClass starts a class with the given name, superclass (may be empty)
// and interfaces. The class is public and targets Java 8.
func NewClass(name, super string, interfaces ...string) *ClassBuilder {
	b := &ClassBuilder{
		utf8:  make(map[string]uint16),
		class: make(map[string]uint16),
		nat:   make(map[[2]string]uint16),
	}
	b.cf.MajorVersion = 52
	b.cf.Pool = classfile.Pool{{}}
	b.cf.AccessFlags = classfile.AccPublic | classfile.AccSuper
	b.cf.ThisClass = b.Class(name)
	if super != "" {
		b.cf.SuperClass = b.Class(super)
	}
	for _, iface := range interfaces {
		b.cf.Interfaces = append(b.cf.Interfaces, b.Class(iface))
	}
	return b
}

func (b *ClassBuilder) add(c classfile.Constant) uint16 {
	idx, err := b.cf.Pool.Append(c)
	if err != nil {
		panic(err)
	}
	return idx
}

// Utf8 interns a Utf8 constant.
func (b *ClassBuilder) Utf8(s string) uint16 {
	if idx, ok := b.utf8[s]; ok {
		return idx
	}
	idx := b.add(classfile.Utf8(s))
	b.utf8[s] = idx
	return idx
}

// Class interns a Class constant.
func (b *ClassBuilder) Class(name string) uint16 {
	if idx, ok := b.class[name]; ok {
		return idx
	}
	idx := b.add(classfile.Constant{Tag: classfile.TagClass, Index1: b.Utf8(name)})
	b.class[name] = idx
	return idx
}

// NameAndType interns a NameAndType constant.
func (b *ClassBuilder) NameAndType(name, desc string) uint16 {
	key := [2]string{name, desc}
	if idx, ok := b.nat[key]; ok {
		return idx
	}
	idx := b.add(classfile.NameAndType(b.Utf8(name), b.Utf8(desc)))
	b.nat[key] = idx
	return idx
}

// Fieldref adds a field reference.
func (b *ClassBuilder) Fieldref(owner, name, desc string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagFieldref, Index1: b.Class(owner), Index2: b.NameAndType(name, desc)})
}

// Methodref adds a method reference.
func (b *ClassBuilder) Methodref(owner, name, desc string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagMethodref, Index1: b.Class(owner), Index2: b.NameAndType(name, desc)})
}

// InterfaceMethodref adds an interface method reference.
func (b *ClassBuilder) InterfaceMethodref(owner, name, desc string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagInterfaceMethodref, Index1: b.Class(owner), Index2: b.NameAndType(name, desc)})
}

// MethodType adds a MethodType constant.
func (b *ClassBuilder) MethodType(desc string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagMethodType, Index1: b.Utf8(desc)})
}

// MethodHandle adds a MethodHandle constant of reference kind kind.
func (b *ClassBuilder) MethodHandle(kind uint8, ref uint16) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagMethodHandle, Kind: kind, Index1: ref})
}

// InvokeDynamic adds a call site bootstrapped by entry bsm of the
// BootstrapMethods attribute.
func (b *ClassBuilder) InvokeDynamic(bsm uint16, name, desc string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagInvokeDynamic, Index1: bsm, Index2: b.NameAndType(name, desc)})
}

// Dynamic adds a dynamically computed constant.
func (b *ClassBuilder) Dynamic(bsm uint16, name, desc string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagDynamic, Index1: bsm, Index2: b.NameAndType(name, desc)})
}

// BootstrapMethod adds an entry to the class's BootstrapMethods attribute
// and returns its index.
func (b *ClassBuilder) BootstrapMethod(handle uint16, args ...uint16) uint16 {
	b.bsm = append(b.bsm, U2(handle)...)
	b.bsm = append(b.bsm, U2(uint16(len(args)))...) //nolint:gosec // test fixture
	for _, a := range args {
		b.bsm = append(b.bsm, U2(a)...)
	}
	b.bsms++
	return b.bsms - 1
}

// StringConst adds a String constant.
func (b *ClassBuilder) StringConst(s string) uint16 {
	return b.add(classfile.Constant{Tag: classfile.TagString, Index1: b.Utf8(s)})
}

// Attr builds an attribute with the given name.
func (b *ClassBuilder) Attr(name string, data []byte) classfile.Attribute {
	return classfile.Attribute{Name: b.Utf8(name), Data: data}
}

// Signature builds a Signature attribute.
func (b *ClassBuilder) Signature(sig string) classfile.Attribute {
	return b.Attr("Signature", U2(b.Utf8(sig)))
}

// Field declares a field.
func (b *ClassBuilder) Field(access uint16, name, desc string, attrs ...classfile.Attribute) *ClassBuilder {
	b.cf.Fields = append(b.cf.Fields, classfile.Member{
		AccessFlags: access,
		Name:        b.Utf8(name),
		Descriptor:  b.Utf8(desc),
		Attributes:  attrs,
	})
	return b
}

// Method declares a method. A non-nil code slice is wrapped in a Code
// attribute carrying codeAttrs.
func (b *ClassBuilder) Method(access uint16, name, desc string, code []byte, codeAttrs []classfile.Attribute, attrs ...classfile.Attribute) *ClassBuilder {
	if code != nil {
		attrs = append([]classfile.Attribute{b.Code(code, codeAttrs...)}, attrs...)
	}
	b.cf.Methods = append(b.cf.Methods, classfile.Member{
		AccessFlags: access,
		Name:        b.Utf8(name),
		Descriptor:  b.Utf8(desc),
		Attributes:  attrs,
	})
	return b
}

// Code builds a Code attribute with no exception table.
func (b *ClassBuilder) Code(code []byte, attrs ...classfile.Attribute) classfile.Attribute {
	var d []byte
	d = append(d, U2(4)...) // max_stack
	d = append(d, U2(4)...) // max_locals
	d = binary.BigEndian.AppendUint32(d, uint32(len(code))) //nolint:gosec // test fixture
	d = append(d, code...)
	d = append(d, U2(0)...) // exception_table_length
	d = append(d, attrTable(attrs)...)
	return b.Attr("Code", d)
}

// LocalVariableTable builds a single-row LocalVariableTable attribute.
func (b *ClassBuilder) LocalVariableTable(name, desc string, slot uint16) classfile.Attribute {
	d := U2(1)
	d = append(d, U2(0)...) // start_pc
	d = append(d, U2(1)...) // length
	d = append(d, U2(b.Utf8(name))...)
	d = append(d, U2(b.Utf8(desc))...)
	d = append(d, U2(slot)...)
	return b.Attr("LocalVariableTable", d)
}

// InnerClass adds a row to the class's InnerClasses attribute.
func (b *ClassBuilder) InnerClass(inner, outer, simple string, flags uint16) *ClassBuilder {
	b.inner = append(b.inner, U2(b.Class(inner))...)
	var outerIdx, nameIdx uint16
	if outer != "" {
		outerIdx = b.Class(outer)
	}
	if simple != "" {
		nameIdx = b.Utf8(simple)
	}
	b.inner = append(b.inner, U2(outerIdx)...)
	b.inner = append(b.inner, U2(nameIdx)...)
	b.inner = append(b.inner, U2(flags)...)
	b.rows++
	return b
}

// ClassAttr adds a class-level attribute.
func (b *ClassBuilder) ClassAttr(a classfile.Attribute) *ClassBuilder {
	b.cf.Attributes = append(b.cf.Attributes, a)
	return b
}

// Build returns the structural form of the class.
func (b *ClassBuilder) Build() *classfile.ClassFile {
	attrs := append([]classfile.Attribute(nil), b.cf.Attributes...)
	if b.rows > 0 {
		attrs = append(attrs, b.Attr("InnerClasses", append(U2(b.rows), b.inner...)))
	}
	if b.bsms > 0 {
		attrs = append(attrs, b.Attr("BootstrapMethods", append(U2(b.bsms), b.bsm...)))
	}
	cf := b.cf
	cf.Attributes = attrs
	return &cf
}

// Bytes serializes the class, failing the test on error.
func (b *ClassBuilder) Bytes(tb testing.TB) []byte {
	tb.Helper()
	data, err := b.Build().Bytes()
	if err != nil {
		tb.Fatalf("serialize class: %v", err)
	}
	return data
}

// Invoke returns "aload_0; <op> idx; return" bytecode.
func Invoke(op byte, idx uint16) []byte {
	code := []byte{OpAload0, op}
	code = append(code, U2(idx)...)
	if op == OpInvokeInterface {
		code = append(code, 1, 0)
	}
	return append(code, OpReturn)
}

// U2 encodes v big-endian.
func U2(v uint16) []byte {
	return binary.BigEndian.AppendUint16(nil, v)
}

// U4 encodes v big-endian.
func U4(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

func attrTable(attrs []classfile.Attribute) []byte {
	d := U2(uint16(len(attrs))) //nolint:gosec // test fixture
	for _, a := range attrs {
		d = append(d, U2(a.Name)...)
		d = binary.BigEndian.AppendUint32(d, uint32(len(a.Data))) //nolint:gosec // test fixture
		d = append(d, a.Data...)
	}
	return d
}
