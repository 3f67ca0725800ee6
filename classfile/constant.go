package classfile

import "fmt"

// Tag identifies the kind of a constant-pool entry.
type Tag uint8

// Constant-pool tags defined by the JVM specification.
const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20
)

// String returns the JVM name of the tag.
func (t Tag) String() string {
	switch t {
	case TagUtf8:
		return "Utf8"
	case TagInteger:
		return "Integer"
	case TagFloat:
		return "Float"
	case TagLong:
		return "Long"
	case TagDouble:
		return "Double"
	case TagClass:
		return "Class"
	case TagString:
		return "String"
	case TagFieldref:
		return "Fieldref"
	case TagMethodref:
		return "Methodref"
	case TagInterfaceMethodref:
		return "InterfaceMethodref"
	case TagNameAndType:
		return "NameAndType"
	case TagMethodHandle:
		return "MethodHandle"
	case TagMethodType:
		return "MethodType"
	case TagDynamic:
		return "Dynamic"
	case TagInvokeDynamic:
		return "InvokeDynamic"
	case TagModule:
		return "Module"
	case TagPackage:
		return "Package"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// IsMemberRef reports whether the tag is a field or method reference.
func (t Tag) IsMemberRef() bool {
	return t == TagFieldref || t == TagMethodref || t == TagInterfaceMethodref
}

// Constant is one fixed-layout constant-pool record.
//
// The meaning of Index1 and Index2 depends on Tag:
//   - Class, String, MethodType, Module, Package: Index1
//   - Fieldref, Methodref, InterfaceMethodref: Index1 class, Index2 NameAndType
//   - NameAndType: Index1 name, Index2 descriptor
//   - MethodHandle: Kind and Index1 reference
//   - Dynamic, InvokeDynamic: Index1 bootstrap method, Index2 NameAndType
//
// Bytes holds the raw payload of Utf8 (modified UTF-8), Integer, Float,
// Long and Double entries. Text is the decoded form of a Utf8 entry.
// A zero Tag marks the unusable slot 0 and the slot after a Long or Double.
type Constant struct {
	Tag    Tag
	Index1 uint16
	Index2 uint16
	Kind   uint8
	Bytes  []byte
	Text   string
}

// Utf8 returns a Utf8 constant holding s.
func Utf8(s string) Constant {
	return Constant{Tag: TagUtf8, Bytes: EncodeModifiedUTF8(s), Text: s}
}

// NameAndType returns a NameAndType constant.
func NameAndType(name, descriptor uint16) Constant {
	return Constant{Tag: TagNameAndType, Index1: name, Index2: descriptor}
}

// wide reports whether the constant occupies two pool slots.
func (c Constant) wide() bool {
	return c.Tag == TagLong || c.Tag == TagDouble
}

// Pool is a constant pool addressed by its 1-based JVM index.
// Index 0 is never a valid entry.
type Pool []Constant

// Count returns the constant_pool_count value for the pool.
func (p Pool) Count() int {
	return len(p)
}

// Clone returns a copy of the pool that can be appended to and edited
// without affecting p. Byte payloads are shared and must not be mutated.
func (p Pool) Clone() Pool {
	out := make(Pool, len(p), len(p)+len(p)/4+8)
	copy(out, p)
	return out
}

// Append adds c to the end of the pool and returns its index.
func (p *Pool) Append(c Constant) (uint16, error) {
	if len(*p) == 0 {
		*p = append(*p, Constant{})
	}
	idx := len(*p)
	limit := 0xFFFF
	if c.wide() {
		limit--
	}
	if idx >= limit {
		return 0, ErrPoolOverflow
	}
	*p = append(*p, c)
	if c.wide() {
		*p = append(*p, Constant{})
	}
	return uint16(idx), nil //nolint:gosec // bounded above
}

// Get returns the entry at index i, which must have one of the given tags.
func (p Pool) Get(i uint16, tags ...Tag) (Constant, error) {
	if i == 0 || int(i) >= len(p) {
		return Constant{}, fmt.Errorf("%w: index %d out of range (pool size %d)", ErrCorruptReference, i, len(p))
	}
	c := p[i]
	if len(tags) == 0 {
		if c.Tag == 0 {
			return Constant{}, fmt.Errorf("%w: index %d is an unusable slot", ErrCorruptReference, i)
		}
		return c, nil
	}
	for _, t := range tags {
		if c.Tag == t {
			return c, nil
		}
	}
	return Constant{}, fmt.Errorf("%w: index %d is %s, want %v", ErrCorruptReference, i, c.Tag, tags)
}

// Utf8 returns the decoded text of the Utf8 entry at i.
func (p Pool) Utf8(i uint16) (string, error) {
	c, err := p.Get(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.Text, nil
}

// ClassName returns the internal name referenced by the Class entry at i.
func (p Pool) ClassName(i uint16) (string, error) {
	c, err := p.Get(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(c.Index1)
}

// NameAndType returns the name and descriptor of the NameAndType entry at i.
func (p Pool) NameAndType(i uint16) (name, descriptor string, err error) {
	c, err := p.Get(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	if name, err = p.Utf8(c.Index1); err != nil {
		return "", "", err
	}
	if descriptor, err = p.Utf8(c.Index2); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// MemberRef returns the owner, name and descriptor of the field or method
// reference at i.
func (p Pool) MemberRef(i uint16) (owner, name, descriptor string, err error) {
	c, err := p.Get(i, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return "", "", "", err
	}
	if owner, err = p.ClassName(c.Index1); err != nil {
		return "", "", "", err
	}
	name, descriptor, err = p.NameAndType(c.Index2)
	if err != nil {
		return "", "", "", err
	}
	return owner, name, descriptor, nil
}
