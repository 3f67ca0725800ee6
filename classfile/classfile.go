package classfile

import "fmt"

// Magic is the first four bytes of every class file.
const Magic uint32 = 0xCAFEBABE

// ClassFile is the structural form of one class.
type ClassFile struct {
	MinorVersion uint16
	MajorVersion uint16
	Pool         Pool
	AccessFlags  uint16
	ThisClass    uint16
	SuperClass   uint16 // zero only for java/lang/Object and module-info
	Interfaces   []uint16
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute
}

// Member is a declared field or method.
type Member struct {
	AccessFlags uint16
	Name        uint16
	Descriptor  uint16
	Attributes  []Attribute
}

// Attribute is a named attribute whose body is kept undecoded.
type Attribute struct {
	Name uint16
	Data []byte
}

// Name returns the internal name of the class.
func (c *ClassFile) Name() (string, error) {
	return c.Pool.ClassName(c.ThisClass)
}

// SuperName returns the internal name of the superclass, or "" if none.
func (c *ClassFile) SuperName() (string, error) {
	if c.SuperClass == 0 {
		return "", nil
	}
	return c.Pool.ClassName(c.SuperClass)
}

// InterfaceNames returns the directly implemented interfaces in declaration order.
func (c *ClassFile) InterfaceNames() ([]string, error) {
	names := make([]string, 0, len(c.Interfaces))
	for _, idx := range c.Interfaces {
		name, err := c.Pool.ClassName(idx)
		if err != nil {
			return nil, fmt.Errorf("interface: %w", err)
		}
		names = append(names, name)
	}
	return names, nil
}

// MemberInfo returns the decoded name and descriptor of m.
func (c *ClassFile) MemberInfo(m Member) (name, descriptor string, err error) {
	if name, err = c.Pool.Utf8(m.Name); err != nil {
		return "", "", err
	}
	if descriptor, err = c.Pool.Utf8(m.Descriptor); err != nil {
		return "", "", err
	}
	return name, descriptor, nil
}

// AttributeName returns the decoded name of a.
func (c *ClassFile) AttributeName(a Attribute) (string, error) {
	return c.Pool.Utf8(a.Name)
}

// FindAttribute returns the first attribute in attrs named name.
func (c *ClassFile) FindAttribute(attrs []Attribute, name string) (Attribute, bool) {
	for _, a := range attrs {
		if n, err := c.Pool.Utf8(a.Name); err == nil && n == name {
			return a, true
		}
	}
	return Attribute{}, false
}
