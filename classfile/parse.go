package classfile

import "fmt"

// Parse decodes data into its structural form.
//
// Attribute bodies are not interpreted. Any structural problem, including
// trailing bytes after the last attribute, is reported as ErrTruncatedClass.
func Parse(data []byte) (*ClassFile, error) {
	c := NewCursor(data)
	cf := &ClassFile{}

	magic, err := c.U4()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, fmt.Errorf("%w: bad magic 0x%08X", ErrTruncatedClass, magic)
	}
	if cf.MinorVersion, err = c.U2(); err != nil {
		return nil, err
	}
	if cf.MajorVersion, err = c.U2(); err != nil {
		return nil, err
	}
	if cf.Pool, err = parsePool(c); err != nil {
		return nil, err
	}
	if cf.AccessFlags, err = c.U2(); err != nil {
		return nil, err
	}
	if cf.ThisClass, err = c.U2(); err != nil {
		return nil, err
	}
	if cf.SuperClass, err = c.U2(); err != nil {
		return nil, err
	}
	count, err := c.U2()
	if err != nil {
		return nil, err
	}
	cf.Interfaces = make([]uint16, count)
	for i := range cf.Interfaces {
		if cf.Interfaces[i], err = c.U2(); err != nil {
			return nil, err
		}
	}
	if cf.Fields, err = parseMembers(c); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if cf.Methods, err = parseMembers(c); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if cf.Attributes, err = ParseAttributes(c); err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	if c.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrTruncatedClass, c.Len())
	}
	if _, err := cf.Pool.Get(cf.ThisClass, TagClass); err != nil {
		return nil, fmt.Errorf("this_class: %w", err)
	}
	return cf, nil
}

func parsePool(c *Cursor) (Pool, error) {
	count, err := c.U2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, fmt.Errorf("%w: empty constant pool", ErrTruncatedClass)
	}
	pool := make(Pool, count)
	for i := 1; i < int(count); i++ {
		tag, err := c.U1()
		if err != nil {
			return nil, err
		}
		k, err := parseConstant(c, Tag(tag))
		if err != nil {
			return nil, fmt.Errorf("constant %d: %w", i, err)
		}
		pool[i] = k
		if k.wide() {
			i++
			if i >= int(count) {
				return nil, fmt.Errorf("%w: wide constant at end of pool", ErrTruncatedClass)
			}
		}
	}
	return pool, nil
}

func parseConstant(c *Cursor, tag Tag) (Constant, error) {
	k := Constant{Tag: tag}
	var err error
	switch tag {
	case TagUtf8:
		n, err := c.U2()
		if err != nil {
			return k, err
		}
		raw, err := c.Next(int(n))
		if err != nil {
			return k, err
		}
		k.Bytes = raw
		text, decErr := DecodeModifiedUTF8(raw)
		if decErr != nil {
			text = string(raw)
		}
		k.Text = text
	case TagInteger, TagFloat:
		k.Bytes, err = c.Next(4)
	case TagLong, TagDouble:
		k.Bytes, err = c.Next(8)
	case TagClass, TagString, TagMethodType, TagModule, TagPackage:
		k.Index1, err = c.U2()
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		if k.Index1, err = c.U2(); err != nil {
			return k, err
		}
		k.Index2, err = c.U2()
	case TagMethodHandle:
		if k.Kind, err = c.U1(); err != nil {
			return k, err
		}
		k.Index1, err = c.U2()
	default:
		return k, fmt.Errorf("%w: unknown constant tag %d", ErrTruncatedClass, uint8(tag))
	}
	return k, err
}

func parseMembers(c *Cursor) ([]Member, error) {
	count, err := c.U2()
	if err != nil {
		return nil, err
	}
	members := make([]Member, count)
	for i := range members {
		m := &members[i]
		if m.AccessFlags, err = c.U2(); err != nil {
			return nil, err
		}
		if m.Name, err = c.U2(); err != nil {
			return nil, err
		}
		if m.Descriptor, err = c.U2(); err != nil {
			return nil, err
		}
		if m.Attributes, err = ParseAttributes(c); err != nil {
			return nil, err
		}
	}
	return members, nil
}

// ParseAttributes reads an attributes_count followed by that many attributes.
// The returned attribute bodies alias the cursor's buffer.
func ParseAttributes(c *Cursor) ([]Attribute, error) {
	count, err := c.U2()
	if err != nil {
		return nil, err
	}
	attrs := make([]Attribute, count)
	for i := range attrs {
		if attrs[i].Name, err = c.U2(); err != nil {
			return nil, err
		}
		n, err := c.U4()
		if err != nil {
			return nil, err
		}
		if uint64(n) > uint64(c.Len()) {
			return nil, fmt.Errorf("%w: attribute length %d exceeds remaining %d bytes", ErrTruncatedClass, n, c.Len())
		}
		if attrs[i].Data, err = c.Next(int(n)); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}
