package classfile

import (
	"encoding/binary"
	"fmt"

	"github.com/meigma/jarmap/internal/sizing"
)

// Bytes serializes the class file.
func (cf *ClassFile) Bytes() ([]byte, error) {
	w := &writer{buf: make([]byte, 0, 4096)}
	w.u4(Magic)
	w.u2(cf.MinorVersion)
	w.u2(cf.MajorVersion)
	if err := w.pool(cf.Pool); err != nil {
		return nil, err
	}
	w.u2(cf.AccessFlags)
	w.u2(cf.ThisClass)
	w.u2(cf.SuperClass)
	n, err := sizing.ToUint16(len(cf.Interfaces), fmt.Errorf("%w: too many interfaces", ErrCorruptReference))
	if err != nil {
		return nil, err
	}
	w.u2(n)
	for _, idx := range cf.Interfaces {
		w.u2(idx)
	}
	if err := w.members(cf.Fields); err != nil {
		return nil, fmt.Errorf("fields: %w", err)
	}
	if err := w.members(cf.Methods); err != nil {
		return nil, fmt.Errorf("methods: %w", err)
	}
	if err := w.attributes(cf.Attributes); err != nil {
		return nil, fmt.Errorf("attributes: %w", err)
	}
	return w.buf, nil
}

type writer struct {
	buf []byte
}

func (w *writer) u1(v uint8)  { w.buf = append(w.buf, v) }
func (w *writer) u2(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *writer) u4(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }

func (w *writer) pool(p Pool) error {
	count, err := sizing.ToUint16(len(p), ErrPoolOverflow)
	if err != nil {
		return err
	}
	w.u2(count)
	for i := 1; i < len(p); i++ {
		k := p[i]
		if k.Tag == 0 {
			// Second slot of a Long or Double.
			continue
		}
		w.u1(uint8(k.Tag))
		switch k.Tag {
		case TagUtf8:
			raw := k.Bytes
			if raw == nil {
				raw = EncodeModifiedUTF8(k.Text)
			}
			n, err := sizing.ToUint16(len(raw), fmt.Errorf("%w: constant %d: Utf8 too long", ErrPoolOverflow, i))
			if err != nil {
				return err
			}
			w.u2(n)
			w.buf = append(w.buf, raw...)
		case TagInteger, TagFloat, TagLong, TagDouble:
			w.buf = append(w.buf, k.Bytes...)
		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			w.u2(k.Index1)
		case TagMethodHandle:
			w.u1(k.Kind)
			w.u2(k.Index1)
		default:
			w.u2(k.Index1)
			w.u2(k.Index2)
		}
	}
	return nil
}

func (w *writer) members(ms []Member) error {
	n, err := sizing.ToUint16(len(ms), fmt.Errorf("%w: too many members", ErrCorruptReference))
	if err != nil {
		return err
	}
	w.u2(n)
	for _, m := range ms {
		w.u2(m.AccessFlags)
		w.u2(m.Name)
		w.u2(m.Descriptor)
		if err := w.attributes(m.Attributes); err != nil {
			return err
		}
	}
	return nil
}

func (w *writer) attributes(attrs []Attribute) error {
	n, err := sizing.ToUint16(len(attrs), fmt.Errorf("%w: too many attributes", ErrCorruptReference))
	if err != nil {
		return err
	}
	w.u2(n)
	for _, a := range attrs {
		size, err := sizing.ToUint32(len(a.Data), fmt.Errorf("%w: attribute too large", ErrCorruptReference))
		if err != nil {
			return err
		}
		w.u2(a.Name)
		w.u4(size)
		w.buf = append(w.buf, a.Data...)
	}
	return nil
}
