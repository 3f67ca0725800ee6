package classfile

import (
	"encoding/binary"
	"fmt"
)

// Cursor reads big-endian class-file fields from a byte slice and can patch
// u2 values in place. Every read is bounds-checked; running past the end
// yields ErrTruncatedClass.
type Cursor struct {
	buf []byte
	pos int
}

// NewCursor returns a cursor positioned at the start of b.
func NewCursor(b []byte) *Cursor {
	return &Cursor{buf: b}
}

// Pos returns the current offset.
func (c *Cursor) Pos() int { return c.pos }

// Len returns the number of unread bytes.
func (c *Cursor) Len() int { return len(c.buf) - c.pos }

// Bytes returns the underlying slice.
func (c *Cursor) Bytes() []byte { return c.buf }

func (c *Cursor) need(n int) error {
	if n < 0 || c.pos+n > len(c.buf) {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", ErrTruncatedClass, n, c.pos, len(c.buf)-c.pos)
	}
	return nil
}

// U1 reads one byte.
func (c *Cursor) U1() (uint8, error) {
	if err := c.need(1); err != nil {
		return 0, err
	}
	v := c.buf[c.pos]
	c.pos++
	return v, nil
}

// U2 reads a big-endian uint16.
func (c *Cursor) U2() (uint16, error) {
	if err := c.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(c.buf[c.pos:])
	c.pos += 2
	return v, nil
}

// U4 reads a big-endian uint32.
func (c *Cursor) U4() (uint32, error) {
	if err := c.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(c.buf[c.pos:])
	c.pos += 4
	return v, nil
}

// Next returns the next n bytes without copying.
func (c *Cursor) Next(n int) ([]byte, error) {
	if err := c.need(n); err != nil {
		return nil, err
	}
	b := c.buf[c.pos : c.pos+n]
	c.pos += n
	return b, nil
}

// Skip advances past n bytes.
func (c *Cursor) Skip(n int) error {
	if err := c.need(n); err != nil {
		return err
	}
	c.pos += n
	return nil
}

// PutU2 overwrites the u2 at offset off.
func (c *Cursor) PutU2(off int, v uint16) {
	binary.BigEndian.PutUint16(c.buf[off:], v)
}
