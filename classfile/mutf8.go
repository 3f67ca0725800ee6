package classfile

import (
	"errors"
	"unicode/utf16"
)

var errModifiedUTF8 = errors.New("classfile: invalid modified UTF-8")

// DecodeModifiedUTF8 decodes the JVM's modified UTF-8 encoding, in which NUL
// is written as two bytes and supplementary characters as surrogate pairs.
func DecodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", errModifiedUTF8
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errModifiedUTF8
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errModifiedUTF8
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", errModifiedUTF8
		}
	}
	return string(utf16.Decode(units)), nil
}

// EncodeModifiedUTF8 encodes s in the JVM's modified UTF-8 form.
func EncodeModifiedUTF8(s string) []byte {
	out := make([]byte, 0, len(s))
	for _, r := range s {
		if r > 0xFFFF {
			hi, lo := utf16.EncodeRune(r)
			out = appendUnit(out, uint16(hi)) //nolint:gosec // surrogates fit in 16 bits
			out = appendUnit(out, uint16(lo)) //nolint:gosec // surrogates fit in 16 bits
			continue
		}
		out = appendUnit(out, uint16(r)) //nolint:gosec // r <= 0xFFFF
	}
	return out
}

func appendUnit(out []byte, u uint16) []byte {
	switch {
	case u != 0 && u < 0x80:
		return append(out, byte(u))
	case u < 0x800:
		return append(out, 0xC0|byte(u>>6), 0x80|byte(u&0x3F))
	default:
		return append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
	}
}
