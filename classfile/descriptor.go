package classfile

import (
	"fmt"
	"strings"
)

// ClassMapper maps one internal class name to another.
type ClassMapper func(name string) string

// MapDescriptor rewrites every class name in a field or method descriptor.
func MapDescriptor(desc string, mapClass ClassMapper) (string, error) {
	if desc == "" {
		return "", fmt.Errorf("%w: empty descriptor", ErrInvalidDescriptor)
	}
	var b strings.Builder
	b.Grow(len(desc) + 16)
	pos := 0
	if desc[0] == '(' {
		b.WriteByte('(')
		pos = 1
		for {
			if pos >= len(desc) {
				return "", fmt.Errorf("%w: unterminated parameter list in %q", ErrInvalidDescriptor, desc)
			}
			if desc[pos] == ')' {
				b.WriteByte(')')
				pos++
				break
			}
			next, err := mapFieldType(desc, pos, &b, mapClass, false)
			if err != nil {
				return "", err
			}
			pos = next
		}
		next, err := mapFieldType(desc, pos, &b, mapClass, true)
		if err != nil {
			return "", err
		}
		pos = next
	} else {
		next, err := mapFieldType(desc, pos, &b, mapClass, false)
		if err != nil {
			return "", err
		}
		pos = next
	}
	if pos != len(desc) {
		return "", fmt.Errorf("%w: trailing data in %q", ErrInvalidDescriptor, desc)
	}
	return b.String(), nil
}

// mapFieldType copies one field type starting at pos and returns the offset
// after it. allowVoid admits V as a method return type.
func mapFieldType(desc string, pos int, b *strings.Builder, mapClass ClassMapper, allowVoid bool) (int, error) {
	for pos < len(desc) && desc[pos] == '[' {
		b.WriteByte('[')
		pos++
		allowVoid = false
	}
	if pos >= len(desc) {
		return 0, fmt.Errorf("%w: truncated type in %q", ErrInvalidDescriptor, desc)
	}
	switch c := desc[pos]; c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		b.WriteByte(c)
		return pos + 1, nil
	case 'V':
		if !allowVoid {
			return 0, fmt.Errorf("%w: misplaced void in %q", ErrInvalidDescriptor, desc)
		}
		b.WriteByte(c)
		return pos + 1, nil
	case 'L':
		end := strings.IndexByte(desc[pos:], ';')
		if end <= 1 {
			return 0, fmt.Errorf("%w: bad class type in %q", ErrInvalidDescriptor, desc)
		}
		name := desc[pos+1 : pos+end]
		b.WriteByte('L')
		if mapClass != nil {
			name = mapClass(name)
		}
		b.WriteString(name)
		b.WriteByte(';')
		return pos + end + 1, nil
	default:
		return 0, fmt.Errorf("%w: unexpected %q in %q", ErrInvalidDescriptor, c, desc)
	}
}

// ValidDescriptor reports whether desc is a well-formed field or method descriptor.
func ValidDescriptor(desc string) bool {
	_, err := MapDescriptor(desc, nil)
	return err == nil
}

// IsMethodDescriptor reports whether desc describes a method.
func IsMethodDescriptor(desc string) bool {
	return strings.HasPrefix(desc, "(")
}

// MapClassRef maps the name held by a CONSTANT_Class entry. Array classes
// carry a descriptor ("[Lpkg/Name;") rather than an internal name.
func MapClassRef(name string, mapClass ClassMapper) (string, error) {
	if strings.HasPrefix(name, "[") {
		return MapDescriptor(name, mapClass)
	}
	return mapClass(name), nil
}
