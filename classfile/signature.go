package classfile

import (
	"fmt"
	"strings"
)

// MapSignature rewrites every class name in a generic signature (class,
// method or field form, JVMS 4.7.9.1). Inner-class suffixes written as
// ".Inner" are mapped through their binary name "Outer$Inner" and emitted as
// the new simple suffix.
func MapSignature(sig string, mapClass ClassMapper) (string, error) {
	p := &sigParser{in: sig, mapClass: mapClass}
	p.out.Grow(len(sig) + 16)
	if err := p.parse(); err != nil {
		return "", err
	}
	return p.out.String(), nil
}

type sigParser struct {
	in       string
	pos      int
	out      strings.Builder
	mapClass ClassMapper
}

func (p *sigParser) fail(what string) error {
	return fmt.Errorf("%w: %s at offset %d in signature %q", ErrInvalidDescriptor, what, p.pos, p.in)
}

func (p *sigParser) peek() byte {
	if p.pos >= len(p.in) {
		return 0
	}
	return p.in[p.pos]
}

func (p *sigParser) emit(c byte) {
	p.out.WriteByte(c)
	p.pos++
}

func (p *sigParser) parse() error {
	if p.in == "" {
		return p.fail("empty")
	}
	if p.peek() == '<' {
		if err := p.typeParams(); err != nil {
			return err
		}
	}
	if p.peek() == '(' {
		p.emit('(')
		for p.peek() != ')' {
			if p.pos >= len(p.in) {
				return p.fail("unterminated parameters")
			}
			if err := p.typeSig(false); err != nil {
				return err
			}
		}
		p.emit(')')
		if err := p.typeSig(true); err != nil {
			return err
		}
		for p.peek() == '^' {
			p.emit('^')
			if err := p.typeSig(false); err != nil {
				return err
			}
		}
	} else {
		// Field signature or superclass followed by interfaces.
		for p.pos < len(p.in) {
			if err := p.typeSig(false); err != nil {
				return err
			}
		}
	}
	if p.pos != len(p.in) {
		return p.fail("trailing data")
	}
	return nil
}

func (p *sigParser) typeParams() error {
	p.emit('<')
	for p.peek() != '>' {
		colon := strings.IndexByte(p.in[p.pos:], ':')
		if colon <= 0 {
			return p.fail("bad type parameter")
		}
		p.out.WriteString(p.in[p.pos : p.pos+colon])
		p.pos += colon
		// Class bound, possibly empty, then interface bounds.
		p.emit(':')
		if c := p.peek(); c != ':' && c != '>' {
			if err := p.typeSig(false); err != nil {
				return err
			}
		}
		for p.peek() == ':' {
			p.emit(':')
			if err := p.typeSig(false); err != nil {
				return err
			}
		}
		if p.pos >= len(p.in) {
			return p.fail("unterminated type parameters")
		}
	}
	p.emit('>')
	return nil
}

func (p *sigParser) typeSig(allowVoid bool) error {
	switch c := p.peek(); c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.emit(c)
		return nil
	case 'V':
		if !allowVoid {
			return p.fail("misplaced void")
		}
		p.emit(c)
		return nil
	case '[':
		p.emit(c)
		return p.typeSig(false)
	case 'T':
		end := strings.IndexByte(p.in[p.pos:], ';')
		if end <= 1 {
			return p.fail("bad type variable")
		}
		p.out.WriteString(p.in[p.pos : p.pos+end+1])
		p.pos += end + 1
		return nil
	case 'L':
		return p.classTypeSig()
	default:
		return p.fail("unexpected character")
	}
}

func (p *sigParser) identEnd() int {
	for i := p.pos; i < len(p.in); i++ {
		switch p.in[i] {
		case '<', '.', ';':
			return i
		}
	}
	return -1
}

func (p *sigParser) classTypeSig() error {
	p.emit('L')
	end := p.identEnd()
	if end <= p.pos {
		return p.fail("bad class name")
	}
	orig := p.in[p.pos:end]
	mapped := p.mapName(orig)
	p.out.WriteString(mapped)
	p.pos = end
	for {
		if p.peek() == '<' {
			if err := p.typeArgs(); err != nil {
				return err
			}
		}
		switch p.peek() {
		case ';':
			p.emit(';')
			return nil
		case '.':
			p.emit('.')
			end := p.identEnd()
			if end <= p.pos {
				return p.fail("bad inner class name")
			}
			simple := p.in[p.pos:end]
			p.pos = end
			orig += "$" + simple
			inner := p.mapName(orig)
			if strings.HasPrefix(inner, mapped+"$") {
				simple = inner[len(mapped)+1:]
			} else if i := strings.LastIndexByte(inner, '$'); i >= 0 {
				simple = inner[i+1:]
			}
			p.out.WriteString(simple)
			mapped = inner
		default:
			return p.fail("unterminated class type")
		}
	}
}

func (p *sigParser) typeArgs() error {
	p.emit('<')
	for p.peek() != '>' {
		switch p.peek() {
		case 0:
			return p.fail("unterminated type arguments")
		case '*':
			p.emit('*')
			continue
		case '+', '-':
			p.emit(p.peek())
		}
		if err := p.typeSig(false); err != nil {
			return err
		}
	}
	p.emit('>')
	return nil
}

func (p *sigParser) mapName(name string) string {
	if p.mapClass == nil {
		return name
	}
	return p.mapClass(name)
}
