package mapping

import "strings"

// tinyV1 handles "v1\tfrom\tto" files with flat CLASS, FIELD and METHOD rows.
// Only the first two namespaces are used.
func (p *lineParser) tinyV1(raw string) error {
	if !p.header {
		cols := strings.Split(raw, "\t")
		if len(cols) < 3 || cols[0] != "v1" {
			return malformed("bad tiny v1 header")
		}
		p.header = true
		return nil
	}
	if raw == "" || strings.HasPrefix(raw, "#") {
		return nil
	}
	cols := strings.Split(raw, "\t")
	switch cols[0] {
	case "CLASS":
		if len(cols) < 3 {
			return malformed("CLASS row needs 2 names")
		}
		return p.b.AddClass(cols[1], cols[2])
	case "FIELD", "METHOD":
		if len(cols) < 5 {
			return malformed("%s row needs owner, descriptor and 2 names", cols[0])
		}
		if (cols[0] == "METHOD") != strings.HasPrefix(cols[2], "(") {
			return malformed("%s row has descriptor %q", cols[0], cols[2])
		}
		sig := MemberSignature{Owner: cols[1], Name: cols[3], Descriptor: cols[2]}
		return p.b.AddMember(sig, cols[4])
	default:
		return malformed("unknown tiny v1 row %q", cols[0])
	}
}

// tinyV2 handles "tiny\t2\t0\tfrom\tto" files. Classes are top-level "c"
// rows with absolute names; members, parameters, variables and comments
// nest beneath them by indentation.
func (p *lineParser) tinyV2(raw string) error {
	if !p.header {
		cols := strings.Split(raw, "\t")
		if len(cols) < 5 || cols[0] != "tiny" || cols[1] != "2" {
			return malformed("bad tiny v2 header")
		}
		p.header = true
		return nil
	}
	if raw == "" {
		return nil
	}
	d := depth(raw)
	cols := strings.Split(raw[d:], "\t")

	// Header properties precede the first class.
	if d > 0 && len(p.stack) == 0 {
		return nil
	}
	parent, hasParent, err := p.enter(d)
	if err != nil {
		return err
	}

	switch {
	case d == 0 && cols[0] == "c":
		if len(cols) < 2 {
			return malformed("class row needs a name")
		}
		f := frame{kind: frameClass, obf: cols[1], readable: cols[1]}
		if len(cols) >= 3 && cols[2] != "" {
			f.readable = cols[2]
			if err := p.b.AddClass(cols[1], cols[2]); err != nil {
				return err
			}
		}
		p.stack = append(p.stack, f)
	case cols[0] == "c":
		// Comment on the enclosing entry.
		p.stack = append(p.stack, frame{kind: frameArg})
	case cols[0] == "f" || cols[0] == "m":
		if !hasParent || parent.kind != frameClass {
			return malformed("member outside of a class")
		}
		if len(cols) < 3 {
			return malformed("member row needs a descriptor and a name")
		}
		desc, obf := cols[1], cols[2]
		if (cols[0] == "m") != strings.HasPrefix(desc, "(") {
			return malformed("member %s has descriptor %q", obf, desc)
		}
		kind := frameField
		if cols[0] == "m" {
			kind = frameMethod
		}
		if len(cols) >= 4 && cols[3] != "" {
			sig := MemberSignature{Owner: parent.obf, Name: obf, Descriptor: desc}
			if err := p.b.AddMember(sig, cols[3]); err != nil {
				return err
			}
		}
		p.stack = append(p.stack, frame{kind: kind, obf: obf})
	case cols[0] == "p" || cols[0] == "v":
		if !hasParent || parent.kind != frameMethod {
			return malformed("parameter outside of a method")
		}
		p.stack = append(p.stack, frame{kind: frameArg})
	default:
		return malformed("unknown tiny v2 row %q", cols[0])
	}
	return nil
}
