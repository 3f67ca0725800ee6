package mapping

import (
	"strconv"
	"strings"
)

// legacyPackage is the placeholder package old Enigma releases used for
// classes in the default package.
const legacyPackage = "none/"

func stripLegacy(name string) string {
	return strings.TrimPrefix(name, legacyPackage)
}

func stripLegacyDescriptor(desc string) string {
	return strings.ReplaceAll(desc, "L"+legacyPackage, "L")
}

// nestedName resolves a nested class name against its enclosing class.
// Names that already contain a package or '$' separator are absolute.
func nestedName(parent, name string) string {
	if strings.ContainsAny(name, "/$") {
		return name
	}
	return parent + "$" + name
}

func (p *lineParser) enigma(raw string) error {
	if i := strings.IndexByte(raw, '#'); i >= 0 {
		raw = raw[:i]
	}
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	d := depth(raw)
	fields := strings.Fields(raw[d:])
	if fields[0] == "COMMENT" {
		return nil
	}
	// Trailing access modifiers are informational.
	for len(fields) > 1 && strings.HasPrefix(fields[len(fields)-1], "ACC:") {
		fields = fields[:len(fields)-1]
	}

	parent, hasParent, err := p.enter(d)
	if err != nil {
		return err
	}

	switch fields[0] {
	case "CLASS":
		if len(fields) < 2 || len(fields) > 3 {
			return malformed("CLASS takes 1 or 2 names, got %d", len(fields)-1)
		}
		if hasParent && parent.kind != frameClass {
			return malformed("CLASS nested under a member")
		}
		obf := stripLegacy(fields[1])
		readable := ""
		if len(fields) == 3 {
			readable = stripLegacy(fields[2])
		}
		if hasParent {
			obf = nestedName(parent.obf, obf)
			if readable != "" {
				readable = nestedName(parent.readable, readable)
			}
		}
		f := frame{kind: frameClass, obf: obf, readable: readable}
		if readable != "" {
			if err := p.b.AddClass(obf, readable); err != nil {
				return err
			}
		} else if hasParent {
			f.readable = parent.readable + "$" + obf[strings.LastIndexByte(obf, '$')+1:]
		} else {
			f.readable = obf
		}
		p.stack = append(p.stack, f)
	case "FIELD", "METHOD":
		if !hasParent || parent.kind != frameClass {
			return malformed("%s outside of a class", fields[0])
		}
		var obf, readable, desc string
		switch len(fields) {
		case 3:
			obf, desc = fields[1], fields[2]
		case 4:
			obf, readable, desc = fields[1], fields[2], fields[3]
		default:
			return malformed("%s takes a name, an optional readable name and a descriptor", fields[0])
		}
		desc = stripLegacyDescriptor(desc)
		kind := frameField
		if fields[0] == "METHOD" {
			kind = frameMethod
			if !strings.HasPrefix(desc, "(") {
				return malformed("METHOD %s has field descriptor %q", obf, desc)
			}
		} else if strings.HasPrefix(desc, "(") {
			return malformed("FIELD %s has method descriptor %q", obf, desc)
		}
		if readable != "" {
			sig := MemberSignature{Owner: parent.obf, Name: obf, Descriptor: desc}
			if err := p.b.AddMember(sig, readable); err != nil {
				return err
			}
		}
		p.stack = append(p.stack, frame{kind: kind, obf: obf, readable: readable})
	case "ARG":
		if !hasParent || parent.kind != frameMethod {
			return malformed("ARG outside of a method")
		}
		if len(fields) != 3 {
			return malformed("ARG takes an index and a name")
		}
		if _, err := strconv.ParseUint(fields[1], 10, 16); err != nil {
			return malformed("ARG index %q: %v", fields[1], err)
		}
		p.stack = append(p.stack, frame{kind: frameArg})
	default:
		return malformed("unknown record %q", fields[0])
	}
	return nil
}
