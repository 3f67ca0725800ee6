package mapping

import "strings"

// Direction selects which side of a mapping entry is the source.
type Direction uint8

const (
	// Deobfuscating maps obfuscated names to readable names.
	Deobfuscating Direction = iota

	// Obfuscating maps readable names back to obfuscated names.
	Obfuscating
)

// String returns the direction name.
func (d Direction) String() string {
	switch d {
	case Deobfuscating:
		return "deobfuscating"
	case Obfuscating:
		return "obfuscating"
	default:
		return "unknown"
	}
}

// ParseDirection parses a direction name as printed by String.
// The short forms "deobf" and "obf" are also accepted.
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "deobfuscating", "deobf", "":
		return Deobfuscating, true
	case "obfuscating", "obf":
		return Obfuscating, true
	default:
		return 0, false
	}
}

// MemberSignature identifies a field or method by owner, name and descriptor.
type MemberSignature struct {
	Owner      string
	Name       string
	Descriptor string
}

// IsMethod reports whether the signature describes a method.
func (s MemberSignature) IsMethod() bool {
	return strings.HasPrefix(s.Descriptor, "(")
}

// String formats the signature as owner.name descriptor.
func (s MemberSignature) String() string {
	return s.Owner + "." + s.Name + " " + s.Descriptor
}
