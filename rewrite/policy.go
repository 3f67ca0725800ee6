package rewrite

import "github.com/meigma/jarmap/classfile"

// EntityKind identifies what an access-flag word belongs to.
type EntityKind uint8

// Entity kinds passed to an AccessPolicy.
const (
	KindField EntityKind = iota
	KindMethod
	KindInnerClass
)

// String returns the kind name.
func (k EntityKind) String() string {
	switch k {
	case KindField:
		return "field"
	case KindMethod:
		return "method"
	case KindInnerClass:
		return "inner-class"
	default:
		return "unknown"
	}
}

// AccessPolicy maps the access flags of a field, method or InnerClasses row
// to the flags written out.
type AccessPolicy func(flags uint16, kind EntityKind) uint16

// Publicify makes every entity public. Flags that already carry ACC_PUBLIC
// are returned unchanged.
func Publicify(flags uint16, _ EntityKind) uint16 {
	if flags&classfile.AccPublic != 0 {
		return flags
	}
	return flags&^(classfile.AccPrivate|classfile.AccProtected) | classfile.AccPublic
}

// Preserve returns flags unchanged.
func Preserve(flags uint16, _ EntityKind) uint16 {
	return flags
}

// Compose applies policies left to right. Nil policies are skipped.
func Compose(policies ...AccessPolicy) AccessPolicy {
	return func(flags uint16, kind EntityKind) uint16 {
		for _, p := range policies {
			if p != nil {
				flags = p(flags, kind)
			}
		}
		return flags
	}
}

// ForKinds restricts policy to the listed kinds.
func ForKinds(policy AccessPolicy, kinds ...EntityKind) AccessPolicy {
	return func(flags uint16, kind EntityKind) uint16 {
		for _, k := range kinds {
			if k == kind {
				return policy(flags, kind)
			}
		}
		return flags
	}
}
