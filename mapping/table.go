package mapping

import (
	"fmt"
	"io"
	"slices"
	"sync"

	"github.com/opencontainers/go-digest"

	"github.com/meigma/jarmap/classfile"
)

// side is one direction of a table: source class names to target names and
// source member signatures to target member names.
type side struct {
	classes map[string]string
	members map[MemberSignature]string
}

func newSide(classes, members int) side {
	return side{
		classes: make(map[string]string, classes),
		members: make(map[MemberSignature]string, members),
	}
}

func (s side) class(name string) string {
	if mapped, ok := s.classes[name]; ok {
		return mapped
	}
	return name
}

func (s side) descriptor(desc string) string {
	mapped, err := classfile.MapDescriptor(desc, s.class)
	if err != nil {
		return desc
	}
	return mapped
}

// Table is an immutable bidirectional mapping index.
// A Table is safe for concurrent use.
type Table struct {
	forward side
	digest  digest.Digest

	inverseOnce sync.Once
	inverse     side
	inverseErr  error
}

// Builder accumulates mapping entries into a Table.
// The zero value is not usable; call NewBuilder.
type Builder struct {
	fwd side
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{fwd: newSide(1024, 8192)}
}

// AddClass records that obf is the obfuscated form of readable.
// Re-adding an identical entry is a no-op; a conflicting one fails with
// ErrAmbiguousMapping.
func (b *Builder) AddClass(obf, readable string) error {
	if obf == "" || readable == "" {
		return malformed("empty class name")
	}
	if prev, ok := b.fwd.classes[obf]; ok {
		if prev == readable {
			return nil
		}
		return fmt.Errorf("%w: class %s maps to both %s and %s", ErrAmbiguousMapping, obf, prev, readable)
	}
	b.fwd.classes[obf] = readable
	return nil
}

// AddMember records that the member sig (in obfuscated form) has the
// readable name readable.
func (b *Builder) AddMember(sig MemberSignature, readable string) error {
	if sig.Owner == "" || sig.Name == "" || readable == "" {
		return malformed("empty member name in %s", sig)
	}
	if !classfile.ValidDescriptor(sig.Descriptor) {
		return malformed("invalid descriptor %q for %s.%s", sig.Descriptor, sig.Owner, sig.Name)
	}
	if prev, ok := b.fwd.members[sig]; ok {
		if prev == readable {
			return nil
		}
		return fmt.Errorf("%w: member %s maps to both %s and %s", ErrAmbiguousMapping, sig, prev, readable)
	}
	b.fwd.members[sig] = readable
	return nil
}

// Build returns the Table. The Builder must not be used afterward.
func (b *Builder) Build() *Table {
	t := &Table{forward: b.fwd}
	b.fwd = side{}
	t.digest = t.computeDigest()
	return t
}

// Len returns the number of class and member entries.
func (t *Table) Len() (classes, members int) {
	return len(t.forward.classes), len(t.forward.members)
}

// Digest identifies the table's content. Two tables with the same entries
// have the same digest regardless of load order.
func (t *Table) Digest() digest.Digest {
	return t.digest
}

func (t *Table) computeDigest() digest.Digest {
	d := digest.Canonical.Digester()
	h := d.Hash()

	classes := make([]string, 0, len(t.forward.classes))
	for obf := range t.forward.classes {
		classes = append(classes, obf)
	}
	slices.Sort(classes)
	for _, obf := range classes {
		_, _ = io.WriteString(h, "C\t"+obf+"\t"+t.forward.classes[obf]+"\n")
	}

	members := make([]MemberSignature, 0, len(t.forward.members))
	for sig := range t.forward.members {
		members = append(members, sig)
	}
	slices.SortFunc(members, compareSignatures)
	for _, sig := range members {
		_, _ = io.WriteString(h, "M\t"+sig.Owner+"\t"+sig.Name+"\t"+sig.Descriptor+"\t"+t.forward.members[sig]+"\n")
	}
	return d.Digest()
}

func compareSignatures(a, b MemberSignature) int {
	if a.Owner != b.Owner {
		if a.Owner < b.Owner {
			return -1
		}
		return 1
	}
	if a.Name != b.Name {
		if a.Name < b.Name {
			return -1
		}
		return 1
	}
	switch {
	case a.Descriptor < b.Descriptor:
		return -1
	case a.Descriptor > b.Descriptor:
		return 1
	}
	return 0
}

// Prepare makes the table usable in direction dir. For Obfuscating it builds
// the inverse index, failing with ErrAmbiguousMapping if two obfuscated names
// share a readable name.
func (t *Table) Prepare(dir Direction) error {
	switch dir {
	case Deobfuscating:
		return nil
	case Obfuscating:
		t.inverseOnce.Do(t.buildInverse)
		return t.inverseErr
	default:
		return fmt.Errorf("mapping: unknown direction %d", dir)
	}
}

func (t *Table) buildInverse() {
	inv := newSide(len(t.forward.classes), len(t.forward.members))
	for obf, readable := range t.forward.classes {
		if prev, ok := inv.classes[readable]; ok && prev != obf {
			a, b := min(prev, obf), max(prev, obf)
			t.inverseErr = fmt.Errorf("%w: readable class %s is claimed by %s and %s", ErrAmbiguousMapping, readable, a, b)
			return
		}
		inv.classes[readable] = obf
	}
	for sig, readable := range t.forward.members {
		key := MemberSignature{
			Owner:      t.forward.class(sig.Owner),
			Name:       readable,
			Descriptor: t.forward.descriptor(sig.Descriptor),
		}
		if prev, ok := inv.members[key]; ok && prev != sig.Name {
			t.inverseErr = fmt.Errorf("%w: readable member %s is claimed by %s and %s", ErrAmbiguousMapping, key, min(prev, sig.Name), max(prev, sig.Name))
			return
		}
		inv.members[key] = sig.Name
	}
	t.inverse = inv
}

func (t *Table) side(dir Direction) (side, bool) {
	if dir == Deobfuscating {
		return t.forward, true
	}
	if err := t.Prepare(dir); err != nil {
		return side{}, false
	}
	return t.inverse, true
}

// ResolveClass returns the target name of class name in direction dir.
// ok is false when the table has no entry for name.
func (t *Table) ResolveClass(name string, dir Direction) (string, bool) {
	s, ok := t.side(dir)
	if !ok {
		return "", false
	}
	mapped, ok := s.classes[name]
	return mapped, ok
}

// ResolveMember returns the target form of sig in direction dir: the
// member's target name with owner and descriptor translated through the
// class entries. ok is false when the table has no entry for sig.
func (t *Table) ResolveMember(sig MemberSignature, dir Direction) (MemberSignature, bool) {
	s, ok := t.side(dir)
	if !ok {
		return MemberSignature{}, false
	}
	name, ok := s.members[sig]
	if !ok {
		return MemberSignature{}, false
	}
	return MemberSignature{
		Owner:      s.class(sig.Owner),
		Name:       name,
		Descriptor: s.descriptor(sig.Descriptor),
	}, true
}

// Invert returns a table whose Deobfuscating direction is this table's
// Obfuscating direction.
func (t *Table) Invert() (*Table, error) {
	if err := t.Prepare(Obfuscating); err != nil {
		return nil, err
	}
	inv := &Table{forward: t.inverse}
	inv.inverseOnce.Do(func() { inv.inverse = t.forward })
	inv.digest = inv.computeDigest()
	return inv, nil
}
