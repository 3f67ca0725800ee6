package classindex

import (
	"errors"
	"fmt"

	"github.com/meigma/jarmap/mapping"
)

// ErrCycleDetected is returned when an ancestor walk revisits a class on the
// superclass chain or exceeds the depth bound.
var ErrCycleDetected = errors.New("classindex: inheritance cycle detected")

// DefaultMaxDepth bounds ancestor walks.
const DefaultMaxDepth = 1000

// ClassDescriptor is the structural summary of one class.
type ClassDescriptor struct {
	Name        string
	Super       string
	Interfaces  []string
	Fields      []mapping.MemberSignature
	Methods     []mapping.MemberSignature
	AccessFlags uint16
}

type memberKey struct {
	name, descriptor string
}

type entry struct {
	desc     ClassDescriptor
	declared map[memberKey]struct{}
}

func newEntry(d ClassDescriptor) *entry {
	e := &entry{desc: d, declared: make(map[memberKey]struct{}, len(d.Fields)+len(d.Methods))}
	for _, m := range d.Fields {
		e.declared[memberKey{m.Name, m.Descriptor}] = struct{}{}
	}
	for _, m := range d.Methods {
		e.declared[memberKey{m.Name, m.Descriptor}] = struct{}{}
	}
	return e
}

// Index is an immutable class hierarchy. It is safe for concurrent use.
type Index struct {
	classes  map[string]*entry
	maxDepth int
}

// Option configures an Index.
type Option func(*config)

// New returns an index over descs. When two descriptors share a name the
// first one wins.
func New(descs ...ClassDescriptor) *Index {
	return newIndex(descs, DefaultMaxDepth)
}

// NewWithOptions is New with options applied.
func NewWithOptions(descs []ClassDescriptor, opts ...Option) *Index {
	cfg := newConfig(opts)
	return newIndex(descs, cfg.maxDepth)
}

func newIndex(descs []ClassDescriptor, maxDepth int) *Index {
	ix := &Index{
		classes:  make(map[string]*entry, len(descs)),
		maxDepth: maxDepth,
	}
	for _, d := range descs {
		if _, dup := ix.classes[d.Name]; dup {
			continue
		}
		ix.classes[d.Name] = newEntry(d)
	}
	return ix
}

// Len returns the number of indexed classes.
func (ix *Index) Len() int {
	return len(ix.classes)
}

// Lookup returns the descriptor for name.
func (ix *Index) Lookup(name string) (ClassDescriptor, bool) {
	e, ok := ix.classes[name]
	if !ok {
		return ClassDescriptor{}, false
	}
	return e.desc, true
}

// Declares reports whether class name declares a member with the given name
// and descriptor.
func (ix *Index) Declares(class, name, descriptor string) bool {
	e, ok := ix.classes[class]
	if !ok {
		return false
	}
	_, ok = e.declared[memberKey{name, descriptor}]
	return ok
}

// ResolveInherited returns sig re-owned to the nearest ancestor of sig.Owner
// that declares sig.Name with sig.Descriptor. The owner itself is not
// considered. found is false when no indexed ancestor declares the member.
func (ix *Index) ResolveInherited(sig mapping.MemberSignature) (resolved mapping.MemberSignature, found bool, err error) {
	err = ix.walk(sig.Owner, func(e *entry) bool {
		if _, ok := e.declared[memberKey{sig.Name, sig.Descriptor}]; ok {
			resolved = mapping.MemberSignature{Owner: e.desc.Name, Name: sig.Name, Descriptor: sig.Descriptor}
			found = true
			return true
		}
		return false
	})
	if err != nil {
		return mapping.MemberSignature{}, false, err
	}
	return resolved, found, nil
}

// DeclaringAncestors returns sig re-owned to every ancestor of sig.Owner
// that declares it, nearest first.
func (ix *Index) DeclaringAncestors(sig mapping.MemberSignature) ([]mapping.MemberSignature, error) {
	var out []mapping.MemberSignature
	err := ix.walk(sig.Owner, func(e *entry) bool {
		if _, ok := e.declared[memberKey{sig.Name, sig.Descriptor}]; ok {
			out = append(out, mapping.MemberSignature{Owner: e.desc.Name, Name: sig.Name, Descriptor: sig.Descriptor})
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// walk visits the ancestors of owner: the superclass chain nearest first,
// then every interface breadth-first. visit returns true to stop.
// Ancestors missing from the index end their branch of the walk.
func (ix *Index) walk(owner string, visit func(*entry) bool) error {
	start, ok := ix.classes[owner]
	if !ok {
		return nil
	}
	visited := map[string]struct{}{owner: {}}
	chain := []*entry{start}

	steps := 0
	for name := start.desc.Super; name != ""; {
		steps++
		if steps > ix.maxDepth {
			return fmt.Errorf("%w: superclass chain of %s exceeds depth %d", ErrCycleDetected, owner, ix.maxDepth)
		}
		if _, seen := visited[name]; seen {
			return fmt.Errorf("%w: %s is its own ancestor via %s", ErrCycleDetected, name, owner)
		}
		visited[name] = struct{}{}
		e, ok := ix.classes[name]
		if !ok {
			break
		}
		if visit(e) {
			return nil
		}
		chain = append(chain, e)
		name = e.desc.Super
	}

	var queue []string
	for _, e := range chain {
		queue = append(queue, e.desc.Interfaces...)
	}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if _, seen := visited[name]; seen {
			continue
		}
		visited[name] = struct{}{}
		steps++
		if steps > ix.maxDepth {
			return fmt.Errorf("%w: ancestors of %s exceed depth %d", ErrCycleDetected, owner, ix.maxDepth)
		}
		e, ok := ix.classes[name]
		if !ok {
			continue
		}
		if visit(e) {
			return nil
		}
		queue = append(queue, e.desc.Interfaces...)
	}
	return nil
}
