// Package translate maps class names, member references, descriptors and
// generic signatures through a mapping table in one direction.
package translate

import (
	"fmt"
	"log/slog"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/classindex"
	"github.com/meigma/jarmap/mapping"
)

// DefaultCacheSize is the default number of memoized member resolutions.
const DefaultCacheSize = 64 << 10

// Translator resolves symbols for one direction. It is safe for concurrent
// use.
type Translator struct {
	table *mapping.Table
	index *classindex.Index
	dir   mapping.Direction
	memo  *lru.Cache[mapping.MemberSignature, mapping.MemberSignature]

	logger *slog.Logger
}

// Option configures a Translator.
type Option func(*config)

type config struct {
	cacheSize int
	logger    *slog.Logger
}

// WithCacheSize sets how many member resolutions are memoized.
// Values < 1 disable the memo.
func WithCacheSize(n int) Option {
	return func(c *config) {
		c.cacheSize = n
	}
}

// WithLogger sets the logger for resolution diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// New returns a translator for table in direction dir. index may be nil, in
// which case members resolve only by direct lookup. For the Obfuscating
// direction New fails with mapping.ErrAmbiguousMapping when the table has
// no unique inverse.
func New(table *mapping.Table, index *classindex.Index, dir mapping.Direction, opts ...Option) (*Translator, error) {
	cfg := &config{cacheSize: DefaultCacheSize}
	for _, opt := range opts {
		opt(cfg)
	}
	if err := table.Prepare(dir); err != nil {
		return nil, err
	}
	if index == nil {
		index = classindex.New()
	}
	t := &Translator{
		table:  table,
		index:  index,
		dir:    dir,
		logger: cfg.logger,
	}
	if cfg.cacheSize > 0 {
		memo, err := lru.New[mapping.MemberSignature, mapping.MemberSignature](cfg.cacheSize)
		if err != nil {
			return nil, fmt.Errorf("translate: %w", err)
		}
		t.memo = memo
	}
	return t, nil
}

func (t *Translator) log() *slog.Logger {
	if t.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return t.logger
}

// Direction returns the translation direction.
func (t *Translator) Direction() mapping.Direction {
	return t.dir
}

// TranslateClass returns the target name of a class. Array class names are
// translated as descriptors. An unmapped nested class whose enclosing class
// is mapped keeps its own suffix under the enclosing class's target name.
// Otherwise the name is returned unchanged.
func (t *Translator) TranslateClass(name string) string {
	if strings.HasPrefix(name, "[") {
		return t.TranslateDescriptor(name)
	}
	if mapped, ok := t.table.ResolveClass(name, t.dir); ok {
		return mapped
	}
	if i := strings.LastIndexByte(name, '$'); i > 0 && i < len(name)-1 {
		outer := name[:i]
		if mapped := t.TranslateClass(outer); mapped != outer {
			return mapped + name[i:]
		}
	}
	return name
}

// TranslateDescriptor translates every class named in a field or method
// descriptor. Invalid descriptors are returned unchanged.
func (t *Translator) TranslateDescriptor(desc string) string {
	mapped, err := classfile.MapDescriptor(desc, t.TranslateClass)
	if err != nil {
		return desc
	}
	return mapped
}

// TranslateSignature translates every class named in a generic signature.
// Malformed signatures are returned unchanged.
func (t *Translator) TranslateSignature(sig string) string {
	mapped, err := classfile.MapSignature(sig, t.TranslateClass)
	if err != nil {
		t.log().Debug("leaving malformed signature unchanged", slog.String("signature", sig), slog.Any("error", err))
		return sig
	}
	return mapped
}

// TranslateMember returns the target form of a member reference. The owner
// and descriptor are always translated. The name comes from the mapping
// entry for sig itself or, failing that, from the nearest declaring
// ancestor that has one. Constructors and static initializers keep their
// names.
func (t *Translator) TranslateMember(sig mapping.MemberSignature) (mapping.MemberSignature, error) {
	if t.memo != nil {
		if hit, ok := t.memo.Get(sig); ok {
			return hit, nil
		}
	}
	out, err := t.resolveMember(sig)
	if err != nil {
		return mapping.MemberSignature{}, err
	}
	if t.memo != nil {
		t.memo.Add(sig, out)
	}
	return out, nil
}

func (t *Translator) resolveMember(sig mapping.MemberSignature) (mapping.MemberSignature, error) {
	out := mapping.MemberSignature{
		Owner:      t.TranslateClass(sig.Owner),
		Name:       sig.Name,
		Descriptor: t.TranslateDescriptor(sig.Descriptor),
	}
	if isSpecialMethod(sig.Name) {
		return out, nil
	}
	if res, ok := t.table.ResolveMember(sig, t.dir); ok {
		out.Name = res.Name
		return out, nil
	}
	nearest, found, err := t.index.ResolveInherited(sig)
	if err != nil {
		return mapping.MemberSignature{}, fmt.Errorf("translate: %s: %w", sig, err)
	}
	if !found {
		return out, nil
	}
	if res, ok := t.table.ResolveMember(nearest, t.dir); ok {
		out.Name = res.Name
		return out, nil
	}
	// An unmapped override hides nothing: farther declarations may still
	// carry the name.
	ancestors, err := t.index.DeclaringAncestors(sig)
	if err != nil {
		return mapping.MemberSignature{}, fmt.Errorf("translate: %s: %w", sig, err)
	}
	for _, anc := range ancestors[1:] {
		if res, ok := t.table.ResolveMember(anc, t.dir); ok {
			out.Name = res.Name
			return out, nil
		}
	}
	return out, nil
}

// TranslateAnnotationElement returns the target name of element name of the
// annotation interface annotation. Elements are the interface's nullary
// methods, so the descriptor is taken from the class index; an element of
// an unindexed annotation keeps its name.
func (t *Translator) TranslateAnnotationElement(annotation, name string) (string, error) {
	desc, ok := t.index.Lookup(annotation)
	if !ok {
		return name, nil
	}
	for _, m := range desc.Methods {
		if m.Name != name || !strings.HasPrefix(m.Descriptor, "()") {
			continue
		}
		res, err := t.TranslateMember(mapping.MemberSignature{Owner: annotation, Name: name, Descriptor: m.Descriptor})
		if err != nil {
			return "", err
		}
		return res.Name, nil
	}
	return name, nil
}

func isSpecialMethod(name string) bool {
	return name == "<init>" || name == "<clinit>"
}
