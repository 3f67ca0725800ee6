package rewrite

import (
	"fmt"
	"strings"

	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/mapping"
)

// Translator resolves symbols for a rewrite.
// *translate.Translator implements it.
type Translator interface {
	TranslateClass(name string) string
	TranslateMember(sig mapping.MemberSignature) (mapping.MemberSignature, error)
	TranslateDescriptor(desc string) string
	TranslateSignature(sig string) string
	TranslateAnnotationElement(annotation, name string) (string, error)
}

// Class is a rewritten class file.
type Class struct {
	// Name is the translated internal name of the class.
	Name string
	Data []byte
}

// Rewriter rewrites class files with a fixed translator and access policy.
// It is safe for concurrent use when its translator is.
type Rewriter struct {
	tr     Translator
	policy AccessPolicy
}

// New returns a Rewriter. A nil policy is Preserve.
func New(tr Translator, policy AccessPolicy) *Rewriter {
	if policy == nil {
		policy = Preserve
	}
	return &Rewriter{tr: tr, policy: policy}
}

// Rewrite rewrites one class file. data is not modified.
func (r *Rewriter) Rewrite(data []byte) (Class, error) {
	return Rewrite(data, r.tr, r.policy)
}

// Rewrite rewrites one class file with tr and policy. data is not modified.
func Rewrite(data []byte, tr Translator, policy AccessPolicy) (Class, error) {
	if policy == nil {
		policy = Preserve
	}
	cf, err := classfile.Parse(data)
	if err != nil {
		return Class{}, err
	}
	name, err := cf.Name()
	if err != nil {
		return Class{}, err
	}

	cr := newClassRewrite(cf, name, tr, policy)
	if err := cr.classRefs(); err != nil {
		return Class{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := cr.memberRefs(); err != nil {
		return Class{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := cr.declarations(); err != nil {
		return Class{}, fmt.Errorf("%s: %w", name, err)
	}
	if err := cr.attributes(); err != nil {
		return Class{}, fmt.Errorf("%s: %w", name, err)
	}

	out, err := cf.Bytes()
	if err != nil {
		return Class{}, fmt.Errorf("%s: %w", name, err)
	}
	return Class{Name: tr.TranslateClass(name), Data: out}, nil
}

// classRewrite holds the state of one class rewrite. orig is the parsed
// pool and is only read; cf.Pool is the output pool.
type classRewrite struct {
	cf     *classfile.ClassFile
	orig   classfile.Pool
	name   string
	tr     Translator
	policy AccessPolicy

	utf8 map[string]uint16
	nat  map[[2]uint16]uint16

	// bootstrap holds the argument indices of each BootstrapMethods entry,
	// read on first use.
	bootstrap     [][]uint16
	bootstrapRead bool
}

func newClassRewrite(cf *classfile.ClassFile, name string, tr Translator, policy AccessPolicy) *classRewrite {
	cr := &classRewrite{
		cf:     cf,
		orig:   cf.Pool,
		name:   name,
		tr:     tr,
		policy: policy,
		utf8:   make(map[string]uint16),
		nat:    make(map[[2]uint16]uint16),
	}
	cf.Pool = cf.Pool.Clone()
	for i, c := range cr.orig {
		switch c.Tag {
		case classfile.TagUtf8:
			if _, ok := cr.utf8[c.Text]; !ok {
				cr.utf8[c.Text] = uint16(i) //nolint:gosec // pool indices fit in u2
			}
		case classfile.TagNameAndType:
			key := [2]uint16{c.Index1, c.Index2}
			if _, ok := cr.nat[key]; !ok {
				cr.nat[key] = uint16(i) //nolint:gosec // pool indices fit in u2
			}
		}
	}
	return cr
}

// internUtf8 returns the index of a Utf8 entry holding s, appending one if
// needed.
func (cr *classRewrite) internUtf8(s string) (uint16, error) {
	if i, ok := cr.utf8[s]; ok {
		return i, nil
	}
	i, err := cr.cf.Pool.Append(classfile.Utf8(s))
	if err != nil {
		return 0, err
	}
	cr.utf8[s] = i
	return i, nil
}

// internNameAndType returns the index of a NameAndType entry for name and
// descriptor, appending one if needed.
func (cr *classRewrite) internNameAndType(name, desc string) (uint16, error) {
	n, err := cr.internUtf8(name)
	if err != nil {
		return 0, err
	}
	d, err := cr.internUtf8(desc)
	if err != nil {
		return 0, err
	}
	key := [2]uint16{n, d}
	if i, ok := cr.nat[key]; ok {
		return i, nil
	}
	i, err := cr.cf.Pool.Append(classfile.NameAndType(n, d))
	if err != nil {
		return 0, err
	}
	cr.nat[key] = i
	return i, nil
}

// remapUtf8 returns an index holding fn applied to the Utf8 entry at idx.
// The original index is returned when the text is unchanged.
func (cr *classRewrite) remapUtf8(idx uint16, fn func(string) string) (uint16, error) {
	s, err := cr.orig.Utf8(idx)
	if err != nil {
		return 0, err
	}
	mapped := fn(s)
	if mapped == s {
		return idx, nil
	}
	return cr.internUtf8(mapped)
}

// classRefs repoints Class and MethodType entries.
func (cr *classRewrite) classRefs() error {
	n := len(cr.orig)
	for i := 1; i < n; i++ {
		c := cr.orig[i]
		switch c.Tag {
		case classfile.TagClass:
			idx, err := cr.remapUtf8(c.Index1, cr.tr.TranslateClass)
			if err != nil {
				return fmt.Errorf("class constant %d: %w", i, err)
			}
			cr.cf.Pool[i].Index1 = idx
		case classfile.TagMethodType:
			idx, err := cr.remapUtf8(c.Index1, cr.tr.TranslateDescriptor)
			if err != nil {
				return fmt.Errorf("method type %d: %w", i, err)
			}
			cr.cf.Pool[i].Index1 = idx
		}
	}
	return nil
}

// memberRefs points field, method and dynamic references at NameAndType
// entries for their translated names and descriptors.
func (cr *classRewrite) memberRefs() error {
	n := len(cr.orig)
	for i := 1; i < n; i++ {
		c := cr.orig[i]
		switch {
		case c.Tag.IsMemberRef():
			owner, err := cr.orig.ClassName(c.Index1)
			if err != nil {
				return fmt.Errorf("member ref %d: %w", i, err)
			}
			idx, err := cr.memberNameAndType(owner, c.Index2)
			if err != nil {
				return fmt.Errorf("member ref %d: %w", i, err)
			}
			cr.cf.Pool[i].Index2 = idx
		case c.Tag == classfile.TagInvokeDynamic || c.Tag == classfile.TagDynamic:
			idx, err := cr.dynamicNameAndType(c)
			if err != nil {
				return fmt.Errorf("dynamic constant %d: %w", i, err)
			}
			cr.cf.Pool[i].Index2 = idx
		}
	}
	return nil
}

// memberNameAndType translates the member owner.(NameAndType at natIdx) and
// returns the NameAndType index to use.
func (cr *classRewrite) memberNameAndType(owner string, natIdx uint16) (uint16, error) {
	name, desc, err := cr.orig.NameAndType(natIdx)
	if err != nil {
		return 0, err
	}
	res, err := cr.tr.TranslateMember(mapping.MemberSignature{Owner: owner, Name: name, Descriptor: desc})
	if err != nil {
		return 0, err
	}
	if res.Name == name && res.Descriptor == desc {
		return natIdx, nil
	}
	return cr.internNameAndType(res.Name, res.Descriptor)
}

// dynamicNameAndType translates the NameAndType of a Dynamic or
// InvokeDynamic constant. The descriptor is always translated. A call site
// whose first bootstrap argument is a method type creates an instance of the
// interface it returns, and its name is the interface method it implements,
// so the name follows that method's mapping.
func (cr *classRewrite) dynamicNameAndType(c classfile.Constant) (uint16, error) {
	name, desc, err := cr.orig.NameAndType(c.Index2)
	if err != nil {
		return 0, err
	}
	mappedName := name
	if iface, ok := returnedClass(desc); ok && c.Tag == classfile.TagInvokeDynamic {
		sam, ok, err := cr.bootstrapMethodType(c.Index1)
		if err != nil {
			return 0, err
		}
		if ok {
			res, err := cr.tr.TranslateMember(mapping.MemberSignature{Owner: iface, Name: name, Descriptor: sam})
			if err != nil {
				return 0, err
			}
			mappedName = res.Name
		}
	}
	mappedDesc := cr.tr.TranslateDescriptor(desc)
	if mappedName == name && mappedDesc == desc {
		return c.Index2, nil
	}
	return cr.internNameAndType(mappedName, mappedDesc)
}

// returnedClass returns the internal name of the class a method descriptor
// returns. ok is false for primitive, array and void returns.
func returnedClass(desc string) (string, bool) {
	if !classfile.IsMethodDescriptor(desc) {
		return "", false
	}
	return objectClass(desc[strings.LastIndexByte(desc, ')')+1:])
}

// objectClass returns the internal name held by an object field descriptor.
func objectClass(desc string) (string, bool) {
	if len(desc) < 3 || desc[0] != 'L' || desc[len(desc)-1] != ';' {
		return "", false
	}
	return desc[1 : len(desc)-1], true
}

// bootstrapMethodType returns the method descriptor held by the first
// argument of bootstrap method bsm. ok is false when that argument is not a
// MethodType constant.
func (cr *classRewrite) bootstrapMethodType(bsm uint16) (string, bool, error) {
	if !cr.bootstrapRead {
		args, err := cr.bootstrapArgs()
		if err != nil {
			return "", false, fmt.Errorf("BootstrapMethods: %w", err)
		}
		cr.bootstrap = args
		cr.bootstrapRead = true
	}
	if int(bsm) >= len(cr.bootstrap) {
		return "", false, fmt.Errorf("%w: bootstrap method %d out of range (%d methods)", classfile.ErrCorruptReference, bsm, len(cr.bootstrap))
	}
	args := cr.bootstrap[bsm]
	if len(args) == 0 {
		return "", false, nil
	}
	arg, err := cr.orig.Get(args[0])
	if err != nil {
		return "", false, err
	}
	if arg.Tag != classfile.TagMethodType {
		return "", false, nil
	}
	desc, err := cr.orig.Utf8(arg.Index1)
	if err != nil {
		return "", false, err
	}
	if !classfile.IsMethodDescriptor(desc) {
		return "", false, nil
	}
	return desc, true, nil
}

// bootstrapArgs reads the argument lists of the class's BootstrapMethods
// attribute.
func (cr *classRewrite) bootstrapArgs() ([][]uint16, error) {
	for _, a := range cr.cf.Attributes {
		name, err := cr.orig.Utf8(a.Name)
		if err != nil {
			return nil, err
		}
		if name != attrBootstrapMethods {
			continue
		}
		c := classfile.NewCursor(a.Data)
		n, err := c.U2()
		if err != nil {
			return nil, err
		}
		out := make([][]uint16, 0, n)
		for range n {
			// bootstrap_method_ref
			if err := c.Skip(2); err != nil {
				return nil, err
			}
			argc, err := c.U2()
			if err != nil {
				return nil, err
			}
			args := make([]uint16, argc)
			for j := range args {
				if args[j], err = c.U2(); err != nil {
					return nil, err
				}
			}
			out = append(out, args)
		}
		return out, nil
	}
	return nil, nil
}

// declarations renames declared fields and methods and applies the access
// policy to them.
func (cr *classRewrite) declarations() error {
	for i := range cr.cf.Fields {
		if err := cr.declaration(&cr.cf.Fields[i], KindField); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	for i := range cr.cf.Methods {
		if err := cr.declaration(&cr.cf.Methods[i], KindMethod); err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
	}
	return nil
}

func (cr *classRewrite) declaration(m *classfile.Member, kind EntityKind) error {
	name, err := cr.orig.Utf8(m.Name)
	if err != nil {
		return err
	}
	desc, err := cr.orig.Utf8(m.Descriptor)
	if err != nil {
		return err
	}
	res, err := cr.tr.TranslateMember(mapping.MemberSignature{Owner: cr.name, Name: name, Descriptor: desc})
	if err != nil {
		return err
	}
	if res.Name != name {
		if m.Name, err = cr.internUtf8(res.Name); err != nil {
			return err
		}
	}
	if res.Descriptor != desc {
		if m.Descriptor, err = cr.internUtf8(res.Descriptor); err != nil {
			return err
		}
	}
	m.AccessFlags = cr.policy(m.AccessFlags, kind)
	return nil
}
