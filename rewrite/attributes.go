package rewrite

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/meigma/jarmap/classfile"
	"github.com/meigma/jarmap/mapping"
)

// maxElementDepth bounds nesting of annotation element values.
const maxElementDepth = 256

// Attributes whose bodies reference renamed symbols.
const (
	attrCode                          = "Code"
	attrSignature                     = "Signature"
	attrLocalVariableTable            = "LocalVariableTable"
	attrLocalVariableTypeTable        = "LocalVariableTypeTable"
	attrInnerClasses                  = "InnerClasses"
	attrEnclosingMethod               = "EnclosingMethod"
	attrRecord                        = "Record"
	attrAnnotationDefault             = "AnnotationDefault"
	attrVisibleAnnotations            = "RuntimeVisibleAnnotations"
	attrInvisibleAnnotations          = "RuntimeInvisibleAnnotations"
	attrVisibleParameterAnnotations   = "RuntimeVisibleParameterAnnotations"
	attrInvisibleParameterAnnotations = "RuntimeInvisibleParameterAnnotations"
	attrVisibleTypeAnnotations        = "RuntimeVisibleTypeAnnotations"
	attrInvisibleTypeAnnotations      = "RuntimeInvisibleTypeAnnotations"
)

// attrBootstrapMethods is read to resolve call site names. Its body holds
// only pool indices and is never patched.
const attrBootstrapMethods = "BootstrapMethods"

func rewritesAttribute(name string) bool {
	switch name {
	case attrCode, attrSignature, attrLocalVariableTable, attrLocalVariableTypeTable,
		attrInnerClasses, attrEnclosingMethod, attrRecord, attrAnnotationDefault,
		attrVisibleAnnotations, attrInvisibleAnnotations,
		attrVisibleParameterAnnotations, attrInvisibleParameterAnnotations,
		attrVisibleTypeAnnotations, attrInvisibleTypeAnnotations:
		return true
	}
	return false
}

func structural(format string, args ...any) error {
	return fmt.Errorf("%w: %s", classfile.ErrTruncatedClass, fmt.Sprintf(format, args...))
}

// attributes patches every attribute of the class, its fields and its
// methods. Patched bodies are copies; parsed input bytes are left alone.
func (cr *classRewrite) attributes() error {
	if err := cr.attrList(cr.cf.Attributes); err != nil {
		return err
	}
	for i := range cr.cf.Fields {
		if err := cr.attrList(cr.cf.Fields[i].Attributes); err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
	}
	for i := range cr.cf.Methods {
		if err := cr.attrList(cr.cf.Methods[i].Attributes); err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
	}
	return nil
}

func (cr *classRewrite) attrList(attrs []classfile.Attribute) error {
	for i, a := range attrs {
		name, err := cr.orig.Utf8(a.Name)
		if err != nil {
			return fmt.Errorf("attribute name: %w", err)
		}
		if !rewritesAttribute(name) {
			continue
		}
		data := bytes.Clone(a.Data)
		if err := cr.attrBody(name, classfile.NewCursor(data)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		attrs[i].Data = data
	}
	return nil
}

// nestedAttrs walks an attribute table embedded in another attribute.
func (cr *classRewrite) nestedAttrs(c *classfile.Cursor) error {
	n, err := c.U2()
	if err != nil {
		return err
	}
	for range n {
		nameIdx, err := c.U2()
		if err != nil {
			return err
		}
		length, err := c.U4()
		if err != nil {
			return err
		}
		body, err := c.Next(int(length))
		if err != nil {
			return err
		}
		name, err := cr.orig.Utf8(nameIdx)
		if err != nil {
			return fmt.Errorf("attribute name: %w", err)
		}
		if !rewritesAttribute(name) {
			continue
		}
		if err := cr.attrBody(name, classfile.NewCursor(body)); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

func (cr *classRewrite) attrBody(name string, c *classfile.Cursor) error {
	switch name {
	case attrCode:
		return cr.code(c)
	case attrSignature:
		return cr.patchUtf8(c, cr.tr.TranslateSignature)
	case attrLocalVariableTable:
		return cr.localVariables(c, cr.tr.TranslateDescriptor)
	case attrLocalVariableTypeTable:
		return cr.localVariables(c, cr.tr.TranslateSignature)
	case attrInnerClasses:
		return cr.innerClasses(c)
	case attrEnclosingMethod:
		return cr.enclosingMethod(c)
	case attrRecord:
		return cr.record(c)
	case attrAnnotationDefault:
		return cr.elementValue(c, 0)
	case attrVisibleAnnotations, attrInvisibleAnnotations:
		return cr.annotations(c)
	case attrVisibleParameterAnnotations, attrInvisibleParameterAnnotations:
		return cr.parameterAnnotations(c)
	case attrVisibleTypeAnnotations, attrInvisibleTypeAnnotations:
		return cr.typeAnnotations(c)
	}
	return nil
}

// patchUtf8 reads a Utf8 index and repoints it at fn applied to its text.
func (cr *classRewrite) patchUtf8(c *classfile.Cursor, fn func(string) string) error {
	_, err := cr.patchUtf8Text(c, fn)
	return err
}

// patchUtf8Text is patchUtf8 returning the original text.
func (cr *classRewrite) patchUtf8Text(c *classfile.Cursor, fn func(string) string) (string, error) {
	off := c.Pos()
	idx, err := c.U2()
	if err != nil {
		return "", err
	}
	s, err := cr.orig.Utf8(idx)
	if err != nil {
		return "", err
	}
	mapped, err := cr.remapUtf8(idx, fn)
	if err != nil {
		return "", err
	}
	if mapped != idx {
		c.PutU2(off, mapped)
	}
	return s, nil
}

// renameUtf8 reads a Utf8 index holding a member name and repoints it at
// the name rename returns.
func (cr *classRewrite) renameUtf8(c *classfile.Cursor, rename func(string) (string, error)) error {
	off := c.Pos()
	idx, err := c.U2()
	if err != nil {
		return err
	}
	name, err := cr.orig.Utf8(idx)
	if err != nil {
		return err
	}
	mapped, err := rename(name)
	if err != nil {
		return err
	}
	if mapped == name {
		return nil
	}
	if idx, err = cr.internUtf8(mapped); err != nil {
		return err
	}
	c.PutU2(off, idx)
	return nil
}

func (cr *classRewrite) code(c *classfile.Cursor) error {
	// max_stack, max_locals
	if err := c.Skip(4); err != nil {
		return err
	}
	codeLen, err := c.U4()
	if err != nil {
		return err
	}
	if err := c.Skip(int(codeLen)); err != nil {
		return err
	}
	excLen, err := c.U2()
	if err != nil {
		return err
	}
	if err := c.Skip(8 * int(excLen)); err != nil {
		return err
	}
	return cr.nestedAttrs(c)
}

// localVariables patches the descriptor or signature column of a
// LocalVariableTable or LocalVariableTypeTable.
func (cr *classRewrite) localVariables(c *classfile.Cursor, fn func(string) string) error {
	n, err := c.U2()
	if err != nil {
		return err
	}
	for range n {
		// start_pc, length, name_index
		if err := c.Skip(6); err != nil {
			return err
		}
		if err := cr.patchUtf8(c, fn); err != nil {
			return err
		}
		// index
		if err := c.Skip(2); err != nil {
			return err
		}
	}
	return nil
}

func (cr *classRewrite) innerClasses(c *classfile.Cursor) error {
	n, err := c.U2()
	if err != nil {
		return err
	}
	for range n {
		innerIdx, err := c.U2()
		if err != nil {
			return err
		}
		outerIdx, err := c.U2()
		if err != nil {
			return err
		}
		nameOff := c.Pos()
		nameIdx, err := c.U2()
		if err != nil {
			return err
		}
		flagsOff := c.Pos()
		flags, err := c.U2()
		if err != nil {
			return err
		}
		if nameIdx != 0 {
			simple, err := cr.innerSimpleName(innerIdx, outerIdx, nameIdx)
			if err != nil {
				return err
			}
			if simple != nameIdx {
				c.PutU2(nameOff, simple)
			}
		}
		if mapped := cr.policy(flags, KindInnerClass); mapped != flags {
			c.PutU2(flagsOff, mapped)
		}
	}
	return nil
}

// innerSimpleName derives the simple name of a renamed inner class from its
// translated binary name.
func (cr *classRewrite) innerSimpleName(innerIdx, outerIdx, nameIdx uint16) (uint16, error) {
	if _, err := cr.orig.Utf8(nameIdx); err != nil {
		return 0, err
	}
	inner, err := cr.orig.ClassName(innerIdx)
	if err != nil {
		return 0, err
	}
	mapped := cr.tr.TranslateClass(inner)
	if mapped == inner {
		return nameIdx, nil
	}

	var simple string
	if outerIdx != 0 {
		outer, err := cr.orig.ClassName(outerIdx)
		if err != nil {
			return 0, err
		}
		if prefix := cr.tr.TranslateClass(outer) + "$"; strings.HasPrefix(mapped, prefix) {
			simple = mapped[len(prefix):]
		}
	}
	if simple == "" {
		simple = mapped[strings.LastIndexAny(mapped, "$/")+1:]
		if outerIdx == 0 {
			// Local classes carry a numeric prefix in their binary name.
			simple = strings.TrimLeft(simple, "0123456789")
		}
	}
	if simple == "" {
		return nameIdx, nil
	}
	return cr.internUtf8(simple)
}

func (cr *classRewrite) enclosingMethod(c *classfile.Cursor) error {
	classIdx, err := c.U2()
	if err != nil {
		return err
	}
	off := c.Pos()
	natIdx, err := c.U2()
	if err != nil {
		return err
	}
	if natIdx == 0 {
		return nil
	}
	owner, err := cr.orig.ClassName(classIdx)
	if err != nil {
		return err
	}
	mapped, err := cr.memberNameAndType(owner, natIdx)
	if err != nil {
		return err
	}
	if mapped != natIdx {
		c.PutU2(off, mapped)
	}
	return nil
}

// record renames record components the same way as the fields backing them.
func (cr *classRewrite) record(c *classfile.Cursor) error {
	n, err := c.U2()
	if err != nil {
		return err
	}
	for range n {
		nameOff := c.Pos()
		nameIdx, err := c.U2()
		if err != nil {
			return err
		}
		descOff := c.Pos()
		descIdx, err := c.U2()
		if err != nil {
			return err
		}
		decl := classfile.Member{Name: nameIdx, Descriptor: descIdx}
		if err := cr.declaration(&decl, KindField); err != nil {
			return err
		}
		if decl.Name != nameIdx {
			c.PutU2(nameOff, decl.Name)
		}
		if decl.Descriptor != descIdx {
			c.PutU2(descOff, decl.Descriptor)
		}
		if err := cr.nestedAttrs(c); err != nil {
			return err
		}
	}
	return nil
}

func (cr *classRewrite) annotations(c *classfile.Cursor) error {
	n, err := c.U2()
	if err != nil {
		return err
	}
	for range n {
		if err := cr.annotation(c, 0); err != nil {
			return err
		}
	}
	return nil
}

func (cr *classRewrite) parameterAnnotations(c *classfile.Cursor) error {
	params, err := c.U1()
	if err != nil {
		return err
	}
	for range params {
		if err := cr.annotations(c); err != nil {
			return err
		}
	}
	return nil
}

// annotation patches an annotation's type and, when the annotation type is
// indexed, the names of its elements.
func (cr *classRewrite) annotation(c *classfile.Cursor, depth int) error {
	typeDesc, err := cr.patchUtf8Text(c, cr.tr.TranslateDescriptor)
	if err != nil {
		return err
	}
	owner, isClass := objectClass(typeDesc)
	pairs, err := c.U2()
	if err != nil {
		return err
	}
	for range pairs {
		if isClass {
			err = cr.renameUtf8(c, func(name string) (string, error) {
				return cr.tr.TranslateAnnotationElement(owner, name)
			})
		} else {
			err = c.Skip(2)
		}
		if err != nil {
			return err
		}
		if err := cr.elementValue(c, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (cr *classRewrite) elementValue(c *classfile.Cursor, depth int) error {
	if depth > maxElementDepth {
		return structural("annotation nesting exceeds %d", maxElementDepth)
	}
	tag, err := c.U1()
	if err != nil {
		return err
	}
	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		return c.Skip(2)
	case 'e':
		return cr.enumConst(c)
	case 'c':
		return cr.patchUtf8(c, cr.tr.TranslateDescriptor)
	case '@':
		return cr.annotation(c, depth+1)
	case '[':
		n, err := c.U2()
		if err != nil {
			return err
		}
		for range n {
			if err := cr.elementValue(c, depth+1); err != nil {
				return err
			}
		}
		return nil
	default:
		return structural("unknown element value tag %q", tag)
	}
}

// enumConst patches an enum element value: the enum type and the constant,
// which is renamed like the static field backing it.
func (cr *classRewrite) enumConst(c *classfile.Cursor) error {
	typeDesc, err := cr.patchUtf8Text(c, cr.tr.TranslateDescriptor)
	if err != nil {
		return err
	}
	owner, ok := objectClass(typeDesc)
	if !ok {
		return c.Skip(2)
	}
	return cr.renameUtf8(c, func(name string) (string, error) {
		res, err := cr.tr.TranslateMember(mapping.MemberSignature{Owner: owner, Name: name, Descriptor: typeDesc})
		if err != nil {
			return "", err
		}
		return res.Name, nil
	})
}

func (cr *classRewrite) typeAnnotations(c *classfile.Cursor) error {
	n, err := c.U2()
	if err != nil {
		return err
	}
	for range n {
		if err := skipTypeTarget(c); err != nil {
			return err
		}
		pathLen, err := c.U1()
		if err != nil {
			return err
		}
		if err := c.Skip(2 * int(pathLen)); err != nil {
			return err
		}
		if err := cr.annotation(c, 0); err != nil {
			return err
		}
	}
	return nil
}

// skipTypeTarget skips the target_type and target_info of a type
// annotation (JVMS 4.7.20.1).
func skipTypeTarget(c *classfile.Cursor) error {
	target, err := c.U1()
	if err != nil {
		return err
	}
	switch {
	case target == 0x00 || target == 0x01 || target == 0x16:
		return c.Skip(1)
	case target == 0x10 || target == 0x17 || target == 0x42 || (target >= 0x43 && target <= 0x46):
		return c.Skip(2)
	case target == 0x11 || target == 0x12:
		return c.Skip(2)
	case target >= 0x13 && target <= 0x15:
		return nil
	case target == 0x40 || target == 0x41:
		n, err := c.U2()
		if err != nil {
			return err
		}
		return c.Skip(6 * int(n))
	case target >= 0x47 && target <= 0x4B:
		return c.Skip(3)
	default:
		return structural("unknown type annotation target 0x%02x", target)
	}
}
