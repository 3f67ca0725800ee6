// Package rewrite renames the symbols of a single class file.
//
// A [Rewriter] parses a class, repoints every class, member, descriptor and
// signature reference at its translated form, applies an [AccessPolicy] to
// fields, methods and inner-class rows, and serializes the result.
//
// Existing constant-pool entries keep their indices. Translated names are
// appended as new Utf8 and NameAndType entries and the referring entries
// and attribute fields are repointed at them, so instruction bytes and
// stack map frames are carried over unchanged.
package rewrite
