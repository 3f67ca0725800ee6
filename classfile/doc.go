// Package classfile is a minimal reader and writer for JVM class files.
//
// It decodes the structural form of a class (constant pool, header, fields,
// methods and attributes) into flat, index-addressed records. Attribute
// bodies are kept as raw bytes; callers that need to look inside them use
// [Cursor] to walk and patch u2 indices in place.
//
// The package never renumbers existing constant-pool entries. New entries
// are appended with [Pool.Append], so bytecode that refers to the pool by
// index remains valid byte-for-byte after a rewrite.
package classfile
