// Package mapping loads obfuscation mapping tables.
//
// A [Table] is an immutable index from obfuscated to readable class and
// member names. Members are keyed by owning class, name and descriptor, all
// in their obfuscated form. The readable-to-obfuscated inverse is built on
// first use and must itself be a function for the table to be usable in the
// [Obfuscating] direction.
//
// Tables are read from Enigma mapping directories (one file per top-level
// class, tab-indented) or Tiny v1/v2 files. The format is detected per file.
package mapping
