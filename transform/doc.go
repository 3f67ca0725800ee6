// Package transform rewrites every entry of an archive into another archive.
//
// Class entries are rewritten in parallel by a pool of workers and renamed
// to match their translated class names. Other entries are copied. A single
// consumer writes results in listing order and reports progress, so the
// output order is deterministic and reported percentages never decrease.
//
// Any failure aborts the whole transform with an [*EntryError] naming the
// entry. Callers are expected to write into a temporary archive and discard
// it on error.
package transform
