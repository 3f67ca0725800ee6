// Package archive reads and writes jar archives as ordered lists of entries.
//
// A [Reader] lists entry paths in archive order and returns entry contents by
// path. A [Writer] accepts entries in the order they should appear. [ZipReader]
// and [ZipWriter] implement these interfaces over zip files, and [Mem] over an
// in-memory slice. [Merge] layers one archive over another.
//
// ZipWriter writes into a temporary file next to the destination and only
// replaces the destination on [ZipWriter.Commit], so a failed run never leaves
// a partial archive behind.
package archive
