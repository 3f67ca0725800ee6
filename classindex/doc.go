// Package classindex records the class hierarchy of an archive.
//
// An [Index] maps each class name to its superclass, interfaces and declared
// members. The symbol translator uses it to find the ancestor that declares
// a member when a mapping entry is keyed on the declaring class but a
// reference names a subclass.
//
// Ancestor walks are bounded and track visited classes, so malformed
// hierarchies that loop fail with [ErrCycleDetected] instead of recursing
// forever.
package classindex
