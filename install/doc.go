// Package install builds a loader installation inside a game directory.
//
// An install reads the loader version from the loader jar's manifest,
// creates versions/<id>/ next to the vanilla version, remaps the vanilla
// game jar with the mappings shipped inside the loader jar and merges the
// vanilla resources back under the remapped classes. Launch descriptor
// edits are delegated to a [DescriptorPatcher].
package install
