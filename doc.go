// Package jarmap remaps the symbols of compiled JVM archives between an
// obfuscated and a readable naming scheme.
//
// The high-level entry point is [Remap], which rewrites every class of an
// input jar through a mapping table and writes the result atomically:
//
//	table, err := mapping.LoadDir("./mappings")
//	if err != nil {
//	    return err
//	}
//	res, err := jarmap.Remap(ctx, "game.jar", "game-named.jar", table,
//	    jarmap.RemapWithWorkers(8),
//	    jarmap.RemapWithProgress(func(ev jarmap.ProgressEvent) {
//	        fmt.Println(ev.Percent, ev.Message)
//	    }),
//	)
//
// The building blocks live in subpackages: [mapping] loads tables,
// [classindex] records the class hierarchy, [translate] resolves names,
// [rewrite] patches single class files and [transform] drives whole
// archives. The [install] package builds a loader installation on top of
// them.
//
// # Caching
//
// Use RemapWithCache to reuse earlier results. Entries are keyed by the
// input archive digest, the table digest, the direction and the access
// policy id:
//
//	c, err := disk.New("/var/cache/jarmap")
//	if err != nil {
//	    return err
//	}
//	res, err := jarmap.Remap(ctx, in, out, table, jarmap.RemapWithCache(c))
package jarmap
