// Package jartype holds types shared between the remapping packages and the
// public API.
package jartype

// ProgressEvent reports progress of a remap or install.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the archive entry or file currently being processed, if any.
	Path string

	// Percent is overall completion in [0, 100]. Within one operation it
	// never decreases.
	Percent int

	// Message is a short human-readable status.
	Message string

	// Done is the number of entries completed in the current stage.
	Done int

	// Total is the number of entries in the current stage.
	// Zero indicates the total is unknown.
	Total int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages.
const (
	// StagePreparing indicates inputs are being validated and directories prepared.
	StagePreparing ProgressStage = iota

	// StageLoadingMappings indicates mapping files are being read.
	StageLoadingMappings

	// StageIndexing indicates the class hierarchy is being indexed.
	StageIndexing

	// StageRemapping indicates archive entries are being rewritten.
	StageRemapping

	// StageMerging indicates resources are being merged into the output.
	StageMerging

	// StageDone indicates the operation finished.
	StageDone
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StagePreparing:
		return "preparing"
	case StageLoadingMappings:
		return "loading mappings"
	case StageIndexing:
		return "indexing"
	case StageRemapping:
		return "remapping"
	case StageMerging:
		return "merging"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. Calls are serialized by the
// reporting operation.
type ProgressFunc func(ProgressEvent)

// Band rescales events from a sub-operation reporting 0..100 into
// [lo, hi] of the parent's range. Events are forwarded to fn with their
// Percent rewritten.
func Band(fn ProgressFunc, lo, hi int) ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(ev ProgressEvent) {
		ev.Percent = lo + (hi-lo)*clamp(ev.Percent)/100
		fn(ev)
	}
}

// Monotonic wraps fn so that reported percentages never decrease.
func Monotonic(fn ProgressFunc) ProgressFunc {
	if fn == nil {
		return nil
	}
	last := 0
	return func(ev ProgressEvent) {
		ev.Percent = max(clamp(ev.Percent), last)
		last = ev.Percent
		fn(ev)
	}
}

func clamp(p int) int {
	return min(max(p, 0), 100)
}
