package jarmap

import "github.com/meigma/jarmap/internal/jartype"

// Re-export progress types.
type (
	// ProgressEvent represents a progress update during a remap or install.
	ProgressEvent = jartype.ProgressEvent

	// ProgressStage identifies the current phase of an operation.
	ProgressStage = jartype.ProgressStage

	// ProgressFunc receives progress updates. Calls are serialized.
	ProgressFunc = jartype.ProgressFunc
)

// Re-export progress stage constants.
const (
	// StagePreparing indicates inputs are being validated.
	StagePreparing = jartype.StagePreparing

	// StageLoadingMappings indicates mapping files are being read.
	StageLoadingMappings = jartype.StageLoadingMappings

	// StageIndexing indicates the class hierarchy is being indexed.
	StageIndexing = jartype.StageIndexing

	// StageRemapping indicates archive entries are being rewritten.
	StageRemapping = jartype.StageRemapping

	// StageMerging indicates resources are being merged into the output.
	StageMerging = jartype.StageMerging

	// StageDone indicates the operation finished.
	StageDone = jartype.StageDone
)
