package sfx

// ProgressEvent represents a progress update while building or verifying an image.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Path is the entry currently being processed, if applicable.
	Path string

	// BytesDone is the file content processed so far.
	BytesDone uint64

	// BytesTotal is the total file content, or zero if unknown.
	BytesTotal uint64

	// EntriesDone is the number of entries processed so far.
	EntriesDone int

	// EntriesTotal is the total number of entries, or zero if unknown.
	EntriesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

const (
	// StageCollecting indicates the source tree is being walked.
	StageCollecting ProgressStage = iota

	// StageArchiving indicates entries are being archived and compressed.
	StageArchiving

	// StageFinalizing indicates metadata and the trailer are being written.
	StageFinalizing

	// StageSaving indicates the image is being written to disk.
	StageSaving

	// StageVerifying indicates an image payload is being decoded and checked.
	StageVerifying
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StageCollecting:
		return "collecting"
	case StageArchiving:
		return "archiving"
	case StageFinalizing:
		return "finalizing"
	case StageSaving:
		return "saving"
	case StageVerifying:
		return "verifying"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates. Calls are made synchronously from
// the goroutine running the operation.
type ProgressFunc func(ProgressEvent)
