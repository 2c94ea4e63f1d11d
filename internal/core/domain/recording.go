package domain

import (
	"time"
)

// RecordingKind distinguishes per-participant track recordings.
type RecordingKind string

const (
	RecordingAudio     RecordingKind = "audio"
	RecordingVideo     RecordingKind = "video"
	RecordingComposite RecordingKind = "composite"
)

// RecordingResult is one finalized recorder output: one participant, one
// track kind, with accurate byte size and duration.
type RecordingResult struct {
	SourceID  SourceID
	Kind      RecordingKind
	Bytes     int64
	Duration  time.Duration
	Path      string
	StartedAt time.Time
}

// Clip is an extracted rolling-buffer segment of the composite output.
type Clip struct {
	ID        string
	Duration  time.Duration
	Bytes     int64
	Path      string
	CreatedAt time.Time
}

// BroadcastMeta is the metadata attached to local recordings on finalize.
type BroadcastMeta struct {
	ID       BroadcastID
	Title    string
	Duration time.Duration
}
