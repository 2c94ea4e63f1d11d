package recording

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

// LocalRecorder records the single composite output stream. On stop it
// packages the result with broadcast metadata as a sidecar file, the
// archive-upload analogue of a client-side download.
type LocalRecorder struct {
	dir    string
	logger *zap.SugaredLogger

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	video     []*media.EncodedSample
	audio     []*media.EncodedSample
}

// NewLocalRecorder creates a composite recorder archiving under dir.
func NewLocalRecorder(dir string, logger *zap.SugaredLogger) *LocalRecorder {
	return &LocalRecorder{dir: dir, logger: logger}
}

// Start begins capturing composite samples.
func (r *LocalRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return domain.ErrAlreadyRunning
	}
	r.running = true
	r.startedAt = time.Now()
	r.video = nil
	r.audio = nil
	return nil
}

// Running reports whether a recording is active.
func (r *LocalRecorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Append records one composite sample; dropped when not running.
func (r *LocalRecorder) Append(s *media.EncodedSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	if s.Kind == media.TrackKindAudio {
		r.audio = append(r.audio, s)
	} else {
		r.video = append(r.video, s)
	}
}

// Stop finalizes the recording, writes the fMP4 file plus a metadata
// sidecar, and returns the composite result.
func (r *LocalRecorder) Stop(meta domain.BroadcastMeta) (*domain.RecordingResult, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil, domain.ErrNotRunning
	}
	r.running = false
	startedAt := r.startedAt
	video := r.video
	audio := r.audio
	r.video = nil
	r.audio = nil
	r.mu.Unlock()

	tracks := make([]trackSamples, 0, 2)
	if len(video) > 0 {
		tracks = append(tracks, trackSamples{kind: media.TrackKindVideo, samples: video})
	}
	if len(audio) > 0 {
		tracks = append(tracks, trackSamples{kind: media.TrackKindAudio, samples: audio})
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, err
	}
	base := fmt.Sprintf("broadcast-%s-%s", meta.ID, startedAt.Format("20060102-150405"))
	path := filepath.Join(r.dir, base+".mp4")

	size, err := writeFragmentedMP4(path, tracks)
	if err != nil {
		return nil, err
	}

	duration := meta.Duration
	if duration <= 0 {
		duration = samplesDuration(video)
		if duration == 0 {
			duration = samplesDuration(audio)
		}
	}

	sidecar := struct {
		BroadcastID string        `json:"broadcast_id"`
		Title       string        `json:"title"`
		Duration    time.Duration `json:"duration_ns"`
		File        string        `json:"file"`
		Bytes       int64         `json:"bytes"`
	}{string(meta.ID), meta.Title, duration, filepath.Base(path), size}

	metaBytes, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(r.dir, base+".json"), metaBytes, 0o644); err != nil {
		return nil, err
	}

	r.logger.Infow("local recording finalized",
		"broadcast_id", meta.ID, "path", path, "bytes", size, "duration", duration)
	return &domain.RecordingResult{
		Kind:      domain.RecordingComposite,
		Bytes:     size,
		Duration:  duration,
		Path:      path,
		StartedAt: startedAt,
	}, nil
}
