package recording

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

// trackKey identifies one recorder: one participant, one track kind.
type trackKey struct {
	source domain.SourceID
	kind   domain.RecordingKind
}

// MultiTrackRecorder runs one independent recorder per participant stream,
// split into audio-only and video-only tracks. Stop awaits every
// recorder's finalization and assembles one result per track.
type MultiTrackRecorder struct {
	dir    string
	logger *zap.SugaredLogger

	mu        sync.Mutex
	running   bool
	startedAt time.Time
	tracks    map[trackKey][]*media.EncodedSample
}

// NewMultiTrackRecorder creates a recorder archiving under dir.
func NewMultiTrackRecorder(dir string, logger *zap.SugaredLogger) *MultiTrackRecorder {
	return &MultiTrackRecorder{
		dir:    dir,
		logger: logger,
		tracks: make(map[trackKey][]*media.EncodedSample),
	}
}

// Start begins accepting samples. Starting twice is an error.
func (r *MultiTrackRecorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return domain.ErrAlreadyRunning
	}
	r.running = true
	r.startedAt = time.Now()
	r.tracks = make(map[trackKey][]*media.EncodedSample)
	return nil
}

// Running reports whether a recording session is active.
func (r *MultiTrackRecorder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Append records one sample for a participant. Samples arriving while the
// recorder is stopped are dropped.
func (r *MultiTrackRecorder) Append(source domain.SourceID, s *media.EncodedSample) {
	kind := domain.RecordingVideo
	if s.Kind == media.TrackKindAudio {
		kind = domain.RecordingAudio
	}
	key := trackKey{source: source, kind: kind}

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return
	}
	r.tracks[key] = append(r.tracks[key], s)
}

// Stop finalizes every per-participant recorder concurrently and waits for
// all of them before returning. The result holds one entry per participant
// per track kind with accurate byte size and duration; individual
// finalization failures are reported in place of aborting the rest.
func (r *MultiTrackRecorder) Stop(ctx context.Context) ([]domain.RecordingResult, error) {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil, domain.ErrNotRunning
	}
	r.running = false
	startedAt := r.startedAt
	tracks := r.tracks
	r.tracks = make(map[trackKey][]*media.EncodedSample)
	r.mu.Unlock()

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return nil, err
	}

	type outcome struct {
		result domain.RecordingResult
		err    error
	}
	results := make(chan outcome, len(tracks))
	var wg sync.WaitGroup

	for key, samples := range tracks {
		wg.Add(1)
		go func(key trackKey, samples []*media.EncodedSample) {
			defer wg.Done()

			mediaKind := media.TrackKindVideo
			if key.kind == domain.RecordingAudio {
				mediaKind = media.TrackKindAudio
			}
			path := filepath.Join(r.dir,
				fmt.Sprintf("%s-%s-%s.mp4", startedAt.Format("20060102-150405"), key.source, key.kind))

			size, err := writeFragmentedMP4(path, []trackSamples{{kind: mediaKind, samples: samples}})
			if err != nil {
				r.logger.Errorw("track finalization failed",
					"source", key.source, "kind", key.kind, "error", err)
				results <- outcome{err: err}
				return
			}
			results <- outcome{result: domain.RecordingResult{
				SourceID:  key.source,
				Kind:      key.kind,
				Bytes:     size,
				Duration:  samplesDuration(samples),
				Path:      path,
				StartedAt: startedAt,
			}}
		}(key, samples)
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	close(results)

	out := make([]domain.RecordingResult, 0, len(tracks))
	var firstErr error
	for o := range results {
		if o.err != nil {
			if firstErr == nil {
				firstErr = o.err
			}
			continue
		}
		out = append(out, o.result)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceID != out[j].SourceID {
			return out[i].SourceID < out[j].SourceID
		}
		return out[i].Kind < out[j].Kind
	})
	return out, firstErr
}
