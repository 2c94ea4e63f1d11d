package recording

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
	"studiocast/pkg/events"
)

// ClipBuffer continuously retains the most recent window of the composite
// stream's encoded samples in memory. Windowing uses the samples' own
// session timestamps, not wall-clock time.
type ClipBuffer struct {
	maxAge time.Duration

	mu      sync.Mutex
	samples []*media.EncodedSample
}

// NewClipBuffer creates a rolling buffer keeping up to maxAge of history.
func NewClipBuffer(maxAge time.Duration) *ClipBuffer {
	return &ClipBuffer{maxAge: maxAge}
}

// Write appends a sample, evicting anything that falls out of the window.
func (b *ClipBuffer) Write(s *media.EncodedSample) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.samples = append(b.samples, s)
	cutoff := s.Timestamp - b.maxAge
	drop := 0
	for drop < len(b.samples) && b.samples[drop].Timestamp < cutoff {
		drop++
	}
	b.samples = b.samples[drop:]
}

// Buffered returns how much history the buffer currently holds.
func (b *ClipBuffer) Buffered() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.samples) < 2 {
		return 0
	}
	return b.samples[len(b.samples)-1].Timestamp - b.samples[0].Timestamp
}

// Extract returns the most recent d of samples. It fails when the buffer
// does not yet hold that much history, so callers can disable the action
// instead of producing a short clip.
func (b *ClipBuffer) Extract(d time.Duration) ([]*media.EncodedSample, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.samples) < 2 {
		return nil, domain.ErrInsufficientBuffer
	}
	newest := b.samples[len(b.samples)-1].Timestamp
	oldest := b.samples[0].Timestamp
	if newest-oldest < d {
		return nil, domain.ErrInsufficientBuffer
	}

	cutoff := newest - d
	start := 0
	for start < len(b.samples) && b.samples[start].Timestamp < cutoff {
		start++
	}
	out := make([]*media.EncodedSample, len(b.samples)-start)
	copy(out, b.samples[start:])
	return out, nil
}

// Clipper turns buffer extractions into clip files on disk.
type Clipper struct {
	buf    *ClipBuffer
	dir    string
	bus    *events.Bus
	logger *zap.SugaredLogger
}

// NewClipper creates a clipper archiving clips under dir.
func NewClipper(buf *ClipBuffer, dir string, bus *events.Bus, logger *zap.SugaredLogger) *Clipper {
	return &Clipper{buf: buf, dir: dir, bus: bus, logger: logger}
}

// Buffer returns the underlying rolling buffer, which callers feed with
// composite samples.
func (c *Clipper) Buffer() *ClipBuffer { return c.buf }

// CreateClip extracts the most recent d of the buffer into an fMP4 file.
func (c *Clipper) CreateClip(d time.Duration) (*domain.Clip, error) {
	samples, err := c.buf.Extract(d)
	if err != nil {
		return nil, err
	}

	var video, audio []*media.EncodedSample
	for _, s := range samples {
		if s.Kind == media.TrackKindAudio {
			audio = append(audio, s)
		} else {
			video = append(video, s)
		}
	}
	tracks := make([]trackSamples, 0, 2)
	if len(video) > 0 {
		tracks = append(tracks, trackSamples{kind: media.TrackKindVideo, samples: video})
	}
	if len(audio) > 0 {
		tracks = append(tracks, trackSamples{kind: media.TrackKindAudio, samples: audio})
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return nil, err
	}
	id := uuid.New().String()
	path := filepath.Join(c.dir, fmt.Sprintf("clip-%s.mp4", id))
	size, err := writeFragmentedMP4(path, tracks)
	if err != nil {
		return nil, err
	}

	clip := &domain.Clip{
		ID:        id,
		Duration:  d,
		Bytes:     size,
		Path:      path,
		CreatedAt: time.Now(),
	}
	c.logger.Infow("clip created", "clip_id", id, "duration", d, "bytes", size)
	c.bus.Emit(events.EventClipCreated, "", clip)
	return clip, nil
}
