package recording

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
	"studiocast/pkg/events"
)

func videoSample(ts time.Duration, key bool) *media.EncodedSample {
	return &media.EncodedSample{
		Data:      []byte{0, 1, 2, 3},
		Kind:      media.TrackKindVideo,
		Keyframe:  key,
		Timestamp: ts,
		Duration:  33 * time.Millisecond,
	}
}

func audioSample(ts time.Duration) *media.EncodedSample {
	return &media.EncodedSample{
		Data:      []byte{9, 9},
		Kind:      media.TrackKindAudio,
		Timestamp: ts,
		Duration:  20 * time.Millisecond,
	}
}

func fillBuffer(b *ClipBuffer, seconds int) {
	for i := 0; i <= seconds*30; i++ {
		b.Write(videoSample(time.Duration(i)*33*time.Millisecond, i%30 == 0))
	}
}

func TestClipBufferUnderflowRejected(t *testing.T) {
	b := NewClipBuffer(60 * time.Second)

	_, err := b.Extract(10 * time.Second)
	assert.ErrorIs(t, err, domain.ErrInsufficientBuffer)

	// Two seconds of history cannot satisfy a ten-second clip.
	fillBuffer(b, 2)
	_, err = b.Extract(10 * time.Second)
	assert.ErrorIs(t, err, domain.ErrInsufficientBuffer)

	fillBuffer(b, 12)
	_, err = b.Extract(10 * time.Second)
	assert.NoError(t, err)
}

func TestClipBufferEvictsOldSamples(t *testing.T) {
	b := NewClipBuffer(5 * time.Second)
	fillBuffer(b, 30)

	assert.LessOrEqual(t, b.Buffered(), 5*time.Second+time.Second)
}

func TestClipBufferExtractReturnsRecentWindow(t *testing.T) {
	b := NewClipBuffer(60 * time.Second)
	fillBuffer(b, 20)

	samples, err := b.Extract(5 * time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, samples)

	newest := samples[len(samples)-1].Timestamp
	oldest := samples[0].Timestamp
	assert.InDelta(t, (5 * time.Second).Seconds(), (newest - oldest).Seconds(), 0.2)
}

func TestClipperCreatesClipFileAndEvent(t *testing.T) {
	dir := t.TempDir()
	bus := events.NewBus()
	var created *domain.Clip
	bus.Subscribe(events.EventClipCreated, func(e events.Event) {
		created, _ = e.Payload.(*domain.Clip)
	})

	buf := NewClipBuffer(60 * time.Second)
	fillBuffer(buf, 15)
	for i := 0; i <= 15*50; i++ {
		buf.Write(audioSample(time.Duration(i) * 20 * time.Millisecond))
	}

	c := NewClipper(buf, dir, bus, zaptest.NewLogger(t).Sugar())
	clip, err := c.CreateClip(10 * time.Second)
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, clip.Duration)
	assert.Positive(t, clip.Bytes)
	info, err := os.Stat(clip.Path)
	require.NoError(t, err)
	assert.Equal(t, clip.Bytes, info.Size())
	require.NotNil(t, created)
	assert.Equal(t, clip.ID, created.ID)
}

func TestMultiTrackRecorderPerParticipantResults(t *testing.T) {
	r := NewMultiTrackRecorder(t.TempDir(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, r.Start())
	assert.ErrorIs(t, r.Start(), domain.ErrAlreadyRunning)

	for i := 0; i < 30; i++ {
		ts := time.Duration(i) * 33 * time.Millisecond
		r.Append("host", videoSample(ts, i == 0))
		r.Append("host", audioSample(ts))
		r.Append("guest", videoSample(ts, i == 0))
	}

	results, err := r.Stop(context.Background())
	require.NoError(t, err)
	require.Len(t, results, 3, "host audio+video, guest video")

	for _, res := range results {
		assert.Positive(t, res.Bytes)
		assert.Positive(t, res.Duration)
		info, err := os.Stat(res.Path)
		require.NoError(t, err)
		assert.Equal(t, res.Bytes, info.Size())
	}

	// Results are deterministic: guest before host, audio before video.
	assert.Equal(t, domain.SourceID("guest"), results[0].SourceID)
	assert.Equal(t, domain.RecordingAudio, results[1].Kind)
	assert.Equal(t, domain.RecordingVideo, results[2].Kind)
}

func TestMultiTrackStopWithoutStart(t *testing.T) {
	r := NewMultiTrackRecorder(t.TempDir(), zaptest.NewLogger(t).Sugar())
	_, err := r.Stop(context.Background())
	assert.ErrorIs(t, err, domain.ErrNotRunning)
}

func TestMultiTrackDropsSamplesWhenStopped(t *testing.T) {
	r := NewMultiTrackRecorder(t.TempDir(), zaptest.NewLogger(t).Sugar())
	r.Append("host", videoSample(0, true))
	assert.False(t, r.Running())

	require.NoError(t, r.Start())
	results, err := r.Stop(context.Background())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestLocalRecorderFinalizesWithMetadata(t *testing.T) {
	dir := t.TempDir()
	r := NewLocalRecorder(dir, zaptest.NewLogger(t).Sugar())
	require.NoError(t, r.Start())

	for i := 0; i < 60; i++ {
		ts := time.Duration(i) * 33 * time.Millisecond
		r.Append(videoSample(ts, i%30 == 0))
		r.Append(audioSample(ts))
	}

	res, err := r.Stop(domain.BroadcastMeta{
		ID: "bc-42", Title: "Launch Day", Duration: 90 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, domain.RecordingComposite, res.Kind)
	assert.Equal(t, 90*time.Second, res.Duration)
	assert.Positive(t, res.Bytes)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "mp4 plus json sidecar")
}

func TestLocalRecorderStopTwiceRejected(t *testing.T) {
	r := NewLocalRecorder(t.TempDir(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, r.Start())
	r.Append(videoSample(0, true))

	_, err := r.Stop(domain.BroadcastMeta{ID: "bc"})
	require.NoError(t, err)
	_, err = r.Stop(domain.BroadcastMeta{ID: "bc"})
	assert.ErrorIs(t, err, domain.ErrNotRunning)
}

func TestWriteFragmentedMP4RejectsEmpty(t *testing.T) {
	_, err := writeFragmentedMP4(t.TempDir()+"/x.mp4", nil)
	assert.Error(t, err)
}
