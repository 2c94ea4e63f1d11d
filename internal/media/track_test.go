package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVideoTrackLatestWins(t *testing.T) {
	tr := NewVideoTrack()

	f, seq := tr.Latest()
	assert.Nil(t, f)
	assert.Zero(t, seq)

	a := NewVideoFrame(2, 2)
	b := NewVideoFrame(2, 2)
	tr.WriteFrame(a)
	tr.WriteFrame(b)

	got, seq := tr.Latest()
	assert.Same(t, b, got)
	assert.Equal(t, uint64(2), seq)
}

func TestVideoTrackCloseDropsFrame(t *testing.T) {
	tr := NewVideoTrack()
	tr.WriteFrame(NewVideoFrame(2, 2))
	tr.Close()

	f, _ := tr.Latest()
	assert.Nil(t, f)
	assert.True(t, tr.Closed())

	tr.WriteFrame(NewVideoFrame(2, 2))
	f, _ = tr.Latest()
	assert.Nil(t, f, "writes after close must be dropped")
}

func TestAudioTrackRoundTrip(t *testing.T) {
	tr := NewAudioTrack(48000, 2, 64)

	in := []int16{1, 2, 3, 4, 5, 6}
	tr.WriteSamples(in)
	assert.Equal(t, 6, tr.Buffered())

	out := tr.ReadBlock(6)
	assert.Equal(t, in, out)
	assert.Zero(t, tr.Buffered())
}

func TestAudioTrackUnderrunPadsSilence(t *testing.T) {
	tr := NewAudioTrack(48000, 2, 64)
	tr.WriteSamples([]int16{7, 8})

	out := tr.ReadBlock(4)
	assert.Equal(t, []int16{7, 8, 0, 0}, out)
}

func TestAudioTrackOverflowDropsOldest(t *testing.T) {
	tr := NewAudioTrack(48000, 1, 4)
	tr.WriteSamples([]int16{1, 2, 3, 4})
	tr.WriteSamples([]int16{5, 6})

	out := tr.ReadBlock(4)
	assert.Equal(t, []int16{3, 4, 5, 6}, out)
}

func TestAudioTrackWrapAround(t *testing.T) {
	tr := NewAudioTrack(48000, 1, 4)
	tr.WriteSamples([]int16{1, 2, 3})
	_ = tr.ReadBlock(2)
	tr.WriteSamples([]int16{4, 5, 6})

	out := tr.ReadBlock(4)
	assert.Equal(t, []int16{3, 4, 5, 6}, out)
}

func TestStreamTrackPresence(t *testing.T) {
	s := &Stream{ID: "cam-1", Video: NewVideoTrack()}
	assert.True(t, s.HasVideo())
	assert.False(t, s.HasAudio())

	s.Audio = NewAudioTrack(48000, 2, 0)
	require.True(t, s.HasAudio())
	s.Audio.Close()
	assert.False(t, s.HasAudio())
}

func TestAudioBlockHelpers(t *testing.T) {
	b := &AudioBlock{
		Samples:    make([]int16, 960*2),
		SampleRate: 48000,
		Channels:   2,
	}
	assert.Equal(t, 960, b.Frames())
	assert.Equal(t, "20ms", b.Duration().String())
}
