package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

func newTestMixer(t *testing.T) *Mixer {
	return NewMixer(48000, 2, zaptest.NewLogger(t).Sugar())
}

func streamWithAudio(id string) *media.Stream {
	return &media.Stream{
		ID:    id,
		Audio: media.NewAudioTrack(48000, 2, 48000*2),
	}
}

// constantSignal fills the track with a constant amplitude for one quantum.
func constantSignal(track *media.AudioTrack, amplitude int16, samples int) {
	block := make([]int16, samples)
	for i := range block {
		block[i] = amplitude
	}
	track.WriteSamples(block)
}

func TestAddStreamWithoutAudioIsNoop(t *testing.T) {
	m := newTestMixer(t)
	m.AddStream("video-only", &media.Stream{ID: "video-only", Video: media.NewVideoTrack()})
	assert.Zero(t, m.ChannelCount())
}

func TestAddRemoveRoundTripIdentity(t *testing.T) {
	m := newTestMixer(t)

	s1 := streamWithAudio("host")
	m.AddStream("host", s1)
	before := m.ChannelCount()

	s2 := streamWithAudio("guest")
	m.AddStream("guest", s2)
	m.RemoveStream("guest")

	assert.Equal(t, before, m.ChannelCount())

	// Removed channel contributes nothing: only host's signal reaches out.
	constantSignal(s1.Audio, 1000, m.quantum)
	constantSignal(s2.Audio, 30000, m.quantum)
	m.mixQuantum()

	out := m.out.ReadBlock(m.quantum)
	for _, s := range out {
		assert.InDelta(t, 1000, s, 2)
	}
}

func TestRemoveUnknownIsIdempotent(t *testing.T) {
	m := newTestMixer(t)
	m.RemoveStream("ghost")
	m.RemoveStream("ghost")
	assert.Zero(t, m.ChannelCount())
}

func TestMixSumsChannels(t *testing.T) {
	m := newTestMixer(t)
	a := streamWithAudio("a")
	b := streamWithAudio("b")
	m.AddStream("a", a)
	m.AddStream("b", b)

	constantSignal(a.Audio, 4000, m.quantum)
	constantSignal(b.Audio, 6000, m.quantum)
	m.mixQuantum()

	out := m.out.ReadBlock(m.quantum)
	for _, s := range out {
		assert.InDelta(t, 10000, s, 4)
	}
}

func TestMixClipsInsteadOfWrapping(t *testing.T) {
	m := newTestMixer(t)
	a := streamWithAudio("a")
	b := streamWithAudio("b")
	m.AddStream("a", a)
	m.AddStream("b", b)

	constantSignal(a.Audio, 30000, m.quantum)
	constantSignal(b.Audio, 30000, m.quantum)
	m.mixQuantum()

	out := m.out.ReadBlock(m.quantum)
	for _, s := range out {
		assert.Equal(t, int16(32767), s)
	}
}

func TestVolumeRampsAcrossQuantum(t *testing.T) {
	m := newTestMixer(t)
	s := streamWithAudio("host")
	m.AddStream("host", s)

	// Settle gain at 1.0, then command silence.
	constantSignal(s.Audio, 10000, m.quantum)
	m.mixQuantum()
	m.out.ReadBlock(m.quantum)

	m.SetStreamVolume("host", 0)
	constantSignal(s.Audio, 10000, m.quantum)
	m.mixQuantum()

	out := m.out.ReadBlock(m.quantum)
	// First sample still near full gain, last near zero: a ramp, not a step.
	assert.Greater(t, math.Abs(float64(out[0])), 9000.0)
	assert.Less(t, math.Abs(float64(out[len(out)-1])), 100.0)

	// Next quantum is fully silent.
	constantSignal(s.Audio, 10000, m.quantum)
	m.mixQuantum()
	out = m.out.ReadBlock(m.quantum)
	for _, v := range out {
		assert.Zero(t, v)
	}
}

func TestApplyEffectsPartialUpdate(t *testing.T) {
	m := newTestMixer(t)
	s := streamWithAudio("host")
	m.AddStream("host", s)

	m.ApplyEffects("host", domain.PresetVoice())
	ch := m.inputs["host"]
	require.NotNil(t, ch.highpass)
	require.NotNil(t, ch.comp)
	assert.Nil(t, ch.lowpass)

	// Nil fields leave stages unchanged.
	m.ApplyEffects("host", domain.AudioEffects{
		Lowpass: &domain.FilterParam{CutoffHz: 8000, Enabled: true},
	})
	assert.NotNil(t, ch.highpass)
	assert.NotNil(t, ch.lowpass)

	// Enabled=false removes a stage.
	m.ApplyEffects("host", domain.AudioEffects{
		Highpass: &domain.FilterParam{Enabled: false},
	})
	assert.Nil(t, ch.highpass)
	assert.NotNil(t, ch.lowpass)
}

func TestHighpassAttenuatesDC(t *testing.T) {
	m := newTestMixer(t)
	s := streamWithAudio("host")
	m.AddStream("host", s)
	m.ApplyEffects("host", domain.AudioEffects{
		Highpass: &domain.FilterParam{CutoffHz: 200, Enabled: true},
	})

	// A constant (0 Hz) signal must decay through a highpass.
	for i := 0; i < 20; i++ {
		constantSignal(s.Audio, 10000, m.quantum)
		m.mixQuantum()
		m.out.ReadBlock(m.quantum)
	}
	constantSignal(s.Audio, 10000, m.quantum)
	m.mixQuantum()
	out := m.out.ReadBlock(m.quantum)

	for _, v := range out[len(out)-100:] {
		assert.Less(t, math.Abs(float64(v)), 500.0)
	}
}

func TestLevelsReflectPeaks(t *testing.T) {
	m := newTestMixer(t)
	loud := streamWithAudio("loud")
	quiet := streamWithAudio("quiet")
	m.AddStream("loud", loud)
	m.AddStream("quiet", quiet)

	constantSignal(loud.Audio, 20000, m.quantum)
	constantSignal(quiet.Audio, 1000, m.quantum)
	m.mixQuantum()

	levels := m.Levels()
	assert.Greater(t, levels["loud"], levels["quiet"])
	assert.InDelta(t, 20000.0/32768, levels["loud"], 0.01)
}

func TestSuspendStallsResumeRestarts(t *testing.T) {
	m := newTestMixer(t)
	s := streamWithAudio("host")
	m.AddStream("host", s)

	m.Suspend()
	constantSignal(s.Audio, 10000, m.quantum)
	m.mixQuantum()
	assert.Zero(t, m.out.Buffered(), "suspended mixer must not produce output")

	// Registering playback resumes the engine.
	m.AddPlayback("clip", media.NewAudioTrack(48000, 2, 48000))
	assert.False(t, m.Suspended())

	m.mixQuantum()
	assert.Equal(t, m.quantum, m.out.Buffered())
}

func TestOutputTrackIdentityStable(t *testing.T) {
	m := newTestMixer(t)
	out := m.OutputTrack()

	m.AddStream("a", streamWithAudio("a"))
	m.RemoveStream("a")
	m.AddStream("b", streamWithAudio("b"))

	assert.Same(t, out, m.OutputTrack())
}
