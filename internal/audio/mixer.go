// Package audio implements the session audio mixing engine: many input
// streams summed into one stable output track, with per-channel gain,
// optional filter chains and peak metering.
package audio

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

const quantumInterval = 10 * time.Millisecond

// channel is the per-source mixer node state.
type channel struct {
	track      *media.AudioTrack
	gain       float64
	targetGain float64
	highpass   []*biquad // one per audio channel
	lowpass    []*biquad
	comp       *compressor
	peak       float64
	scratch    []int16
}

// Mixer combines registered audio sources into one output track. Sources
// may be added and removed while mixing; removal disconnects the channel
// before it is discarded and immediately silences its contribution.
type Mixer struct {
	sampleRate int
	chans      int
	quantum    int // interleaved samples per tick
	out        *media.AudioTrack

	mu        sync.Mutex
	inputs    map[domain.SourceID]*channel
	suspended bool

	cancel context.CancelFunc
	done   chan struct{}

	logger *zap.SugaredLogger
}

// NewMixer creates a mixer producing interleaved S16 PCM at the given rate.
// The output track identity is stable for the mixer's lifetime.
func NewMixer(sampleRate, channels int, logger *zap.SugaredLogger) *Mixer {
	frames := sampleRate / 100 // 10ms quantum
	return &Mixer{
		sampleRate: sampleRate,
		chans:      channels,
		quantum:    frames * channels,
		out:        media.NewAudioTrack(sampleRate, channels, sampleRate*channels),
		inputs:     make(map[domain.SourceID]*channel),
		logger:     logger,
	}
}

// Run starts the mix loop. It returns immediately; mixing continues until
// ctx is cancelled or Close is called.
func (m *Mixer) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.done = make(chan struct{})
	done := m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		ticker := time.NewTicker(quantumInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.mixQuantum()
			}
		}
	}()
}

// Close stops the mix loop. Idempotent.
func (m *Mixer) Close() {
	m.mu.Lock()
	cancel := m.cancel
	done := m.done
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// OutputTrack returns the single mixed output track. The same track is
// reused across input add/remove for the lifetime of the session.
func (m *Mixer) OutputTrack() *media.AudioTrack { return m.out }

// AddStream registers a source's audio. Streams without an audio track are
// ignored.
func (m *Mixer) AddStream(id domain.SourceID, s *media.Stream) {
	if !s.HasAudio() {
		return
	}
	m.addTrack(id, s.Audio)
}

// AddPlayback registers a clip-playback audio track. Playback inputs must
// be audible even if the engine was suspended, so this resumes mixing.
func (m *Mixer) AddPlayback(id domain.SourceID, track *media.AudioTrack) {
	if track == nil {
		return
	}
	m.Resume()
	m.addTrack(id, track)
}

func (m *Mixer) addTrack(id domain.SourceID, track *media.AudioTrack) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.inputs[id]; exists {
		return
	}
	m.inputs[id] = &channel{
		track:      track,
		gain:       1,
		targetGain: 1,
		scratch:    make([]int16, m.quantum),
	}
	m.logger.Debugw("mixer channel added", "source", id)
}

// RemoveStream disconnects and releases a channel. Removing an unknown id
// is a no-op.
func (m *Mixer) RemoveStream(id domain.SourceID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inputs[id]; !ok {
		return
	}
	delete(m.inputs, id)
	m.logger.Debugw("mixer channel removed", "source", id)
}

// SetStreamVolume adjusts a channel's gain. The change ramps across the
// next quantum rather than stepping, so it cannot click.
func (m *Mixer) SetStreamVolume(id domain.SourceID, volume float64) {
	if volume < 0 {
		volume = 0
	} else if volume > 1 {
		volume = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.inputs[id]; ok {
		ch.targetGain = volume
	}
}

// ApplyEffects updates a channel's filter chain. Nil fields leave the
// corresponding stage unchanged; Enabled=false removes it. Parameter
// updates swap filter nodes at a quantum boundary, not mid-block.
func (m *Mixer) ApplyEffects(id domain.SourceID, fx domain.AudioEffects) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.inputs[id]
	if !ok {
		return
	}

	if fx.Highpass != nil {
		if !fx.Highpass.Enabled {
			ch.highpass = nil
		} else {
			ch.highpass = make([]*biquad, m.chans)
			for i := range ch.highpass {
				ch.highpass[i] = newHighpass(float64(m.sampleRate), fx.Highpass.CutoffHz)
			}
		}
	}
	if fx.Lowpass != nil {
		if !fx.Lowpass.Enabled {
			ch.lowpass = nil
		} else {
			ch.lowpass = make([]*biquad, m.chans)
			for i := range ch.lowpass {
				ch.lowpass[i] = newLowpass(float64(m.sampleRate), fx.Lowpass.CutoffHz)
			}
		}
	}
	if fx.Compressor != nil {
		if !fx.Compressor.Enabled {
			ch.comp = nil
		} else {
			ch.comp = newCompressor(float64(m.sampleRate), fx.Compressor.ThresholdDB, fx.Compressor.Ratio)
		}
	}
}

// Levels returns the last-measured peak level (0..1) per channel. The
// peaks are byproducts of the mix loop, so polling is cheap.
func (m *Mixer) Levels() map[domain.SourceID]float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	levels := make(map[domain.SourceID]float64, len(m.inputs))
	for id, ch := range m.inputs {
		levels[id] = ch.peak
	}
	return levels
}

// ChannelIDs returns the registered source ids.
func (m *Mixer) ChannelIDs() []domain.SourceID {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]domain.SourceID, 0, len(m.inputs))
	for id := range m.inputs {
		ids = append(ids, id)
	}
	return ids
}

// ChannelCount returns the number of active channels.
func (m *Mixer) ChannelCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inputs)
}

// Suspend stalls mixing without tearing down state, mirroring a suspended
// platform audio context.
func (m *Mixer) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = true
}

// Resume restarts a suspended mixer.
func (m *Mixer) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.suspended = false
}

// Suspended reports whether mixing is stalled.
func (m *Mixer) Suspended() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.suspended
}

// mixQuantum produces one 10ms block of output.
func (m *Mixer) mixQuantum() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.suspended {
		return
	}

	mix := make([]float64, m.quantum)
	for _, ch := range m.inputs {
		ch.track.ReadBlockInto(ch.scratch)

		gainStep := (ch.targetGain - ch.gain) / float64(m.quantum)
		gain := ch.gain
		peak := 0.0

		for i, s := range ch.scratch {
			x := float64(s) / 32768
			if ch.highpass != nil {
				x = ch.highpass[i%m.chans].process(x)
			}
			if ch.lowpass != nil {
				x = ch.lowpass[i%m.chans].process(x)
			}
			if ch.comp != nil {
				x = ch.comp.process(x)
			}
			gain += gainStep
			x *= gain
			mix[i] += x
			if x < 0 {
				x = -x
			}
			if x > peak {
				peak = x
			}
		}
		ch.gain = ch.targetGain
		ch.peak = peak
	}

	out := make([]int16, m.quantum)
	for i, v := range mix {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		out[i] = int16(v * 32767)
	}

	m.out.WriteSamples(out)
}
