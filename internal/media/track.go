package media

import (
	"sync"
)

// VideoTrack is a single-slot frame mailbox between one producer and any
// number of consumers. Writers replace the latest frame; readers snapshot
// it. A consumer that needs the data beyond the next write must Clone.
type VideoTrack struct {
	mu     sync.RWMutex
	frame  *VideoFrame
	seq    uint64
	closed bool
}

// NewVideoTrack creates an empty video track.
func NewVideoTrack() *VideoTrack {
	return &VideoTrack{}
}

// WriteFrame publishes a new frame. Writes after Close are dropped.
func (t *VideoTrack) WriteFrame(f *VideoFrame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return
	}
	t.frame = f
	t.seq++
}

// Latest returns the most recent frame and its sequence number. The frame
// is nil until the first write.
func (t *VideoTrack) Latest() (*VideoFrame, uint64) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame, t.seq
}

// Close marks the track ended and drops the retained frame.
func (t *VideoTrack) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.frame = nil
}

// Closed reports whether the track has ended.
func (t *VideoTrack) Closed() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.closed
}

// AudioTrack is a bounded PCM ring buffer. One producer appends samples,
// one consumer (the mixer) drains fixed-size quanta. Underrun reads return
// silence; overrun drops the oldest samples.
type AudioTrack struct {
	mu         sync.Mutex
	buf        []int16
	start      int // index of oldest sample
	length     int // samples currently buffered
	sampleRate int
	channels   int
	closed     bool
}

// NewAudioTrack creates an audio track buffering up to maxBuffered
// interleaved samples (e.g. one second: sampleRate*channels).
func NewAudioTrack(sampleRate, channels, maxBuffered int) *AudioTrack {
	if maxBuffered <= 0 {
		maxBuffered = sampleRate * channels
	}
	return &AudioTrack{
		buf:        make([]int16, maxBuffered),
		sampleRate: sampleRate,
		channels:   channels,
	}
}

// SampleRate returns the track sample rate.
func (t *AudioTrack) SampleRate() int { return t.sampleRate }

// Channels returns the channel count.
func (t *AudioTrack) Channels() int { return t.channels }

// WriteSamples appends interleaved samples, dropping the oldest buffered
// samples if the ring is full.
func (t *AudioTrack) WriteSamples(samples []int16) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed || len(samples) == 0 {
		return
	}

	if len(samples) > len(t.buf) {
		samples = samples[len(samples)-len(t.buf):]
	}

	overflow := t.length + len(samples) - len(t.buf)
	if overflow > 0 {
		t.start = (t.start + overflow) % len(t.buf)
		t.length -= overflow
	}

	pos := (t.start + t.length) % len(t.buf)
	n := copy(t.buf[pos:], samples)
	if n < len(samples) {
		copy(t.buf, samples[n:])
	}
	t.length += len(samples)
}

// ReadBlock removes and returns exactly n interleaved samples, zero-padding
// on underrun. It never blocks.
func (t *AudioTrack) ReadBlock(n int) []int16 {
	out := make([]int16, n)
	t.ReadBlockInto(out)
	return out
}

// ReadBlockInto fills dst from the ring, zero-padding on underrun. The fill
// is in place so the mixer's hot path does not allocate.
func (t *AudioTrack) ReadBlockInto(dst []int16) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	avail := t.length
	if avail > len(dst) {
		avail = len(dst)
	}

	for i := 0; i < avail; i++ {
		dst[i] = t.buf[(t.start+i)%len(t.buf)]
	}
	for i := avail; i < len(dst); i++ {
		dst[i] = 0
	}

	t.start = (t.start + avail) % len(t.buf)
	t.length -= avail
	return avail
}

// Buffered returns the number of samples currently buffered.
func (t *AudioTrack) Buffered() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.length
}

// Close marks the track ended; further writes are dropped.
func (t *AudioTrack) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.closed = true
	t.length = 0
}

// Closed reports whether the track has ended.
func (t *AudioTrack) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}

// Stream is a named pair of live tracks. Either track may be nil (an
// audio-only participant, a silent screen share).
type Stream struct {
	ID    string
	Video *VideoTrack
	Audio *AudioTrack
}

// HasAudio reports whether the stream carries an open audio track.
func (s *Stream) HasAudio() bool {
	return s != nil && s.Audio != nil && !s.Audio.Closed()
}

// HasVideo reports whether the stream carries an open video track.
func (s *Stream) HasVideo() bool {
	return s != nil && s.Video != nil && !s.Video.Closed()
}
