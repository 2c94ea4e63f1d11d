// Package media holds the raw frame and sample types shared by the mixer,
// the video effect pipeline, the compositor and the recording subsystems.
package media

import (
	"image"
	"time"
)

// VideoFrame is a raw RGBA video frame. Pix is tightly packed, 4 bytes per
// pixel, row-major.
type VideoFrame struct {
	Pix       []byte
	Stride    int
	Width     int
	Height    int
	Timestamp time.Duration // relative to session start
}

// NewVideoFrame allocates a zeroed frame of the given dimensions.
func NewVideoFrame(width, height int) *VideoFrame {
	return &VideoFrame{
		Pix:    make([]byte, width*height*4),
		Stride: width * 4,
		Width:  width,
		Height: height,
	}
}

// Clone creates a deep copy of the video frame.
func (f *VideoFrame) Clone() *VideoFrame {
	clone := &VideoFrame{
		Pix:       make([]byte, len(f.Pix)),
		Stride:    f.Stride,
		Width:     f.Width,
		Height:    f.Height,
		Timestamp: f.Timestamp,
	}
	copy(clone.Pix, f.Pix)
	return clone
}

// RGBA wraps the frame as an *image.RGBA sharing the same pixel memory.
func (f *VideoFrame) RGBA() *image.RGBA {
	return &image.RGBA{
		Pix:    f.Pix,
		Stride: f.Stride,
		Rect:   image.Rect(0, 0, f.Width, f.Height),
	}
}

// FromRGBA wraps an image.RGBA as a frame sharing pixel memory. The image
// must have its origin at (0,0).
func FromRGBA(img *image.RGBA, ts time.Duration) *VideoFrame {
	b := img.Bounds()
	return &VideoFrame{
		Pix:       img.Pix,
		Stride:    img.Stride,
		Width:     b.Dx(),
		Height:    b.Dy(),
		Timestamp: ts,
	}
}

// AudioBlock is a block of interleaved signed 16-bit PCM samples.
type AudioBlock struct {
	Samples    []int16 // interleaved, len = frames * channels
	SampleRate int
	Channels   int
	Timestamp  time.Duration
}

// Frames returns the number of sample frames (per-channel samples).
func (b *AudioBlock) Frames() int {
	if b.Channels == 0 {
		return 0
	}
	return len(b.Samples) / b.Channels
}

// Duration returns the block's playback duration.
func (b *AudioBlock) Duration() time.Duration {
	if b.SampleRate == 0 {
		return 0
	}
	return time.Duration(b.Frames()) * time.Second / time.Duration(b.SampleRate)
}

// Clone creates a deep copy of the audio block.
func (b *AudioBlock) Clone() *AudioBlock {
	clone := &AudioBlock{
		Samples:    make([]int16, len(b.Samples)),
		SampleRate: b.SampleRate,
		Channels:   b.Channels,
		Timestamp:  b.Timestamp,
	}
	copy(clone.Samples, b.Samples)
	return clone
}

// TrackKind distinguishes audio and video tracks.
type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
)

// EncodedSample is one encoded media sample as produced by an encoder and
// consumed by destination sinks and recorders.
type EncodedSample struct {
	Data      []byte
	Kind      TrackKind
	Keyframe  bool
	Timestamp time.Duration
	Duration  time.Duration
}

// Clone creates a deep copy of the encoded sample.
func (s *EncodedSample) Clone() *EncodedSample {
	clone := *s
	clone.Data = make([]byte, len(s.Data))
	copy(clone.Data, s.Data)
	return &clone
}
