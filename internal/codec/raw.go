// Package codec holds the built-in passthrough codec implementations.
// They frame raw RGBA and PCM as encoded samples without compression, for
// deployments where a hardware or external encoder sits behind the sink.
package codec

import (
	"encoding/binary"
	"fmt"
	"time"

	"studiocast/internal/media"
)

// RawVideoEncoder packages RGBA frames as uncompressed samples. Every
// frame is independently decodable, so every sample is a keyframe.
type RawVideoEncoder struct {
	frameDur time.Duration
}

// NewRawVideoEncoder creates a passthrough video encoder for the given
// frame rate.
func NewRawVideoEncoder(frameRate int) *RawVideoEncoder {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &RawVideoEncoder{frameDur: time.Second / time.Duration(frameRate)}
}

func (e *RawVideoEncoder) Encode(frame *media.VideoFrame) (*media.EncodedSample, error) {
	data := make([]byte, len(frame.Pix))
	copy(data, frame.Pix)
	return &media.EncodedSample{
		Data:      data,
		Kind:      media.TrackKindVideo,
		Keyframe:  true,
		Timestamp: frame.Timestamp,
		Duration:  e.frameDur,
	}, nil
}

func (e *RawVideoEncoder) Close() error { return nil }

// RawAudioEncoder packages PCM blocks as little-endian samples.
type RawAudioEncoder struct{}

func NewRawAudioEncoder() *RawAudioEncoder { return &RawAudioEncoder{} }

func (e *RawAudioEncoder) Encode(block *media.AudioBlock) (*media.EncodedSample, error) {
	data := make([]byte, len(block.Samples)*2)
	for i, s := range block.Samples {
		binary.LittleEndian.PutUint16(data[i*2:], uint16(s))
	}
	return &media.EncodedSample{
		Data:      data,
		Kind:      media.TrackKindAudio,
		Keyframe:  true,
		Timestamp: block.Timestamp,
		Duration:  block.Duration(),
	}, nil
}

func (e *RawAudioEncoder) Close() error { return nil }

// RawVideoDecoder reverses RawVideoEncoder for fixed frame dimensions.
type RawVideoDecoder struct {
	width, height int
}

func NewRawVideoDecoder(width, height int) *RawVideoDecoder {
	return &RawVideoDecoder{width: width, height: height}
}

func (d *RawVideoDecoder) Decode(payload []byte, ts time.Duration) (*media.VideoFrame, error) {
	if len(payload) != d.width*d.height*4 {
		return nil, fmt.Errorf("payload is %d bytes, want %d for %dx%d RGBA",
			len(payload), d.width*d.height*4, d.width, d.height)
	}
	f := media.NewVideoFrame(d.width, d.height)
	copy(f.Pix, payload)
	f.Timestamp = ts
	return f, nil
}

func (d *RawVideoDecoder) Close() error { return nil }

// RawAudioDecoder reverses RawAudioEncoder.
type RawAudioDecoder struct {
	sampleRate, channels int
}

func NewRawAudioDecoder(sampleRate, channels int) *RawAudioDecoder {
	return &RawAudioDecoder{sampleRate: sampleRate, channels: channels}
}

func (d *RawAudioDecoder) Decode(payload []byte, ts time.Duration) (*media.AudioBlock, error) {
	if len(payload)%2 != 0 {
		return nil, fmt.Errorf("pcm payload length %d is not sample aligned", len(payload))
	}
	samples := make([]int16, len(payload)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(payload[i*2:]))
	}
	return &media.AudioBlock{
		Samples:    samples,
		SampleRate: d.sampleRate,
		Channels:   d.channels,
		Timestamp:  ts,
	}, nil
}

func (d *RawAudioDecoder) Close() error { return nil }
