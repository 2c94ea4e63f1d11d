package ports

import (
	"time"

	"studiocast/internal/media"
)

// Encoding and decoding of compressed bitstreams is externally owned; the
// original system delegates it to the platform media stack. These seams let
// sinks and recorders consume encoded samples without binding the core to a
// codec implementation.

// VideoEncoder turns raw frames into encoded samples.
type VideoEncoder interface {
	Encode(frame *media.VideoFrame) (*media.EncodedSample, error)
	Close() error
}

// AudioEncoder turns PCM blocks into encoded samples.
type AudioEncoder interface {
	Encode(block *media.AudioBlock) (*media.EncodedSample, error)
	Close() error
}

// VideoDecoder turns encoded payloads from the transport into raw frames.
type VideoDecoder interface {
	Decode(payload []byte, ts time.Duration) (*media.VideoFrame, error)
	Close() error
}

// AudioDecoder turns encoded payloads from the transport into PCM blocks.
type AudioDecoder interface {
	Decode(payload []byte, ts time.Duration) (*media.AudioBlock, error)
	Close() error
}
