package signaling

import (
	"time"

	"github.com/pion/rtp"

	"studiocast/internal/media"
)

// sampleAssembler reassembles RTP packets into encoded samples. Audio
// packets map one-to-one; video access units span packets and close on
// the marker bit. Timestamps are rebased to the first packet so samples
// start at zero.
type sampleAssembler struct {
	kind      media.TrackKind
	clockRate uint32

	started bool
	baseTS  uint32
	lastTS  time.Duration

	parts    [][]byte
	partSize int
	keyframe bool
}

func newSampleAssembler(kind media.TrackKind, clockRate uint32) *sampleAssembler {
	if clockRate == 0 {
		if kind == media.TrackKindAudio {
			clockRate = 48000
		} else {
			clockRate = 90000
		}
	}
	return &sampleAssembler{kind: kind, clockRate: clockRate}
}

// push consumes one packet and returns a completed sample, or nil while
// the access unit is still accumulating.
func (a *sampleAssembler) push(pkt *rtp.Packet) *media.EncodedSample {
	if len(pkt.Payload) == 0 {
		return nil
	}
	if !a.started {
		a.started = true
		a.baseTS = pkt.Timestamp
	}
	ts := a.toDuration(pkt.Timestamp)

	if a.kind == media.TrackKindAudio {
		data := make([]byte, len(pkt.Payload))
		copy(data, pkt.Payload)
		return a.finish(data, ts, true)
	}

	if len(a.parts) == 0 {
		a.keyframe = isH264KeyframePayload(pkt.Payload)
	}
	a.parts = append(a.parts, pkt.Payload)
	a.partSize += len(pkt.Payload)
	if !pkt.Marker {
		return nil
	}

	data := make([]byte, 0, a.partSize)
	for _, p := range a.parts {
		data = append(data, p...)
	}
	key := a.keyframe
	a.parts = a.parts[:0]
	a.partSize = 0
	a.keyframe = false
	return a.finish(data, ts, key)
}

func (a *sampleAssembler) finish(data []byte, ts time.Duration, keyframe bool) *media.EncodedSample {
	dur := ts - a.lastTS
	if dur <= 0 {
		if a.kind == media.TrackKindAudio {
			dur = 20 * time.Millisecond
		} else {
			dur = 33 * time.Millisecond
		}
	}
	a.lastTS = ts
	return &media.EncodedSample{
		Data:      data,
		Kind:      a.kind,
		Keyframe:  keyframe,
		Timestamp: ts,
		Duration:  dur,
	}
}

func (a *sampleAssembler) toDuration(rtpTS uint32) time.Duration {
	// uint32 subtraction handles timestamp wraparound
	elapsed := rtpTS - a.baseTS
	return time.Duration(elapsed) * time.Second / time.Duration(a.clockRate)
}

// isH264KeyframePayload inspects the leading NAL unit type: IDR slices
// and parameter sets (including inside a STAP-A aggregate or FU-A start)
// mark a keyframe.
func isH264KeyframePayload(payload []byte) bool {
	if len(payload) == 0 {
		return false
	}
	switch naluType := payload[0] & 0x1F; naluType {
	case 5, 7, 8:
		return true
	case 24: // STAP-A, first aggregated NALU starts after a 2-byte length
		if len(payload) >= 4 {
			inner := payload[3] & 0x1F
			return inner == 5 || inner == 7 || inner == 8
		}
	case 28: // FU-A, the original type sits in the FU header
		if len(payload) >= 2 && payload[1]&0x80 != 0 { // start bit
			inner := payload[1] & 0x1F
			return inner == 5 || inner == 7
		}
	}
	return false
}
