package signaling

import (
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

type recordingHandler struct {
	mu      sync.Mutex
	joined  []domain.Source
	updated []domain.Source
	left    []domain.SourceID
	samples int
}

func (h *recordingHandler) OnParticipantJoined(src domain.Source, stream *media.Stream) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.joined = append(h.joined, src)
}

func (h *recordingHandler) OnParticipantUpdated(src domain.Source) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updated = append(h.updated, src)
}

func (h *recordingHandler) OnParticipantLeft(id domain.SourceID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.left = append(h.left, id)
}

func (h *recordingHandler) OnParticipantSample(id domain.SourceID, s *media.EncodedSample) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.samples++
}

func newTestSignalClient(t *testing.T) (*Client, *recordingHandler) {
	t.Helper()
	h := &recordingHandler{}
	c := NewClient(Config{URL: "ws://unused"}, h, nil, nil, zaptest.NewLogger(t).Sugar())
	return c, h
}

func participantMsg(t *testing.T, typ string, id domain.SourceID, p ParticipantPayload) SignalMessage {
	t.Helper()
	payload, err := json.Marshal(p)
	require.NoError(t, err)
	return SignalMessage{Type: typ, SourceID: id, Payload: payload}
}

func TestParticipantJoinCreatesStream(t *testing.T) {
	c, h := newTestSignalClient(t)

	msg := participantMsg(t, "participant_joined", "host", ParticipantPayload{
		Name: "Ada", Role: "host", AudioEnabled: true, VideoEnabled: true,
	})
	require.NoError(t, c.handleSignal(msg))

	require.Len(t, h.joined, 1)
	assert.Equal(t, domain.RoleHost, h.joined[0].Role)

	stream := c.streams["host"]
	require.NotNil(t, stream)
	assert.NotNil(t, stream.Video)
	assert.NotNil(t, stream.Audio)

	// Duplicate join is rejected.
	assert.Error(t, c.handleSignal(msg))
}

func TestAudioOnlyParticipantHasNoVideoTrack(t *testing.T) {
	c, _ := newTestSignalClient(t)

	require.NoError(t, c.handleSignal(participantMsg(t, "participant_joined", "caller",
		ParticipantPayload{Name: "Sam", Role: "guest", AudioEnabled: true})))

	stream := c.streams["caller"]
	require.NotNil(t, stream)
	assert.Nil(t, stream.Video)
	assert.NotNil(t, stream.Audio)
}

func TestParticipantUpdateForwarded(t *testing.T) {
	c, h := newTestSignalClient(t)

	require.NoError(t, c.handleSignal(participantMsg(t, "participant_joined", "guest-1",
		ParticipantPayload{Name: "Sam", Role: "backstage", AudioEnabled: true})))

	require.NoError(t, c.handleSignal(participantMsg(t, "participant_updated", "guest-1",
		ParticipantPayload{Name: "Sam", Role: "guest", AudioEnabled: true, VideoEnabled: true})))

	require.Len(t, h.updated, 1)
	assert.Equal(t, domain.RoleGuest, h.updated[0].Role)

	// Video enabled for the first time creates its track in place.
	assert.NotNil(t, c.streams["guest-1"].Video)

	assert.Error(t, c.handleSignal(participantMsg(t, "participant_updated", "ghost",
		ParticipantPayload{Role: "guest"})))
}

func TestParticipantLeftClosesTracks(t *testing.T) {
	c, h := newTestSignalClient(t)

	require.NoError(t, c.handleSignal(participantMsg(t, "participant_joined", "host",
		ParticipantPayload{Role: "host", AudioEnabled: true, VideoEnabled: true})))
	stream := c.streams["host"]

	require.NoError(t, c.handleSignal(SignalMessage{Type: "participant_left", SourceID: "host"}))
	assert.Equal(t, []domain.SourceID{"host"}, h.left)
	assert.True(t, stream.Video.Closed())
	assert.True(t, stream.Audio.Closed())
	assert.NotContains(t, c.streams, domain.SourceID("host"))

	assert.Error(t, c.handleSignal(SignalMessage{Type: "participant_left", SourceID: "host"}))
}

func TestUnknownMessageRejected(t *testing.T) {
	c, _ := newTestSignalClient(t)
	assert.Error(t, c.handleSignal(SignalMessage{Type: "bogus"}))
}

func TestAudioAssemblerOnePacketPerSample(t *testing.T) {
	asm := newSampleAssembler(media.TrackKindAudio, 48000)

	s := asm.push(&rtp.Packet{
		Header:  rtp.Header{Timestamp: 1000},
		Payload: []byte{1, 2, 3},
	})
	require.NotNil(t, s)
	assert.Equal(t, time.Duration(0), s.Timestamp)
	assert.True(t, s.Keyframe)

	// 960 ticks at 48kHz is 20ms.
	s = asm.push(&rtp.Packet{
		Header:  rtp.Header{Timestamp: 1960},
		Payload: []byte{4, 5},
	})
	require.NotNil(t, s)
	assert.Equal(t, 20*time.Millisecond, s.Timestamp)
	assert.Equal(t, 20*time.Millisecond, s.Duration)
}

func TestVideoAssemblerWaitsForMarker(t *testing.T) {
	asm := newSampleAssembler(media.TrackKindVideo, 90000)

	assert.Nil(t, asm.push(&rtp.Packet{
		Header:  rtp.Header{Timestamp: 0},
		Payload: []byte{0x65, 0xAA}, // IDR slice
	}))
	s := asm.push(&rtp.Packet{
		Header:  rtp.Header{Timestamp: 0, Marker: true},
		Payload: []byte{0xBB},
	})
	require.NotNil(t, s)
	assert.Equal(t, []byte{0x65, 0xAA, 0xBB}, s.Data)
	assert.True(t, s.Keyframe)

	s = asm.push(&rtp.Packet{
		Header:  rtp.Header{Timestamp: 3000, Marker: true},
		Payload: []byte{0x41, 0x01}, // non-IDR slice
	})
	require.NotNil(t, s)
	assert.False(t, s.Keyframe)
	// 3000 ticks at 90kHz is one 30fps frame.
	assert.Equal(t, time.Second/30, s.Timestamp)
}

func TestKeyframeDetection(t *testing.T) {
	assert.True(t, isH264KeyframePayload([]byte{0x67}))                   // SPS
	assert.True(t, isH264KeyframePayload([]byte{0x65}))                   // IDR
	assert.False(t, isH264KeyframePayload([]byte{0x41}))                  // non-IDR
	assert.True(t, isH264KeyframePayload([]byte{0x78, 0x00, 0x04, 0x67})) // STAP-A with SPS
	assert.True(t, isH264KeyframePayload([]byte{0x7C, 0x85}))             // FU-A start of IDR
	assert.False(t, isH264KeyframePayload([]byte{0x7C, 0x41}))            // FU-A continuation
	assert.False(t, isH264KeyframePayload(nil))
}
