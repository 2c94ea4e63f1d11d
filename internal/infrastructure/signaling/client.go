// Package signaling connects the studio to the session signaling server:
// it negotiates one WebRTC subscription covering every remote participant
// and hands their media to the core as streams.
package signaling

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/core/ports"
	"studiocast/internal/media"
)

// MediaHandler receives participant lifecycle and media callbacks. The
// studio service implements it.
type MediaHandler interface {
	ports.ParticipantHandler
	OnParticipantSample(id domain.SourceID, s *media.EncodedSample)
}

// Config tunes the signaling connection.
type Config struct {
	URL          string
	PingInterval time.Duration
	DialTimeout  time.Duration
	WriteTimeout time.Duration
}

type SignalMessage struct {
	Type     string          `json:"type"`
	SourceID domain.SourceID `json:"source_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type ParticipantPayload struct {
	Name         string `json:"name"`
	Role         string `json:"role"`
	AudioEnabled bool   `json:"audio_enabled"`
	VideoEnabled bool   `json:"video_enabled"`
}

type SDPPayload struct {
	SDP string `json:"sdp"`
}

type ICECandidatePayload struct {
	Candidate string `json:"candidate"`
}

// Client subscribes to the session's remote participants. One peer
// connection carries every track; tracks map to participants by their
// WebRTC stream id.
type Client struct {
	cfg     Config
	handler MediaHandler
	logger  *zap.SugaredLogger

	newVideoDecoder func() ports.VideoDecoder
	newAudioDecoder func() ports.AudioDecoder

	mu      sync.Mutex
	conn    *websocket.Conn
	pc      *webrtc.PeerConnection
	streams map[domain.SourceID]*media.Stream
}

// NewClient creates a signaling client. The decoder factories supply the
// codec seam for turning transport payloads into raw frames; either may
// be nil, in which case that media kind is only forwarded as encoded
// samples.
func NewClient(cfg Config, handler MediaHandler, newVideoDecoder func() ports.VideoDecoder, newAudioDecoder func() ports.AudioDecoder, logger *zap.SugaredLogger) *Client {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &Client{
		cfg:             cfg,
		handler:         handler,
		logger:          logger,
		newVideoDecoder: newVideoDecoder,
		newAudioDecoder: newAudioDecoder,
		streams:         make(map[domain.SourceID]*media.Stream),
	}
}

// Run connects and processes signaling until ctx is cancelled or the
// connection drops.
func (c *Client) Run(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.cfg.DialTimeout}
	conn, _, err := dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("signaling dial %s: %w", c.cfg.URL, err)
	}
	defer conn.Close()

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}
	defer pc.Close()

	c.mu.Lock()
	c.conn = conn
	c.pc = pc
	c.mu.Unlock()

	pc.OnTrack(func(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		go c.readTrack(ctx, track)
	})
	pc.OnICECandidate(func(cand *webrtc.ICECandidate) {
		if cand == nil {
			return
		}
		payload, _ := json.Marshal(ICECandidatePayload{Candidate: cand.ToJSON().Candidate})
		if err := c.send(SignalMessage{Type: "ice_candidate", Payload: payload}); err != nil {
			c.logger.Warnw("candidate send failed", "error", err)
		}
	})

	if err := c.send(SignalMessage{Type: "subscribe"}); err != nil {
		return err
	}

	pingTicker := time.NewTicker(c.cfg.PingInterval)
	defer pingTicker.Stop()

	messageChan := make(chan SignalMessage, 10)
	errorChan := make(chan error, 1)

	go func() {
		for {
			var msg SignalMessage
			if err := conn.ReadJSON(&msg); err != nil {
				errorChan <- err
				return
			}
			messageChan <- msg
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-messageChan:
			if err := c.handleSignal(msg); err != nil {
				c.logger.Warnw("signal handling failed", "type", msg.Type, "error", err)
			}
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return fmt.Errorf("signaling ping: %w", err)
			}
		case err := <-errorChan:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return fmt.Errorf("signaling read: %w", err)
			}
			return nil
		}
	}
}

func (c *Client) handleSignal(msg SignalMessage) error {
	switch msg.Type {
	case "participant_joined":
		return c.handleParticipantJoined(msg)
	case "participant_updated":
		return c.handleParticipantUpdated(msg)
	case "participant_left":
		return c.handleParticipantLeft(msg)
	case "offer":
		return c.handleOffer(msg)
	case "ice_candidate":
		return c.handleRemoteCandidate(msg)
	case "error":
		c.logger.Warnw("signaling server error", "payload", string(msg.Payload))
		return nil
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func (c *Client) handleParticipantJoined(msg SignalMessage) error {
	if msg.SourceID == "" {
		return fmt.Errorf("participant_joined without source_id")
	}
	var payload ParticipantPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid participant payload: %w", err)
	}

	stream := &media.Stream{ID: string(msg.SourceID)}
	if payload.VideoEnabled {
		stream.Video = media.NewVideoTrack()
	}
	if payload.AudioEnabled {
		stream.Audio = media.NewAudioTrack(48000, 2, 48000*2)
	}

	c.mu.Lock()
	if _, exists := c.streams[msg.SourceID]; exists {
		c.mu.Unlock()
		return fmt.Errorf("participant %s already joined", msg.SourceID)
	}
	c.streams[msg.SourceID] = stream
	c.mu.Unlock()

	c.handler.OnParticipantJoined(domain.Source{
		ID:           msg.SourceID,
		Name:         payload.Name,
		Role:         domain.SourceRole(payload.Role),
		AudioEnabled: payload.AudioEnabled,
		VideoEnabled: payload.VideoEnabled,
		JoinedAt:     time.Now(),
	}, stream)
	return nil
}

// handleParticipantUpdated forwards role and enabled-flag changes. The
// stream identity is stable across updates; a media kind enabled for the
// first time gets its track created here.
func (c *Client) handleParticipantUpdated(msg SignalMessage) error {
	var payload ParticipantPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid participant payload: %w", err)
	}

	c.mu.Lock()
	stream, exists := c.streams[msg.SourceID]
	if exists {
		if payload.VideoEnabled && stream.Video == nil {
			stream.Video = media.NewVideoTrack()
		}
		if payload.AudioEnabled && stream.Audio == nil {
			stream.Audio = media.NewAudioTrack(48000, 2, 48000*2)
		}
	}
	c.mu.Unlock()
	if !exists {
		return fmt.Errorf("participant %s not known", msg.SourceID)
	}

	c.handler.OnParticipantUpdated(domain.Source{
		ID:           msg.SourceID,
		Name:         payload.Name,
		Role:         domain.SourceRole(payload.Role),
		AudioEnabled: payload.AudioEnabled,
		VideoEnabled: payload.VideoEnabled,
	})
	return nil
}

func (c *Client) handleParticipantLeft(msg SignalMessage) error {
	c.mu.Lock()
	stream, exists := c.streams[msg.SourceID]
	delete(c.streams, msg.SourceID)
	c.mu.Unlock()
	if !exists {
		return fmt.Errorf("participant %s not known", msg.SourceID)
	}

	if stream.Video != nil {
		stream.Video.Close()
	}
	if stream.Audio != nil {
		stream.Audio.Close()
	}
	c.handler.OnParticipantLeft(msg.SourceID)
	return nil
}

func (c *Client) handleOffer(msg SignalMessage) error {
	var payload SDPPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid offer payload: %w", err)
	}

	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("no peer connection")
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeOffer, SDP: payload.SDP,
	}); err != nil {
		return fmt.Errorf("set remote offer: %w", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		return fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		return fmt.Errorf("set local answer: %w", err)
	}

	out, _ := json.Marshal(SDPPayload{SDP: answer.SDP})
	return c.send(SignalMessage{Type: "answer", Payload: out})
}

func (c *Client) handleRemoteCandidate(msg SignalMessage) error {
	var payload ICECandidatePayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		return fmt.Errorf("invalid candidate payload: %w", err)
	}

	c.mu.Lock()
	pc := c.pc
	c.mu.Unlock()
	if pc == nil {
		return fmt.Errorf("no peer connection")
	}
	return pc.AddICECandidate(webrtc.ICECandidateInit{Candidate: payload.Candidate})
}

func (c *Client) send(msg SignalMessage) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("not connected")
	}
	conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
	return conn.WriteJSON(msg)
}

// readTrack drains one remote track: RTP packets are reassembled into
// encoded samples, forwarded for recording, and decoded into the
// participant's raw media tracks.
func (c *Client) readTrack(ctx context.Context, track *webrtc.TrackRemote) {
	sourceID := domain.SourceID(track.StreamID())
	c.mu.Lock()
	stream := c.streams[sourceID]
	c.mu.Unlock()
	if stream == nil {
		c.logger.Warnw("track for unknown participant", "stream_id", track.StreamID())
		return
	}

	kind := media.TrackKindVideo
	if track.Kind() == webrtc.RTPCodecTypeAudio {
		kind = media.TrackKindAudio
	}

	var videoDec ports.VideoDecoder
	var audioDec ports.AudioDecoder
	if kind == media.TrackKindVideo && c.newVideoDecoder != nil {
		videoDec = c.newVideoDecoder()
		defer videoDec.Close()
	}
	if kind == media.TrackKindAudio && c.newAudioDecoder != nil {
		audioDec = c.newAudioDecoder()
		defer audioDec.Close()
	}

	asm := newSampleAssembler(kind, track.Codec().ClockRate)
	for {
		if ctx.Err() != nil {
			return
		}
		pkt, _, err := track.ReadRTP()
		if err != nil {
			c.logger.Infow("track ended", "source", sourceID, "kind", kind, "error", err)
			return
		}
		sample := asm.push(pkt)
		if sample == nil {
			continue
		}

		c.handler.OnParticipantSample(sourceID, sample)

		switch {
		case videoDec != nil && stream.Video != nil:
			frame, err := videoDec.Decode(sample.Data, sample.Timestamp)
			if err != nil {
				c.logger.Debugw("video decode failed", "source", sourceID, "error", err)
				continue
			}
			stream.Video.WriteFrame(frame)
		case audioDec != nil && stream.Audio != nil:
			block, err := audioDec.Decode(sample.Data, sample.Timestamp)
			if err != nil {
				c.logger.Debugw("audio decode failed", "source", sourceID, "error", err)
				continue
			}
			stream.Audio.WriteSamples(block.Samples)
		}
	}
}
