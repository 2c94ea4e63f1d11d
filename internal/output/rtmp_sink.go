package output

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/yutopp/go-rtmp"
	rtmpmsg "github.com/yutopp/go-rtmp/message"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
	apperrors "studiocast/pkg/errors"
)

const (
	rtmpChunkSize    = 128
	chunkStreamAudio = 4
	chunkStreamVideo = 6
)

// RTMPSink publishes encoded FLV-framed samples to one RTMP ingest URL.
type RTMPSink struct {
	dest domain.Destination

	mu     sync.Mutex
	conn   *rtmp.ClientConn
	stream *rtmp.Stream
}

// NewRTMPSink builds a sink for an rtmp:// destination. The connection is
// opened in Connect, not here.
func NewRTMPSink(dest domain.Destination) (*RTMPSink, error) {
	u, err := url.Parse(dest.IngestURL)
	if err != nil || (u.Scheme != "rtmp" && u.Scheme != "rtmps") {
		return nil, apperrors.NewInvalidInputError("not an rtmp ingest url: " + dest.IngestURL)
	}
	return &RTMPSink{dest: dest}, nil
}

// Connect dials the ingest endpoint, performs the RTMP handshake and
// issues connect/createStream/publish with the destination's stream key.
func (s *RTMPSink) Connect(ctx context.Context) error {
	u, err := url.Parse(s.dest.IngestURL)
	if err != nil {
		return err
	}
	addr := u.Host
	if u.Port() == "" {
		addr += ":1935"
	}
	app := strings.TrimPrefix(u.Path, "/")

	conn, err := rtmp.Dial("rtmp", addr, &rtmp.ConnConfig{})
	if err != nil {
		return fmt.Errorf("rtmp dial %s: %w", addr, err)
	}

	if err := conn.Connect(&rtmpmsg.NetConnectionConnect{
		Command: rtmpmsg.NetConnectionConnectCommand{
			App:   app,
			Type:  "nonprivate",
			TCURL: s.dest.IngestURL,
		},
	}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("rtmp connect: %w", err)
	}

	stream, err := conn.CreateStream(&rtmpmsg.NetConnectionCreateStream{}, rtmpChunkSize)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rtmp create stream: %w", err)
	}
	if err := stream.Publish(&rtmpmsg.NetStreamPublish{
		PublishingName: s.dest.StreamKey,
		PublishingType: "live",
	}); err != nil {
		_ = conn.Close()
		return fmt.Errorf("rtmp publish: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.stream = stream
	s.mu.Unlock()
	return nil
}

// WriteSample sends one encoded sample as an RTMP audio or video message.
// Sample payloads carry FLV tag bodies as produced by the encoder.
func (s *RTMPSink) WriteSample(sample *media.EncodedSample) error {
	s.mu.Lock()
	stream := s.stream
	s.mu.Unlock()
	if stream == nil {
		return domain.ErrNotRunning
	}

	ts := uint32(sample.Timestamp.Milliseconds())
	switch sample.Kind {
	case media.TrackKindVideo:
		return stream.Write(chunkStreamVideo, ts, &rtmpmsg.VideoMessage{
			Payload: bytes.NewReader(sample.Data),
		})
	case media.TrackKindAudio:
		return stream.Write(chunkStreamAudio, ts, &rtmpmsg.AudioMessage{
			Payload: bytes.NewReader(sample.Data),
		})
	}
	return nil
}

// Close tears down the publish stream and connection. Idempotent.
func (s *RTMPSink) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.stream = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}
