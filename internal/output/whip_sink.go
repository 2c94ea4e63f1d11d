package output

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	pionmedia "github.com/pion/webrtc/v3/pkg/media"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

const whipStatsInterval = 2 * time.Second

// WHIPSink publishes the composite stream to a WHIP ingestion endpoint
// over WebRTC. ICE state changes feed the health callback so the manager
// can fail over on transport degradation.
type WHIPSink struct {
	dest          domain.Destination
	client        *http.Client
	onHealth      func(HealthSample)
	statsInterval time.Duration

	bytesSent uint64

	mu          sync.Mutex
	pc          *webrtc.PeerConnection
	video       *webrtc.TrackLocalStaticSample
	audio       *webrtc.TrackLocalStaticSample
	resourceURL string
	lossPct     float64
	done        chan struct{}
}

// NewWHIPSink builds a WHIP sink. onHealth may be nil; statsInterval <= 0
// falls back to the default reporting period.
func NewWHIPSink(dest domain.Destination, statsInterval time.Duration, onHealth func(HealthSample)) *WHIPSink {
	if statsInterval <= 0 {
		statsInterval = whipStatsInterval
	}
	return &WHIPSink{
		dest:          dest,
		client:        &http.Client{Timeout: 15 * time.Second},
		onHealth:      onHealth,
		statsInterval: statsInterval,
	}
}

// Connect negotiates the WebRTC session: local tracks, offer, HTTP POST of
// the SDP to the WHIP endpoint with the stream key as bearer token, and
// the returned answer as remote description.
func (s *WHIPSink) Connect(ctx context.Context) error {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("peer connection: %w", err)
	}

	video, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264}, "video", "studiocast")
	if err != nil {
		_ = pc.Close()
		return err
	}
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus}, "audio", "studiocast")
	if err != nil {
		_ = pc.Close()
		return err
	}
	videoSender, err := pc.AddTrack(video)
	if err != nil {
		_ = pc.Close()
		return err
	}
	audioSender, err := pc.AddTrack(audio)
	if err != nil {
		_ = pc.Close()
		return err
	}

	pc.OnICEConnectionStateChange(func(state webrtc.ICEConnectionState) {
		if s.onHealth == nil {
			return
		}
		switch state {
		case webrtc.ICEConnectionStateFailed:
			s.onHealth(HealthSample{ICEFailed: true})
		case webrtc.ICEConnectionStateDisconnected:
			s.onHealth(HealthSample{ICEDisconnected: true})
		}
	})

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		_ = pc.Close()
		return err
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		_ = pc.Close()
		return err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		_ = pc.Close()
		return ctx.Err()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.dest.IngestURL,
		bytes.NewReader([]byte(pc.LocalDescription().SDP)))
	if err != nil {
		_ = pc.Close()
		return err
	}
	req.Header.Set("Content-Type", "application/sdp")
	if s.dest.StreamKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.dest.StreamKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		_ = pc.Close()
		return fmt.Errorf("whip post: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		_ = pc.Close()
		return fmt.Errorf("whip endpoint returned %d", resp.StatusCode)
	}
	answer, err := io.ReadAll(resp.Body)
	if err != nil {
		_ = pc.Close()
		return err
	}

	if err := pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  string(answer),
	}); err != nil {
		_ = pc.Close()
		return fmt.Errorf("whip answer: %w", err)
	}

	done := make(chan struct{})

	s.mu.Lock()
	s.pc = pc
	s.video = video
	s.audio = audio
	s.resourceURL = resp.Header.Get("Location")
	s.done = done
	s.mu.Unlock()

	if s.onHealth != nil {
		go s.readRTCP(videoSender)
		go s.readRTCP(audioSender)
		go s.reportStats(done)
	}
	return nil
}

// readRTCP drains receiver reports from the sender. The remote's reported
// fraction lost feeds the health monitor as a packet loss percentage.
func (s *WHIPSink) readRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		n, _, err := sender.Read(buf)
		if err != nil {
			return
		}
		packets, err := rtcp.Unmarshal(buf[:n])
		if err != nil {
			continue
		}
		if loss, ok := worstFractionLost(packets); ok {
			s.mu.Lock()
			s.lossPct = float64(loss) / 256 * 100
			s.mu.Unlock()
		}
	}
}

// worstFractionLost picks the highest fraction lost across all reception
// reports in a compound RTCP packet.
func worstFractionLost(packets []rtcp.Packet) (uint8, bool) {
	var worst uint8
	found := false
	for _, p := range packets {
		rr, ok := p.(*rtcp.ReceiverReport)
		if !ok {
			continue
		}
		for _, report := range rr.Reports {
			found = true
			if report.FractionLost > worst {
				worst = report.FractionLost
			}
		}
	}
	return worst, found
}

// reportStats periodically combines the outbound byte counter with the
// latest RTCP loss figure into one health sample.
func (s *WHIPSink) reportStats(done <-chan struct{}) {
	ticker := time.NewTicker(s.statsInterval)
	defer ticker.Stop()

	lastBytes := atomic.LoadUint64(&s.bytesSent)
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			now := atomic.LoadUint64(&s.bytesSent)
			kbps := int(float64(now-lastBytes) * 8 / 1000 / s.statsInterval.Seconds())
			lastBytes = now

			s.mu.Lock()
			loss := s.lossPct
			s.mu.Unlock()

			s.onHealth(HealthSample{BitrateKbps: kbps, PacketLossPct: loss})
		}
	}
}

// WriteSample forwards one encoded sample onto the negotiated track.
func (s *WHIPSink) WriteSample(sample *media.EncodedSample) error {
	s.mu.Lock()
	video, audio := s.video, s.audio
	s.mu.Unlock()
	if video == nil {
		return domain.ErrNotRunning
	}

	atomic.AddUint64(&s.bytesSent, uint64(len(sample.Data)))

	out := pionmedia.Sample{Data: sample.Data, Duration: sample.Duration}
	switch sample.Kind {
	case media.TrackKindVideo:
		return video.WriteSample(out)
	case media.TrackKindAudio:
		return audio.WriteSample(out)
	}
	return nil
}

// Close deletes the WHIP resource and tears down the peer connection.
func (s *WHIPSink) Close() error {
	s.mu.Lock()
	pc := s.pc
	resource := s.resourceURL
	s.pc = nil
	s.video = nil
	s.audio = nil
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	s.mu.Unlock()

	if resource != "" {
		if req, err := http.NewRequest(http.MethodDelete, resource, nil); err == nil {
			if resp, err := s.client.Do(req); err == nil {
				resp.Body.Close()
			}
		}
	}
	if pc == nil {
		return nil
	}
	return pc.Close()
}
