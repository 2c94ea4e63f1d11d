// Package services implements the application layer: the studio facade
// that sequences broadcasts across the mixer, compositor, output manager
// and recording subsystems.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/audio"
	"studiocast/internal/compositor"
	"studiocast/internal/core/domain"
	"studiocast/internal/core/ports"
	"studiocast/internal/media"
	"studiocast/internal/output"
	"studiocast/internal/recording"
	"studiocast/internal/videofx"
	apperrors "studiocast/pkg/errors"
	"studiocast/pkg/events"
	"studiocast/pkg/retry"
	"studiocast/pkg/validation"
)

const audioBlockInterval = 20 * time.Millisecond

// Deps collects everything the studio service orchestrates.
type Deps struct {
	Logger *zap.SugaredLogger
	Bus    *events.Bus

	Repo ports.DestinationRepository
	API  ports.BroadcastAPI

	Mixer      *audio.Mixer
	Compositor *compositor.Compositor
	Outputs    *output.Manager

	Clipper    *recording.Clipper
	MultiTrack *recording.MultiTrackRecorder
	Local      *recording.LocalRecorder

	VideoEncoder ports.VideoEncoder
	AudioEncoder ports.AudioEncoder

	Cache     *videofx.ImageCache
	SegLoader videofx.SegmenterLoader

	FrameRate         int
	BackupsPerPrimary int
	CredentialRetry   retry.Config
	CountdownMax      time.Duration
	IntroMax          time.Duration
}

// StudioService is the single entry point for broadcast control. It owns
// the go-live sequence, fans composite samples out to destinations and
// recorders, and tracks participant streams for the compositor and mixer.
type StudioService struct {
	deps Deps

	mu           sync.Mutex
	streams      map[domain.SourceID]*media.Stream
	sources      map[domain.SourceID]domain.Source
	procs        map[domain.SourceID]*videofx.Processor
	clipSource   domain.SourceID
	live         bool
	broadcastID  domain.BroadcastID
	title        string
	liveSince    time.Time
	audioClock   time.Duration
	lastVideoSeq uint64
}

// NewStudioService wires the studio facade. Run must be called to start
// the sample pump.
func NewStudioService(deps Deps) *StudioService {
	if deps.FrameRate <= 0 {
		deps.FrameRate = 30
	}
	if deps.CountdownMax <= 0 {
		deps.CountdownMax = time.Minute
	}
	if deps.IntroMax <= 0 {
		deps.IntroMax = 2 * time.Minute
	}
	return &StudioService{
		deps:    deps,
		streams: make(map[domain.SourceID]*media.Stream),
		sources: make(map[domain.SourceID]domain.Source),
		procs:   make(map[domain.SourceID]*videofx.Processor),
	}
}

// Run starts the composite sample pump: video at the canvas frame rate,
// audio in fixed 20ms blocks. It returns when ctx is cancelled.
func (s *StudioService) Run(ctx context.Context) {
	videoTick := time.NewTicker(time.Second / time.Duration(s.deps.FrameRate))
	audioTick := time.NewTicker(audioBlockInterval)
	defer videoTick.Stop()
	defer audioTick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-videoTick.C:
			s.pumpVideo()
		case <-audioTick.C:
			s.pumpAudio()
		}
	}
}

func (s *StudioService) pumpVideo() {
	out := s.deps.Compositor.OutputStream()
	if out == nil || out.Video == nil {
		return
	}
	frame, seq := out.Video.Latest()
	if frame == nil {
		return
	}

	s.mu.Lock()
	if seq == s.lastVideoSeq {
		s.mu.Unlock()
		return
	}
	s.lastVideoSeq = seq
	s.mu.Unlock()

	sample, err := s.deps.VideoEncoder.Encode(frame)
	if err != nil {
		s.deps.Logger.Errorw("video encode failed", "error", err)
		return
	}
	s.fanOut(sample)
}

func (s *StudioService) pumpAudio() {
	track := s.deps.Mixer.OutputTrack()
	n := track.SampleRate() / 50 * track.Channels() // 20ms
	block := &media.AudioBlock{
		Samples:    track.ReadBlock(n),
		SampleRate: track.SampleRate(),
		Channels:   track.Channels(),
	}

	s.mu.Lock()
	block.Timestamp = s.audioClock
	s.audioClock += audioBlockInterval
	s.mu.Unlock()

	sample, err := s.deps.AudioEncoder.Encode(block)
	if err != nil {
		s.deps.Logger.Errorw("audio encode failed", "error", err)
		return
	}
	s.fanOut(sample)
}

func (s *StudioService) fanOut(sample *media.EncodedSample) {
	s.deps.Outputs.Broadcast(sample)
	s.deps.Clipper.Buffer().Write(sample)
	s.deps.Local.Append(sample)
}

// OnParticipantJoined registers a remote participant's media with the
// mixer and the compositor. Only audible sources reach the mix; backstage
// and clip-overlay participants stay connected without contributing.
func (s *StudioService) OnParticipantJoined(src domain.Source, stream *media.Stream) {
	s.mu.Lock()
	s.streams[src.ID] = stream
	s.sources[src.ID] = src
	s.mu.Unlock()

	if src.Audible() {
		s.deps.Mixer.AddStream(src.ID, stream)
	}
	if err := s.deps.Compositor.AddParticipant(src, stream); err != nil {
		s.deps.Logger.Warnw("participant not added to scene", "source", src.ID, "error", err)
	}
	s.deps.Logger.Infow("participant joined", "source", src.ID, "role", src.Role)
}

// OnParticipantUpdated applies role and enabled-flag changes. Mixer
// registration follows the new audibility, so muting a participant or
// moving them backstage silences them within one quantum.
func (s *StudioService) OnParticipantUpdated(src domain.Source) {
	s.mu.Lock()
	stream := s.streams[src.ID]
	if prev, ok := s.sources[src.ID]; ok && src.JoinedAt.IsZero() {
		src.JoinedAt = prev.JoinedAt
	}
	s.sources[src.ID] = src
	s.mu.Unlock()
	if stream == nil {
		s.deps.Logger.Warnw("update for unknown participant", "source", src.ID)
		return
	}

	if src.Audible() {
		s.deps.Mixer.AddStream(src.ID, stream)
	} else {
		s.deps.Mixer.RemoveStream(src.ID)
	}
	if err := s.deps.Compositor.UpdateParticipant(src); err != nil {
		s.deps.Logger.Warnw("participant not updated in scene", "source", src.ID, "error", err)
	}
	s.deps.Logger.Infow("participant updated", "source", src.ID, "role", src.Role)
}

// OnParticipantLeft disconnects the participant from the mix and the
// scene, stopping any active effects processor.
func (s *StudioService) OnParticipantLeft(id domain.SourceID) {
	s.mu.Lock()
	delete(s.streams, id)
	delete(s.sources, id)
	proc := s.procs[id]
	delete(s.procs, id)
	wasClip := s.clipSource == id
	s.mu.Unlock()

	if proc != nil {
		proc.Stop()
	}
	if wasClip {
		s.deps.Compositor.ClearMediaClipOverlay()
		s.clearClipPlayback()
	}
	s.deps.Mixer.RemoveStream(id)
	if err := s.deps.Compositor.RemoveParticipant(id); err != nil {
		s.deps.Logger.Warnw("participant not removed from scene", "source", id, "error", err)
	}
	s.deps.Logger.Infow("participant left", "source", id)
}

// OnParticipantSample forwards a participant's original encoded sample to
// the per-track recorder. Recording the transport bitstream avoids a
// decode/re-encode round trip.
func (s *StudioService) OnParticipantSample(id domain.SourceID, sample *media.EncodedSample) {
	s.deps.MultiTrack.Append(id, sample)
}

// AddDestination validates and stores a destination. Credentials may
// arrive later; GoLive polls for them.
func (s *StudioService) AddDestination(ctx context.Context, dest *domain.Destination) error {
	if err := validation.ValidateDestinationID(string(dest.ID)); err != nil {
		return apperrors.NewInvalidInputError(err.Error())
	}
	if dest.IngestURL != "" {
		if err := validation.ValidateIngestURL(dest.IngestURL); err != nil {
			return apperrors.NewInvalidInputError(err.Error())
		}
	}
	if dest.CreatedAt.IsZero() {
		dest.CreatedAt = time.Now()
	}
	return s.deps.Repo.Upsert(ctx, dest)
}

// RemoveDestination deletes the stored destination and tears down its
// connection if one exists.
func (s *StudioService) RemoveDestination(ctx context.Context, id domain.DestinationID) error {
	if err := s.deps.Repo.Remove(ctx, id); err != nil {
		return err
	}
	if err := s.deps.Outputs.RemoveDestination(id); err != nil && !errors.Is(err, domain.ErrDestinationNotFound) {
		return err
	}
	return nil
}

// ListDestinations returns every stored destination.
func (s *StudioService) ListDestinations(ctx context.Context) ([]*domain.Destination, error) {
	return s.deps.Repo.List(ctx)
}

// SetLayout switches the active scene layout.
func (s *StudioService) SetLayout(ctx context.Context, id domain.LayoutID) error {
	return s.deps.Compositor.SetLayout(id)
}

// SetSourceEffect routes a participant's video through an effects
// processor ahead of composition. Kind "none" restores the original
// stream and releases the processor; a second call with a new effect
// updates the running processor in place.
func (s *StudioService) SetSourceEffect(ctx context.Context, id domain.SourceID, effect videofx.Effect) error {
	if !effect.Valid() {
		return apperrors.NewInvalidInputError("unknown video effect kind: " + string(effect.Kind))
	}

	s.mu.Lock()
	stream := s.streams[id]
	proc := s.procs[id]
	s.mu.Unlock()
	if stream == nil {
		return domain.ErrSourceNotFound
	}

	if effect.Kind == videofx.EffectNone {
		if proc == nil {
			return nil
		}
		if err := s.deps.Compositor.SetParticipantStream(id, stream); err != nil {
			return err
		}
		proc.Stop()
		s.mu.Lock()
		delete(s.procs, id)
		s.mu.Unlock()
		s.deps.Logger.Infow("video effect cleared", "source", id)
		return nil
	}

	if proc != nil {
		return proc.UpdateEffect(effect)
	}

	proc = videofx.NewProcessor(s.deps.Cache, s.deps.SegLoader, s.deps.FrameRate, s.deps.Logger)
	// The processing loop outlives the request; Stop bounds its lifetime.
	derived, err := proc.Start(context.Background(), stream, effect)
	if err != nil {
		return err
	}
	if err := s.deps.Compositor.SetParticipantStream(id, derived); err != nil {
		proc.Stop()
		return err
	}
	s.mu.Lock()
	s.procs[id] = proc
	s.mu.Unlock()
	s.deps.Logger.Infow("video effect applied", "source", id, "kind", effect.Kind)
	return nil
}

// ShowClipOverlay plays a connected source's stream as the single-slot
// clip overlay and feeds its audio into the mix as a playback channel.
func (s *StudioService) ShowClipOverlay(ctx context.Context, id domain.SourceID) error {
	s.mu.Lock()
	stream := s.streams[id]
	s.mu.Unlock()
	if stream == nil {
		return domain.ErrSourceNotFound
	}

	s.clearClipPlayback()
	s.deps.Compositor.SetMediaClipOverlay(stream)
	if stream.Audio != nil {
		s.deps.Mixer.AddPlayback(clipPlaybackID(id), stream.Audio)
	}
	s.mu.Lock()
	s.clipSource = id
	s.mu.Unlock()

	s.deps.Logger.Infow("clip overlay playing", "source", id)
	return nil
}

// ClearClipOverlay removes the clip overlay and its playback channel.
// Idempotent.
func (s *StudioService) ClearClipOverlay(ctx context.Context) error {
	s.deps.Compositor.ClearMediaClipOverlay()
	s.clearClipPlayback()
	return nil
}

func (s *StudioService) clearClipPlayback() {
	s.mu.Lock()
	id := s.clipSource
	s.clipSource = ""
	s.mu.Unlock()
	if id != "" {
		s.deps.Mixer.RemoveStream(clipPlaybackID(id))
	}
}

// clipPlaybackID keys the overlay's mixer channel apart from the source's
// own registration, so an audible source can also back a clip.
func clipPlaybackID(id domain.SourceID) domain.SourceID {
	return id + "/clip"
}

// GoLive runs the full broadcast start sequence: create and start the
// broadcast upstream, resolve destination credentials, open every
// connection in testing mode, pre-establish backup connections, play the
// countdown, transition the broadcast to live where the platform requires
// it, then play the intro video.
// Partial destination failure is reported in the result without aborting
// the sequence.
func (s *StudioService) GoLive(ctx context.Context, opts ports.GoLiveOptions) (*domain.StartResult, error) {
	s.mu.Lock()
	if s.live {
		s.mu.Unlock()
		return nil, apperrors.NewConflictError("broadcast already live")
	}
	s.mu.Unlock()

	if len(opts.Destinations) == 0 {
		return nil, apperrors.WrapError(domain.ErrNoDestinations,
			apperrors.ErrCodePreconditionFailed,
			"select at least one destination before going live",
			http.StatusPreconditionFailed)
	}

	id, err := s.deps.API.CreateBroadcast(ctx, opts.Title)
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeUpstream,
			"broadcast creation failed", http.StatusBadGateway)
	}
	if err := s.deps.API.StartBroadcast(ctx, id); err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeUpstream,
			"broadcast start failed", http.StatusBadGateway)
	}

	resolved := make(map[domain.DestinationID]*domain.Destination, len(opts.Destinations))
	for _, destID := range opts.Destinations {
		dest, err := s.resolveCredentials(ctx, destID)
		if err != nil {
			return nil, err
		}
		if err := s.deps.Outputs.AddDestination(*dest); err != nil {
			return nil, err
		}
		resolved[destID] = dest
	}

	result := s.deps.Outputs.StartAll(ctx)
	if result.AllFailed() {
		s.deps.Outputs.StopAll()
		if endErr := s.deps.API.EndBroadcast(ctx, id); endErr != nil {
			s.deps.Logger.Errorw("broadcast cleanup failed", "broadcast_id", id, "error", endErr)
		}
		return result, apperrors.NewUpstreamError("all",
			fmt.Sprintf("every destination failed to connect (%d attempted)", len(opts.Destinations)))
	}

	// Pre-establish backups for every live primary so a later failover
	// switches without renegotiating.
	for _, destID := range result.Started {
		for i := 0; i < s.deps.BackupsPerPrimary; i++ {
			if err := s.deps.Outputs.AddBackup(ctx, destID, *resolved[destID]); err != nil {
				s.deps.Logger.Warnw("backup connection not established",
					"destination", destID, "error", err)
				break
			}
		}
	}

	if opts.CountdownSeconds > 0 {
		cctx, cancel := context.WithTimeout(ctx, s.deps.CountdownMax)
		err := s.deps.Compositor.StartCountdown(cctx, opts.CountdownSeconds)
		cancel()
		if err != nil {
			s.deps.Logger.Warnw("countdown skipped", "error", err)
		}
	}

	if transitionNeeded(resolved) {
		if err := s.deps.API.TransitionToLive(ctx, id); err != nil {
			return result, apperrors.WrapError(err, apperrors.ErrCodeUpstream,
				"live transition failed", http.StatusBadGateway)
		}
	}

	if opts.IntroSourceID != "" {
		s.playIntro(ctx, opts.IntroSourceID)
	}

	s.mu.Lock()
	s.live = true
	s.broadcastID = id
	s.title = opts.Title
	s.liveSince = time.Now()
	s.mu.Unlock()

	s.deps.Bus.Emit(events.EventBroadcastLive, string(id), result)
	s.deps.Logger.Infow("broadcast live",
		"broadcast_id", id, "started", len(result.Started), "failed", len(result.Failed))
	return result, nil
}

// transitionNeeded reports whether any selected platform runs a
// testing-to-live broadcast lifecycle. Platforms whose streams are
// visible as soon as media flows skip the transition call.
func transitionNeeded(dests map[domain.DestinationID]*domain.Destination) bool {
	for _, d := range dests {
		if d.Platform.RequiresLiveTransition() {
			return true
		}
	}
	return false
}

// resolveCredentials polls the repository until the platform has issued
// the destination's ingest URL and stream key.
func (s *StudioService) resolveCredentials(ctx context.Context, id domain.DestinationID) (*domain.Destination, error) {
	dest, err := retry.DoWithResult(ctx, s.deps.CredentialRetry, func() (*domain.Destination, error) {
		d, err := s.deps.Repo.Credentials(ctx, id)
		if err != nil {
			if errors.Is(err, domain.ErrCredentialsUnready) {
				return nil, err
			}
			return nil, retry.NonRetryable(err)
		}
		return d, nil
	})
	if err != nil {
		return nil, apperrors.WrapError(err, apperrors.ErrCodeUpstream,
			fmt.Sprintf("credentials unavailable for destination %s", id),
			http.StatusBadGateway)
	}
	return dest, nil
}

func (s *StudioService) playIntro(ctx context.Context, id domain.SourceID) {
	s.mu.Lock()
	stream := s.streams[id]
	s.mu.Unlock()
	if stream == nil {
		s.deps.Logger.Warnw("intro source not connected", "source", id)
		return
	}
	ictx, cancel := context.WithTimeout(ctx, s.deps.IntroMax)
	defer cancel()
	if err := s.deps.Compositor.PlayIntroVideo(ictx, stream, s.deps.IntroMax); err != nil {
		s.deps.Logger.Warnw("intro playback failed", "source", id, "error", err)
	}
}

// EndBroadcast stops the broadcast. Recordings finalize before any output
// teardown so their last samples are not lost.
func (s *StudioService) EndBroadcast(ctx context.Context) error {
	s.mu.Lock()
	if !s.live {
		s.mu.Unlock()
		return apperrors.NewPreconditionError("no broadcast is live")
	}
	id := s.broadcastID
	title := s.title
	duration := time.Since(s.liveSince)
	s.live = false
	s.mu.Unlock()

	if s.deps.MultiTrack.Running() {
		if results, err := s.deps.MultiTrack.Stop(ctx); err != nil {
			s.deps.Logger.Errorw("track recording finalization failed", "error", err)
		} else {
			s.deps.Logger.Infow("track recordings finalized", "tracks", len(results))
		}
	}
	if s.deps.Local.Running() {
		meta := domain.BroadcastMeta{ID: id, Title: title, Duration: duration}
		if _, err := s.deps.Local.Stop(meta); err != nil {
			s.deps.Logger.Errorw("local recording finalization failed", "error", err)
		}
	}

	s.deps.Outputs.StopAll()

	if err := s.deps.API.EndBroadcast(ctx, id); err != nil {
		s.deps.Logger.Errorw("upstream broadcast end failed", "broadcast_id", id, "error", err)
	}

	s.deps.Bus.Emit(events.EventBroadcastEnded, string(id), duration)
	s.deps.Logger.Infow("broadcast ended", "broadcast_id", id, "duration", duration)
	return nil
}

// CreateClip extracts the most recent window of the composite output.
func (s *StudioService) CreateClip(ctx context.Context, duration time.Duration) (*domain.Clip, error) {
	if duration <= 0 {
		return nil, apperrors.NewInvalidInputError("clip duration must be positive")
	}
	clip, err := s.deps.Clipper.CreateClip(duration)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientBuffer) {
			return nil, apperrors.WrapError(err, apperrors.ErrCodePreconditionFailed,
				"not enough buffered history for the requested clip",
				http.StatusPreconditionFailed)
		}
		return nil, err
	}
	return clip, nil
}

// StartRecording starts both the composite and the per-track recorders.
func (s *StudioService) StartRecording(ctx context.Context) error {
	if err := s.deps.MultiTrack.Start(); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeConflict,
			"recording already active", http.StatusConflict)
	}
	if err := s.deps.Local.Start(); err != nil {
		return apperrors.WrapError(err, apperrors.ErrCodeConflict,
			"recording already active", http.StatusConflict)
	}
	s.deps.Logger.Infow("recording started")
	return nil
}

// Status assembles a point-in-time studio snapshot.
func (s *StudioService) Status(ctx context.Context) (*ports.StudioStatus, error) {
	s.mu.Lock()
	live := s.live
	id := s.broadcastID
	since := s.liveSince
	s.mu.Unlock()

	states := s.deps.Outputs.States()
	active := make([]domain.DestinationID, 0, len(states))
	var failovers uint64
	for _, dest := range s.deps.Outputs.Destinations() {
		if states[dest.ID] == domain.ConnLive {
			active = append(active, dest.ID)
		}
		failovers += uint64(s.deps.Outputs.FailoverCount(dest.ID))
	}

	st := &ports.StudioStatus{
		Live:             live,
		BroadcastID:      id,
		LayoutID:         s.deps.Compositor.Layout(),
		SourceCount:      len(s.deps.Compositor.Participants()),
		ActiveDests:      active,
		DroppedFrames:    s.deps.Compositor.Stats().DroppedFrames,
		FailoverCount:    failovers,
		RecordingActive:  s.deps.MultiTrack.Running() || s.deps.Local.Running(),
		ClipBufferedSecs: s.deps.Clipper.Buffer().Buffered().Seconds(),
	}
	if live {
		st.Uptime = time.Since(since)
	}
	return st, nil
}
