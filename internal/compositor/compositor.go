// Package compositor runs the central render loop: every frame interval it
// paints the background, each positioned source tile and the active
// overlays onto one canvas, and publishes the result as the session's
// composite output stream together with the mixed audio track.
package compositor

import (
	"context"
	"fmt"
	"image"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/layout"
	"studiocast/internal/media"
	"studiocast/internal/videofx"
	"studiocast/pkg/events"
)

// State is the compositor lifecycle state. Stopped is terminal.
type State int32

const (
	StateUninitialized State = iota
	StateInitializing
	StateRunning
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// SourceBinding pairs a source description with its live media stream.
type SourceBinding struct {
	Source domain.Source
	Stream *media.Stream
}

// Stats are the render-loop diagnostics counters.
type Stats struct {
	RenderedFrames uint64
	DroppedFrames  uint64
	LastRenderTime time.Duration
}

const maxChatLines = 5

// Compositor owns the frame loop and the mutable scene: source list,
// layout, overlays and canvas settings. Scene mutations apply atomically
// with respect to the next frame; the loop reads one snapshot per tick.
type Compositor struct {
	cache    *videofx.ImageCache
	renderer Renderer
	bus      *events.Bus
	logger   *zap.SugaredLogger

	countdownInterval time.Duration
	introPollInterval time.Duration

	mu          sync.Mutex
	state       State
	settings    domain.CanvasSettings
	audioOut    *media.AudioTrack
	slots       []*SourceBinding
	layoutID    domain.LayoutID
	assignments []domain.Assignment
	overlays    *overlaySet
	chatLines   []string
	out         *media.Stream
	bgImage     *image.RGBA
	epoch       time.Time

	rendered   uint64
	dropped    uint64
	lastRender time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a compositor in the uninitialized state. audioOut is the
// mixer's output track, merged into the composite stream.
func New(settings domain.CanvasSettings, audioOut *media.AudioTrack, cache *videofx.ImageCache, renderer Renderer, bus *events.Bus, logger *zap.SugaredLogger) *Compositor {
	return &Compositor{
		cache:             cache,
		renderer:          renderer,
		bus:               bus,
		logger:            logger,
		countdownInterval: time.Second,
		introPollInterval: 50 * time.Millisecond,
		settings:          settings,
		audioOut:          audioOut,
		layoutID:          domain.LayoutGroup,
		overlays:          newOverlaySet(),
	}
}

// Initialize acquires the canvas, registers the initial sources and starts
// the frame loop. Only an uninitialized compositor can be initialized.
func (c *Compositor) Initialize(ctx context.Context, initial []SourceBinding) error {
	c.mu.Lock()
	if c.state != StateUninitialized {
		state := c.state
		c.mu.Unlock()
		if state == StateStopped {
			return domain.ErrCompositorStopped
		}
		return domain.ErrInvalidStateChange
	}
	c.state = StateInitializing
	c.mu.Unlock()

	if c.settings.Width <= 0 || c.settings.Height <= 0 || c.settings.FrameRate <= 0 {
		c.mu.Lock()
		c.state = StateUninitialized
		c.mu.Unlock()
		return domain.ErrInvalidStateChange
	}

	c.mu.Lock()
	for _, b := range initial {
		bound := b
		c.slots = append(c.slots, &bound)
	}
	c.out = &media.Stream{
		ID:    "composite",
		Video: media.NewVideoTrack(),
		Audio: c.audioOut,
	}
	c.epoch = time.Now()
	c.recomputeLayoutLocked()

	loopCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	fps := c.settings.FrameRate
	c.state = StateRunning
	c.mu.Unlock()

	c.prefetchBackground(ctx, c.settings.BackgroundImage)
	go c.loop(loopCtx, fps)
	c.logger.Infow("compositor running",
		"width", c.settings.Width, "height", c.settings.Height, "fps", fps)
	return nil
}

// Stop terminates the frame loop and releases the composite stream. It is
// terminal and safe to call repeatedly or on a never-initialized instance.
func (c *Compositor) Stop() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	out := c.out
	c.cancel = nil
	c.state = StateStopped
	c.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if out != nil && out.Video != nil {
		out.Video.Close()
	}
	c.renderer.Close()
}

// CurrentState returns the lifecycle state.
func (c *Compositor) CurrentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// OutputStream returns the composite stream. Its identity is stable across
// layout and overlay changes; only a resolution or frame-rate change
// replaces it.
func (c *Compositor) OutputStream() *media.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.out
}

// SetLayout selects the layout family. The recomputation lands on the next
// frame; the call never blocks on the render loop.
func (c *Compositor) SetLayout(id domain.LayoutID) error {
	if !id.Valid() {
		return domain.ErrInvalidLayout
	}
	c.mu.Lock()
	c.layoutID = id
	c.recomputeLayoutLocked()
	c.mu.Unlock()

	c.bus.Emit(events.EventLayoutChanged, "", id.String())
	return nil
}

// Layout returns the selected layout family.
func (c *Compositor) Layout() domain.LayoutID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layoutID
}

// AddParticipant registers a source and its stream for composition.
func (c *Compositor) AddParticipant(src domain.Source, stream *media.Stream) error {
	c.mu.Lock()
	for _, s := range c.slots {
		if s.Source.ID == src.ID {
			c.mu.Unlock()
			return domain.ErrSourceExists
		}
	}
	c.slots = append(c.slots, &SourceBinding{Source: src, Stream: stream})
	c.recomputeLayoutLocked()
	c.mu.Unlock()

	c.bus.Emit(events.EventSourceAdded, string(src.ID), src.Role)
	return nil
}

// RemoveParticipant drops a source. The next frame no longer draws it.
func (c *Compositor) RemoveParticipant(id domain.SourceID) error {
	c.mu.Lock()
	idx := -1
	for i, s := range c.slots {
		if s.Source.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		c.mu.Unlock()
		return domain.ErrSourceNotFound
	}
	c.slots = append(c.slots[:idx], c.slots[idx+1:]...)
	c.recomputeLayoutLocked()
	c.mu.Unlock()

	c.bus.Emit(events.EventSourceRemoved, string(id), nil)
	return nil
}

// UpdateParticipant replaces a source's descriptor, for enabled-flag and
// role changes, and recomputes the layout.
func (c *Compositor) UpdateParticipant(src domain.Source) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		if s.Source.ID == src.ID {
			s.Source = src
			c.recomputeLayoutLocked()
			return nil
		}
	}
	return domain.ErrSourceNotFound
}

// SetParticipantStream rebinds a source's slot to another stream,
// preserving its position and draw order. The effects pipeline uses this
// to swap a participant between their original and processed streams.
func (c *Compositor) SetParticipantStream(id domain.SourceID, stream *media.Stream) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.slots {
		if s.Source.ID == id {
			s.Stream = stream
			return nil
		}
	}
	return domain.ErrSourceNotFound
}

// Participants returns the current source descriptors in join order.
func (c *Compositor) Participants() []domain.Source {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Source, len(c.slots))
	for i, s := range c.slots {
		out[i] = s.Source
	}
	return out
}

// ApplySettings installs new canvas settings. A resolution or frame-rate
// change re-creates the composite stream, since captured output is bound to
// canvas dimensions; consumers must re-acquire it via OutputStream.
func (c *Compositor) ApplySettings(ctx context.Context, s domain.CanvasSettings) error {
	c.mu.Lock()
	if c.state == StateStopped {
		c.mu.Unlock()
		return domain.ErrCompositorStopped
	}
	prev := c.settings
	c.settings = s
	rebuild := c.state == StateRunning &&
		(s.Width != prev.Width || s.Height != prev.Height || s.FrameRate != prev.FrameRate)

	var oldVideo *media.VideoTrack
	if rebuild {
		oldVideo = c.out.Video
		c.out = &media.Stream{
			ID:    "composite",
			Video: media.NewVideoTrack(),
			Audio: c.audioOut,
		}
	}
	c.recomputeLayoutLocked()
	c.mu.Unlock()

	if oldVideo != nil {
		oldVideo.Close()
	}
	if s.BackgroundColor != prev.BackgroundColor || s.BackgroundImage != prev.BackgroundImage {
		c.bus.Emit(events.EventBackgroundChanged, "", s.BackgroundColor)
	}
	if s.BackgroundImage != prev.BackgroundImage {
		c.mu.Lock()
		c.bgImage = nil
		c.mu.Unlock()
		c.prefetchBackground(ctx, s.BackgroundImage)
	}
	return nil
}

// ShowLowerThird displays a lower-third banner for the given duration.
func (c *Compositor) ShowLowerThird(text string, d time.Duration) {
	c.setOverlay(&overlayEntry{overlay: domain.Overlay{
		Category: domain.OverlayLowerThird, StartedAt: time.Now(), Duration: d, Text: text,
	}})
}

// ShowCaptions displays a caption line for the given duration.
func (c *Compositor) ShowCaptions(text string, d time.Duration) {
	c.setOverlay(&overlayEntry{overlay: domain.Overlay{
		Category: domain.OverlayCaptions, StartedAt: time.Now(), Duration: d, Text: text,
	}})
}

// AddChatMessage appends a message to the chat overlay, keeping the most
// recent lines.
func (c *Compositor) AddChatMessage(msg domain.ChatMessage) {
	line := fmt.Sprintf("%s: %s", msg.Author, msg.Text)
	c.mu.Lock()
	c.chatLines = append(c.chatLines, line)
	if len(c.chatLines) > maxChatLines {
		c.chatLines = c.chatLines[len(c.chatLines)-maxChatLines:]
	}
	lines := append([]string(nil), c.chatLines...)
	c.overlays.set(&overlayEntry{overlay: domain.Overlay{
		Category: domain.OverlayChat, StartedAt: time.Now(), Lines: lines,
	}})
	c.mu.Unlock()
}

// ClearChatOverlay removes the chat overlay and its history.
func (c *Compositor) ClearChatOverlay() {
	c.mu.Lock()
	c.chatLines = nil
	c.overlays.clear(domain.OverlayChat)
	c.mu.Unlock()
}

// SetMediaClipOverlay plays a clip stream over the canvas. Strictly single
// slot: a new clip retires any active one.
func (c *Compositor) SetMediaClipOverlay(stream *media.Stream) {
	c.setOverlay(&overlayEntry{
		overlay: domain.Overlay{Category: domain.OverlayClip, StartedAt: time.Now()},
		stream:  stream,
	})
}

// ClearMediaClipOverlay removes the clip overlay, if any.
func (c *Compositor) ClearMediaClipOverlay() {
	c.mu.Lock()
	c.overlays.clear(domain.OverlayClip)
	c.mu.Unlock()
}

func (c *Compositor) setOverlay(e *overlayEntry) {
	c.mu.Lock()
	c.overlays.set(e)
	c.mu.Unlock()
}

// StartCountdown paints a descending countdown overlay, emitting one tick
// event per second. It blocks the caller until the countdown completes or
// ctx expires; either way it resolves cleanly and clears the overlay. The
// render loop keeps running throughout.
func (c *Compositor) StartCountdown(ctx context.Context, seconds int) error {
	if c.CurrentState() == StateStopped {
		return domain.ErrCompositorStopped
	}
	defer func() {
		c.mu.Lock()
		c.overlays.clear(domain.OverlayCountdown)
		c.mu.Unlock()
	}()

	for n := seconds; n > 0; n-- {
		c.setOverlay(&overlayEntry{overlay: domain.Overlay{
			Category:  domain.OverlayCountdown,
			StartedAt: time.Now(),
			Text:      fmt.Sprintf("%d", n),
		}})
		c.bus.Emit(events.EventCountdownTick, "", n)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.countdownInterval):
		}
	}
	return nil
}

// PlayIntroVideo paints the intro stream full-canvas until the stream ends
// or maxWait elapses. Playback failure never propagates: a stalled intro
// times out and go-live proceeds.
func (c *Compositor) PlayIntroVideo(ctx context.Context, stream *media.Stream, maxWait time.Duration) error {
	if c.CurrentState() == StateStopped {
		return domain.ErrCompositorStopped
	}
	if stream == nil || stream.Video == nil {
		return nil
	}

	c.setOverlay(&overlayEntry{
		overlay: domain.Overlay{Category: domain.OverlayIntro, StartedAt: time.Now()},
		stream:  stream,
	})
	c.bus.Emit(events.EventIntroStarted, stream.ID, nil)

	defer func() {
		c.mu.Lock()
		c.overlays.clear(domain.OverlayIntro)
		c.mu.Unlock()
		c.bus.Emit(events.EventIntroEnded, stream.ID, nil)
	}()

	deadline := time.NewTimer(maxWait)
	defer deadline.Stop()
	poll := time.NewTicker(c.introPollInterval)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-deadline.C:
			c.logger.Warnw("intro video timed out", "stream", stream.ID, "max_wait", maxWait)
			return nil
		case <-poll.C:
			if stream.Video.Closed() {
				return nil
			}
		}
	}
}

// Stats returns the render-loop counters.
func (c *Compositor) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		RenderedFrames: c.rendered,
		DroppedFrames:  c.dropped,
		LastRenderTime: c.lastRender,
	}
}

func (c *Compositor) recomputeLayoutLocked() {
	sources := make([]domain.Source, len(c.slots))
	for i, s := range c.slots {
		sources[i] = s.Source
	}
	assignments, err := layout.ComputeLayout(sources, c.layoutID, c.settings.Width, c.settings.Height)
	if err != nil {
		c.logger.Errorw("layout computation failed", "layout", c.layoutID, "error", err)
		return
	}
	c.assignments = assignments
}

func (c *Compositor) prefetchBackground(ctx context.Context, url string) {
	if url == "" || c.cache == nil {
		return
	}
	width, height := c.settings.Width, c.settings.Height
	go func() {
		img, err := c.cache.Scaled(ctx, url, width, height)
		if err != nil {
			c.logger.Warnw("background image fetch failed", "url", url, "error", err)
			return
		}
		c.mu.Lock()
		c.bgImage = img
		c.mu.Unlock()
	}()
}

func (c *Compositor) loop(ctx context.Context, fps int) {
	defer close(c.done)
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !c.renderer.Render(c.renderFrame) {
				c.mu.Lock()
				c.dropped++
				c.mu.Unlock()
			}
		}
	}
}

// frameSnapshot is the scene state one frame paints from. It is taken
// atomically so a frame never observes a half-applied mutation.
type frameSnapshot struct {
	settings    domain.CanvasSettings
	bgImage     *image.RGBA
	assignments []domain.Assignment
	streams     map[domain.SourceID]*media.Stream
	overlays    []*overlayEntry
	out         *media.VideoTrack
	ts          time.Duration
}

func (c *Compositor) snapshot() *frameSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning || c.out == nil {
		return nil
	}

	snap := &frameSnapshot{
		settings:    c.settings,
		bgImage:     c.bgImage,
		assignments: append([]domain.Assignment(nil), c.assignments...),
		streams:     make(map[domain.SourceID]*media.Stream, len(c.slots)),
		overlays:    c.overlays.active(time.Now()),
		out:         c.out.Video,
		ts:          time.Since(c.epoch),
	}
	for _, s := range c.slots {
		snap.streams[s.Source.ID] = s.Stream
	}
	sort.Slice(snap.assignments, func(i, j int) bool {
		return snap.assignments[i].Z < snap.assignments[j].Z
	})
	return snap
}

// renderFrame paints one frame. Per-tile errors are tolerated: a source
// with no frame yet simply leaves its slot showing the background.
func (c *Compositor) renderFrame() {
	snap := c.snapshot()
	if snap == nil {
		return
	}
	start := time.Now()

	img := image.NewRGBA(image.Rect(0, 0, snap.settings.Width, snap.settings.Height))
	fillRect(img, img.Bounds(), parseHexColor(snap.settings.BackgroundColor))
	if snap.bgImage != nil {
		drawFrameFull(img, media.FromRGBA(snap.bgImage, 0))
	}

	for i, a := range snap.assignments {
		stream := snap.streams[a.SourceID]
		if stream == nil || stream.Video == nil {
			continue
		}
		frame, _ := stream.Video.Latest()
		if frame == nil {
			continue
		}
		drawTile(img, frame, a)
		if snap.settings.ShowBadges {
			drawText(img, a.X+6, a.Y+textFace.Height+2, fmt.Sprintf("%d", i+1), colorBadge)
		}
	}

	for _, e := range snap.overlays {
		c.drawOverlay(img, e)
	}

	if snap.settings.ShowBadges {
		drawText(img, 8, textFace.Height+2,
			fmt.Sprintf("%dx%d", snap.settings.Width, snap.settings.Height), colorBadge)
	}

	snap.out.WriteFrame(media.FromRGBA(img, snap.ts))

	c.mu.Lock()
	c.rendered++
	c.lastRender = time.Since(start)
	c.mu.Unlock()
}

func (c *Compositor) drawOverlay(img *image.RGBA, e *overlayEntry) {
	b := img.Bounds()
	switch e.overlay.Category {
	case domain.OverlayLowerThird:
		drawBanner(img, b.Max.Y-b.Dy()/6-40, 40, e.overlay.Text, false)

	case domain.OverlayChat:
		y := b.Max.Y - b.Dy()/4
		for _, line := range e.overlay.Lines {
			drawText(img, 16, y, line, colorWhite)
			y += textFace.Height + 4
		}

	case domain.OverlayCaptions:
		drawBanner(img, b.Max.Y-48, 36, e.overlay.Text, true)

	case domain.OverlayCountdown:
		drawTextCentered(img, b.Min.Y+b.Dy()/2, e.overlay.Text, colorWhite)

	case domain.OverlayIntro, domain.OverlayClip:
		if e.stream == nil || e.stream.Video == nil {
			return
		}
		if frame, _ := e.stream.Video.Latest(); frame != nil {
			drawFrameFull(img, frame)
		}
	}
}
