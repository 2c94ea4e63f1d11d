package videofx

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
	apperrors "studiocast/pkg/errors"
)

// Processor derives a processed stream from a source stream. The video
// track carries transformed frames; the audio track is the source's own,
// passed through. Stopping the processor never stops the source tracks.
type Processor struct {
	cache     *ImageCache
	segLoader SegmenterLoader
	frameRate int
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	effect    Effect
	seg       Segmenter
	segFailed bool
	src       *media.Stream
	out       *media.Stream
	cancel    context.CancelFunc
	done      chan struct{}
}

// NewProcessor creates an idle processor. segLoader may be nil when no
// segmentation model is available; segmentation effects then pass through.
func NewProcessor(cache *ImageCache, segLoader SegmenterLoader, frameRate int, logger *zap.SugaredLogger) *Processor {
	if frameRate <= 0 {
		frameRate = 30
	}
	return &Processor{
		cache:     cache,
		segLoader: segLoader,
		frameRate: frameRate,
		logger:    logger,
	}
}

// Start begins processing src with the given effect and returns the derived
// stream. The derived stream's identity is stable until Stop.
func (p *Processor) Start(ctx context.Context, src *media.Stream, effect Effect) (*media.Stream, error) {
	if !effect.Valid() {
		return nil, apperrors.NewInvalidInputError("unknown video effect kind: " + string(effect.Kind))
	}
	if src == nil || src.Video == nil {
		return nil, apperrors.NewInvalidInputError("source stream carries no video track")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return nil, domain.ErrAlreadyRunning
	}

	p.effect = effect
	p.src = src
	p.out = &media.Stream{
		ID:    src.ID + "/fx",
		Video: media.NewVideoTrack(),
		Audio: src.Audio,
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx)

	return p.out, nil
}

// UpdateEffect swaps the active effect live. The next frame uses the new
// parameters; there is no gap in output.
func (p *Processor) UpdateEffect(effect Effect) error {
	if !effect.Valid() {
		return apperrors.NewInvalidInputError("unknown video effect kind: " + string(effect.Kind))
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.effect = effect
	return nil
}

// Stop halts the loop and closes the derived video track. Idempotent; the
// source tracks stay open.
func (p *Processor) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	done := p.done
	out := p.out
	seg := p.seg
	p.cancel = nil
	p.seg = nil
	p.segFailed = false
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	if out != nil && out.Video != nil {
		out.Video.Close()
	}
	if seg != nil {
		if err := seg.Close(); err != nil {
			p.logger.Warnw("segmenter close failed", "error", err)
		}
	}
}

func (p *Processor) loop(ctx context.Context) {
	defer close(p.done)

	ticker := time.NewTicker(time.Second / time.Duration(p.frameRate))
	defer ticker.Stop()

	var lastSeq uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		frame, seq := p.src.Video.Latest()
		if frame == nil || seq == lastSeq {
			continue
		}
		lastSeq = seq

		processed, err := p.processFrame(ctx, frame.Clone())
		if err != nil {
			// One bad frame never terminates the loop.
			p.logger.Warnw("frame processing failed", "error", err)
			continue
		}
		p.out.Video.WriteFrame(processed)
	}
}

func (p *Processor) processFrame(ctx context.Context, f *media.VideoFrame) (*media.VideoFrame, error) {
	p.mu.Lock()
	effect := p.effect
	p.mu.Unlock()

	switch effect.Kind {
	case EffectNone:
		return f, nil

	case EffectChromaKey:
		applyChromaKey(f, effect)
		return f, nil

	case EffectBlur:
		boxBlur(f, effect.BlurRadius)
		return f, nil

	case EffectBackgroundBlur:
		mask, ok := p.segment(f, effect)
		if !ok {
			return f, nil
		}
		applyMask(f, blurred(f, effect.BlurRadius), mask)
		return f, nil

	case EffectVirtualBackground:
		mask, ok := p.segment(f, effect)
		if !ok {
			return f, nil
		}
		img, err := p.cache.Scaled(ctx, effect.BackgroundURL, f.Width, f.Height)
		if err != nil {
			return nil, err
		}
		applyMask(f, media.FromRGBA(img, f.Timestamp), mask)
		return f, nil
	}
	return f, nil
}

// segment runs the segmentation model, softening mask edges. A missing or
// broken model degrades to pass-through rather than failing the frame.
func (p *Processor) segment(f *media.VideoFrame, effect Effect) ([]uint8, bool) {
	p.mu.Lock()
	seg := p.seg
	failed := p.segFailed
	loader := p.segLoader
	p.mu.Unlock()

	if failed || (seg == nil && loader == nil) {
		return nil, false
	}
	if seg == nil {
		loaded, err := loader()
		if err != nil {
			p.logger.Errorw("segmentation model load failed, passing through", "error", err)
			p.mu.Lock()
			p.segFailed = true
			p.mu.Unlock()
			return nil, false
		}
		p.mu.Lock()
		p.seg = loaded
		p.mu.Unlock()
		seg = loaded
	}

	mask, err := seg.Segment(f)
	if err != nil {
		p.logger.Warnw("segmentation failed for frame", "error", err)
		return nil, false
	}
	softenMaskEdges(mask, f.Width, f.Height, effect.EdgeSoftness)
	return mask, true
}
