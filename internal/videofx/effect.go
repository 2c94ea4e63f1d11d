// Package videofx transforms a source video stream frame by frame: chroma
// keying, blur, and segmentation-based virtual backgrounds. Audio tracks
// pass through untouched.
package videofx

// EffectKind selects the per-frame transform.
type EffectKind string

const (
	EffectNone              EffectKind = "none"
	EffectChromaKey         EffectKind = "chroma-key"
	EffectBlur              EffectKind = "blur"
	EffectBackgroundBlur    EffectKind = "background-blur"
	EffectVirtualBackground EffectKind = "virtual-background"
)

// Effect is the full parameter set for one active transform. Fields not
// used by the selected kind are ignored.
type Effect struct {
	Kind EffectKind

	// Chroma key parameters.
	KeyR, KeyG, KeyB uint8
	Similarity       float64 // 0..1 normalized distance threshold
	Smoothness       float64 // 0..1 width of the alpha ramp

	// Blur radius in pixels, for full-frame and background blur.
	BlurRadius int

	// Virtual background image URL, resolved through the image cache.
	BackgroundURL string

	// Segmentation edge softening, 0..1.
	EdgeSoftness float64
}

// Valid reports whether the effect kind is known.
func (e Effect) Valid() bool {
	switch e.Kind {
	case EffectNone, EffectChromaKey, EffectBlur, EffectBackgroundBlur, EffectVirtualBackground:
		return true
	}
	return false
}
