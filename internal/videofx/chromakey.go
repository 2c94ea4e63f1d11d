package videofx

import (
	"math"

	"studiocast/internal/media"
)

// maxRGBDistance is the Euclidean distance between opposite RGB cube
// corners, used to normalize per-pixel key distance to 0..1.
const maxRGBDistance = 441.67

// applyChromaKey rewrites the frame's alpha channel in place. Pixels near
// the key color become transparent; the alpha ramps up with normalized
// distance until the similarity threshold, past which pixels stay opaque.
func applyChromaKey(f *media.VideoFrame, e Effect) {
	similarity := clamp01(e.Similarity)
	smoothness := clamp01(e.Smoothness)
	keyR := float64(e.KeyR)
	keyG := float64(e.KeyG)
	keyB := float64(e.KeyB)

	pix := f.Pix
	for i := 0; i < len(pix); i += 4 {
		dr := float64(pix[i]) - keyR
		dg := float64(pix[i+1]) - keyG
		db := float64(pix[i+2]) - keyB
		dist := math.Sqrt(dr*dr+dg*dg+db*db) / maxRGBDistance

		if similarity <= 0 || dist >= similarity {
			pix[i+3] = 255
			continue
		}
		if smoothness <= 0 {
			pix[i+3] = 0
			continue
		}

		alpha := (dist / similarity) / smoothness * 255
		if alpha > 255 {
			alpha = 255
		}
		pix[i+3] = uint8(alpha)
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
