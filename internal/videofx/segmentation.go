package videofx

import (
	"studiocast/internal/media"
)

// Segmenter classifies each pixel of a frame as foreground (255) or
// background (0). Implementations wrap whatever person-segmentation model
// the deployment ships; loading one may fail, in which case the processor
// falls back to pass-through.
type Segmenter interface {
	Segment(f *media.VideoFrame) ([]uint8, error)
	Close() error
}

// SegmenterLoader constructs a Segmenter, typically loading model weights.
type SegmenterLoader func() (Segmenter, error)

// softenMaskEdges reduces the alpha of foreground pixels that border
// background pixels, proportionally to the background fraction of their
// 8-neighborhood scaled by softness. Background pixels stay at 0.
func softenMaskEdges(mask []uint8, width, height int, softness float64) {
	softness = clamp01(softness)
	if softness == 0 {
		return
	}

	src := make([]uint8, len(mask))
	copy(src, mask)

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			i := y*width + x
			if src[i] == 0 {
				continue
			}

			background, neighbors := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if nx < 0 || nx >= width || ny < 0 || ny >= height {
						continue
					}
					neighbors++
					if src[ny*width+nx] == 0 {
						background++
					}
				}
			}
			if background == 0 {
				continue
			}

			reduction := softness * float64(background) / float64(neighbors)
			mask[i] = uint8(float64(src[i]) * (1 - reduction))
		}
	}
}

// applyMask composites the frame over a replacement background using the
// segmentation mask: background pixels come from bg, edge pixels blend.
// bg must have the same dimensions as f.
func applyMask(f *media.VideoFrame, bg *media.VideoFrame, mask []uint8) {
	pix := f.Pix
	bgPix := bg.Pix
	for i, m := range mask {
		p := i * 4
		switch m {
		case 255:
			continue
		case 0:
			pix[p] = bgPix[p]
			pix[p+1] = bgPix[p+1]
			pix[p+2] = bgPix[p+2]
			pix[p+3] = bgPix[p+3]
		default:
			a := int(m)
			inv := 255 - a
			pix[p] = uint8((int(pix[p])*a + int(bgPix[p])*inv) / 255)
			pix[p+1] = uint8((int(pix[p+1])*a + int(bgPix[p+1])*inv) / 255)
			pix[p+2] = uint8((int(pix[p+2])*a + int(bgPix[p+2])*inv) / 255)
			pix[p+3] = 255
		}
	}
}
