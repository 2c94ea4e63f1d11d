package videofx

import (
	"studiocast/internal/media"
)

// boxBlur applies a separable box blur of the given radius in place. Two
// passes (horizontal then vertical) with a running sum keep it linear in
// pixel count regardless of radius.
func boxBlur(f *media.VideoFrame, radius int) {
	if radius <= 0 {
		return
	}
	tmp := make([]byte, len(f.Pix))
	blurPass(f.Pix, tmp, f.Width, f.Height, radius, true)
	blurPass(tmp, f.Pix, f.Width, f.Height, radius, false)
}

// blurred returns a blurred copy, leaving the input frame untouched.
func blurred(f *media.VideoFrame, radius int) *media.VideoFrame {
	out := f.Clone()
	boxBlur(out, radius)
	return out
}

func blurPass(src, dst []byte, width, height, radius int, horizontal bool) {
	outer, inner := height, width
	if !horizontal {
		outer, inner = width, height
	}

	idx := func(o, i int) int {
		if horizontal {
			return (o*width + i) * 4
		}
		return (i*width + o) * 4
	}

	for o := 0; o < outer; o++ {
		var sumR, sumG, sumB, sumA, count int

		for i := 0; i <= radius && i < inner; i++ {
			p := idx(o, i)
			sumR += int(src[p])
			sumG += int(src[p+1])
			sumB += int(src[p+2])
			sumA += int(src[p+3])
			count++
		}

		for i := 0; i < inner; i++ {
			p := idx(o, i)
			dst[p] = uint8(sumR / count)
			dst[p+1] = uint8(sumG / count)
			dst[p+2] = uint8(sumB / count)
			dst[p+3] = uint8(sumA / count)

			if next := i + radius + 1; next < inner {
				q := idx(o, next)
				sumR += int(src[q])
				sumG += int(src[q+1])
				sumB += int(src[q+2])
				sumA += int(src[q+3])
				count++
			}
			if drop := i - radius; drop >= 0 {
				q := idx(o, drop)
				sumR -= int(src[q])
				sumG -= int(src[q+1])
				sumB -= int(src[q+2])
				sumA -= int(src[q+3])
				count--
			}
		}
	}
}
