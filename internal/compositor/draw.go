package compositor

import (
	"image"
	"image/color"
	"strconv"
	"strings"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

// parseHexColor decodes "#RRGGBB"; malformed input yields opaque black.
func parseHexColor(s string) color.RGBA {
	out := color.RGBA{A: 255}
	s = strings.TrimPrefix(s, "#")
	if len(s) != 6 {
		return out
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return out
	}
	out.R = uint8(v >> 16)
	out.G = uint8(v >> 8)
	out.B = uint8(v)
	return out
}

func fillRect(dst *image.RGBA, r image.Rectangle, c color.RGBA) {
	xdraw.Draw(dst, r, &image.Uniform{C: c}, image.Point{}, xdraw.Src)
}

// cropToAspect returns the centered sub-rectangle of src matching the
// destination aspect ratio, so tiles fill their slot without distortion.
func cropToAspect(src image.Rectangle, dstW, dstH int) image.Rectangle {
	srcW, srcH := src.Dx(), src.Dy()
	if srcW == 0 || srcH == 0 || dstW == 0 || dstH == 0 {
		return src
	}

	if srcW*dstH > dstW*srcH {
		// Source wider than the slot: trim left/right.
		w := dstW * srcH / dstH
		x := src.Min.X + (srcW-w)/2
		return image.Rect(x, src.Min.Y, x+w, src.Max.Y)
	}
	// Source taller: trim top/bottom.
	h := dstH * srcW / dstW
	y := src.Min.Y + (srcH-h)/2
	return image.Rect(src.Min.X, y, src.Max.X, y+h)
}

// drawTile scales a source frame into its assigned rectangle, cropping to
// the slot's aspect ratio and honoring the circle shape.
func drawTile(dst *image.RGBA, frame *media.VideoFrame, a domain.Assignment) {
	rect := image.Rect(a.X, a.Y, a.X+a.Width, a.Y+a.Height)
	src := frame.RGBA()
	crop := cropToAspect(src.Bounds(), a.Width, a.Height)

	if a.Shape != domain.ShapeCircle {
		xdraw.ApproxBiLinear.Scale(dst, rect, src, crop, xdraw.Over, nil)
		return
	}

	// Scale into a scratch tile, then copy only pixels inside the circle.
	tile := image.NewRGBA(image.Rect(0, 0, a.Width, a.Height))
	xdraw.ApproxBiLinear.Scale(tile, tile.Bounds(), src, crop, xdraw.Src, nil)

	cx := float64(a.Width) / 2
	cy := float64(a.Height) / 2
	radius := cx
	if cy < radius {
		radius = cy
	}
	r2 := radius * radius

	for y := 0; y < a.Height; y++ {
		for x := 0; x < a.Width; x++ {
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			if dx*dx+dy*dy > r2 {
				continue
			}
			dst.SetRGBA(a.X+x, a.Y+y, tile.RGBAAt(x, y))
		}
	}
}

// drawFrameFull paints a frame over the whole canvas, letterboxed to
// preserve aspect.
func drawFrameFull(dst *image.RGBA, frame *media.VideoFrame) {
	b := dst.Bounds()
	src := frame.RGBA()
	crop := cropToAspect(src.Bounds(), b.Dx(), b.Dy())
	xdraw.ApproxBiLinear.Scale(dst, b, src, crop, xdraw.Over, nil)
}

var textFace = basicfont.Face7x13

// drawText renders a single line at (x, y) with y as the text baseline.
func drawText(dst *image.RGBA, x, y int, text string, c color.RGBA) {
	d := font.Drawer{
		Dst:  dst,
		Src:  &image.Uniform{C: c},
		Face: textFace,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(text)
}

func textWidth(text string) int {
	return font.MeasureString(textFace, text).Ceil()
}

// drawTextCentered renders text horizontally centered at baseline y.
func drawTextCentered(dst *image.RGBA, y int, text string, c color.RGBA) {
	b := dst.Bounds()
	drawText(dst, b.Min.X+(b.Dx()-textWidth(text))/2, y, text, c)
}

var (
	colorWhite  = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	colorBanner = color.RGBA{R: 16, G: 16, B: 24, A: 215}
	colorBadge  = color.RGBA{R: 255, G: 200, B: 0, A: 255}
)

// drawBanner fills a translucent bar and writes text on it, the shared
// look for lower thirds and captions.
func drawBanner(dst *image.RGBA, y, height int, text string, centered bool) {
	b := dst.Bounds()
	bar := image.Rect(b.Min.X, y, b.Max.X, y+height)
	xdraw.DrawMask(dst, bar, &image.Uniform{C: colorBanner}, image.Point{}, nil, image.Point{}, xdraw.Over)

	baseline := y + height/2 + textFace.Height/2 - 2
	if centered {
		drawTextCentered(dst, baseline, text, colorWhite)
	} else {
		drawText(dst, b.Min.X+16, baseline, text, colorWhite)
	}
}
