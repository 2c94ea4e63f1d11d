// Package layout maps an ordered source set and a layout family to
// screen-space tiles. ComputeLayout is pure: identical inputs always yield
// identical assignments, with ties broken by source order.
package layout

import (
	"math"

	"studiocast/internal/core/domain"
)

const (
	tileGap      = 8
	thumbHeight  = 120
	sidebarRatio = 0.75
	featureRatio = 0.70
)

// ComputeLayout positions every visible source on a width×height canvas for
// the given layout family. Backstage and video-disabled sources receive no
// assignment. Each returned assignment carries a distinct z-index; later
// entries draw on top.
func ComputeLayout(sources []domain.Source, id domain.LayoutID, width, height int) ([]domain.Assignment, error) {
	if !id.Valid() {
		return nil, domain.ErrInvalidLayout
	}

	visible := make([]domain.Source, 0, len(sources))
	for _, s := range sources {
		if s.Visible() {
			visible = append(visible, s)
		}
	}
	if len(visible) == 0 {
		return []domain.Assignment{}, nil
	}

	switch id {
	case domain.LayoutSolo:
		return soloLayout(visible, width, height), nil
	case domain.LayoutGroup:
		return gridLayout(visible, width, height), nil
	case domain.LayoutSpotlight:
		return spotlightLayout(visible, width, height), nil
	case domain.LayoutSidebar:
		return sidebarLayout(visible, width, height, domain.ShapeRect), nil
	case domain.LayoutNews:
		return newsLayout(visible, width, height), nil
	case domain.LayoutScreen:
		return screenLayout(visible, width, height), nil
	case domain.LayoutCinema:
		return cinemaLayout(visible, width, height), nil
	case domain.LayoutPiP:
		return pipLayout(visible, width, height), nil
	}
	return nil, domain.ErrInvalidLayout
}

// soloLayout features the first source full-canvas; the rest stack as
// thumbnails along the bottom-right so every visible source keeps a tile.
func soloLayout(visible []domain.Source, width, height int) []domain.Assignment {
	out := []domain.Assignment{{
		SourceID: visible[0].ID,
		X:        0, Y: 0, Width: width, Height: height,
		Shape: domain.ShapeRect, Z: 0,
	}}
	return appendThumbRow(out, visible[1:], width, height)
}

// gridLayout tiles all sources in a centered near-square grid.
func gridLayout(visible []domain.Source, width, height int) []domain.Assignment {
	n := len(visible)
	cols := int(math.Ceil(math.Sqrt(float64(n))))
	rows := (n + cols - 1) / cols

	cellW := (width - (cols+1)*tileGap) / cols
	cellH := (height - (rows+1)*tileGap) / rows

	out := make([]domain.Assignment, 0, n)
	for i, s := range visible {
		row := i / cols
		col := i % cols

		// Center a short last row.
		inRow := cols
		if row == rows-1 {
			inRow = n - row*cols
		}
		rowWidth := inRow*cellW + (inRow+1)*tileGap
		offsetX := (width - rowWidth) / 2

		out = append(out, domain.Assignment{
			SourceID: s.ID,
			X:        offsetX + tileGap + col*(cellW+tileGap),
			Y:        tileGap + row*(cellH+tileGap),
			Width:    cellW,
			Height:   cellH,
			Shape:    domain.ShapeRect,
			Z:        i,
		})
	}
	return out
}

// spotlightLayout gives the first source the upper portion of the canvas and
// lines the rest up underneath.
func spotlightLayout(visible []domain.Source, width, height int) []domain.Assignment {
	featureH := int(float64(height) * featureRatio)
	out := []domain.Assignment{{
		SourceID: visible[0].ID,
		X:        0, Y: 0, Width: width, Height: featureH,
		Shape: domain.ShapeRect, Z: 0,
	}}

	rest := visible[1:]
	if len(rest) == 0 {
		out[0].Height = height
		return out
	}

	stripY := featureH + tileGap
	stripH := height - stripY - tileGap
	cellW := (width - (len(rest)+1)*tileGap) / len(rest)
	for i, s := range rest {
		out = append(out, domain.Assignment{
			SourceID: s.ID,
			X:        tileGap + i*(cellW+tileGap),
			Y:        stripY,
			Width:    cellW,
			Height:   stripH,
			Shape:    domain.ShapeRect,
			Z:        i + 1,
		})
	}
	return out
}

// sidebarLayout places the first source large on the left with the rest
// stacked in a right-hand column.
func sidebarLayout(visible []domain.Source, width, height int, shape domain.TileShape) []domain.Assignment {
	mainW := int(float64(width) * sidebarRatio)
	out := []domain.Assignment{{
		SourceID: visible[0].ID,
		X:        0, Y: 0, Width: mainW, Height: height,
		Shape: domain.ShapeRect, Z: 0,
	}}

	rest := visible[1:]
	if len(rest) == 0 {
		out[0].Width = width
		return out
	}

	colX := mainW + tileGap
	colW := width - colX - tileGap
	cellH := (height - (len(rest)+1)*tileGap) / len(rest)
	for i, s := range rest {
		out = append(out, domain.Assignment{
			SourceID: s.ID,
			X:        colX,
			Y:        tileGap + i*(cellH+tileGap),
			Width:    colW,
			Height:   cellH,
			Shape:    shape,
			Z:        i + 1,
		})
	}
	return out
}

// newsLayout pairs the first two sources side by side above a banner margin,
// with any extra sources as thumbnails.
func newsLayout(visible []domain.Source, width, height int) []domain.Assignment {
	bannerH := height / 5
	mainH := height - bannerH - 2*tileGap

	anchors := visible
	if len(anchors) > 2 {
		anchors = visible[:2]
	}
	cellW := (width - (len(anchors)+1)*tileGap) / len(anchors)

	out := make([]domain.Assignment, 0, len(visible))
	for i, s := range anchors {
		out = append(out, domain.Assignment{
			SourceID: s.ID,
			X:        tileGap + i*(cellW+tileGap),
			Y:        tileGap,
			Width:    cellW,
			Height:   mainH,
			Shape:    domain.ShapeRect,
			Z:        i,
		})
	}
	if len(visible) > 2 {
		out = appendThumbRow(out, visible[2:], width, height)
	}
	return out
}

// screenLayout devotes the canvas to the first screen-share source and draws
// camera sources as circles down the right edge. Without a screen share it
// behaves like sidebar with circular tiles.
func screenLayout(visible []domain.Source, width, height int) []domain.Assignment {
	main := 0
	for i, s := range visible {
		if s.Role == domain.RoleScreenShare {
			main = i
			break
		}
	}
	ordered := make([]domain.Source, 0, len(visible))
	ordered = append(ordered, visible[main])
	for i, s := range visible {
		if i != main {
			ordered = append(ordered, s)
		}
	}
	return sidebarLayout(ordered, width, height, domain.ShapeCircle)
}

// cinemaLayout letterboxes the first source full-width at 16:9 and hides the
// rest in a thumbnail row.
func cinemaLayout(visible []domain.Source, width, height int) []domain.Assignment {
	frameH := width * 9 / 16
	if frameH > height {
		frameH = height
	}
	out := []domain.Assignment{{
		SourceID: visible[0].ID,
		X:        0, Y: (height - frameH) / 2, Width: width, Height: frameH,
		Shape: domain.ShapeRect, Z: 0,
	}}
	return appendThumbRow(out, visible[1:], width, height)
}

// pipLayout draws the first source full-canvas with the rest stacked as
// small inserts in the bottom-right corner.
func pipLayout(visible []domain.Source, width, height int) []domain.Assignment {
	out := []domain.Assignment{{
		SourceID: visible[0].ID,
		X:        0, Y: 0, Width: width, Height: height,
		Shape: domain.ShapeRect, Z: 0,
	}}

	insetW := width / 4
	insetH := insetW * 9 / 16
	perCol := (height - tileGap) / (insetH + tileGap)
	if perCol < 1 {
		perCol = 1
	}
	for i, s := range visible[1:] {
		col := i / perCol
		row := i % perCol
		out = append(out, domain.Assignment{
			SourceID: s.ID,
			X:        width - (col+1)*(insetW+tileGap),
			Y:        height - (row+1)*(insetH+tileGap),
			Width:    insetW,
			Height:   insetH,
			Shape:    domain.ShapeRect,
			Z:        i + 1,
		})
	}
	return out
}

// appendThumbRow tiles sources as a small bottom-right row, continuing the
// z-order after the assignments already in out.
func appendThumbRow(out []domain.Assignment, rest []domain.Source, width, height int) []domain.Assignment {
	thumbW := thumbHeight * 16 / 9
	base := len(out)
	for i, s := range rest {
		out = append(out, domain.Assignment{
			SourceID: s.ID,
			X:        width - (i+1)*(thumbW+tileGap),
			Y:        height - thumbHeight - tileGap,
			Width:    thumbW,
			Height:   thumbHeight,
			Shape:    domain.ShapeRect,
			Z:        base + i,
		})
	}
	return out
}
