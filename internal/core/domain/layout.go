package domain

// LayoutID selects a layout family for the compositor.
type LayoutID int

const (
	LayoutSolo LayoutID = iota
	LayoutGroup
	LayoutSpotlight
	LayoutSidebar
	LayoutNews
	LayoutScreen
	LayoutCinema
	LayoutPiP
)

func (l LayoutID) String() string {
	switch l {
	case LayoutSolo:
		return "solo"
	case LayoutGroup:
		return "group"
	case LayoutSpotlight:
		return "spotlight"
	case LayoutSidebar:
		return "sidebar"
	case LayoutNews:
		return "news"
	case LayoutScreen:
		return "screen"
	case LayoutCinema:
		return "cinema"
	case LayoutPiP:
		return "pip"
	default:
		return "unknown"
	}
}

// Valid reports whether l names a known layout family.
func (l LayoutID) Valid() bool {
	return l >= LayoutSolo && l <= LayoutPiP
}

// ParseLayoutID resolves a layout family by its wire name, the inverse of
// String. Unknown names yield ErrInvalidLayout.
func ParseLayoutID(name string) (LayoutID, error) {
	for id := LayoutSolo; id <= LayoutPiP; id++ {
		if id.String() == name {
			return id, nil
		}
	}
	return LayoutSolo, ErrInvalidLayout
}

// TileShape is the clip shape of a positioned tile.
type TileShape string

const (
	ShapeRect   TileShape = "rect"
	ShapeCircle TileShape = "circle"
)

// Assignment positions one visible source on the canvas. Z is unique per
// layout result; higher Z draws on top.
type Assignment struct {
	SourceID SourceID
	X        int
	Y        int
	Width    int
	Height   int
	Shape    TileShape
	Z        int
}
