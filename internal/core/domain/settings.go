package domain

// CanvasSettings are the externally-owned per-session visual settings,
// supplied at initialization and whenever changed. Changing resolution or
// frame rate re-creates the composite output; other fields apply on the
// next frame.
type CanvasSettings struct {
	Width           int
	Height          int
	FrameRate       int
	BackgroundColor string // #RRGGBB
	BackgroundImage string // optional URL
	ShowBadges      bool
}

// FeatureToggles are externally-owned feature switches the core consumes.
type FeatureToggles struct {
	CaptionsLanguage  string
	BackgroundRemoval bool
}
