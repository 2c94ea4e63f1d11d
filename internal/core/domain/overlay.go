package domain

import (
	"time"
)

// OverlayCategory identifies a drawable overlay slot. At most one overlay
// per category is active; draw priority follows the declared order, later
// categories painting on top.
type OverlayCategory int

const (
	OverlayLowerThird OverlayCategory = iota
	OverlayChat
	OverlayCaptions
	OverlayCountdown
	OverlayIntro
	OverlayClip
)

func (c OverlayCategory) String() string {
	switch c {
	case OverlayLowerThird:
		return "lower-third"
	case OverlayChat:
		return "chat"
	case OverlayCaptions:
		return "captions"
	case OverlayCountdown:
		return "countdown"
	case OverlayIntro:
		return "intro"
	case OverlayClip:
		return "clip"
	default:
		return "unknown"
	}
}

// OverlayCategories lists all categories in draw-priority order.
var OverlayCategories = []OverlayCategory{
	OverlayLowerThird,
	OverlayChat,
	OverlayCaptions,
	OverlayCountdown,
	OverlayIntro,
	OverlayClip,
}

// Overlay is transient drawable content with a display window. A zero
// Duration means the overlay stays until explicitly cleared.
type Overlay struct {
	Category  OverlayCategory
	StartedAt time.Time
	Duration  time.Duration
	Text      string   // lower-thirds, captions, countdown digits
	Lines     []string // chat messages
	SourceID  SourceID // intro/clip overlays backed by a media source
}

// Expired reports whether the overlay's display window has elapsed.
func (o *Overlay) Expired(now time.Time) bool {
	if o.Duration <= 0 {
		return false
	}
	return now.Sub(o.StartedAt) >= o.Duration
}

// ChatMessage is one message fed to the chat overlay.
type ChatMessage struct {
	Author string
	Text   string
	At     time.Time
}
