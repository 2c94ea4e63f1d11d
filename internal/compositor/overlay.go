package compositor

import (
	"time"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

// overlayEntry pairs an overlay with the media stream backing it, for the
// intro and clip categories. Text overlays carry a nil stream.
type overlayEntry struct {
	overlay domain.Overlay
	stream  *media.Stream
}

// overlaySet holds at most one overlay per category. Setting a category
// that is already occupied retires the previous entry.
type overlaySet struct {
	slots map[domain.OverlayCategory]*overlayEntry
}

func newOverlaySet() *overlaySet {
	return &overlaySet{slots: make(map[domain.OverlayCategory]*overlayEntry)}
}

func (s *overlaySet) set(e *overlayEntry) {
	s.slots[e.overlay.Category] = e
}

func (s *overlaySet) clear(c domain.OverlayCategory) {
	delete(s.slots, c)
}

func (s *overlaySet) get(c domain.OverlayCategory) *overlayEntry {
	return s.slots[c]
}

// active prunes expired overlays and returns the survivors in draw-priority
// order.
func (s *overlaySet) active(now time.Time) []*overlayEntry {
	out := make([]*overlayEntry, 0, len(s.slots))
	for _, c := range domain.OverlayCategories {
		e, ok := s.slots[c]
		if !ok {
			continue
		}
		if e.overlay.Expired(now) {
			delete(s.slots, c)
			continue
		}
		out = append(out, e)
	}
	return out
}
