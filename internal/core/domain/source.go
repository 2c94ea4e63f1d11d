package domain

import (
	"time"
)

type SourceID string
type SessionID string
type BroadcastID string
type DestinationID string

// SourceRole determines how a source participates in composition.
type SourceRole string

const (
	RoleHost        SourceRole = "host"
	RoleGuest       SourceRole = "guest"
	RoleBackstage   SourceRole = "backstage"
	RoleScreenShare SourceRole = "screen-share"
	RoleClipOverlay SourceRole = "clip-overlay"
)

// Composable reports whether sources with this role are drawn and mixed.
// Backstage participants stay connected but never reach the output.
func (r SourceRole) Composable() bool {
	switch r {
	case RoleHost, RoleGuest, RoleScreenShare:
		return true
	default:
		return false
	}
}

// Source is one named, ordered media input to the compositor.
type Source struct {
	ID           SourceID
	Name         string
	Role         SourceRole
	Local        bool
	AudioEnabled bool
	VideoEnabled bool
	JoinedAt     time.Time
}

// Visible reports whether the source should receive a layout rectangle.
func (s *Source) Visible() bool {
	return s.Role.Composable() && s.VideoEnabled
}

// Audible reports whether the source contributes to the mix.
func (s *Source) Audible() bool {
	return s.Role.Composable() && s.AudioEnabled
}
