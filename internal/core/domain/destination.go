package domain

import (
	"time"
)

// Platform identifies the target streaming service of a destination.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformFacebook Platform = "facebook"
	PlatformTwitch   Platform = "twitch"
	PlatformCustom   Platform = "custom"
	PlatformWHIP     Platform = "whip"
)

// RequiresLiveTransition reports whether the platform uses a testing→live
// broadcast lifecycle: media flows first, viewers see it only after an
// explicit transition call.
func (p Platform) RequiresLiveTransition() bool {
	return p == PlatformYouTube
}

// Destination is one outbound path: platform, ingest URL and credentials.
type Destination struct {
	ID        DestinationID
	Platform  Platform
	IngestURL string
	StreamKey string
	CreatedAt time.Time
}

// ConnectionState is the lifecycle state of one destination connection.
type ConnectionState string

const (
	ConnIdle       ConnectionState = "idle"
	ConnConnecting ConnectionState = "connecting"
	ConnLive       ConnectionState = "live"
	ConnError      ConnectionState = "error"
	ConnEnded      ConnectionState = "ended"
)

// CanTransition reports whether moving from s to next is a legal step of
// the destination state machine. Error is retry-eligible back to
// connecting; ended is terminal.
func (s ConnectionState) CanTransition(next ConnectionState) bool {
	switch s {
	case ConnIdle:
		return next == ConnConnecting || next == ConnEnded
	case ConnConnecting:
		return next == ConnLive || next == ConnError || next == ConnEnded
	case ConnLive:
		return next == ConnError || next == ConnEnded
	case ConnError:
		return next == ConnConnecting || next == ConnEnded
	default:
		return false
	}
}

// FailoverReason labels why the output manager switched to a backup.
type FailoverReason string

const (
	FailoverICEFailed       FailoverReason = "ice_failed"
	FailoverICEDisconnected FailoverReason = "ice_disconnected"
	FailoverLowBitrate      FailoverReason = "low_bitrate"
	FailoverPacketLoss      FailoverReason = "packet_loss"
)

// StartResult partitions a concurrent start attempt across destinations.
// Partial success is an expected outcome.
type StartResult struct {
	Started []DestinationID
	Failed  map[DestinationID]error
}

// AllFailed reports whether no destination reached live.
func (r *StartResult) AllFailed() bool {
	return len(r.Started) == 0 && len(r.Failed) > 0
}
