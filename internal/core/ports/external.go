package ports

import (
	"context"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

// BroadcastAPI is the externally-owned broadcast management service. The
// core calls it at fixed lifecycle points and never implements it.
type BroadcastAPI interface {
	CreateBroadcast(ctx context.Context, title string) (domain.BroadcastID, error)
	StartBroadcast(ctx context.Context, id domain.BroadcastID) error
	TransitionToLive(ctx context.Context, id domain.BroadcastID) error
	EndBroadcast(ctx context.Context, id domain.BroadcastID) error
}

// ParticipantHandler receives remote participant media from the
// signaling/transport layer. The core consumes the resulting streams and
// does not implement the negotiation protocol.
type ParticipantHandler interface {
	OnParticipantJoined(src domain.Source, stream *media.Stream)
	OnParticipantUpdated(src domain.Source)
	OnParticipantLeft(id domain.SourceID)
}
