package ports

import (
	"context"
	"time"

	"studiocast/internal/core/domain"
)

// GoLiveOptions parameterize the go-live sequence.
type GoLiveOptions struct {
	Title            string
	CountdownSeconds int
	IntroSourceID    domain.SourceID // optional intro video source
	Destinations     []domain.DestinationID
}

// StudioStatus is a point-in-time snapshot for control surfaces.
type StudioStatus struct {
	Live             bool
	BroadcastID      domain.BroadcastID
	LayoutID         domain.LayoutID
	SourceCount      int
	ActiveDests      []domain.DestinationID
	DroppedFrames    uint64
	FailoverCount    uint64
	RecordingActive  bool
	ClipBufferedSecs float64
	Uptime           time.Duration
}

// StudioService is the application facade consumed by the control API.
type StudioService interface {
	AddDestination(ctx context.Context, dest *domain.Destination) error
	RemoveDestination(ctx context.Context, id domain.DestinationID) error
	ListDestinations(ctx context.Context) ([]*domain.Destination, error)

	SetLayout(ctx context.Context, id domain.LayoutID) error
	GoLive(ctx context.Context, opts GoLiveOptions) (*domain.StartResult, error)
	EndBroadcast(ctx context.Context) error

	ShowClipOverlay(ctx context.Context, id domain.SourceID) error
	ClearClipOverlay(ctx context.Context) error

	CreateClip(ctx context.Context, duration time.Duration) (*domain.Clip, error)
	StartRecording(ctx context.Context) error

	Status(ctx context.Context) (*StudioStatus, error)
}
