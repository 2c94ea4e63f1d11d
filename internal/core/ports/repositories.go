package ports

import (
	"context"

	"studiocast/internal/core/domain"
)

// DestinationRepository is the externally-owned destination credentials
// store. Credentials may become available only after broadcast start;
// callers poll with backoff and treat domain.ErrCredentialsUnready as
// transient.
type DestinationRepository interface {
	Upsert(ctx context.Context, dest *domain.Destination) error
	GetByID(ctx context.Context, id domain.DestinationID) (*domain.Destination, error)
	List(ctx context.Context) ([]*domain.Destination, error)
	Remove(ctx context.Context, id domain.DestinationID) error

	// Credentials returns the destination with its ingest URL and stream
	// key populated, or domain.ErrCredentialsUnready while the platform
	// has not issued them yet.
	Credentials(ctx context.Context, id domain.DestinationID) (*domain.Destination, error)
}
