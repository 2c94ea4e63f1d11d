package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"studiocast/internal/core/domain"
)

func TestDestinationRoundTrip(t *testing.T) {
	repo := NewMemoryDestinationRepository()
	ctx := context.Background()

	dest := &domain.Destination{
		ID:        "yt",
		Platform:  domain.PlatformYouTube,
		IngestURL: "rtmp://a.example.com/live",
		StreamKey: "key",
	}
	require.NoError(t, repo.Upsert(ctx, dest))

	got, err := repo.GetByID(ctx, "yt")
	require.NoError(t, err)
	assert.Equal(t, dest.IngestURL, got.IngestURL)

	// Stored copy is detached from the caller's struct.
	dest.StreamKey = "changed"
	got, err = repo.GetByID(ctx, "yt")
	require.NoError(t, err)
	assert.Equal(t, "key", got.StreamKey)

	require.NoError(t, repo.Remove(ctx, "yt"))
	_, err = repo.GetByID(ctx, "yt")
	assert.ErrorIs(t, err, domain.ErrDestinationNotFound)
}

func TestListIsSorted(t *testing.T) {
	repo := NewMemoryDestinationRepository()
	ctx := context.Background()

	for _, id := range []domain.DestinationID{"tw", "yt", "fb"} {
		require.NoError(t, repo.Upsert(ctx, &domain.Destination{ID: id}))
	}

	dests, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, dests, 3)
	assert.Equal(t, domain.DestinationID("fb"), dests[0].ID)
	assert.Equal(t, domain.DestinationID("yt"), dests[2].ID)
}

func TestCredentialsUnreadyUntilIssued(t *testing.T) {
	repo := NewMemoryDestinationRepository()
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, &domain.Destination{
		ID: "yt", Platform: domain.PlatformYouTube,
	}))

	_, err := repo.Credentials(ctx, "yt")
	assert.ErrorIs(t, err, domain.ErrCredentialsUnready)

	require.NoError(t, repo.Upsert(ctx, &domain.Destination{
		ID: "yt", Platform: domain.PlatformYouTube,
		IngestURL: "rtmp://a.example.com/live", StreamKey: "key",
	}))

	dest, err := repo.Credentials(ctx, "yt")
	require.NoError(t, err)
	assert.Equal(t, "key", dest.StreamKey)

	_, err = repo.Credentials(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDestinationNotFound)
}
