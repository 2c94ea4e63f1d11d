package memory

import (
	"context"
	"sort"
	"sync"

	"studiocast/internal/core/domain"
	"studiocast/internal/core/ports"
)

type MemoryDestinationRepository struct {
	dests map[domain.DestinationID]*domain.Destination
	mu    sync.RWMutex
}

func NewMemoryDestinationRepository() ports.DestinationRepository {
	return &MemoryDestinationRepository{
		dests: make(map[domain.DestinationID]*domain.Destination),
	}
}

func (r *MemoryDestinationRepository) Upsert(ctx context.Context, dest *domain.Destination) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	copied := *dest
	r.dests[dest.ID] = &copied
	return nil
}

func (r *MemoryDestinationRepository) GetByID(ctx context.Context, id domain.DestinationID) (*domain.Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dest, exists := r.dests[id]
	if !exists {
		return nil, domain.ErrDestinationNotFound
	}

	copied := *dest
	return &copied, nil
}

func (r *MemoryDestinationRepository) List(ctx context.Context) ([]*domain.Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*domain.Destination, 0, len(r.dests))
	for _, dest := range r.dests {
		copied := *dest
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryDestinationRepository) Remove(ctx context.Context, id domain.DestinationID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.dests[id]; !exists {
		return domain.ErrDestinationNotFound
	}

	delete(r.dests, id)
	return nil
}

// Credentials reports the destination as unready until both the ingest
// URL and the stream key have been stored.
func (r *MemoryDestinationRepository) Credentials(ctx context.Context, id domain.DestinationID) (*domain.Destination, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	dest, exists := r.dests[id]
	if !exists {
		return nil, domain.ErrDestinationNotFound
	}
	if dest.IngestURL == "" || dest.StreamKey == "" {
		return nil, domain.ErrCredentialsUnready
	}

	copied := *dest
	return &copied, nil
}
