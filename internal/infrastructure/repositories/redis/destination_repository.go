package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"

	"studiocast/internal/core/domain"
	"studiocast/internal/core/ports"
)

type RedisDestinationRepository struct {
	client *redis.Client
	prefix string
}

func NewRedisDestinationRepository(client *redis.Client) ports.DestinationRepository {
	return &RedisDestinationRepository{
		client: client,
		prefix: "studiocast:destination:",
	}
}

func (r *RedisDestinationRepository) destKey(id domain.DestinationID) string {
	return r.prefix + string(id)
}

func (r *RedisDestinationRepository) idsKey() string {
	return r.prefix + "ids"
}

func (r *RedisDestinationRepository) Upsert(ctx context.Context, dest *domain.Destination) error {
	data, err := json.Marshal(dest)
	if err != nil {
		return fmt.Errorf("failed to marshal destination: %w", err)
	}

	if err := r.client.Set(ctx, r.destKey(dest.ID), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to set destination in Redis: %w", err)
	}
	if err := r.client.SAdd(ctx, r.idsKey(), string(dest.ID)).Err(); err != nil {
		return fmt.Errorf("failed to index destination: %w", err)
	}
	return nil
}

func (r *RedisDestinationRepository) GetByID(ctx context.Context, id domain.DestinationID) (*domain.Destination, error) {
	data, err := r.client.Get(ctx, r.destKey(id)).Result()
	if err == redis.Nil {
		return nil, domain.ErrDestinationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get destination from Redis: %w", err)
	}

	var dest domain.Destination
	if err := json.Unmarshal([]byte(data), &dest); err != nil {
		return nil, fmt.Errorf("failed to unmarshal destination: %w", err)
	}
	return &dest, nil
}

func (r *RedisDestinationRepository) List(ctx context.Context) ([]*domain.Destination, error) {
	ids, err := r.client.SMembers(ctx, r.idsKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list destinations from Redis: %w", err)
	}

	out := make([]*domain.Destination, 0, len(ids))
	for _, id := range ids {
		dest, err := r.GetByID(ctx, domain.DestinationID(id))
		if err != nil {
			// Skip destinations that no longer exist
			continue
		}
		out = append(out, dest)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *RedisDestinationRepository) Remove(ctx context.Context, id domain.DestinationID) error {
	removed, err := r.client.SRem(ctx, r.idsKey(), string(id)).Result()
	if err != nil {
		return fmt.Errorf("failed to deindex destination: %w", err)
	}
	if removed == 0 {
		return domain.ErrDestinationNotFound
	}
	if err := r.client.Del(ctx, r.destKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete destination from Redis: %w", err)
	}
	return nil
}

// Credentials reports the destination as unready until both the ingest
// URL and the stream key have been stored.
func (r *RedisDestinationRepository) Credentials(ctx context.Context, id domain.DestinationID) (*domain.Destination, error) {
	dest, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if dest.IngestURL == "" || dest.StreamKey == "" {
		return nil, domain.ErrCredentialsUnready
	}
	return dest, nil
}
