// Package output transports the composite stream to external RTMP/WHIP
// destinations, tracking per-destination connection state, health and
// automatic failover to pre-established backups.
package output

import (
	"context"
	"time"

	"studiocast/internal/core/domain"
	"studiocast/internal/media"
)

// Sink carries encoded media to one endpoint. Implementations exist for
// RTMP publish and WHIP ingestion.
type Sink interface {
	Connect(ctx context.Context) error
	WriteSample(s *media.EncodedSample) error
	Close() error
}

// SinkFactory builds a sink for a destination. The manager uses it so
// tests and alternate transports can substitute their own sinks.
type SinkFactory func(dest domain.Destination) (Sink, error)

// DefaultSinkFactory routes whip destinations to the WHIP transport and
// everything else to RTMP publish. reportHealth receives transport health
// observations from WHIP sinks and may be nil. healthInterval controls how
// often WHIP sinks report bitrate and loss stats.
func DefaultSinkFactory(healthInterval time.Duration, reportHealth func(domain.DestinationID, HealthSample)) SinkFactory {
	return func(dest domain.Destination) (Sink, error) {
		if dest.Platform == domain.PlatformWHIP {
			var cb func(HealthSample)
			if reportHealth != nil {
				id := dest.ID
				cb = func(s HealthSample) { reportHealth(id, s) }
			}
			return NewWHIPSink(dest, healthInterval, cb), nil
		}
		return NewRTMPSink(dest)
	}
}
