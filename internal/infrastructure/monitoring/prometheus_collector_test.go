package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"studiocast/internal/core/domain"
	"studiocast/pkg/events"
)

// One collector for the whole test binary: promauto registers metrics in
// the default registry and duplicate registration panics.
func TestCollectorTracksBusEvents(t *testing.T) {
	c := NewPrometheusCollector()
	bus := events.NewBus()
	c.Observe(bus)

	bus.Emit(events.EventSourceAdded, "host", nil)
	bus.Emit(events.EventSourceAdded, "guest", nil)
	bus.Emit(events.EventSourceRemoved, "guest", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.participantsConnected))

	bus.Emit(events.EventFailover, "yt", domain.FailoverLowBitrate)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.failoversTotal))

	bus.Emit(events.EventClipCreated, "", &domain.Clip{Duration: 10 * time.Second})
	assert.Equal(t, 1.0, testutil.ToFloat64(c.clipsCreated))

	bus.Emit(events.EventBroadcastLive, "bc-1", nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.broadcastsTotal))

	bus.Emit(events.EventDestinationState, "yt", domain.ConnLive)
	assert.Equal(t, 1.0,
		testutil.ToFloat64(c.destinationState.WithLabelValues("yt", "live")))
	assert.Equal(t, 0.0,
		testutil.ToFloat64(c.destinationState.WithLabelValues("yt", "error")))

	c.RecordFrameRendered(5 * time.Millisecond)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.framesRendered))

	c.UpdateAudioLevels(map[domain.SourceID]float64{"host": 0.5})
	assert.Equal(t, 0.5,
		testutil.ToFloat64(c.audioPeakLevel.WithLabelValues("host")))
}
