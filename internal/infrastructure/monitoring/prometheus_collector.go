package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"studiocast/internal/core/domain"
	"studiocast/pkg/events"
)

type PrometheusCollector struct {
	// Counters
	participantsConnected prometheus.Gauge
	framesRendered        prometheus.Counter
	framesDropped         prometheus.Counter
	failoversTotal        prometheus.Counter
	clipsCreated          prometheus.Counter
	broadcastsTotal       prometheus.Counter

	// Histograms
	frameRenderDuration prometheus.Histogram
	clipDuration        prometheus.Histogram

	// Destination metrics
	destinationState *prometheus.GaugeVec
	audioPeakLevel   *prometheus.GaugeVec
}

func NewPrometheusCollector() *PrometheusCollector {
	return &PrometheusCollector{
		participantsConnected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "studiocast_participants_connected",
			Help: "Number of participants currently connected to the session",
		}),

		framesRendered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studiocast_frames_rendered_total",
			Help: "Total number of composite frames rendered",
		}),

		framesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studiocast_frames_dropped_total",
			Help: "Total number of frames dropped by the render loop",
		}),

		failoversTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studiocast_failovers_total",
			Help: "Total number of destination failovers to a backup connection",
		}),

		clipsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studiocast_clips_created_total",
			Help: "Total number of clips extracted from the rolling buffer",
		}),

		broadcastsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "studiocast_broadcasts_total",
			Help: "Total number of broadcasts that went live",
		}),

		frameRenderDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "studiocast_frame_render_duration_seconds",
			Help:    "Duration of composite frame rendering",
			Buckets: []float64{0.001, 0.005, 0.01, 0.02, 0.033, 0.05, 0.1},
		}),

		clipDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "studiocast_clip_duration_seconds",
			Help:    "Requested duration of created clips",
			Buckets: []float64{5, 10, 15, 30, 60, 120},
		}),

		destinationState: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "studiocast_destination_state",
			Help: "Destination connection state (1 for the current state, 0 otherwise)",
		}, []string{"destination", "state"}),

		audioPeakLevel: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "studiocast_audio_peak_level",
			Help: "Per-channel audio peak level (0-1)",
		}, []string{"source"}),
	}
}

// Observe subscribes the collector to the session event bus so metrics
// update without the core knowing about monitoring.
func (p *PrometheusCollector) Observe(bus *events.Bus) {
	bus.Subscribe(events.EventSourceAdded, func(events.Event) {
		p.participantsConnected.Inc()
	})
	bus.Subscribe(events.EventSourceRemoved, func(events.Event) {
		p.participantsConnected.Dec()
	})
	bus.Subscribe(events.EventFailover, func(events.Event) {
		p.failoversTotal.Inc()
	})
	bus.Subscribe(events.EventClipCreated, func(e events.Event) {
		p.clipsCreated.Inc()
		if clip, ok := e.Payload.(*domain.Clip); ok {
			p.clipDuration.Observe(clip.Duration.Seconds())
		}
	})
	bus.Subscribe(events.EventBroadcastLive, func(events.Event) {
		p.broadcastsTotal.Inc()
	})
	bus.Subscribe(events.EventDestinationState, func(e events.Event) {
		state, ok := e.Payload.(domain.ConnectionState)
		if !ok {
			return
		}
		for _, s := range []domain.ConnectionState{
			domain.ConnIdle, domain.ConnConnecting, domain.ConnLive, domain.ConnError, domain.ConnEnded,
		} {
			val := 0.0
			if s == state {
				val = 1.0
			}
			p.destinationState.WithLabelValues(e.SourceID, string(s)).Set(val)
		}
	})
}

func (p *PrometheusCollector) RecordFrameRendered(duration time.Duration) {
	p.framesRendered.Inc()
	p.frameRenderDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordFramesDropped(n uint64) {
	p.framesDropped.Add(float64(n))
}

func (p *PrometheusCollector) UpdateAudioLevels(levels map[domain.SourceID]float64) {
	for id, peak := range levels {
		p.audioPeakLevel.WithLabelValues(string(id)).Set(peak)
	}
}

func (p *PrometheusCollector) RemoveAudioLevel(id domain.SourceID) {
	p.audioPeakLevel.DeleteLabelValues(string(id))
}
