package output

import (
	"sync"

	"studiocast/internal/core/domain"
)

// HealthSample is one observation of a destination connection, fed from
// transport stats (ICE state changes, RTCP receiver reports, byte counts).
type HealthSample struct {
	ICEFailed       bool
	ICEDisconnected bool
	BitrateKbps     int
	PacketLossPct   float64
}

// HealthThresholds configure degradation detection. Sustained low bitrate
// or packet loss requires consecutive bad samples before triggering, so a
// single noisy report does not flap the output.
type HealthThresholds struct {
	MinBitrateKbps   int
	MaxPacketLossPct float64
	SustainedSamples int
}

// healthMonitor turns raw samples into failover decisions.
type healthMonitor struct {
	thresholds HealthThresholds
	trigger    func(id domain.DestinationID, reason domain.FailoverReason)

	mu       sync.Mutex
	lowCount map[domain.DestinationID]int
	lossCnt  map[domain.DestinationID]int
}

func newHealthMonitor(t HealthThresholds, trigger func(domain.DestinationID, domain.FailoverReason)) *healthMonitor {
	if t.SustainedSamples <= 0 {
		t.SustainedSamples = 3
	}
	return &healthMonitor{
		thresholds: t,
		trigger:    trigger,
		lowCount:   make(map[domain.DestinationID]int),
		lossCnt:    make(map[domain.DestinationID]int),
	}
}

// Observe records one sample. ICE failures trigger immediately; bitrate
// and loss must persist across SustainedSamples observations.
func (m *healthMonitor) Observe(id domain.DestinationID, s HealthSample) {
	if s.ICEFailed {
		m.reset(id)
		m.trigger(id, domain.FailoverICEFailed)
		return
	}
	if s.ICEDisconnected {
		m.reset(id)
		m.trigger(id, domain.FailoverICEDisconnected)
		return
	}

	m.mu.Lock()
	if m.thresholds.MinBitrateKbps > 0 && s.BitrateKbps < m.thresholds.MinBitrateKbps {
		m.lowCount[id]++
	} else {
		m.lowCount[id] = 0
	}
	if m.thresholds.MaxPacketLossPct > 0 && s.PacketLossPct > m.thresholds.MaxPacketLossPct {
		m.lossCnt[id]++
	} else {
		m.lossCnt[id] = 0
	}
	lowBitrate := m.lowCount[id] >= m.thresholds.SustainedSamples
	highLoss := m.lossCnt[id] >= m.thresholds.SustainedSamples
	m.mu.Unlock()

	if lowBitrate {
		m.reset(id)
		m.trigger(id, domain.FailoverLowBitrate)
		return
	}
	if highLoss {
		m.reset(id)
		m.trigger(id, domain.FailoverPacketLoss)
	}
}

func (m *healthMonitor) reset(id domain.DestinationID) {
	m.mu.Lock()
	delete(m.lowCount, id)
	delete(m.lossCnt, id)
	m.mu.Unlock()
}
