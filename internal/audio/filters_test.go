package audio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func sine(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func peakAfterSettle(samples []float64) float64 {
	peak := 0.0
	for _, v := range samples[len(samples)/2:] {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	return peak
}

func TestHighpassPassesHighBlocksLow(t *testing.T) {
	const rate = 48000.0

	low := newHighpass(rate, 1000)
	lowIn := sine(50, rate, 9600)
	for i, v := range lowIn {
		lowIn[i] = low.process(v)
	}
	assert.Less(t, peakAfterSettle(lowIn), 0.05)

	high := newHighpass(rate, 1000)
	highIn := sine(8000, rate, 9600)
	for i, v := range highIn {
		highIn[i] = high.process(v)
	}
	assert.Greater(t, peakAfterSettle(highIn), 0.9)
}

func TestLowpassPassesLowBlocksHigh(t *testing.T) {
	const rate = 48000.0

	low := newLowpass(rate, 1000)
	lowIn := sine(50, rate, 9600)
	for i, v := range lowIn {
		lowIn[i] = low.process(v)
	}
	assert.Greater(t, peakAfterSettle(lowIn), 0.9)

	high := newLowpass(rate, 1000)
	highIn := sine(12000, rate, 9600)
	for i, v := range highIn {
		highIn[i] = high.process(v)
	}
	assert.Less(t, peakAfterSettle(highIn), 0.05)
}

func TestCompressorReducesLoudSignal(t *testing.T) {
	const rate = 48000.0
	c := newCompressor(rate, -20, 4)

	in := sine(440, rate, 9600)
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = c.process(v)
	}

	// A 0 dBFS sine is 20 dB over threshold; at 4:1 the output settles
	// around -15 dB of reduction.
	assert.Less(t, peakAfterSettle(out), 0.5)
	assert.Greater(t, peakAfterSettle(out), 0.05)
}

func TestCompressorLeavesQuietSignalAlone(t *testing.T) {
	const rate = 48000.0
	c := newCompressor(rate, -20, 4)

	for i := 0; i < 9600; i++ {
		in := 0.01 * math.Sin(2*math.Pi*440*float64(i)/rate)
		out := c.process(in)
		assert.InDelta(t, in, out, 1e-9)
	}
}

func TestCompressorClampsRatio(t *testing.T) {
	c := newCompressor(48000, -20, 0.5)
	assert.Equal(t, 1.0, c.ratio)
}
