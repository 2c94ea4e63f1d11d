package audio

import (
	"math"
)

// biquad is a direct-form-I second-order IIR filter using the RBJ cookbook
// coefficients. One instance filters one channel; state is not shareable.
type biquad struct {
	b0, b1, b2, a1, a2 float64
	x1, x2, y1, y2     float64
}

const filterQ = math.Sqrt2 / 2 // Butterworth

func newHighpass(sampleRate, cutoffHz float64) *biquad {
	f := &biquad{}
	f.configureHighpass(sampleRate, cutoffHz)
	return f
}

func newLowpass(sampleRate, cutoffHz float64) *biquad {
	f := &biquad{}
	f.configureLowpass(sampleRate, cutoffHz)
	return f
}

func (f *biquad) configureHighpass(sampleRate, cutoffHz float64) {
	w0 := 2 * math.Pi * cutoffHz / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * filterQ)
	a0 := 1 + alpha

	f.b0 = (1 + cosW0) / 2 / a0
	f.b1 = -(1 + cosW0) / a0
	f.b2 = (1 + cosW0) / 2 / a0
	f.a1 = -2 * cosW0 / a0
	f.a2 = (1 - alpha) / a0
}

func (f *biquad) configureLowpass(sampleRate, cutoffHz float64) {
	w0 := 2 * math.Pi * cutoffHz / sampleRate
	cosW0 := math.Cos(w0)
	alpha := math.Sin(w0) / (2 * filterQ)
	a0 := 1 + alpha

	f.b0 = (1 - cosW0) / 2 / a0
	f.b1 = (1 - cosW0) / a0
	f.b2 = (1 - cosW0) / 2 / a0
	f.a1 = -2 * cosW0 / a0
	f.a2 = (1 - alpha) / a0
}

func (f *biquad) process(x float64) float64 {
	y := f.b0*x + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, x
	f.y2, f.y1 = f.y1, y
	return y
}

// compressor applies downward compression above a threshold with a smoothed
// envelope follower, so parameter changes and level spikes do not click.
type compressor struct {
	thresholdDB float64
	ratio       float64
	attack      float64 // envelope smoothing coefficients
	release     float64
	envelope    float64
}

func newCompressor(sampleRate, thresholdDB, ratio float64) *compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &compressor{
		thresholdDB: thresholdDB,
		ratio:       ratio,
		attack:      math.Exp(-1 / (0.005 * sampleRate)), // 5ms
		release:     math.Exp(-1 / (0.050 * sampleRate)), // 50ms
	}
}

func (c *compressor) process(x float64) float64 {
	level := math.Abs(x)
	if level > c.envelope {
		c.envelope = c.attack*c.envelope + (1-c.attack)*level
	} else {
		c.envelope = c.release*c.envelope + (1-c.release)*level
	}

	if c.envelope < 1e-6 {
		return x
	}

	envDB := 20 * math.Log10(c.envelope)
	over := envDB - c.thresholdDB
	if over <= 0 {
		return x
	}

	reductionDB := over - over/c.ratio
	return x * math.Pow(10, -reductionDB/20)
}
