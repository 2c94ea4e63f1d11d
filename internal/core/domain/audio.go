package domain

// FilterParam configures one filter stage of a mixer channel.
// Enabled=false removes the stage.
type FilterParam struct {
	CutoffHz float64
	Enabled  bool
}

// CompressorParam configures the compressor stage of a mixer channel.
type CompressorParam struct {
	ThresholdDB float64 // level above which gain reduction applies, e.g. -24
	Ratio       float64 // compression ratio, e.g. 4 means 4:1
	Enabled     bool
}

// AudioEffects is a partial update of a channel's effect chain. A nil field
// leaves that stage unchanged; a non-nil field with Enabled=false removes it.
type AudioEffects struct {
	Highpass   *FilterParam
	Lowpass    *FilterParam
	Compressor *CompressorParam
}

// PresetVoice returns the "voice" effect preset: highpass to cut rumble
// plus gentle compression.
func PresetVoice() AudioEffects {
	return AudioEffects{
		Highpass:   &FilterParam{CutoffHz: 80, Enabled: true},
		Compressor: &CompressorParam{ThresholdDB: -24, Ratio: 4, Enabled: true},
	}
}

// PresetMusic returns the "music" effect preset: full range, no dynamics
// processing.
func PresetMusic() AudioEffects {
	return AudioEffects{
		Highpass:   &FilterParam{Enabled: false},
		Lowpass:    &FilterParam{Enabled: false},
		Compressor: &CompressorParam{Enabled: false},
	}
}
