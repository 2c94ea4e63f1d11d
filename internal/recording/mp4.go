// Package recording implements the clip and recording subsystems: the
// rolling instant-clip buffer, per-participant multi-track recorders and
// the local composite recorder. All of them package encoded samples as
// fragmented MP4.
package recording

import (
	"fmt"
	"os"
	"time"

	"github.com/Eyevinn/mp4ff/mp4"

	"studiocast/internal/media"
)

const (
	videoTimescale = 90000
	audioTimescale = 48000

	defaultVideoSampleDur = 33 * time.Millisecond
	defaultAudioSampleDur = 20 * time.Millisecond
)

// trackSamples is one track's worth of encoded samples bound for a file.
type trackSamples struct {
	kind    media.TrackKind
	samples []*media.EncodedSample
}

func timescaleFor(kind media.TrackKind) uint32 {
	if kind == media.TrackKindAudio {
		return audioTimescale
	}
	return videoTimescale
}

func sampleDurUnits(s *media.EncodedSample, timescale uint32) uint32 {
	d := s.Duration
	if d <= 0 {
		if s.Kind == media.TrackKindAudio {
			d = defaultAudioSampleDur
		} else {
			d = defaultVideoSampleDur
		}
	}
	return uint32(d * time.Duration(timescale) / time.Second)
}

// writeFragmentedMP4 packages the given tracks into one fMP4 file: an init
// segment with one empty track per input track, then a media segment with
// one fragment per track. Returns the file size.
func writeFragmentedMP4(path string, tracks []trackSamples) (int64, error) {
	if len(tracks) == 0 {
		return 0, fmt.Errorf("no tracks to write")
	}

	init := mp4.CreateEmptyInit()
	for _, tr := range tracks {
		mediaType := "video"
		if tr.kind == media.TrackKindAudio {
			mediaType = "audio"
		}
		init.AddEmptyTrack(timescaleFor(tr.kind), mediaType, "und")
	}

	seg := mp4.NewMediaSegment()
	for i, tr := range tracks {
		trackID := init.Moov.Traks[i].Tkhd.TrackID
		frag, err := mp4.CreateFragment(uint32(i+1), trackID)
		if err != nil {
			return 0, fmt.Errorf("create fragment: %w", err)
		}

		timescale := timescaleFor(tr.kind)
		decodeTime := uint64(0)
		for _, s := range tr.samples {
			dur := sampleDurUnits(s, timescale)
			flags := mp4.NonSyncSampleFlags
			if s.Keyframe || tr.kind == media.TrackKindAudio {
				flags = mp4.SyncSampleFlags
			}
			frag.AddFullSample(mp4.FullSample{
				Sample: mp4.Sample{
					Flags: flags,
					Dur:   dur,
					Size:  uint32(len(s.Data)),
				},
				DecodeTime: decodeTime,
				Data:       s.Data,
			})
			decodeTime += uint64(dur)
		}
		seg.AddFragment(frag)
	}

	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := init.Encode(f); err != nil {
		return 0, fmt.Errorf("encode init segment: %w", err)
	}
	if err := seg.Encode(f); err != nil {
		return 0, fmt.Errorf("encode media segment: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// samplesDuration sums the effective duration of a sample run.
func samplesDuration(samples []*media.EncodedSample) time.Duration {
	var total time.Duration
	for _, s := range samples {
		d := s.Duration
		if d <= 0 {
			if s.Kind == media.TrackKindAudio {
				d = defaultAudioSampleDur
			} else {
				d = defaultVideoSampleDur
			}
		}
		total += d
	}
	return total
}
