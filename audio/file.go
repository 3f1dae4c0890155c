package audio

import (
	"fmt"
	"io"
	"math"
	"os"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
	"github.com/faiface/beep/wav"
)

// DefaultSampleRate is used when a stream does not carry its own rate.
const DefaultSampleRate beep.SampleRate = 44100

// Track is a decoded WAV file ready to be tapped.
type Track struct {
	// Streamer yields the decoded frames, looped if requested.
	Streamer beep.Streamer

	// Format is the format stored in the file.
	Format beep.Format

	closer io.Closer
}

// OpenWAV decodes the WAV file at path. With loop set the stream repeats
// forever; otherwise it ends with the file.
func OpenWAV(path string, loop bool) (*Track, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	t, err := DecodeWAV(f, loop)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	return t, nil
}

// DecodeWAV decodes a WAV stream. Closing the track closes r.
func DecodeWAV(r io.Reader, loop bool) (*Track, error) {
	s, format, err := wav.Decode(r)
	if err != nil {
		return nil, err
	}
	t := &Track{Streamer: s, Format: format, closer: s}
	if loop {
		t.Streamer = beep.Loop(-1, s)
	}
	if g := pcmScaleFix(format.Precision); g != 0 {
		t.Streamer = &effects.Gain{Streamer: t.Streamer, Gain: g}
	}
	return t, nil
}

// pcmScaleFix returns the extra gain that restores full scale for signed PCM.
// The wav decoder divides 16 and 24 bit samples by the unsigned range, which
// halves their amplitude; 8 bit samples decode correctly.
func pcmScaleFix(precision int) float64 {
	if precision < 2 {
		return 0
	}
	bits := float64(precision * 8)
	full := math.Exp2(bits) - 1
	half := math.Exp2(bits-1) - 1
	return full/half - 1
}

// Close releases the underlying decoder.
func (t *Track) Close() error {
	if t.closer == nil {
		return nil
	}
	err := t.closer.Close()
	t.closer = nil
	return err
}
