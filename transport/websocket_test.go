package transport

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-formantshift/dsp/effects/formant"
)

func TestFramesFromBundles(t *testing.T) {
	s, err := formant.New(48000, formant.WithChannels(2))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	bundles := s.SpectrumSnapshot(nil)

	frames := FramesFromBundles(bundles, 48000)
	if len(frames) != 2 {
		t.Fatalf("got %d frames, want 2", len(frames))
	}

	for ch, frame := range frames {
		if frame.Channel != ch {
			t.Fatalf("frame %d has channel %d", ch, frame.Channel)
		}

		if frame.SampleRate != 48000 {
			t.Fatalf("frame sample rate = %v, want 48000", frame.SampleRate)
		}

		if len(frame.Magnitudes) != 1024/2+1 {
			t.Fatalf("got %d magnitudes, want %d", len(frame.Magnitudes), 1024/2+1)
		}

		// Silent bins are floored, never -Inf, so frames stay encodable.
		for k, mag := range frame.Magnitudes {
			if math.IsInf(mag, 0) || math.IsNaN(mag) {
				t.Fatalf("bin %d magnitude = %v, want finite", k, mag)
			}
		}
	}
}

func TestFramesFromBundlesEmpty(t *testing.T) {
	if frames := FramesFromBundles(nil, 48000); len(frames) != 0 {
		t.Fatalf("got %d frames, want 0", len(frames))
	}
}
