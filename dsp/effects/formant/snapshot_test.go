package formant

import (
	"math"
	"math/cmplx"
	"testing"

	"github.com/cwbudde/algo-formantshift/internal/testutil"
)

func TestSpectrumSnapshot(t *testing.T) {
	s := newTestShifter(t)

	in := testutil.DeterministicSine(220, testSampleRate, 0.5, 16384)
	_ = processMono(t, s, in, 512)

	bundles := s.SpectrumSnapshot(nil)
	if len(bundles) != 1 {
		t.Fatalf("got %d bundles, want 1", len(bundles))
	}

	b := bundles[0]
	if len(b.Original) != 1024 {
		t.Fatalf("Original length = %d, want 1024", len(b.Original))
	}

	// The original spectrum peaks at the input frequency's bin.
	peakBin := 0
	peakMag := 0.0

	for k := 0; k <= len(b.Original)/2; k++ {
		if mag := cmplx.Abs(b.Original[k]); mag > peakMag {
			peakMag = mag
			peakBin = k
		}
	}

	wantBin := 220.0 * 1024 / testSampleRate
	if math.Abs(float64(peakBin)-wantBin) > 1.5 {
		t.Fatalf("original spectrum peak at bin %d, want near %.1f", peakBin, wantBin)
	}

	// Envelope values are finite log magnitudes.
	for k, v := range b.Envelope {
		if math.IsNaN(real(v)) || math.IsInf(real(v), 0) {
			t.Fatalf("envelope bin %d = %v, want finite", k, v)
		}
	}

	// A second reader call reuses the destination.
	again := s.SpectrumSnapshot(bundles)
	if len(again) != 1 {
		t.Fatalf("got %d bundles on reuse, want 1", len(again))
	}
}

func TestSpectrumSnapshotBeforeProcessing(t *testing.T) {
	s := newTestShifter(t)

	bundles := s.SpectrumSnapshot(nil)
	if len(bundles) != 1 {
		t.Fatalf("got %d bundles, want 1", len(bundles))
	}

	// Stale, empty data is fine; it just has to be well-formed.
	for _, v := range bundles[0].Original {
		if v != 0 {
			t.Fatalf("unprocessed snapshot contains %v, want zeros", v)
		}
	}
}

func TestWaveformSnapshot(t *testing.T) {
	s := newTestShifter(t)

	in := testutil.DeterministicSine(220, testSampleRate, 0.5, 4096)
	_ = processMono(t, s, in, 512)

	dest, count := s.WaveformSnapshot(nil)
	if len(dest) != 1 {
		t.Fatalf("got %d channels, want 1", len(dest))
	}

	if count == 0 {
		t.Fatal("no samples published")
	}

	if count > 512 {
		t.Fatalf("count = %d, want at most one block", count)
	}

	testutil.RequireFinite(t, dest[0][:count])

	// A drained reader sees zero new samples, not an error.
	_, count = s.WaveformSnapshot(dest)
	if count != 0 {
		t.Fatalf("count = %d after drain, want 0", count)
	}
}

func TestPublisherContentionSkipsFrame(t *testing.T) {
	s := newTestShifter(t)

	// Hold the snapshot mutex: the audio path must keep running and
	// simply skip publication.
	s.pub.mu.Lock()

	in := testutil.DeterministicSine(220, testSampleRate, 0.5, 2048)
	out := processMono(t, s, in, 512)

	s.pub.mu.Unlock()

	testutil.RequireFinite(t, out)

	// Nothing was published while the lock was held.
	_, count := s.WaveformSnapshot(nil)
	if count != 0 {
		t.Fatalf("count = %d, want 0 when publication was contended", count)
	}
}
