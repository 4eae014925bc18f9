package testutil

import (
	"math"
	"testing"
)

func TestDeterministicSine(t *testing.T) {
	s := DeterministicSine(1000, 48000, 1.0, 48)
	if len(s) != 48 {
		t.Fatalf("len = %d, want 48", len(s))
	}

	if math.Abs(s[0]) > 1e-15 {
		t.Fatalf("s[0] = %v, want 0", s[0])
	}

	for i, v := range s {
		if v < -1 || v > 1 {
			t.Fatalf("s[%d] = %v out of range", i, v)
		}
	}
}

func TestDeterministicNoiseReproducible(t *testing.T) {
	a := DeterministicNoise(42, 1.0, 64)
	b := DeterministicNoise(42, 1.0, 64)

	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("noise not deterministic at index %d", i)
		}
	}
}

func TestSawtooth(t *testing.T) {
	s := Sawtooth(100, 48000, 1.0, 960)

	if math.Abs(s[0]+1) > 1e-12 {
		t.Fatalf("s[0] = %v, want -1", s[0])
	}

	// One full period is 480 samples; the ramp repeats.
	if math.Abs(s[480]+1) > 0.01 {
		t.Fatalf("s[480] = %v, want about -1", s[480])
	}
}

func TestGoertzelMatchesSine(t *testing.T) {
	const (
		n   = 1024
		bin = 33
	)

	x := DeterministicSine(float64(bin)*48000/n, 48000, 1.0, n)

	mag := Goertzel(x, bin)
	if math.Abs(mag-float64(n)/2) > 1 {
		t.Fatalf("Goertzel magnitude = %v, want about %v", mag, float64(n)/2)
	}

	offMag := Goertzel(x, bin+7)
	if offMag > mag/100 {
		t.Fatalf("off-bin magnitude %v too large relative to peak %v", offMag, mag)
	}
}

func TestDominantFrequency(t *testing.T) {
	x := DeterministicSine(440, 48000, 0.5, 4800)

	got := DominantFrequency(x, 48000)
	if math.Abs(got-440) > 48000.0/4800 {
		t.Fatalf("DominantFrequency = %v, want 440 within one bin", got)
	}
}

func TestRMS(t *testing.T) {
	if got := RMS(DC(2, 16)); math.Abs(got-2) > 1e-12 {
		t.Fatalf("RMS = %v, want 2", got)
	}

	if got := RMS(nil); got != 0 {
		t.Fatalf("RMS(nil) = %v, want 0", got)
	}

	sine := DeterministicSine(1000, 48000, 1.0, 4800)
	if got := RMS(sine); math.Abs(got-1/math.Sqrt2) > 1e-3 {
		t.Fatalf("sine RMS = %v, want %v", got, 1/math.Sqrt2)
	}
}

func TestSpectralCentroidMovesWithContent(t *testing.T) {
	low := DeterministicSine(200, 48000, 1.0, 2048)
	high := DeterministicSine(4000, 48000, 1.0, 2048)

	if SpectralCentroid(low, 48000) >= SpectralCentroid(high, 48000) {
		t.Fatal("centroid of low sine not below centroid of high sine")
	}
}
