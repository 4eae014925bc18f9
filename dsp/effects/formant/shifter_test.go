package formant

import (
	"math"
	"testing"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name       string
		sampleRate float64
		opts       []Option
		wantErr    bool
	}{
		{name: "valid defaults", sampleRate: 48000, wantErr: false},
		{name: "valid mono", sampleRate: 44100, opts: []Option{WithChannels(1)}, wantErr: false},
		{name: "invalid zero rate", sampleRate: 0, wantErr: true},
		{name: "invalid negative rate", sampleRate: -48000, wantErr: true},
		{name: "invalid NaN rate", sampleRate: math.NaN(), wantErr: true},
		{name: "invalid channels", sampleRate: 48000, opts: []Option{WithChannels(3)}, wantErr: true},
		{name: "invalid zero channels", sampleRate: 48000, opts: []Option{WithChannels(0)}, wantErr: true},
		{name: "invalid fft size", sampleRate: 48000, opts: []Option{WithFFTSize(1000)}, wantErr: true},
		{name: "fft size too small", sampleRate: 48000, opts: []Option{WithFFTSize(128)}, wantErr: true},
		{name: "fft size too large", sampleRate: 48000, opts: []Option{WithFFTSize(32768)}, wantErr: true},
		{name: "invalid overlap", sampleRate: 48000, opts: []Option{WithOverlapCount(3)}, wantErr: true},
		{name: "overlap too large", sampleRate: 48000, opts: []Option{WithOverlapCount(128)}, wantErr: true},
		{name: "pitch out of range", sampleRate: 48000, opts: []Option{WithPitch(150)}, wantErr: true},
		{name: "formant out of range", sampleRate: 48000, opts: []Option{WithFormant(-101)}, wantErr: true},
		{name: "envelope order too small", sampleRate: 48000, opts: []Option{WithEnvelopeOrder(1)}, wantErr: true},
		{name: "envelope order too large", sampleRate: 48000, opts: []Option{WithEnvelopeOrder(91)}, wantErr: true},
		{name: "dry wet out of range", sampleRate: 48000, opts: []Option{WithDryWet(1.5)}, wantErr: true},
		{name: "output gain out of range", sampleRate: 48000, opts: []Option{WithOutputGain(7)}, wantErr: true},
		{name: "max block too small", sampleRate: 48000, opts: []Option{WithMaxBlockSize(0)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(tt.sampleRate, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}

			if tt.wantErr {
				return
			}

			if s == nil {
				t.Fatal("New() returned nil")
			}
		})
	}
}

func TestDefaults(t *testing.T) {
	s, err := New(48000)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if got := s.FFTSize(); got != 1024 {
		t.Fatalf("FFTSize() = %d, want 1024", got)
	}

	if got := s.OverlapCount(); got != 8 {
		t.Fatalf("OverlapCount() = %d, want 8", got)
	}

	if got := s.EnvelopeOrder(); got != 20 {
		t.Fatalf("EnvelopeOrder() = %d, want 20", got)
	}

	if got := s.DryWet(); got != 0.5 {
		t.Fatalf("DryWet() = %v, want 0.5", got)
	}

	if got := s.OutputGain(); got != 0 {
		t.Fatalf("OutputGain() = %v, want 0", got)
	}

	if got := s.Pitch(); got != 0 {
		t.Fatalf("Pitch() = %v, want 0", got)
	}

	if got := s.Formant(); got != 0 {
		t.Fatalf("Formant() = %v, want 0", got)
	}

	if got := s.Channels(); got != 2 {
		t.Fatalf("Channels() = %d, want 2", got)
	}

	if got := s.Latency(); got != 1024-1024/8 {
		t.Fatalf("Latency() = %d, want %d", got, 1024-1024/8)
	}
}

func TestSettersValidate(t *testing.T) {
	s, err := New(48000)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.SetPitch(101); err == nil {
		t.Fatal("expected error for pitch above range")
	}

	if err := s.SetPitch(math.NaN()); err == nil {
		t.Fatal("expected error for NaN pitch")
	}

	if err := s.SetFormant(-100.5); err == nil {
		t.Fatal("expected error for formant below range")
	}

	if err := s.SetEnvelopeOrder(0); err == nil {
		t.Fatal("expected error for envelope order below range")
	}

	if err := s.SetDryWet(-0.1); err == nil {
		t.Fatal("expected error for negative dry/wet")
	}

	if err := s.SetOutputGain(-49); err == nil {
		t.Fatal("expected error for output gain below range")
	}

	if err := s.SetFFTSize(12345); err == nil {
		t.Fatal("expected error for non power-of-two FFT size")
	}

	if err := s.SetOverlapCount(5); err == nil {
		t.Fatal("expected error for non power-of-two overlap")
	}

	// Valid updates land.
	if err := s.SetPitch(50); err != nil {
		t.Fatalf("SetPitch() error = %v", err)
	}

	if got := s.Pitch(); got != 50 {
		t.Fatalf("Pitch() = %v, want 50", got)
	}

	if err := s.SetFFTSize(2048); err != nil {
		t.Fatalf("SetFFTSize() error = %v", err)
	}

	if got := s.FFTSize(); got != 2048 {
		t.Fatalf("FFTSize() = %d, want 2048", got)
	}

	if got := s.Latency(); got != 2048-2048/8 {
		t.Fatalf("Latency() = %d, want %d", got, 2048-2048/8)
	}
}

func TestFailedSetterKeepsPreviousConfig(t *testing.T) {
	s, err := New(48000)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.SetFFTSize(999); err == nil {
		t.Fatal("expected error")
	}

	if got := s.FFTSize(); got != 1024 {
		t.Fatalf("FFTSize() = %d after failed set, want 1024", got)
	}
}

func TestProcessBlockValidation(t *testing.T) {
	s, err := New(48000, WithChannels(2), WithMaxBlockSize(256))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := s.ProcessBlock([][]float64{make([]float64, 16)}); err == nil {
		t.Fatal("expected error for too few channels")
	}

	mismatched := [][]float64{make([]float64, 16), make([]float64, 8)}
	if err := s.ProcessBlock(mismatched); err == nil {
		t.Fatal("expected error for mismatched channel lengths")
	}

	tooLong := [][]float64{make([]float64, 512), make([]float64, 512)}
	if err := s.ProcessBlock(tooLong); err == nil {
		t.Fatal("expected error for oversized block")
	}

	empty := [][]float64{{}, {}}
	if err := s.ProcessBlock(empty); err != nil {
		t.Fatalf("ProcessBlock(empty) error = %v", err)
	}
}

func TestPercentToRatio(t *testing.T) {
	tests := []struct {
		percent float64
		want    float64
	}{
		{percent: 0, want: 1},
		{percent: 100, want: 2},
		{percent: -100, want: 0.5},
		{percent: 50, want: math.Sqrt2},
	}
	for _, tt := range tests {
		if got := percentToRatio(tt.percent); math.Abs(got-tt.want) > 1e-12 {
			t.Fatalf("percentToRatio(%v) = %v, want %v", tt.percent, got, tt.want)
		}
	}
}

func TestWrapPhase(t *testing.T) {
	for _, x := range []float64{-12.5, -math.Pi, -1, 0, 1, math.Pi, 9.75, 123.4} {
		w := wrapPhase(x)
		if w <= -math.Pi-1e-12 || w > math.Pi+1e-12 {
			t.Fatalf("wrapPhase(%v) = %v outside (-pi, pi]", x, w)
		}

		// Wrapping preserves the angle modulo 2*pi.
		r := math.Abs(math.Mod(x-w, 2*math.Pi))
		if r > math.Pi {
			r = 2*math.Pi - r
		}

		if r > 1e-9 {
			t.Fatalf("wrapPhase(%v) = %v shifted by non-multiple of 2*pi", x, w)
		}
	}
}

func TestSmoother(t *testing.T) {
	var ls linearSmoother

	ls.reset(10, 1)

	if got := ls.next(); got != 1 {
		t.Fatalf("next() = %v, want 1", got)
	}

	ls.setTarget(2)

	prev := 1.0
	for range 10 {
		v := ls.next()
		if v < prev {
			t.Fatalf("ramp not monotone: %v after %v", v, prev)
		}

		prev = v
	}

	if prev != 2 {
		t.Fatalf("ramp end = %v, want 2", prev)
	}

	// Further steps hold the target.
	if got := ls.next(); got != 2 {
		t.Fatalf("next() after ramp = %v, want 2", got)
	}
}
