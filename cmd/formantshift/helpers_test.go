package main

import (
	"math"
	"testing"
)

func TestInterleaveRoundTrip(t *testing.T) {
	const (
		bitDepth = 16
		frames   = 64
	)

	planar := [][]float64{
		make([]float64, frames),
		make([]float64, frames),
	}

	for i := 0; i < frames; i++ {
		planar[0][i] = 0.5 * math.Sin(2*math.Pi*float64(i)/frames)
		planar[1][i] = -planar[0][i]
	}

	data := interleave(planar, bitDepth)
	if len(data) != frames*2 {
		t.Fatalf("len = %d, want %d", len(data), frames*2)
	}

	back := deinterleave(data, 2, frames, bitDepth)

	// 16-bit quantization bounds the round-trip error.
	eps := 1.0 / float64(int(1)<<(bitDepth-1))

	for ch := range planar {
		for i := range planar[ch] {
			if diff := math.Abs(back[ch][i] - planar[ch][i]); diff > eps {
				t.Fatalf("ch %d sample %d: got %v, want %v", ch, i, back[ch][i], planar[ch][i])
			}
		}
	}
}

func TestInterleaveClamps(t *testing.T) {
	planar := [][]float64{{2.0, -2.0}}

	data := interleave(planar, 16)

	limit := int(1)<<15 - 1
	if data[0] != limit {
		t.Fatalf("data[0] = %d, want %d", data[0], limit)
	}

	if data[1] != -limit {
		t.Fatalf("data[1] = %d, want %d", data[1], -limit)
	}
}

func TestInterleaveEmpty(t *testing.T) {
	if got := interleave(nil, 16); got != nil {
		t.Fatalf("interleave(nil) = %v, want nil", got)
	}
}
