package formant

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-formantshift/dsp/core"
	"github.com/cwbudde/algo-formantshift/dsp/ringbuffer"
	"github.com/cwbudde/algo-vecmath"
)

// processFrame runs the full spectral pipeline on one analysis frame
// for every channel, overlap-adds the result into the output ring, and
// advances the input ring by one hop. Called with the input ring full
// and the process lock held.
func (s *Shifter) processFrame() error {
	n := s.fftSize
	hop := n / s.overlapCount

	alpha := percentToRatio(s.formant.Load())
	beta := percentToRatio(s.pitch.Load())
	order := int(s.envelopeOrder.Load())

	var procErr error

	s.input.ReadView(func(ch int, v ringbuffer.View) {
		if procErr != nil {
			return
		}

		procErr = s.processChannel(ch, v, alpha, beta, order, hop)
	})

	if procErr != nil {
		return procErr
	}

	if !s.output.OverlapAdd(s.frameOut, n-hop, n) {
		return fmt.Errorf("formant: output ring overlap-add of %d samples failed", n)
	}

	if !s.input.Discard(hop) {
		return fmt.Errorf("formant: input ring discard of %d samples failed", hop)
	}

	s.pub.publishSpectra(s.tmpBundles)

	return nil
}

// processChannel transforms one channel's analysis frame: window, FFT,
// envelope extraction, formant warp, pitch shift, resynthesis, inverse
// FFT, synthesis window, and energy compensation into s.frameOut[ch].
func (s *Shifter) processChannel(ch int, v ringbuffer.View, alpha, beta float64, order, hop int) error {
	n := s.fftSize
	invOverlap := 1.0 / float64(s.overlapCount)
	bundle := &s.tmpBundles[ch]

	idx := 0
	for _, seg := range [2][]float64{v.First, v.Second} {
		for _, x := range seg {
			s.signal[idx] = complex(x*s.win[idx]*invOverlap, 0)
			idx++
		}
	}

	if idx != n {
		return fmt.Errorf("formant: analysis frame has %d samples, want %d", idx, n)
	}

	framePower := 0.0
	for i := range s.signal {
		re := real(s.signal[i])
		framePower += re * re
	}

	if err := s.plan.Forward(s.freq, s.signal); err != nil {
		return fmt.Errorf("formant: forward FFT failed: %w", err)
	}

	copy(bundle.Original, s.freq)

	if err := s.computeEnvelope(s.freq, bundle, order); err != nil {
		return err
	}

	s.warpEnvelope(bundle.Envelope, alpha)

	s.pv.shift(s.freq, ch, beta, hop)

	capturePhases(s.phaseBuf, s.freq)
	copy(bundle.Shifted, s.freq)

	antiMirror(s.freq, beta)

	if err := s.computeFineStructure(s.freq, bundle.FineStructure, order, beta); err != nil {
		return err
	}

	s.reconstructSpectrum(bundle.Envelope, bundle.FineStructure, s.freq)
	copy(bundle.Synthesis, s.freq)

	if err := s.plan.Inverse(s.signal, s.freq); err != nil {
		return fmt.Errorf("formant: inverse FFT failed: %w", err)
	}

	out := s.frameOut[ch]
	for i := range out {
		out[i] = core.FlushDenormals(real(s.signal[i]) * s.win[i])
	}

	synthPower := 0.0
	for _, x := range out {
		synthPower += x * x
	}

	expectedGain := 1.0
	if synthPower != 0 {
		expectedGain = math.Sqrt(framePower / synthPower)
	}

	s.gain.setTarget(expectedGain)
	vecmath.ScaleBlockInPlace(out, s.gain.next())

	// The log guard keeps the pipeline finite by construction; should a
	// hazard slip through anyway, this frame goes out silent and the
	// stream continues.
	for _, x := range out {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			core.Zero(out)

			break
		}
	}

	return nil
}
