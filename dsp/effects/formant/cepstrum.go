package formant

import (
	"fmt"
	"math"
	"math/cmplx"
)

// computeEnvelope extracts the low-quefrency spectral envelope of spec.
// The cepstrum is written to bundle.Cepstrum and the liftered
// log-magnitude envelope (real part) to bundle.Envelope.
//
// The cepstrum is the inverse transform of the log-magnitude spectrum;
// the envelope is the forward transform of the liftered cepstrum. The
// two directions must stay paired so the round trip is an identity.
func (s *Shifter) computeEnvelope(spec []complex128, bundle *SpectrumBundle, order int) error {
	n := len(spec)
	half := n / 2

	for i := range spec {
		amp := math.Max(cmplx.Abs(spec[i]), minMagnitude)
		s.scratch[i] = complex(math.Log(amp), 0)
	}

	if err := s.plan.Inverse(s.cepstrumBuf, s.scratch); err != nil {
		return fmt.Errorf("formant: cepstrum FFT failed: %w", err)
	}

	copy(bundle.Cepstrum, s.cepstrumBuf)

	// Keep quefrencies below the order, zero the rest, Hermitian mirror.
	s.scratch[0] = s.cepstrumBuf[0]

	for i := 1; i <= half; i++ {
		if i < order {
			s.scratch[i] = s.cepstrumBuf[i]
			s.scratch[n-i] = s.cepstrumBuf[i]
		} else {
			s.scratch[i] = 0
			s.scratch[n-i] = 0
		}
	}

	if err := s.plan.Forward(s.scratch2, s.scratch); err != nil {
		return fmt.Errorf("formant: envelope FFT failed: %w", err)
	}

	copy(bundle.Envelope, s.scratch2)

	return nil
}

// computeFineStructure extracts the high-quefrency fine structure of
// spec into dst. ratio is the pitch factor: when shifting down, fine
// structure above the shifted Nyquist is discarded so the anti-mirrored
// region contributes nothing.
func (s *Shifter) computeFineStructure(spec, dst []complex128, order int, ratio float64) error {
	n := len(spec)
	half := n / 2

	for i := range spec {
		amp := math.Max(cmplx.Abs(spec[i]), minMagnitude)
		s.scratch[i] = complex(math.Log(amp), 0)
	}

	if err := s.plan.Inverse(s.cepstrumBuf, s.scratch); err != nil {
		return fmt.Errorf("formant: fine-structure cepstrum FFT failed: %w", err)
	}

	// Complement of the envelope lifter: drop DC and low quefrencies.
	s.scratch[0] = 0

	for i := 1; i <= half; i++ {
		if i >= order {
			s.scratch[i] = s.cepstrumBuf[i]
			s.scratch[n-i] = s.cepstrumBuf[i]
		} else {
			s.scratch[i] = 0
			s.scratch[n-i] = 0
		}
	}

	if err := s.plan.Forward(dst, s.scratch); err != nil {
		return fmt.Errorf("formant: fine-structure FFT failed: %w", err)
	}

	if ratio < 1 {
		shiftedNyquist := int(math.Round(float64(n) * 0.5 * ratio))

		for i := shiftedNyquist; i < half; i++ {
			dst[i] = 0
		}

		for i := 1; i < half; i++ {
			dst[n-i] = dst[i]
		}
	}

	return nil
}
