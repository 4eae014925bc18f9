package formant

import (
	"math"
	"math/cmplx"
)

// Envelope and fine-structure contributions to the reconstructed
// log magnitude.
const (
	envelopeAmount      = 1.0
	fineStructureAmount = 1.0
)

// antiMirror smooths the discontinuity at the shifted Nyquist when
// pitch moves down. The spectrum above the shifted Nyquist drops
// abruptly; a low-order envelope cannot follow the step, so the
// residual leaks into the fine structure as high-frequency noise.
// Reflecting the spectrum below the shifted Nyquist upward removes the
// step before the fine structure is extracted.
func antiMirror(spec []complex128, ratio float64) {
	if ratio >= 1 {
		return
	}

	n := len(spec)
	half := n / 2
	shiftedNyquist := int(math.Round(float64(n) * 0.5 * ratio))

	for i := 0; ; i++ {
		if shiftedNyquist+i >= half {
			break
		}

		if shiftedNyquist-i < 0 {
			break
		}

		spec[shiftedNyquist+i] = spec[shiftedNyquist-i]
	}

	for i := 1; i < half; i++ {
		spec[n-i] = spec[i]
	}
}

// capturePhases stores the phase of every bin of spec into dst.
func capturePhases(dst []float64, spec []complex128) {
	for i := range spec {
		dst[i] = cmplx.Phase(spec[i])
	}
}

// reconstructSpectrum combines the warped envelope and the fine
// structure with the captured phases into spec: the magnitude is
// exp(envelope + fine structure), the phase is the phase-vocoder
// output.
func (s *Shifter) reconstructSpectrum(env, fine []complex128, spec []complex128) {
	n := len(spec)
	half := n / 2

	for i := 0; i <= half; i++ {
		amp := math.Exp(real(env[i])*envelopeAmount + real(fine[i])*fineStructureAmount)

		spec[i] = complex(
			amp*math.Cos(s.phaseBuf[i]),
			amp*math.Sin(s.phaseBuf[i]),
		)
	}

	for i := 1; i < half; i++ {
		spec[n-i] = cmplx.Conj(spec[i])
	}
}
