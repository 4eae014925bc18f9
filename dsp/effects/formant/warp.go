package formant

import "math"

// Gain assigned to envelope positions warped from beyond Nyquist; deep
// enough in log-magnitude terms to read as silence after exp.
const warpFloor = -1000.0

// warpEnvelope resamples the log-magnitude envelope along the frequency
// axis by alpha, in place. Only real parts move; imaginary parts stay as
// computed by the liftering. The upper half mirrors the lower.
func (s *Shifter) warpEnvelope(env []complex128, alpha float64) {
	n := len(env)
	half := n / 2

	copy(s.scratch, env)

	for i := 0; i <= half; i++ {
		pos := float64(i) / alpha
		leftIndex := int(math.Floor(pos))
		rightIndex := int(math.Ceil(pos))
		frac := pos - float64(leftIndex)

		leftValue := warpFloor
		rightValue := warpFloor

		if leftIndex <= half {
			leftValue = real(s.scratch[leftIndex])
		}

		if rightIndex <= half {
			rightValue = real(s.scratch[rightIndex])
		}

		value := (1-frac)*leftValue + frac*rightValue
		env[i] = complex(value, imag(env[i]))
	}

	for i := 1; i <= half; i++ {
		env[n-i] = complex(real(env[i]), imag(env[n-i]))
	}
}
