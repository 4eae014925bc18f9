package formant

import (
	"math"
	"math/cmplx"

	"github.com/cwbudde/algo-formantshift/dsp/core"
)

// phaseVocoder reassigns bin energy by instantaneous-frequency analysis
// and synthesizes output phases by accumulation. Phase state persists
// across frames per channel; both phase updates happen exactly once per
// frame, so frames must never be skipped mid-stream.
type phaseVocoder struct {
	prevInputPhase  [][]float64
	prevOutputPhase [][]float64

	anaMagnitude []float64
	anaFrequency []float64
	synMagnitude []float64
	synFrequency []float64
}

func newPhaseVocoder(channels, fftSize int) *phaseVocoder {
	bins := fftSize/2 + 1

	pv := &phaseVocoder{
		prevInputPhase:  make([][]float64, channels),
		prevOutputPhase: make([][]float64, channels),
		anaMagnitude:    make([]float64, bins),
		anaFrequency:    make([]float64, bins),
		synMagnitude:    make([]float64, bins),
		synFrequency:    make([]float64, bins),
	}

	for ch := range channels {
		pv.prevInputPhase[ch] = make([]float64, bins)
		pv.prevOutputPhase[ch] = make([]float64, bins)
	}

	return pv
}

// reset clears the per-channel phase accumulators. Only valid at
// configuration boundaries; a mid-stream reset is an audible glitch.
func (pv *phaseVocoder) reset() {
	for ch := range pv.prevInputPhase {
		core.Zero(pv.prevInputPhase[ch])
		core.Zero(pv.prevOutputPhase[ch])
	}
}

// shift pitch-shifts spec in place by ratio for the given channel.
// hop is the analysis hop size in samples.
func (pv *phaseVocoder) shift(spec []complex128, ch int, ratio float64, hop int) {
	n := len(spec)
	half := n / 2
	hopF := float64(hop)
	nF := float64(n)

	prevIn := pv.prevInputPhase[ch]
	prevOut := pv.prevOutputPhase[ch]

	// Instantaneous-frequency analysis: the inter-frame phase advance,
	// less the bin-center advance, gives the fractional bin deviation.
	for i := 0; i <= half; i++ {
		magnitude := cmplx.Abs(spec[i])
		phase := cmplx.Phase(spec[i])
		binCenter := 2 * math.Pi * float64(i) / nF

		phaseDiff := phase - prevIn[i]
		prevIn[i] = phase

		phaseDiff = wrapPhase(phaseDiff - binCenter*hopF)
		deviation := phaseDiff * nF / (hopF * 2 * math.Pi)

		pv.anaMagnitude[i] = magnitude
		pv.anaFrequency[i] = float64(i) + deviation
	}

	core.Zero(pv.synMagnitude)
	core.Zero(pv.synFrequency)

	// Remap bins: destination bin i draws from source bin i/ratio.
	for i := 0; i <= half; i++ {
		src := int(math.Floor(float64(i)/ratio + 0.5))
		if src > half {
			break
		}

		pv.synMagnitude[i] += pv.anaMagnitude[src]
		pv.synFrequency[i] = pv.anaFrequency[src] * ratio
	}

	// Phase accumulation and synthesis.
	for i := 0; i <= half; i++ {
		deviation := pv.synFrequency[i] - float64(i)
		phaseDiff := deviation * 2 * math.Pi * hopF / nF
		binCenter := 2 * math.Pi * float64(i) / nF
		phaseDiff += binCenter * hopF

		phase := wrapPhase(prevOut[i] + phaseDiff)

		spec[i] = complex(
			pv.synMagnitude[i]*math.Cos(phase),
			pv.synMagnitude[i]*math.Sin(phase),
		)

		prevOut[i] = phase
	}

	for i := 1; i < half; i++ {
		spec[n-i] = cmplx.Conj(spec[i])
	}
}

// wrapPhase maps x into (-pi, pi].
func wrapPhase(x float64) float64 {
	x = math.Mod(math.Pi-x, 2*math.Pi)
	if x < 0 {
		x += 2 * math.Pi
	}

	return math.Pi - x
}
