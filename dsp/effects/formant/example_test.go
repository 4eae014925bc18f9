package formant_test

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-formantshift/dsp/effects/formant"
)

func ExampleShifter() {
	shifter, err := formant.New(48000,
		formant.WithChannels(1),
		formant.WithPitch(100),
		formant.WithFormant(-20),
		formant.WithDryWet(1),
	)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	block := [][]float64{make([]float64, 512)}
	for i := range block[0] {
		block[0][i] = 0.5 * math.Sin(2*math.Pi*220*float64(i)/48000)
	}

	if err := shifter.ProcessBlock(block); err != nil {
		fmt.Println("error:", err)
		return
	}

	fmt.Printf("fft size: %d\n", shifter.FFTSize())
	fmt.Printf("latency: %d samples\n", shifter.Latency())
	// Output:
	// fft size: 1024
	// latency: 896 samples
}

func ExampleShifter_SetPitch() {
	shifter, err := formant.New(44100, formant.WithChannels(2))
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	if err := shifter.SetPitch(50); err != nil {
		fmt.Println("error:", err)
		return
	}

	if err := shifter.SetPitch(200); err != nil {
		fmt.Println("rejected:", err)
	}
	// Output:
	// rejected: formant: pitch shift must be in [-100, 100] percent: 200.000000
}
