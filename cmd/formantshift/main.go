// Command formantshift applies independent pitch and formant shifting
// to audio, offline (WAV to WAV) or live through the default audio
// device.
//
// Usage:
//
//	formantshift process -p 100 input.wav output.wav
//	formantshift process -p -50 -f 30 --fft-size 2048 in.wav out.wav
//	formantshift live -p 100 --listen :8765
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-formantshift/dsp/effects/formant"
	"github.com/cwbudde/algo-formantshift/internal/log"
)

type options struct {
	pitch         float64
	formant       float64
	envelopeOrder int
	dryWet        float64
	outputGain    float64
	fftSize       int
	overlapCount  int
	logLevel      string

	// live mode
	sampleRate      float64
	channels        int
	framesPerBuffer int
	listenAddr      string
}

func (o *options) shifterOptions(channels int) []formant.Option {
	return []formant.Option{
		formant.WithChannels(channels),
		formant.WithPitch(o.pitch),
		formant.WithFormant(o.formant),
		formant.WithEnvelopeOrder(o.envelopeOrder),
		formant.WithDryWet(o.dryWet),
		formant.WithOutputGain(o.outputGain),
		formant.WithFFTSize(o.fftSize),
		formant.WithOverlapCount(o.overlapCount),
	}
}

func main() {
	opts := &options{}

	rootCmd := &cobra.Command{
		Use:           "formantshift",
		Short:         "Independent pitch and formant shifting for audio streams",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if level, ok := log.ParseLevel(opts.logLevel); ok {
				log.SetLevel(level)
			} else {
				log.Warnf("unknown log level %q, using info", opts.logLevel)
			}
		},
	}

	rootCmd.PersistentFlags().Float64VarP(&opts.pitch, "pitch", "p", 0,
		"Pitch shift in percent of an octave, -100 to 100")
	rootCmd.PersistentFlags().Float64VarP(&opts.formant, "formant", "f", 0,
		"Formant shift in percent of an octave, -100 to 100")
	rootCmd.PersistentFlags().IntVar(&opts.envelopeOrder, "envelope-order", 20,
		"Cepstral envelope order, 2 to 90")
	rootCmd.PersistentFlags().Float64VarP(&opts.dryWet, "dry-wet", "w", 1,
		"Dry/wet blend, 0 (dry) to 1 (wet)")
	rootCmd.PersistentFlags().Float64VarP(&opts.outputGain, "output-gain", "g", 0,
		"Output gain in dB, -48 to 6")
	rootCmd.PersistentFlags().IntVar(&opts.fftSize, "fft-size", 1024,
		"Analysis frame size, a power of two from 256 to 16384")
	rootCmd.PersistentFlags().IntVar(&opts.overlapCount, "overlap", 8,
		"Overlap factor, a power of two from 2 to 64")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info",
		"Log level: debug, info, warn, error")

	rootCmd.AddCommand(newProcessCommand(opts))
	rootCmd.AddCommand(newLiveCommand(opts))

	if err := rootCmd.Execute(); err != nil {
		log.Errorf("%v", err)
		os.Exit(1)
	}
}
