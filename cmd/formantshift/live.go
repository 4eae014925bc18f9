package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-formantshift/dsp/effects/formant"
	"github.com/cwbudde/algo-formantshift/internal/log"
	"github.com/cwbudde/algo-formantshift/transport"
)

const spectrumPollInterval = 50 * time.Millisecond

func newLiveCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "live",
		Short: "Shift the default input device to the default output in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLive(opts)
		},
	}

	cmd.Flags().Float64VarP(&opts.sampleRate, "sample-rate", "s", 48000,
		"Sample rate in Hz")
	cmd.Flags().IntVarP(&opts.channels, "channels", "c", 1,
		"Channel count, 1 or 2")
	cmd.Flags().IntVarP(&opts.framesPerBuffer, "frames-per-buffer", "b", 512,
		"Frames per device buffer")
	cmd.Flags().StringVar(&opts.listenAddr, "listen", "",
		"Serve spectrum snapshots to WebSocket observers on this address")

	return cmd
}

func runLive(opts *options) error {
	shifter, err := formant.New(opts.sampleRate,
		append(opts.shifterOptions(opts.channels), formant.WithMaxBlockSize(opts.framesPerBuffer))...)
	if err != nil {
		return err
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	block := make([][]float64, opts.channels)
	for ch := range block {
		block[ch] = make([]float64, opts.framesPerBuffer)
	}

	callback := func(in, out [][]float32) {
		for ch := range block {
			src := in[ch%len(in)]
			for i := range block[ch] {
				block[ch][i] = float64(src[i])
			}
		}

		if err := shifter.ProcessBlock(block); err != nil {
			log.Errorf("live: %v", err)

			for ch := range out {
				for i := range out[ch] {
					out[ch][i] = 0
				}
			}

			return
		}

		for ch := range out {
			src := block[ch%len(block)]
			for i := range out[ch] {
				out[ch][i] = float32(src[i])
			}
		}
	}

	stream, err := portaudio.OpenDefaultStream(
		opts.channels, opts.channels, opts.sampleRate, opts.framesPerBuffer, callback)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer stream.Close()

	stop := make(chan struct{})

	if opts.listenAddr != "" {
		server := transport.NewSpectrumServer(opts.listenAddr)
		defer server.Close()

		go server.PollShifter(shifter, spectrumPollInterval, stop)
	}

	if err := stream.Start(); err != nil {
		return fmt.Errorf("start stream: %w", err)
	}

	log.Infof("live: %g Hz, %d ch, %d frames per buffer, latency %d samples",
		opts.sampleRate, opts.channels, opts.framesPerBuffer, shifter.Latency())
	log.Infof("live: press ctrl-c to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	close(stop)

	if err := stream.Stop(); err != nil {
		return fmt.Errorf("stop stream: %w", err)
	}

	return nil
}
