package main

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/spf13/cobra"

	"github.com/cwbudde/algo-formantshift/dsp/core"
	"github.com/cwbudde/algo-formantshift/dsp/effects/formant"
	"github.com/cwbudde/algo-formantshift/internal/log"
)

const processBlockSize = 4096

func newProcessCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "process input.wav output.wav",
		Short: "Shift a WAV file offline",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(opts, args[0], args[1])
		},
	}
}

func runProcess(opts *options, inPath, outPath string) error {
	inFile, err := os.Open(inPath)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer inFile.Close()

	decoder := wav.NewDecoder(inFile)
	if !decoder.IsValidFile() {
		return fmt.Errorf("%s is not a valid WAV file", inPath)
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return fmt.Errorf("decode %s: %w", inPath, err)
	}

	channels := buf.Format.NumChannels
	sampleRate := buf.Format.SampleRate
	bitDepth := int(decoder.BitDepth)

	if channels < 1 || channels > 2 {
		return fmt.Errorf("unsupported channel layout: %d channels, want mono or stereo", channels)
	}

	shifter, err := formant.New(float64(sampleRate),
		append(opts.shifterOptions(channels), formant.WithMaxBlockSize(processBlockSize))...)
	if err != nil {
		return err
	}

	frames := len(buf.Data) / channels
	latency := shifter.TotalLatency()

	log.Infof("processing %s: %d Hz, %d ch, %d frames, latency %d samples",
		inPath, sampleRate, channels, frames, latency)

	planar := deinterleave(buf.Data, channels, frames, bitDepth)

	// Pad by the latency so the shifted tail drains, then drop the
	// leading latency to keep the file time-aligned with the input.
	for ch := range planar {
		planar[ch] = append(planar[ch], make([]float64, latency)...)
	}

	block := make([][]float64, channels)

	for pos := 0; pos < frames+latency; pos += processBlockSize {
		n := processBlockSize
		if rest := frames + latency - pos; rest < n {
			n = rest
		}

		for ch := range block {
			block[ch] = planar[ch][pos : pos+n]
		}

		if err := shifter.ProcessBlock(block); err != nil {
			return err
		}
	}

	for ch := range planar {
		planar[ch] = planar[ch][latency : latency+frames]
	}

	outFile, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer outFile.Close()

	encoder := wav.NewEncoder(outFile, sampleRate, bitDepth, channels, 1)

	outBuf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: sampleRate},
		Data:           interleave(planar, bitDepth),
		SourceBitDepth: bitDepth,
	}

	if err := encoder.Write(outBuf); err != nil {
		return fmt.Errorf("encode %s: %w", outPath, err)
	}

	if err := encoder.Close(); err != nil {
		return fmt.Errorf("finalize %s: %w", outPath, err)
	}

	log.Infof("wrote %s", outPath)

	return nil
}

func deinterleave(data []int, channels, frames, bitDepth int) [][]float64 {
	scale := float64(int(1) << (bitDepth - 1))

	planar := make([][]float64, channels)
	for ch := range planar {
		planar[ch] = make([]float64, frames)
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			planar[ch][i] = float64(data[i*channels+ch]) / scale
		}
	}

	return planar
}

func interleave(planar [][]float64, bitDepth int) []int {
	channels := len(planar)
	if channels == 0 {
		return nil
	}

	frames := len(planar[0])
	scale := float64(int(1)<<(bitDepth-1)) - 1

	data := make([]int, frames*channels)

	for i := 0; i < frames; i++ {
		for ch := 0; ch < channels; ch++ {
			v := core.Clamp(planar[ch][i], -1, 1)
			data[i*channels+ch] = int(math.Round(v * scale))
		}
	}

	return data
}
