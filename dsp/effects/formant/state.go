package formant

import (
	"encoding/json"
	"fmt"

	"github.com/cwbudde/algo-formantshift/internal/log"
)

// stateVersion tags the serialized parameter blob. Readers warn on
// unknown versions and load what they recognize.
const stateVersion = 1

type stateParams struct {
	FFTSize       int     `json:"fftSize"`
	OverlapCount  int     `json:"overlapCount"`
	Pitch         float64 `json:"pitch"`
	Formant       float64 `json:"formant"`
	EnvelopeOrder int     `json:"envelopeOrder"`
	DryWet        float64 `json:"dryWetRate"`
	OutputGain    float64 `json:"outputGain"`
}

type stateBlob struct {
	Version int         `json:"version"`
	Params  stateParams `json:"params"`
}

func (s *Shifter) currentParams() stateParams {
	return stateParams{
		FFTSize:       s.FFTSize(),
		OverlapCount:  s.OverlapCount(),
		Pitch:         s.Pitch(),
		Formant:       s.Formant(),
		EnvelopeOrder: s.EnvelopeOrder(),
		DryWet:        s.DryWet(),
		OutputGain:    s.OutputGain(),
	}
}

// SaveState serializes all parameters into an opaque blob.
func (s *Shifter) SaveState() ([]byte, error) {
	blob := stateBlob{
		Version: stateVersion,
		Params:  s.currentParams(),
	}

	data, err := json.Marshal(blob)
	if err != nil {
		return nil, fmt.Errorf("formant: failed to encode state: %w", err)
	}

	return data, nil
}

// LoadState restores parameters from a blob produced by SaveState.
// Fields absent from the blob keep their current values. An unknown
// version logs a warning and loads best-effort. Parameters are applied
// one at a time; an out-of-range value is rejected with an error and
// it and every parameter after it keep their previous values, while
// parameters applied before it stay changed.
func (s *Shifter) LoadState(data []byte) error {
	blob := stateBlob{
		Version: stateVersion,
		Params:  s.currentParams(),
	}

	if err := json.Unmarshal(data, &blob); err != nil {
		return fmt.Errorf("formant: failed to decode state: %w", err)
	}

	if blob.Version != stateVersion {
		log.Warnf("formant: state version %d differs from supported version %d, loading best-effort",
			blob.Version, stateVersion)
	}

	p := blob.Params

	if err := s.SetPitch(p.Pitch); err != nil {
		return err
	}

	if err := s.SetFormant(p.Formant); err != nil {
		return err
	}

	if err := s.SetEnvelopeOrder(p.EnvelopeOrder); err != nil {
		return err
	}

	if err := s.SetDryWet(p.DryWet); err != nil {
		return err
	}

	if err := s.SetOutputGain(p.OutputGain); err != nil {
		return err
	}

	if err := s.SetFFTSize(p.FFTSize); err != nil {
		return err
	}

	if err := s.SetOverlapCount(p.OverlapCount); err != nil {
		return err
	}

	return nil
}
