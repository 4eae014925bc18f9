package formant

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/cwbudde/algo-formantshift/dsp/core"
	"github.com/cwbudde/algo-formantshift/dsp/ringbuffer"
	"github.com/cwbudde/algo-formantshift/dsp/window"
	algofft "github.com/cwbudde/algo-fft"
)

const (
	defaultFFTSize       = 1024
	defaultOverlapCount  = 8
	defaultEnvelopeOrder = 20
	defaultDryWet        = 0.5
	defaultOutputGainDB  = 0.0
	defaultMaxBlockSize  = 1024
	defaultChannels      = 2

	minFFTSize       = 256
	maxFFTSize       = 16384
	minOverlapCount  = 2
	maxOverlapCount  = 64
	minEnvelopeOrder = 2
	maxEnvelopeOrder = 90
	minShiftPercent  = -100.0
	maxShiftPercent  = 100.0
	minOutputGainDB  = -48.0
	maxOutputGainDB  = 6.0
	maxChannels      = 2

	// Output gain values at or below this are rendered as silence.
	outputGainSilenceDB = -47.9

	// Hard output limit after the dry/wet mix.
	clipLimit = 1.5

	// Length of the per-frame gain-compensation ramp in smoother steps.
	gainRampLength = 10

	// Floor for log-magnitude computation, keeping log away from -Inf
	// without biasing small but positive magnitudes.
	minMagnitude = math.SmallestNonzeroFloat64
)

// atomicFloat is a float64 readable and writable with single atomic ops,
// for parameters shared between a control thread and the audio path.
type atomicFloat struct {
	bits atomic.Uint64
}

func (f *atomicFloat) Store(v float64) { f.bits.Store(math.Float64bits(v)) }

func (f *atomicFloat) Load() float64 { return math.Float64frombits(f.bits.Load()) }

// percentToRatio maps a shift percentage in [-100, 100] to a factor in
// [0.5, 2], one octave either way at the extremes.
func percentToRatio(percent float64) float64 {
	return math.Pow(2, percent/100)
}

// Option configures a Shifter at construction time.
type Option func(*shifterConfig) error

type shifterConfig struct {
	channels      int
	maxBlockSize  int
	fftSize       int
	overlapCount  int
	pitch         float64
	formant       float64
	envelopeOrder int
	dryWet        float64
	outputGainDB  float64
}

func defaultShifterConfig() shifterConfig {
	return shifterConfig{
		channels:      defaultChannels,
		maxBlockSize:  defaultMaxBlockSize,
		fftSize:       defaultFFTSize,
		overlapCount:  defaultOverlapCount,
		envelopeOrder: defaultEnvelopeOrder,
		dryWet:        defaultDryWet,
		outputGainDB:  defaultOutputGainDB,
	}
}

// WithChannels sets the channel count. Only mono and stereo are supported.
func WithChannels(channels int) Option {
	return func(cfg *shifterConfig) error {
		if channels < 1 || channels > maxChannels {
			return fmt.Errorf("formant: channel count must be 1 or 2: %d", channels)
		}

		cfg.channels = channels

		return nil
	}
}

// WithMaxBlockSize sets the largest block length ProcessBlock accepts.
func WithMaxBlockSize(size int) Option {
	return func(cfg *shifterConfig) error {
		if size < 1 {
			return fmt.Errorf("formant: max block size must be >= 1: %d", size)
		}

		cfg.maxBlockSize = size

		return nil
	}
}

// WithFFTSize sets the analysis frame size. Must be a power of two in
// [256, 16384].
func WithFFTSize(size int) Option {
	return func(cfg *shifterConfig) error {
		if err := validateFFTSize(size); err != nil {
			return err
		}

		cfg.fftSize = size

		return nil
	}
}

// WithOverlapCount sets the overlap factor. Must be a power of two in
// [2, 64].
func WithOverlapCount(count int) Option {
	return func(cfg *shifterConfig) error {
		if err := validateOverlapCount(count); err != nil {
			return err
		}

		cfg.overlapCount = count

		return nil
	}
}

// WithPitch sets the pitch shift in percent of an octave, in [-100, 100].
func WithPitch(percent float64) Option {
	return func(cfg *shifterConfig) error {
		if err := validateShiftPercent("pitch", percent); err != nil {
			return err
		}

		cfg.pitch = percent

		return nil
	}
}

// WithFormant sets the formant shift in percent of an octave, in [-100, 100].
func WithFormant(percent float64) Option {
	return func(cfg *shifterConfig) error {
		if err := validateShiftPercent("formant", percent); err != nil {
			return err
		}

		cfg.formant = percent

		return nil
	}
}

// WithEnvelopeOrder sets the cepstral liftering cutoff, in [2, 90].
func WithEnvelopeOrder(order int) Option {
	return func(cfg *shifterConfig) error {
		if order < minEnvelopeOrder || order > maxEnvelopeOrder {
			return fmt.Errorf("formant: envelope order must be in [%d, %d]: %d",
				minEnvelopeOrder, maxEnvelopeOrder, order)
		}

		cfg.envelopeOrder = order

		return nil
	}
}

// WithDryWet sets the post-mix blend in [0, 1]; 0 is fully dry.
func WithDryWet(rate float64) Option {
	return func(cfg *shifterConfig) error {
		if rate < 0 || rate > 1 || math.IsNaN(rate) {
			return fmt.Errorf("formant: dry/wet rate must be in [0, 1]: %f", rate)
		}

		cfg.dryWet = rate

		return nil
	}
}

// WithOutputGain sets the output gain in dB, in [-48, 6]. Values at or
// below -47.9 dB mute the output.
func WithOutputGain(db float64) Option {
	return func(cfg *shifterConfig) error {
		if db < minOutputGainDB || db > maxOutputGainDB || math.IsNaN(db) {
			return fmt.Errorf("formant: output gain must be in [%g, %g] dB: %f",
				minOutputGainDB, maxOutputGainDB, db)
		}

		cfg.outputGainDB = db

		return nil
	}
}

func validateFFTSize(size int) error {
	if size < minFFTSize || size > maxFFTSize || !core.IsPowerOfTwo(size) {
		return fmt.Errorf("formant: FFT size must be a power of two in [%d, %d]: %d",
			minFFTSize, maxFFTSize, size)
	}

	return nil
}

func validateOverlapCount(count int) error {
	if count < minOverlapCount || count > maxOverlapCount || !core.IsPowerOfTwo(count) {
		return fmt.Errorf("formant: overlap count must be a power of two in [%d, %d]: %d",
			minOverlapCount, maxOverlapCount, count)
	}

	return nil
}

func validateShiftPercent(name string, percent float64) error {
	if percent < minShiftPercent || percent > maxShiftPercent || math.IsNaN(percent) {
		return fmt.Errorf("formant: %s shift must be in [%g, %g] percent: %f",
			name, minShiftPercent, maxShiftPercent, percent)
	}

	return nil
}

// Shifter performs independent streaming pitch and formant shifting.
//
// One goroutine (the audio actor) calls ProcessBlock; any other
// goroutine may read and write parameters or copy snapshots
// concurrently. Reconfiguration (FFT size, overlap) serializes against
// the audio actor through the process lock.
type Shifter struct {
	sampleRate   float64
	channels     int
	maxBlockSize int

	// Guarded by processMu.
	fftSize      int
	overlapCount int

	// Continuous parameters, atomically loaded from the audio path.
	pitch         atomicFloat
	formant       atomicFloat
	dryWet        atomicFloat
	outputGainDB  atomicFloat
	envelopeOrder atomic.Int64

	processMu sync.Mutex

	plan *algofft.Plan[complex128]
	win  []float64

	input  *ringbuffer.RingBuffer
	output *ringbuffer.RingBuffer

	dry      [][]float64
	wet      [][]float64
	frameOut [][]float64

	signal      []complex128
	freq        []complex128
	cepstrumBuf []complex128
	scratch     []complex128
	scratch2    []complex128
	phaseBuf    []float64

	pv   *phaseVocoder
	gain linearSmoother

	tmpBundles []SpectrumBundle
	pub        snapshotPublisher
}

// New creates a Shifter for the given sample rate.
func New(sampleRate float64, opts ...Option) (*Shifter, error) {
	if sampleRate <= 0 || math.IsNaN(sampleRate) || math.IsInf(sampleRate, 0) {
		return nil, fmt.Errorf("formant: sample rate must be positive and finite: %f", sampleRate)
	}

	cfg := defaultShifterConfig()

	for _, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}

	s := &Shifter{
		sampleRate:   sampleRate,
		channels:     cfg.channels,
		maxBlockSize: cfg.maxBlockSize,
		fftSize:      cfg.fftSize,
		overlapCount: cfg.overlapCount,
	}

	s.pitch.Store(cfg.pitch)
	s.formant.Store(cfg.formant)
	s.dryWet.Store(cfg.dryWet)
	s.outputGainDB.Store(cfg.outputGainDB)
	s.envelopeOrder.Store(int64(cfg.envelopeOrder))

	if err := s.prepare(); err != nil {
		return nil, err
	}

	return s, nil
}

// prepare allocates all processing state for the current configuration.
// Callers must hold processMu (or be the constructor).
func (s *Shifter) prepare() error {
	n := s.fftSize
	hop := n / s.overlapCount
	block := s.maxBlockSize

	plan, err := algofft.NewPlan64(n)
	if err != nil {
		return fmt.Errorf("formant: failed to create FFT plan: %w", err)
	}

	s.plan = plan
	s.win = window.Generate(window.TypeHann, n, window.WithPeriodic())

	s.input = ringbuffer.New(s.channels, n)
	s.input.Fill(n-hop, 0)

	s.output = ringbuffer.New(s.channels, n+block)
	s.output.Fill(n+block-hop, 0)

	s.dry = makeChannelBuffers(s.channels, block)
	s.wet = makeChannelBuffers(s.channels, block)
	s.frameOut = makeChannelBuffers(s.channels, n)

	s.signal = make([]complex128, n)
	s.freq = make([]complex128, n)
	s.cepstrumBuf = make([]complex128, n)
	s.scratch = make([]complex128, n)
	s.scratch2 = make([]complex128, n)
	s.phaseBuf = make([]float64, n)

	s.pv = newPhaseVocoder(s.channels, n)
	s.gain.reset(gainRampLength, 1)

	s.tmpBundles = make([]SpectrumBundle, s.channels)
	for ch := range s.tmpBundles {
		s.tmpBundles[ch] = newSpectrumBundle(n)
	}

	s.pub.configure(s.channels, n, block)

	return nil
}

func makeChannelBuffers(channels, length int) [][]float64 {
	out := make([][]float64, channels)
	for ch := range out {
		out[ch] = make([]float64, length)
	}

	return out
}

// Getters.

// SampleRate returns the sample rate in Hz.
func (s *Shifter) SampleRate() float64 { return s.sampleRate }

// Channels returns the configured channel count.
func (s *Shifter) Channels() int { return s.channels }

// MaxBlockSize returns the largest block length ProcessBlock accepts.
func (s *Shifter) MaxBlockSize() int { return s.maxBlockSize }

// FFTSize returns the analysis frame size.
func (s *Shifter) FFTSize() int {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	return s.fftSize
}

// OverlapCount returns the overlap factor.
func (s *Shifter) OverlapCount() int {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	return s.overlapCount
}

// Latency returns the STFT path delay in samples, fftSize minus the
// hop size. The block-decoupling buffer adds a further MaxBlockSize
// samples; TotalLatency reports the end-to-end figure hosts should use
// for delay compensation.
func (s *Shifter) Latency() int {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	return s.fftSize - s.fftSize/s.overlapCount
}

// TotalLatency returns the end-to-end delay in samples between a
// sample entering and leaving ProcessBlock.
func (s *Shifter) TotalLatency() int {
	return s.Latency() + s.maxBlockSize
}

// Pitch returns the pitch shift in percent.
func (s *Shifter) Pitch() float64 { return s.pitch.Load() }

// Formant returns the formant shift in percent.
func (s *Shifter) Formant() float64 { return s.formant.Load() }

// EnvelopeOrder returns the cepstral liftering cutoff.
func (s *Shifter) EnvelopeOrder() int { return int(s.envelopeOrder.Load()) }

// DryWet returns the post-mix blend.
func (s *Shifter) DryWet() float64 { return s.dryWet.Load() }

// OutputGain returns the output gain in dB.
func (s *Shifter) OutputGain() float64 { return s.outputGainDB.Load() }

// Setters.

// SetPitch sets the pitch shift in percent of an octave, in [-100, 100].
func (s *Shifter) SetPitch(percent float64) error {
	if err := validateShiftPercent("pitch", percent); err != nil {
		return err
	}

	s.pitch.Store(percent)

	return nil
}

// SetFormant sets the formant shift in percent of an octave, in [-100, 100].
func (s *Shifter) SetFormant(percent float64) error {
	if err := validateShiftPercent("formant", percent); err != nil {
		return err
	}

	s.formant.Store(percent)

	return nil
}

// SetEnvelopeOrder sets the cepstral liftering cutoff, in [2, 90].
func (s *Shifter) SetEnvelopeOrder(order int) error {
	if order < minEnvelopeOrder || order > maxEnvelopeOrder {
		return fmt.Errorf("formant: envelope order must be in [%d, %d]: %d",
			minEnvelopeOrder, maxEnvelopeOrder, order)
	}

	s.envelopeOrder.Store(int64(order))

	return nil
}

// SetDryWet sets the post-mix blend in [0, 1].
func (s *Shifter) SetDryWet(rate float64) error {
	if rate < 0 || rate > 1 || math.IsNaN(rate) {
		return fmt.Errorf("formant: dry/wet rate must be in [0, 1]: %f", rate)
	}

	s.dryWet.Store(rate)

	return nil
}

// SetOutputGain sets the output gain in dB, in [-48, 6].
func (s *Shifter) SetOutputGain(db float64) error {
	if db < minOutputGainDB || db > maxOutputGainDB || math.IsNaN(db) {
		return fmt.Errorf("formant: output gain must be in [%g, %g] dB: %f",
			minOutputGainDB, maxOutputGainDB, db)
	}

	s.outputGainDB.Store(db)

	return nil
}

// SetFFTSize changes the analysis frame size and reconfigures all
// buffers. The audio actor outputs silence for blocks that arrive while
// the reconfiguration holds the process lock. Phase state is reset.
func (s *Shifter) SetFFTSize(size int) error {
	if err := validateFFTSize(size); err != nil {
		return err
	}

	s.processMu.Lock()
	defer s.processMu.Unlock()

	if size == s.fftSize {
		return nil
	}

	prev := s.fftSize
	s.fftSize = size

	if err := s.prepare(); err != nil {
		s.fftSize = prev

		return err
	}

	return nil
}

// SetOverlapCount changes the overlap factor and reconfigures all
// buffers. Phase state is reset.
func (s *Shifter) SetOverlapCount(count int) error {
	if err := validateOverlapCount(count); err != nil {
		return err
	}

	s.processMu.Lock()
	defer s.processMu.Unlock()

	if count == s.overlapCount {
		return nil
	}

	prev := s.overlapCount
	s.overlapCount = count

	if err := s.prepare(); err != nil {
		s.overlapCount = prev

		return err
	}

	return nil
}

// Reset clears all buffered audio and phase state, returning the
// Shifter to its initial primed condition.
func (s *Shifter) Reset() {
	s.processMu.Lock()
	defer s.processMu.Unlock()

	n := s.fftSize
	hop := n / s.overlapCount

	s.input.DiscardAll()
	s.input.Fill(n-hop, 0)

	s.output.DiscardAll()
	s.output.Fill(n+s.maxBlockSize-hop, 0)

	s.pv.reset()
	s.gain.reset(gainRampLength, 1)
}

// ProcessBlock shifts one block of audio in place. block must carry at
// least Channels() channels of equal length, at most MaxBlockSize()
// samples each. Channels beyond Channels() receive a copy of the first
// processed channel, widening mono input.
//
// When a reconfiguration holds the process lock, the block is rendered
// silent and ProcessBlock returns nil.
func (s *Shifter) ProcessBlock(block [][]float64) error {
	if len(block) < s.channels {
		return fmt.Errorf("formant: block has %d channels, need at least %d", len(block), s.channels)
	}

	n := len(block[0])
	for ch := 1; ch < len(block); ch++ {
		if len(block[ch]) != n {
			return fmt.Errorf("formant: block channel lengths differ: %d vs %d", len(block[ch]), n)
		}
	}

	if n == 0 {
		return nil
	}

	if n > s.maxBlockSize {
		return fmt.Errorf("formant: block length %d exceeds configured maximum %d", n, s.maxBlockSize)
	}

	if !s.processMu.TryLock() {
		for ch := range block {
			core.Zero(block[ch][:n])
		}

		return nil
	}
	defer s.processMu.Unlock()

	wetLevel := core.Clamp(s.dryWet.Load(), 0, 1)
	dryLevel := 1 - wetLevel
	outGain := core.DBToLinearWithFloor(s.outputGainDB.Load(), outputGainSilenceDB)

	for ch := range s.channels {
		copy(s.dry[ch][:n], block[ch][:n])
	}

	if err := s.assemble(block[:s.channels], n); err != nil {
		for ch := range block {
			core.Zero(block[ch][:n])
		}

		return err
	}

	for ch := range s.channels {
		out := block[ch]
		dry := s.dry[ch]
		wet := s.wet[ch]

		for i := range n {
			v := (dryLevel*dry[i] + wetLevel*wet[i]) * outGain
			out[i] = core.Clamp(v, -clipLimit, clipLimit)
		}
	}

	// Mono input widens to every extra output channel.
	for ch := s.channels; ch < len(block); ch++ {
		copy(block[ch][:n], block[0][:n])
	}

	s.pub.publishWaveform(block, s.channels, n)

	return nil
}

// assemble runs the hop loop: feed the input ring, process a frame
// whenever it fills, and drain the processed samples into the wet
// buffers.
func (s *Shifter) assemble(block [][]float64, n int) error {
	consumed := 0

	for consumed < n {
		writable := s.input.Writable()

		toWrite := writable
		if remaining := n - consumed; remaining < toWrite {
			toWrite = remaining
		}

		if toWrite == 0 {
			return fmt.Errorf("formant: input ring stalled with %d samples pending", n-consumed)
		}

		if !s.input.Write(block, consumed, toWrite) {
			return fmt.Errorf("formant: input ring write of %d samples failed", toWrite)
		}

		if s.input.IsFull() {
			if err := s.processFrame(); err != nil {
				return err
			}
		}

		if !s.output.Read(s.wet, consumed, toWrite) {
			return fmt.Errorf("formant: output ring read of %d samples failed", toWrite)
		}

		consumed += toWrite
	}

	return nil
}
