package formant

import (
	"sync"

	"github.com/cwbudde/algo-formantshift/dsp/core"
	"github.com/cwbudde/algo-formantshift/dsp/ringbuffer"
)

// SpectrumBundle holds one channel's per-frame spectral artifacts for
// observers. All slices have the configured FFT size.
type SpectrumBundle struct {
	Original      []complex128
	Shifted       []complex128
	Synthesis     []complex128
	Cepstrum      []complex128
	Envelope      []complex128
	FineStructure []complex128
}

func newSpectrumBundle(fftSize int) SpectrumBundle {
	var b SpectrumBundle
	b.resize(fftSize)

	return b
}

func (b *SpectrumBundle) resize(fftSize int) {
	b.Original = core.EnsureComplexLen(b.Original, fftSize)
	b.Shifted = core.EnsureComplexLen(b.Shifted, fftSize)
	b.Synthesis = core.EnsureComplexLen(b.Synthesis, fftSize)
	b.Cepstrum = core.EnsureComplexLen(b.Cepstrum, fftSize)
	b.Envelope = core.EnsureComplexLen(b.Envelope, fftSize)
	b.FineStructure = core.EnsureComplexLen(b.FineStructure, fftSize)
}

func (b *SpectrumBundle) copyFrom(src *SpectrumBundle) {
	b.resize(len(src.Original))
	copy(b.Original, src.Original)
	copy(b.Shifted, src.Shifted)
	copy(b.Synthesis, src.Synthesis)
	copy(b.Cepstrum, src.Cepstrum)
	copy(b.Envelope, src.Envelope)
	copy(b.FineStructure, src.FineStructure)
}

// snapshotPublisher hands per-frame artifacts from the audio actor to
// observers. The audio side uses try-lock and skips a contended frame;
// readers block briefly and must tolerate stale data.
type snapshotPublisher struct {
	mu       sync.Mutex
	spectra  []SpectrumBundle
	waveform *ringbuffer.RingBuffer
}

func (p *snapshotPublisher) configure(channels, fftSize, blockSize int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.spectra = make([]SpectrumBundle, channels)
	for ch := range p.spectra {
		p.spectra[ch] = newSpectrumBundle(fftSize)
	}

	p.waveform = ringbuffer.New(channels, blockSize)
}

// publishSpectra copies the frame bundles in; reports false when the
// mutex was contended and the frame was skipped.
func (p *snapshotPublisher) publishSpectra(src []SpectrumBundle) bool {
	if !p.mu.TryLock() {
		return false
	}
	defer p.mu.Unlock()

	for ch := range src {
		if ch < len(p.spectra) {
			p.spectra[ch].copyFrom(&src[ch])
		}
	}

	return true
}

// publishWaveform appends the mixed output block for oscilloscope
// consumers, overwriting the oldest samples when the ring is behind.
func (p *snapshotPublisher) publishWaveform(block [][]float64, channels, n int) bool {
	if !p.mu.TryLock() {
		return false
	}
	defer p.mu.Unlock()

	if p.waveform == nil || p.waveform.Channels() != channels {
		return false
	}

	if n > p.waveform.Capacity() {
		n = p.waveform.Capacity()
	}

	if short := n - p.waveform.Writable(); short > 0 {
		p.waveform.Discard(short)
	}

	return p.waveform.Write(block[:channels], 0, n)
}

// SpectrumSnapshot copies the most recently published per-channel
// spectrum bundles into dest, reallocating it as needed, and returns it.
// The data may lag the audio stream by up to one frame.
func (s *Shifter) SpectrumSnapshot(dest []SpectrumBundle) []SpectrumBundle {
	s.pub.mu.Lock()
	defer s.pub.mu.Unlock()

	if len(dest) != len(s.pub.spectra) {
		dest = make([]SpectrumBundle, len(s.pub.spectra))
	}

	for ch := range s.pub.spectra {
		dest[ch].copyFrom(&s.pub.spectra[ch])
	}

	return dest
}

// WaveformSnapshot drains the published output samples into dest,
// reallocating it as needed, and returns dest along with the number of
// valid samples per channel. Samples beyond the count are zeroed.
func (s *Shifter) WaveformSnapshot(dest [][]float64) ([][]float64, int) {
	s.pub.mu.Lock()
	defer s.pub.mu.Unlock()

	ring := s.pub.waveform
	if ring == nil {
		return dest, 0
	}

	channels := ring.Channels()
	capacity := ring.Capacity()

	if len(dest) != channels {
		dest = make([][]float64, channels)
	}

	for ch := range dest {
		dest[ch] = core.EnsureLen(dest[ch], capacity)
		core.Zero(dest[ch])
	}

	avail := ring.Readable()
	if avail == 0 {
		return dest, 0
	}

	if !ring.Read(dest, 0, avail) {
		return dest, 0
	}

	return dest, avail
}
