// Package ringbuffer provides a multi-channel circular sample buffer
// for decoupling block cadences in streaming DSP pipelines.
//
// The buffer supports single-producer/single-consumer use through
// atomic read and write positions, an overlap-add write variant for
// STFT resynthesis, and a zero-copy two-segment view for windowed
// analysis.
package ringbuffer
