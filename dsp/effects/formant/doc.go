// Package formant provides a streaming pitch and formant shifter.
//
// The Shifter decouples the caller's block cadence from a fixed
// analysis frame via ring buffers, estimates the spectral envelope by
// cepstral liftering, shifts pitch with a phase vocoder, warps the
// envelope independently of pitch, and resynthesizes by overlap-add.
// Pitch and formant move independently: shifting one leaves the other
// in place.
//
// ProcessBlock is realtime-safe once constructed: it allocates nothing,
// takes no blocking locks, and degrades to silence or skipped snapshot
// publication under contention.
package formant
