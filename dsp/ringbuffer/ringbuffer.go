package ringbuffer

import (
	"sync/atomic"

	"github.com/cwbudde/algo-vecmath"
)

// View exposes up to two contiguous readable segments of one channel.
// Second is non-empty only when the readable region wraps around the end
// of storage. The slices alias internal storage and must not be retained
// beyond the visiting call.
type View struct {
	First  []float64
	Second []float64
}

// RingBuffer is a multi-channel circular sample buffer with independent
// atomic read and write positions. One writer and one reader may operate
// concurrently on distinct positions; OverlapAdd rewinds the write
// position and therefore must be serialized with Read by the caller.
type RingBuffer struct {
	// One slot more than the capacity per channel, so that a full
	// buffer and an empty buffer have distinguishable positions.
	data     [][]float64
	capacity int
	length   int
	channels int
	readPos  atomic.Int64
	writePos atomic.Int64
}

// New returns a RingBuffer with the given channel count and capacity.
func New(channels, capacity int) *RingBuffer {
	rb := &RingBuffer{}
	rb.Resize(channels, capacity)

	return rb
}

// Resize reallocates storage for the given channel count and capacity
// and resets both positions. All previously buffered samples are lost.
func (rb *RingBuffer) Resize(channels, capacity int) {
	if channels < 0 {
		channels = 0
	}

	if capacity < 0 {
		capacity = 0
	}

	rb.data = make([][]float64, channels)
	for ch := range rb.data {
		rb.data[ch] = make([]float64, capacity+1)
	}

	rb.capacity = capacity
	rb.length = capacity + 1
	rb.channels = channels
	rb.readPos.Store(0)
	rb.writePos.Store(0)
}

// Channels returns the channel count.
func (rb *RingBuffer) Channels() int { return rb.channels }

// Capacity returns the number of samples per channel the buffer can hold.
func (rb *RingBuffer) Capacity() int { return rb.capacity }

// Readable returns the number of buffered samples per channel.
func (rb *RingBuffer) Readable() int {
	r := int(rb.readPos.Load())
	w := int(rb.writePos.Load())

	if r <= w {
		return w - r
	}

	return w + rb.length - r
}

// Writable returns the free space in samples per channel.
func (rb *RingBuffer) Writable() int {
	return rb.capacity - rb.Readable()
}

// IsFull reports whether no further samples can be written.
func (rb *RingBuffer) IsFull() bool { return rb.Writable() == 0 }

// IsEmpty reports whether no samples are buffered.
func (rb *RingBuffer) IsEmpty() bool { return rb.Readable() == 0 }

// Write copies length samples per channel from src starting at srcOffset.
// It is a no-op returning false when src has the wrong channel count,
// the source range is out of bounds, or length exceeds Writable.
func (rb *RingBuffer) Write(src [][]float64, srcOffset, length int) bool {
	if len(src) != rb.channels || length < 0 || srcOffset < 0 {
		return false
	}

	if length > rb.Writable() {
		return false
	}

	for ch := range src {
		if srcOffset+length > len(src[ch]) {
			return false
		}
	}

	w := int(rb.writePos.Load())

	n1 := min(rb.length-w, length)
	n2 := length - n1

	for ch := range rb.data {
		copy(rb.data[ch][w:w+n1], src[ch][srcOffset:srcOffset+n1])
		if n2 > 0 {
			copy(rb.data[ch][:n2], src[ch][srcOffset+n1:srcOffset+length])
		}
	}

	if n2 == 0 {
		rb.writePos.Store(int64(w + n1))
	} else {
		rb.writePos.Store(int64(n2))
	}

	return true
}

// Fill writes the given value length times per channel.
func (rb *RingBuffer) Fill(length int, value float64) bool {
	if length < 0 || length > rb.Writable() {
		return false
	}

	w := int(rb.writePos.Load())

	n1 := min(rb.length-w, length)
	n2 := length - n1

	for ch := range rb.data {
		fillRange(rb.data[ch][w:w+n1], value)
		if n2 > 0 {
			fillRange(rb.data[ch][:n2], value)
		}
	}

	if n2 == 0 {
		rb.writePos.Store(int64(w + n1))
	} else {
		rb.writePos.Store(int64(n2))
	}

	return true
}

// OverlapAdd rewinds the write position by overlap samples, zero-fills
// the newly extended length-overlap region, then adds length samples per
// channel from src element-wise into the rewound region.
//
// It fails when the overlap region has not been written yet
// (overlap > Readable), when src is shorter than the overlap
// (overlap > length), or when the extension does not fit
// (length-overlap > Writable).
//
// OverlapAdd is not safe against a concurrent Read; callers must
// serialize the two.
func (rb *RingBuffer) OverlapAdd(src [][]float64, overlap, length int) bool {
	if len(src) != rb.channels || length < 0 || overlap < 0 {
		return false
	}

	if overlap > rb.Readable() {
		return false
	}

	if overlap > length {
		return false
	}

	ext := length - overlap
	if ext > rb.Writable() {
		return false
	}

	for ch := range src {
		if length > len(src[ch]) {
			return false
		}
	}

	w := int(rb.writePos.Load())

	overlapPos := w - overlap
	if overlapPos < 0 {
		overlapPos += rb.length
	}

	// Zero the extension so the element-wise add below sees defined data.
	c1 := min(rb.length-w, ext)
	c2 := ext - c1

	for ch := range rb.data {
		fillRange(rb.data[ch][w:w+c1], 0)
		if c2 > 0 {
			fillRange(rb.data[ch][:c2], 0)
		}
	}

	n1 := min(rb.length-overlapPos, length)
	n2 := length - n1

	for ch := range rb.data {
		vecmath.AddBlockInPlace(rb.data[ch][overlapPos:overlapPos+n1], src[ch][:n1])
		if n2 > 0 {
			vecmath.AddBlockInPlace(rb.data[ch][:n2], src[ch][n1:length])
		}
	}

	if n2 == 0 {
		rb.writePos.Store(int64(overlapPos + n1))
	} else {
		rb.writePos.Store(int64(n2))
	}

	return true
}

// Read copies length samples per channel into dst starting at dstOffset
// and advances the read position. It is a no-op returning false when dst
// has the wrong channel count, the destination range is out of bounds,
// or length exceeds Readable.
func (rb *RingBuffer) Read(dst [][]float64, dstOffset, length int) bool {
	if len(dst) != rb.channels || length < 0 || dstOffset < 0 {
		return false
	}

	if length > rb.Readable() {
		return false
	}

	for ch := range dst {
		if dstOffset+length > len(dst[ch]) {
			return false
		}
	}

	r := int(rb.readPos.Load())

	n1 := min(rb.length-r, length)
	n2 := length - n1

	for ch := range rb.data {
		copy(dst[ch][dstOffset:dstOffset+n1], rb.data[ch][r:r+n1])
		if n2 > 0 {
			copy(dst[ch][dstOffset+n1:dstOffset+length], rb.data[ch][:n2])
		}
	}

	if n2 == 0 {
		rb.readPos.Store(int64(r + n1))
	} else {
		rb.readPos.Store(int64(n2))
	}

	return true
}

// ReadView passes the readable region of every channel to visit as up to
// two contiguous segments, without copying and without advancing the
// read position. The View slices must not outlive the call.
func (rb *RingBuffer) ReadView(visit func(ch int, v View)) {
	length := rb.Readable()
	r := int(rb.readPos.Load())

	n1 := min(rb.length-r, length)
	n2 := length - n1

	for ch := range rb.data {
		v := View{First: rb.data[ch][r : r+n1]}
		if n2 > 0 {
			v.Second = rb.data[ch][:n2]
		}

		visit(ch, v)
	}
}

// Discard drops length buffered samples per channel.
func (rb *RingBuffer) Discard(length int) bool {
	if length < 0 || length > rb.Readable() {
		return false
	}

	r := int(rb.readPos.Load())

	n1 := min(rb.length-r, length)
	n2 := length - n1

	if n2 == 0 {
		rb.readPos.Store(int64(r + n1))
	} else {
		rb.readPos.Store(int64(n2))
	}

	return true
}

// DiscardAll drops every buffered sample.
func (rb *RingBuffer) DiscardAll() {
	rb.Discard(rb.Readable())
}

func fillRange(dst []float64, value float64) {
	for i := range dst {
		dst[i] = value
	}
}
