// Package ring implements a fixed-capacity FIFO buffer. When full, a push
// evicts the oldest element. It is not safe for concurrent use; owners guard
// it with their own lock.
package ring

// Buffer holds the most recent Capacity() elements pushed into it.
type Buffer[T any] struct {
	buf   []T
	start int // index of the oldest element
	size  int
}

// New returns a buffer that retains at most capacity elements.
// It panics if capacity is not positive.
func New[T any](capacity int) *Buffer[T] {
	if capacity <= 0 {
		panic("ring: capacity must be positive")
	}
	return &Buffer[T]{buf: make([]T, capacity)}
}

// Push appends v, evicting the oldest element if the buffer is full.
func (b *Buffer[T]) Push(v T) {
	if b.size < len(b.buf) {
		b.buf[(b.start+b.size)%len(b.buf)] = v
		b.size++
		return
	}
	b.buf[b.start] = v
	b.start = (b.start + 1) % len(b.buf)
}

// Len returns the number of elements currently held.
func (b *Buffer[T]) Len() int { return b.size }

// Capacity returns the maximum number of retained elements.
func (b *Buffer[T]) Capacity() int { return len(b.buf) }

// At returns the i-th element, 0 being the oldest. It panics if i is out of range.
func (b *Buffer[T]) At(i int) T {
	if i < 0 || i >= b.size {
		panic("ring: index out of range")
	}
	return b.buf[(b.start+i)%len(b.buf)]
}

// Snapshot returns the elements oldest-first in a fresh slice.
func (b *Buffer[T]) Snapshot() []T {
	out := make([]T, b.size)
	for i := 0; i < b.size; i++ {
		out[i] = b.buf[(b.start+i)%len(b.buf)]
	}
	return out
}

// Clear drops all elements, keeping the allocated capacity.
func (b *Buffer[T]) Clear() {
	var zero T
	for i := range b.buf {
		b.buf[i] = zero
	}
	b.start, b.size = 0, 0
}
