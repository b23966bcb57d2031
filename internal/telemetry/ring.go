package telemetry

// DefaultRingCapacity matches the rolling window the dashboards display.
const DefaultRingCapacity = 100

// Ring is a fixed-capacity circular buffer that overwrites its logically
// oldest element once full. Overflow is the steady state of a rolling window,
// never an error. Ring itself is not goroutine-safe; SampleStore and
// PacketStore wrap it with locking.
type Ring[T any] struct {
	buf      []T
	capacity int
	head     int // next write position
	size     int
}

// NewRing returns a ring holding at most capacity elements. Non-positive
// capacities fall back to DefaultRingCapacity.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity <= 0 {
		capacity = DefaultRingCapacity
	}
	return &Ring[T]{
		buf:      make([]T, capacity),
		capacity: capacity,
	}
}

// Push appends v in O(1), overwriting the oldest element when full.
func (r *Ring[T]) Push(v T) {
	r.buf[r.head] = v
	r.head = (r.head + 1) % r.capacity
	if r.size < r.capacity {
		r.size++
	}
}

// Snapshot returns a freshly allocated copy of the contents, oldest first.
func (r *Ring[T]) Snapshot() []T {
	out := make([]T, r.size)
	for i := 0; i < r.size; i++ {
		out[i] = r.At(i)
	}
	return out
}

// At returns the i-th element counting from the oldest. The caller is
// responsible for bounds: 0 <= i < Len().
func (r *Ring[T]) At(i int) T {
	return r.buf[(r.head-r.size+i+r.capacity)%r.capacity]
}

// Latest returns the most recently pushed element, false when empty.
func (r *Ring[T]) Latest() (T, bool) {
	var zero T
	if r.size == 0 {
		return zero, false
	}
	return r.buf[(r.head-1+r.capacity)%r.capacity], true
}

func (r *Ring[T]) Len() int { return r.size }
func (r *Ring[T]) Cap() int { return r.capacity }

// Clear empties the ring and zeroes the buffer so evicted elements do not
// keep referenced memory alive.
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head = 0
	r.size = 0
}
