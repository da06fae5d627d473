// Package ring provides a fixed-capacity, goroutine-safe ring buffer.
package ring

import "sync"

// Buffer keeps the most recent Cap() values. Len() never exceeds Cap().
type Buffer[T any] struct {
	mu    sync.RWMutex
	items []T
	next  int
	full  bool
}

// New creates a buffer holding at most capacity values. Capacity below 1 is raised to 1.
func New[T any](capacity int) *Buffer[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer[T]{items: make([]T, capacity)}
}

// Push appends v, evicting the oldest value when the buffer is full.
func (b *Buffer[T]) Push(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.items[b.next] = v
	b.next = (b.next + 1) % len(b.items)
	if b.next == 0 {
		b.full = true
	}
}

// Len returns the number of stored values.
func (b *Buffer[T]) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.full {
		return len(b.items)
	}
	return b.next
}

// Cap returns the fixed capacity.
func (b *Buffer[T]) Cap() int {
	return len(b.items)
}

// Newest returns stored values, most recent first.
func (b *Buffer[T]) Newest() []T {
	b.mu.RLock()
	defer b.mu.RUnlock()

	n := b.next
	if b.full {
		n = len(b.items)
	}
	out := make([]T, 0, n)
	for i := 1; i <= n; i++ {
		idx := (b.next - i + len(b.items)) % len(b.items)
		out = append(out, b.items[idx])
	}
	return out
}

// Clear drops all values.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	var zero T
	for i := range b.items {
		b.items[i] = zero
	}
	b.next = 0
	b.full = false
}
