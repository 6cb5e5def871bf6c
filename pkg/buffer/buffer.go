// Package buffer provides lock-guarded single-slot buffers shared between
// producers and the control loop.
package buffer

import "sync"

// Empty is the read counter of a buffer holding no fresh value.
const Empty = -1

// SyncBuffer is a single-slot mailbox with freshness tracking.
//
// The read counter is Empty after construction or Reset, 0 right after
// Write, and goes up by one on every Read. Reading an Empty buffer is
// allowed, returns the stored (possibly zero) value and moves the counter
// from Empty to 0.
type SyncBuffer[T any] struct {
	lock  sync.Locker
	value T
	reads int
}

// New creates a SyncBuffer guarded by lock.
// A nil lock gives the buffer its own mutex.
func New[T any](lock sync.Locker) *SyncBuffer[T] {
	if lock == nil {
		lock = &sync.Mutex{}
	}
	return &SyncBuffer[T]{lock: lock, reads: Empty}
}

// Write replaces the value and marks it fresh.
func (b *SyncBuffer[T]) Write(v T) {
	b.lock.Lock()
	b.value, b.reads = v, 0
	b.lock.Unlock()
}

// Read returns a copy of the value and counts the read.
func (b *SyncBuffer[T]) Read() T {
	b.lock.Lock()
	defer b.lock.Unlock()
	b.reads++
	return b.value
}

// NumReads returns the read counter.
func (b *SyncBuffer[T]) NumReads() int {
	b.lock.Lock()
	defer b.lock.Unlock()
	return b.reads
}

// Reset marks the buffer Empty. The stored value is kept.
func (b *SyncBuffer[T]) Reset() {
	b.lock.Lock()
	b.reads = Empty
	b.lock.Unlock()
}

func (b *SyncBuffer[T]) numReadsLocked() int {
	return b.reads
}

func (b *SyncBuffer[T]) resetLocked() {
	b.reads = Empty
}
