// Package ringbuf implements the lossy byte FIFO that sits between a link
// reader and the packet framer.
//
// A Buffer supports exactly one producer calling ForcePush and one consumer
// calling TryPop. Neither side ever blocks: when the buffer is full the oldest
// unread byte is evicted to make room for the new one.
package ringbuf

import "sync/atomic"

type Buffer struct {
	ch      chan byte
	dropped uint64
}

// New returns a buffer holding at most size bytes. Sizes below 1 are raised to 1.
func New(size int) *Buffer {
	if size < 1 {
		size = 1
	}
	return &Buffer{
		ch: make(chan byte, size),
	}
}

// ForcePush appends b, evicting the oldest unread byte if the buffer is full.
func (r *Buffer) ForcePush(b byte) {
	for {
		select {
		case r.ch <- b:
			return
		default:
		}
		// Full. The consumer may drain concurrently, in which case there is
		// nothing to evict and the next send succeeds.
		select {
		case <-r.ch:
			atomic.AddUint64(&r.dropped, 1)
		default:
		}
	}
}

// Write pushes every byte of p. It never fails and always reports len(p).
func (r *Buffer) Write(p []byte) (int, error) {
	for _, b := range p {
		r.ForcePush(b)
	}
	return len(p), nil
}

// TryPop returns the oldest unread byte, or false if the buffer is empty.
func (r *Buffer) TryPop() (byte, bool) {
	select {
	case b := <-r.ch:
		return b, true
	default:
		return 0, false
	}
}

// Reset discards all unread bytes. It must not race with a producer.
func (r *Buffer) Reset() {
	for {
		select {
		case <-r.ch:
		default:
			return
		}
	}
}

func (r *Buffer) Len() int {
	return len(r.ch)
}

func (r *Buffer) Cap() int {
	return cap(r.ch)
}

// Dropped reports how many bytes have been evicted by ForcePush since creation.
func (r *Buffer) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}
