// Package pool recycles the byte slices used to assemble outgoing frames.
package pool

import "sync"

const (
	// SmallBufferSize covers handshakes and short chat messages.
	SmallBufferSize = 1024

	// LargeBufferSize is the largest buffer kept in the pool. Bigger
	// frames are allocated directly and left to the GC.
	LargeBufferSize = 65536
)

// BufferPool hands out byte slices in two size classes.
type BufferPool struct {
	small sync.Pool
	large sync.Pool
}

// NewBufferPool creates a new buffer pool.
func NewBufferPool() *BufferPool {
	return &BufferPool{
		small: sync.Pool{New: func() any {
			buf := make([]byte, 0, SmallBufferSize)
			return &buf
		}},
		large: sync.Pool{New: func() any {
			buf := make([]byte, 0, LargeBufferSize)
			return &buf
		}},
	}
}

// Get returns an empty buffer with capacity of at least size.
func (p *BufferPool) Get(size int) *[]byte {
	var buf *[]byte
	switch {
	case size <= SmallBufferSize:
		buf = p.small.Get().(*[]byte)
	case size <= LargeBufferSize:
		buf = p.large.Get().(*[]byte)
	default:
		b := make([]byte, 0, size)
		return &b
	}
	*buf = (*buf)[:0]
	return buf
}

// Put returns a buffer to its size class. The buffer must not be used afterwards.
// Contents are cleared first since frames may carry key material.
func (p *BufferPool) Put(buf *[]byte) {
	if buf == nil {
		return
	}
	clear((*buf)[:cap(*buf)])
	*buf = (*buf)[:0]

	switch c := cap(*buf); {
	case c < SmallBufferSize:
		// Grown from nothing or foreign; not worth keeping.
	case c <= SmallBufferSize:
		p.small.Put(buf)
	case c <= LargeBufferSize:
		p.large.Put(buf)
	}
}

var global = NewBufferPool()

// GetBuffer returns a buffer from the global pool.
func GetBuffer(size int) *[]byte {
	return global.Get(size)
}

// PutBuffer returns a buffer to the global pool.
func PutBuffer(buf *[]byte) {
	global.Put(buf)
}
