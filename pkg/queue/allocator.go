// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package queue

import "sync"

// Allocator hands out payload buffers for queued packets. Every buffer
// obtained with Get is returned with Put exactly once.
type Allocator interface {
	Get(size int) []byte
	Put(buf []byte)
}

// PoolAllocator recycles payload buffers through a sync.Pool.
type PoolAllocator struct {
	pool *sync.Pool
}

// NewPoolAllocator returns a PoolAllocator whose fresh buffers have at least
// defaultSize bytes of capacity.
func NewPoolAllocator(defaultSize int) *PoolAllocator {
	return &PoolAllocator{
		pool: &sync.Pool{
			New: func() interface{} {
				b := make([]byte, defaultSize)
				return &b
			},
		},
	}
}

// Get returns a buffer of length size.
func (a *PoolAllocator) Get(size int) []byte {
	buf, ok := a.pool.Get().(*[]byte)
	if !ok || cap(*buf) < size {
		return make([]byte, size)
	}

	return (*buf)[:size]
}

// Put makes buf available for reuse.
func (a *PoolAllocator) Put(buf []byte) {
	if buf == nil {
		return
	}
	buf = buf[:cap(buf)]
	a.pool.Put(&buf)
}
