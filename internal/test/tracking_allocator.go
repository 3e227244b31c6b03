// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package test

import "sync"

// TrackingAllocator hands out fresh buffers and records whether each one is
// returned exactly once.
type TrackingAllocator struct {
	lock        sync.Mutex
	outstanding map[*byte]struct{}
	gets        int
	puts        int
	invalidPuts int
}

// NewTrackingAllocator creates an empty TrackingAllocator.
func NewTrackingAllocator() *TrackingAllocator {
	return &TrackingAllocator{outstanding: map[*byte]struct{}{}}
}

// Get returns a new buffer of length size.
func (a *TrackingAllocator) Get(size int) []byte {
	buf := make([]byte, size, size+1)

	a.lock.Lock()
	defer a.lock.Unlock()
	a.gets++
	a.outstanding[key(buf)] = struct{}{}

	return buf
}

// Put returns buf. Returning an unknown or already returned buffer is
// recorded as an invalid put.
func (a *TrackingAllocator) Put(buf []byte) {
	a.lock.Lock()
	defer a.lock.Unlock()

	k := key(buf)
	if _, ok := a.outstanding[k]; !ok {
		a.invalidPuts++

		return
	}
	delete(a.outstanding, k)
	a.puts++
}

// Outstanding returns how many buffers have not been returned.
func (a *TrackingAllocator) Outstanding() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return len(a.outstanding)
}

// Gets returns how many buffers were handed out.
func (a *TrackingAllocator) Gets() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.gets
}

// Puts returns how many buffers were returned correctly.
func (a *TrackingAllocator) Puts() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.puts
}

// InvalidPuts returns how many double or unknown returns happened.
func (a *TrackingAllocator) InvalidPuts() int {
	a.lock.Lock()
	defer a.lock.Unlock()

	return a.invalidPuts
}

func key(buf []byte) *byte {
	if cap(buf) == 0 {
		return nil
	}

	return &buf[:cap(buf)][0]
}
