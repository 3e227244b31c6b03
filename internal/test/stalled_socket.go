// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package test

import (
	"net"
	"sync"
)

// StalledSocket is an io.WriteCloser whose writes block until it is closed,
// like a TCP socket whose peer stopped reading.
type StalledSocket struct {
	blocked     chan struct{}
	blockedOnce sync.Once
	closed      chan struct{}
	closedOnce  sync.Once
}

// NewStalledSocket creates a StalledSocket.
func NewStalledSocket() *StalledSocket {
	return &StalledSocket{
		blocked: make(chan struct{}),
		closed:  make(chan struct{}),
	}
}

// Write blocks until Close is called and then fails with net.ErrClosed.
func (s *StalledSocket) Write([]byte) (int, error) {
	s.blockedOnce.Do(func() { close(s.blocked) })
	<-s.closed

	return 0, net.ErrClosed
}

// Close releases blocked writes.
func (s *StalledSocket) Close() error {
	s.closedOnce.Do(func() { close(s.closed) })

	return nil
}

// Blocked is closed once the first Write is waiting.
func (s *StalledSocket) Blocked() <-chan struct{} {
	return s.blocked
}
