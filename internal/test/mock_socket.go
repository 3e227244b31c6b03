// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package test

import (
	"bytes"
	"sync"
)

// MockSocket is an io.WriteCloser that records every Write call. It can be
// scripted to accept short writes, report zero bytes written or fail.
type MockSocket struct {
	lock     sync.Mutex
	writes   [][]byte
	data     bytes.Buffer
	maxChunk int
	results  []scriptedWrite
	zeroNext int
	closed   bool
}

type scriptedWrite struct {
	accept int
	err    error
}

// NewMockSocket creates a MockSocket. A positive maxChunk caps how many bytes
// a single Write accepts.
func NewMockSocket(maxChunk int) *MockSocket {
	return &MockSocket{maxChunk: maxChunk}
}

// Write implements io.Writer.
func (s *MockSocket) Write(p []byte) (int, error) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if len(s.results) > 0 {
		next := s.results[0]
		s.results = s.results[1:]
		n := min(next.accept, len(p))
		s.record(p[:n])

		return n, next.err
	}
	if s.zeroNext > 0 {
		s.zeroNext--

		return 0, nil
	}

	n := len(p)
	if s.maxChunk > 0 && n > s.maxChunk {
		n = s.maxChunk
	}
	s.record(p[:n])

	return n, nil
}

func (s *MockSocket) record(p []byte) {
	if len(p) == 0 {
		return
	}
	s.writes = append(s.writes, append([]byte(nil), p...))
	s.data.Write(p)
}

// Close implements io.Closer.
func (s *MockSocket) Close() error {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.closed = true

	return nil
}

// FailNext makes the next Write return err.
func (s *MockSocket) FailNext(err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.results = append(s.results, scriptedWrite{err: err})
}

// PartialNext makes the next Write accept at most n bytes and return err.
func (s *MockSocket) PartialNext(n int, err error) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.results = append(s.results, scriptedWrite{accept: n, err: err})
}

// ZeroNext makes the next n Writes report zero bytes written without error.
func (s *MockSocket) ZeroNext(n int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.zeroNext += n
}

// Writes returns the bytes accepted by each Write call.
func (s *MockSocket) Writes() [][]byte {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([][]byte(nil), s.writes...)
}

// Bytes returns everything written so far.
func (s *MockSocket) Bytes() []byte {
	s.lock.Lock()
	defer s.lock.Unlock()

	return append([]byte(nil), s.data.Bytes()...)
}

// Closed reports whether Close was called.
func (s *MockSocket) Closed() bool {
	s.lock.Lock()
	defer s.lock.Unlock()

	return s.closed
}
