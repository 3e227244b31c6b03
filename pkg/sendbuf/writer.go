// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package sendbuf coalesces small writes into socket sized sends.
package sendbuf

import (
	"errors"
	"fmt"
	"io"
	"sync"
)

const (
	// MinSize is the smallest accepted buffer size.
	MinSize = 536
	// MaxSize is the largest accepted buffer size.
	MaxSize = 32120
	// DefaultSize is a typical Ethernet TCP payload.
	DefaultSize = 1460
)

var (
	// ErrWriteFailed is returned when the socket reports a write error.
	ErrWriteFailed = errors.New("sendbuf: socket write failed")
	// ErrClosedByPeer is returned when the socket accepts no bytes or the peer
	// has closed the connection.
	ErrClosedByPeer = errors.New("sendbuf: socket closed by peer")
)

// ClampSize limits size to [MinSize, MaxSize].
func ClampSize(size int) int {
	switch {
	case size < MinSize:
		return MinSize
	case size > MaxSize:
		return MaxSize
	default:
		return size
	}
}

// Writer accumulates bytes in a fixed size buffer and writes them to the
// underlying socket only when the buffer fills or Flush is called.
type Writer struct {
	mu  sync.Mutex
	dst io.Writer
	buf []byte
	n   int
}

// NewWriter returns a Writer with a buffer of the given size, clamped to
// [MinSize, MaxSize].
func NewWriter(dst io.Writer, size int) *Writer {
	return &Writer{
		dst: dst,
		buf: make([]byte, ClampSize(size)),
	}
}

// Write appends p to the buffer. Whenever the buffer fills it is sent in full
// before the rest of p is accumulated. It returns len(p) on success. On a
// socket error it returns how much of p was taken into the buffer; unsent
// bytes stay buffered for a later Flush.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	total := len(p)
	for w.n+len(p) >= len(w.buf) {
		copied := copy(w.buf[w.n:], p)
		p = p[copied:]
		w.n += copied

		if err := w.sendBuffered(); err != nil {
			return total - len(p), err
		}

		if len(p) == 0 {
			return total, nil
		}
	}

	w.n += copy(w.buf[w.n:], p)

	return total, nil
}

// Flush sends whatever is buffered. It is a no-op on an empty buffer.
func (w *Writer) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.n == 0 {
		return nil
	}

	return w.sendBuffered()
}

// Buffered returns the number of bytes waiting to be sent.
func (w *Writer) Buffered() int {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.n
}

// Size returns the buffer capacity.
func (w *Writer) Size() int {
	return len(w.buf)
}

// sendBuffered sends the buffer. Bytes the socket accepted are removed from
// it even when the send fails part way.
func (w *Writer) sendBuffered() error {
	sent, err := w.sendAll(w.buf[:w.n])
	w.n = copy(w.buf, w.buf[sent:w.n])

	return err
}

// sendAll keeps writing until b is fully sent or the socket fails. It returns
// how many bytes the socket accepted.
func (w *Writer) sendAll(b []byte) (int, error) {
	sent := 0
	for sent < len(b) {
		n, err := w.dst.Write(b[sent:])
		if n > 0 {
			sent += n
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) {
				return sent, fmt.Errorf("%w: %w", ErrClosedByPeer, err)
			}

			return sent, fmt.Errorf("%w: %w", ErrWriteFailed, err)
		}
		if n <= 0 {
			return sent, ErrClosedByPeer
		}
	}

	return sent, nil
}
