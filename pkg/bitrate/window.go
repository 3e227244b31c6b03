// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package bitrate implements a time bounded bit accounting window.
package bitrate

import (
	"time"

	"github.com/gammazero/deque"
)

type sample struct {
	bits      uint64
	timestamp time.Time
}

// Window records bits transferred over time and reports how many bits were
// seen within the last window duration. It is not safe for concurrent use;
// callers serialize access.
type Window struct {
	window  time.Duration
	samples deque.Deque[sample]
	total   uint64
}

// NewWindow returns a Window that keeps samples for the given duration.
func NewWindow(window time.Duration) *Window {
	return &Window{window: window}
}

// Duration returns the window length.
func (w *Window) Duration() time.Duration {
	return w.window
}

// AddSample appends a sample. Samples must be added in time order.
func (w *Window) AddSample(bits uint64, now time.Time) {
	w.samples.PushBack(sample{bits: bits, timestamp: now})
	w.total += bits
}

// BitsPerWindow returns one plus the sum of bits in the window, so the result
// can be used as a divisor. When prune is set, samples older than the window
// relative to now are discarded first; otherwise the full history is counted.
func (w *Window) BitsPerWindow(now time.Time, prune bool) uint64 {
	if prune {
		cutoff := now.Add(-w.window)
		for w.samples.Len() > 0 && w.samples.Front().timestamp.Before(cutoff) {
			w.total -= w.samples.PopFront().bits
		}
	}

	return 1 + w.total
}

// Len returns the number of retained samples.
func (w *Window) Len() int {
	return w.samples.Len()
}

// Reset discards all samples.
func (w *Window) Reset() {
	w.samples.Clear()
	w.total = 0
}
