// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package sequencenumber extends 16-bit RTP sequence numbers to 64 bits and
// counts the gaps between them.
package sequencenumber

const halfRange = 1 << 15

// isNewer reports whether a follows b, allowing for wrap around.
func isNewer(a, b uint16) bool {
	diff := a - b

	return diff != 0 && diff <= halfRange
}

// Unwrapper turns a stream of wrapping sequence numbers into a monotonic
// sequence. Reordered numbers are placed relative to the previous one.
type Unwrapper struct {
	init bool
	last uint16
	ext  int64
}

// Unwrap returns the extended value of seq.
func (u *Unwrapper) Unwrap(seq uint16) int64 {
	switch {
	case !u.init:
		u.init = true
		u.ext = int64(seq)
	case isNewer(seq, u.last):
		u.ext += int64(seq - u.last)
	default:
		u.ext -= int64(u.last - seq)
	}
	u.last = seq

	return u.ext
}

// Tracker counts received and missing packets of one RTP stream.
type Tracker struct {
	unwrapper Unwrapper
	started   bool
	lowest    int64
	highest   int64
	received  int64
}

// Push records the arrival of seq.
func (t *Tracker) Push(seq uint16) {
	ext := t.unwrapper.Unwrap(seq)
	if !t.started {
		t.started = true
		t.lowest, t.highest = ext, ext
	}
	t.lowest = min(t.lowest, ext)
	t.highest = max(t.highest, ext)
	t.received++
}

// Received returns the number of packets pushed.
func (t *Tracker) Received() int64 {
	return t.received
}

// Lost returns how many sequence numbers in the observed range never
// arrived. Duplicates can make it negative.
func (t *Tracker) Lost() int64 {
	if !t.started {
		return 0
	}

	return t.highest - t.lowest + 1 - t.received
}
