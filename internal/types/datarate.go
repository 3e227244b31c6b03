// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package types holds unit types shared by the publisher packages.
package types

import "time"

const (
	// BitPerSecond is a data rate of 1 bit per second
	BitPerSecond = DataRate(1)
	// KiloBitPerSecond is a data rate of 1 kilobit per second
	KiloBitPerSecond = 1000 * BitPerSecond
)

// DataRate in bit per second
type DataRate uint64

// Kbps returns a DataRate of n kilobits per second.
func Kbps(n uint64) DataRate {
	return DataRate(n) * KiloBitPerSecond
}

// Kbps returns the datarate in kilobits per second, rounded down.
func (r DataRate) Kbps() uint64 {
	return uint64(r / KiloBitPerSecond)
}

// BitsPerMillisecond returns the datarate in b/ms (bits per millisecond).
func (r DataRate) BitsPerMillisecond() uint64 {
	return uint64(r / 1000)
}

// BitsIn returns how many bits the rate carries over d.
func (r DataRate) BitsIn(d time.Duration) uint64 {
	return uint64(d.Milliseconds()) * r.BitsPerMillisecond()
}

// BufferDuration returns how long a buffer of bufferBits takes to drain at r,
// capped at limit. A zero rate yields limit.
func (r DataRate) BufferDuration(bufferBits uint64, limit time.Duration) time.Duration {
	if r == 0 {
		return limit
	}
	d := time.Duration(float64(bufferBits) / float64(r) * float64(time.Second))
	if d > limit {
		return limit
	}

	return d
}
