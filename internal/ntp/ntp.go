// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package ntp converts between time.Time and 64-bit NTP timestamps.
package ntp

import "time"

// unixOffset is the number of seconds between 1900-01-01 and 1970-01-01.
const unixOffset = 2208988800

// ToNTP converts t to an NTP timestamp: seconds since 1900 in the upper 32
// bits and the binary fraction of a second in the lower 32 bits.
func ToNTP(t time.Time) uint64 {
	seconds := uint64(t.Unix() + unixOffset)      //nolint:gosec
	fraction := uint64(t.Nanosecond()) << 32 / 1e9 //nolint:gosec

	return seconds<<32 | fraction
}

// ToTime converts an NTP timestamp back to a time.Time, truncated to the
// nanosecond.
func ToTime(ntp uint64) time.Time {
	seconds := int64(ntp>>32) - unixOffset     //nolint:gosec
	nanos := int64((ntp & 0xFFFFFFFF) * 1e9 >> 32) //nolint:gosec

	return time.Unix(seconds, nanos)
}
