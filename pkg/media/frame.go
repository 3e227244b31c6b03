// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package media defines the frame kinds and queued packet type shared by the
// publisher's queue, congestion controller and sender.
package media

// FrameKind classifies an encoded frame by how much of the stream depends on
// it. Video kinds are ordered by ascending priority.
type FrameKind uint8

// Frame kinds, lowest priority first.
const (
	// Audio frames are independent of the video dependency chain.
	Audio FrameKind = iota
	// VideoDisposable is a non-reference frame (B-frame) nothing depends on.
	VideoDisposable
	// VideoLow is a low priority reference frame.
	VideoLow
	// VideoHigh is a predicted frame (P-frame) later frames depend on.
	VideoHigh
	// VideoHighest is a keyframe that starts a new GOP.
	VideoHighest
)

func (k FrameKind) String() string {
	switch k {
	case Audio:
		return "audio"
	case VideoDisposable:
		return "video-disposable"
	case VideoLow:
		return "video-low"
	case VideoHigh:
		return "video-high"
	case VideoHighest:
		return "video-highest"
	default:
		return "unknown"
	}
}

// IsVideo reports whether k is one of the video kinds.
func (k FrameKind) IsVideo() bool {
	return k >= VideoDisposable && k <= VideoHighest
}

// IsDependent reports whether other frames reference a frame of kind k.
func (k FrameKind) IsDependent() bool {
	return k >= VideoHigh && k <= VideoHighest
}

// Valid reports whether k is a known kind.
func (k FrameKind) Valid() bool {
	return k <= VideoHighest
}

// Packet is an encoded frame waiting to be transmitted. The queue owns
// Payload until the packet is dequeued.
type Packet struct {
	Kind      FrameKind
	Timestamp uint32
	Payload   []byte
}

// Bits returns the payload size in bits.
func (p *Packet) Bits() uint64 {
	return uint64(len(p.Payload)) * 8
}
