// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package queue implements the ordered packet queue that sits between the
// encoder and the network sender.
package queue

import (
	"sort"

	"github.com/pion/publisher/pkg/media"
)

// Evicted describes a packet removed from the middle of the queue.
type Evicted struct {
	Kind media.FrameKind
	Bits uint64
}

// Queue is a FIFO of packets with running totals of queued bits and queued
// video packets. It is not safe for concurrent use; the congestion
// controller serializes access.
type Queue struct {
	alloc   Allocator
	Packets []*media.Packet
	bits    uint64
	video   int
}

// New returns an empty Queue drawing payload buffers from alloc.
func New(alloc Allocator) *Queue {
	if alloc == nil {
		alloc = NewPoolAllocator(1460)
	}

	return &Queue{alloc: alloc}
}

// Push copies payload into a queue owned buffer and appends the packet.
func (q *Queue) Push(kind media.FrameKind, timestamp uint32, payload []byte) *media.Packet {
	buf := q.alloc.Get(len(payload))
	copy(buf, payload)

	p := &media.Packet{Kind: kind, Timestamp: timestamp, Payload: buf}
	q.Packets = append(q.Packets, p)
	q.bits += p.Bits()
	if kind.IsVideo() {
		q.video++
	}

	return p
}

// PopFront removes the oldest packet. The caller owns the returned packet and
// must hand it back with Release once it has been transmitted.
func (q *Queue) PopFront() (*media.Packet, bool) {
	if len(q.Packets) == 0 {
		return nil, false
	}

	p := q.Packets[0]
	q.Packets[0] = nil
	q.Packets = q.Packets[1:]
	q.account(p)

	return p, true
}

// Release returns the payload buffer of a dequeued packet to the allocator.
func (q *Queue) Release(p *media.Packet) {
	if p == nil || p.Payload == nil {
		return
	}
	q.alloc.Put(p.Payload)
	p.Payload = nil
}

// Evict removes the packets at the given indices in a single pass and frees
// their payloads. Indices refer to positions before any removal; duplicates
// and out of range indices are ignored.
func (q *Queue) Evict(indices []int) []Evicted {
	if len(indices) == 0 {
		return nil
	}

	sorted := append([]int(nil), indices...)
	sort.Ints(sorted)

	evicted := make([]Evicted, 0, len(sorted))
	kept := q.Packets[:0]
	next := 0
	for i, p := range q.Packets {
		for next < len(sorted) && sorted[next] < i {
			next++
		}
		if next < len(sorted) && sorted[next] == i {
			evicted = append(evicted, Evicted{Kind: p.Kind, Bits: p.Bits()})
			q.account(p)
			q.Release(p)
			continue
		}
		kept = append(kept, p)
	}
	for i := len(kept); i < len(q.Packets); i++ {
		q.Packets[i] = nil
	}
	q.Packets = kept

	return evicted
}

// Drain releases every queued packet and returns how many were dropped.
func (q *Queue) Drain() int {
	n := len(q.Packets)
	for i, p := range q.Packets {
		q.Release(p)
		q.Packets[i] = nil
	}
	q.Packets = q.Packets[:0]
	q.bits = 0
	q.video = 0

	return n
}

// Kinds returns a snapshot of the kinds of the queued packets, oldest first.
func (q *Queue) Kinds() []media.FrameKind {
	kinds := make([]media.FrameKind, len(q.Packets))
	for i, p := range q.Packets {
		kinds[i] = p.Kind
	}

	return kinds
}

// Len returns the number of queued packets.
func (q *Queue) Len() int {
	return len(q.Packets)
}

// Bits returns the total payload bits currently queued.
func (q *Queue) Bits() uint64 {
	return q.bits
}

// VideoCount returns the number of queued video packets.
func (q *Queue) VideoCount() int {
	return q.video
}

func (q *Queue) account(p *media.Packet) {
	q.bits -= p.Bits()
	if p.Kind.IsVideo() {
		q.video--
	}
}
