// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package test provides helpers for testing the publisher
package test

import (
	"errors"
	"sync"

	"github.com/pion/publisher/pkg/media"
)

var errMockSendFailed = errors.New("mock transport: send failed")

// SentPacket is a packet recorded by MockTransport.
type SentPacket struct {
	Channel   uint8
	Kind      media.PacketKind
	Timestamp uint32
	Body      []byte
}

type scriptedFailure struct {
	err        error
	disconnect bool
}

// MockTransport is a transport that records every framed packet.
type MockTransport struct {
	lock      sync.Mutex
	sent      []SentPacket
	connected bool
	closed    bool
	failures  []scriptedFailure
	gate      chan struct{}

	written chan SentPacket
}

// NewMockTransport creates a connected MockTransport.
func NewMockTransport() *MockTransport {
	return &MockTransport{
		connected: true,
		written:   make(chan SentPacket, 1000),
	}
}

// SendFramedPacket implements the publisher transport.
func (m *MockTransport) SendFramedPacket(channel uint8, kind media.PacketKind, timestamp uint32, body []byte) error {
	m.lock.Lock()
	gate := m.gate
	m.lock.Unlock()
	if gate != nil {
		<-gate
	}

	m.lock.Lock()
	if len(m.failures) > 0 {
		f := m.failures[0]
		m.failures = m.failures[1:]
		if f.disconnect {
			m.connected = false
		}
		m.lock.Unlock()

		return f.err
	}

	pkt := SentPacket{
		Channel:   channel,
		Kind:      kind,
		Timestamp: timestamp,
		Body:      append([]byte(nil), body...),
	}
	m.sent = append(m.sent, pkt)
	m.lock.Unlock()

	select {
	case m.written <- pkt:
	default:
	}

	return nil
}

// IsConnected implements the publisher transport.
func (m *MockTransport) IsConnected() bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.connected
}

// Close marks the transport closed and disconnected.
func (m *MockTransport) Close() error {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.closed = true
	m.connected = false

	return nil
}

// Closed reports whether Close was called.
func (m *MockTransport) Closed() bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	return m.closed
}

// SetConnected overrides the connection state.
func (m *MockTransport) SetConnected(connected bool) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.connected = connected
}

// FailNext makes the next send fail. If disconnect is set the transport also
// reports itself disconnected afterwards. A nil err uses a generic error.
func (m *MockTransport) FailNext(err error, disconnect bool) {
	if err == nil {
		err = errMockSendFailed
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	m.failures = append(m.failures, scriptedFailure{err: err, disconnect: disconnect})
}

// Hold blocks all subsequent sends until Resume is called.
func (m *MockTransport) Hold() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.gate == nil {
		m.gate = make(chan struct{})
	}
}

// Resume releases sends blocked by Hold.
func (m *MockTransport) Resume() {
	m.lock.Lock()
	defer m.lock.Unlock()
	if m.gate != nil {
		close(m.gate)
		m.gate = nil
	}
}

// Sent returns a copy of all recorded packets.
func (m *MockTransport) Sent() []SentPacket {
	m.lock.Lock()
	defer m.lock.Unlock()

	return append([]SentPacket(nil), m.sent...)
}

// SentBytes returns the total body bytes of recorded packets of the given
// kinds, or of all packets when no kind is given.
func (m *MockTransport) SentBytes(kinds ...media.PacketKind) uint64 {
	m.lock.Lock()
	defer m.lock.Unlock()

	var total uint64
	for _, p := range m.sent {
		if len(kinds) == 0 {
			total += uint64(len(p.Body))
			continue
		}
		for _, k := range kinds {
			if p.Kind == k {
				total += uint64(len(p.Body))
			}
		}
	}

	return total
}

// Written returns a channel that receives each recorded packet.
func (m *MockTransport) Written() <-chan SentPacket {
	return m.written
}
