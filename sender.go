// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package publisher

import (
	"fmt"

	"github.com/pion/publisher/pkg/media"
)

// bufferedVideo tracks how much video, in media time, has been written to the
// send buffer since it was last flushed.
type bufferedVideo struct {
	count int
	first uint32
}

func (s *Session) sendLoop() {
	var buffered bufferedVideo
	for {
		select {
		case <-s.closed:
			return
		case <-s.notify:
		}

		for !s.stopping.Load() {
			p, ok := s.controller.Dequeue()
			if !ok {
				break
			}
			err := s.transmit(p, &buffered)
			s.controller.Release(p)
			if err != nil {
				s.fail(err)

				return
			}
		}
	}
}

// transmit sends one packet. Only errors that must stop the session are
// returned; a failed send on a live connection is logged and the packet is
// lost.
func (s *Session) transmit(p *media.Packet, buffered *bufferedVideo) error {
	channel, kind := media.Route(p.Kind)
	size := len(p.Payload)

	if err := s.transport.SendFramedPacket(channel, kind, p.Timestamp, p.Payload); err != nil {
		if !s.transport.IsConnected() {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		s.sendLog.Do(func() {
			s.log.Warnf("failed to send %s packet at %d: %v", p.Kind, p.Timestamp, err)
		})

		return nil
	}

	if s.flusher != nil && p.Kind.IsVideo() {
		if buffered.count == 0 {
			buffered.first = p.Timestamp
		}
		if p.Timestamp-buffered.first > s.maxBufferedMs {
			if err := s.flusher.Flush(); err != nil {
				return fmt.Errorf("%w: flush: %w", ErrConnectionLost, err)
			}
			buffered.first = p.Timestamp
		}
		buffered.count++
	}

	s.bytesSent.Add(uint64(size)) //nolint:gosec

	return nil
}
