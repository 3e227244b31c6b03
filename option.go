// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package publisher

import (
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher/internal/types"
	"github.com/pion/publisher/pkg/queue"
	"github.com/pion/publisher/pkg/sendbuf"
)

// Option is a configuration option for a Session.
type Option func(*Session) error

// WithMaxBitrate sets the encoder's video and audio bitrates in kbps. Their
// sum is the capacity congestion decisions are measured against.
func WithMaxBitrate(videoKbps, audioKbps uint64) Option {
	return func(s *Session) error {
		if videoKbps == 0 {
			return errInvalidBitrate
		}
		s.videoBitrate = types.Kbps(videoKbps)
		s.audioBitrate = types.Kbps(audioKbps)

		return nil
	}
}

// WithEncoderBufferSize sets the encoder's rate control buffer in kilobits.
// The bit windows span the time this buffer takes to drain at the video
// bitrate, capped at one second.
func WithEncoderBufferSize(kbit uint64) Option {
	return func(s *Session) error {
		if kbit == 0 {
			return errInvalidBuffer
		}
		s.encoderBufferBits = kbit * 1000

		return nil
	}
}

// WithSendBufferSize sets the socket send buffer size in bytes, clamped to
// [536, 32120].
func WithSendBufferSize(size int) Option {
	return func(s *Session) error {
		s.sendBufferSize = sendbuf.ClampSize(size)

		return nil
	}
}

// WithTargetFrameRate sets the encoder's video frame rate.
func WithTargetFrameRate(fps uint32) Option {
	return func(s *Session) error {
		if fps == 0 {
			return errInvalidFrameRate
		}
		s.frameRate = fps

		return nil
	}
}

// WithMaxBufferedDuration bounds how much video, measured in media time, may
// sit in the send buffer before it is flushed.
func WithMaxBufferedDuration(d time.Duration) Option {
	return func(s *Session) error {
		s.maxBufferedMs = uint32(d.Milliseconds()) //nolint:gosec

		return nil
	}
}

// WithSendBuffer sets the buffered writer the transport sends through. The
// sender flushes it to bound latency and the session flushes it on Close.
func WithSendBuffer(f Flusher) Option {
	return func(s *Session) error {
		s.flusher = f

		return nil
	}
}

// WithJoinTimeout bounds how long Close waits for the sender to exit.
func WithJoinTimeout(d time.Duration) Option {
	return func(s *Session) error {
		s.joinTimeout = d

		return nil
	}
}

// WithLoggerFactory sets a logger factory for the session.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(s *Session) error {
		s.loggerFactory = loggerFactory

		return nil
	}
}

func withClock(now func() time.Time) Option {
	return func(s *Session) error {
		s.now = now

		return nil
	}
}

func withAllocator(alloc queue.Allocator) Option {
	return func(s *Session) error {
		s.alloc = alloc

		return nil
	}
}
