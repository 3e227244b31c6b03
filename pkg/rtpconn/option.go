// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package rtpconn

import (
	"fmt"

	"github.com/pion/logging"
	"github.com/pion/publisher/pkg/sendbuf"
)

// Option can be used to configure a Conn.
type Option func(*Conn) error

// WithSendBuffering routes every outgoing byte through a sendbuf.Writer of
// the given size. A size of zero selects sendbuf.DefaultSize.
func WithSendBuffering(size int) Option {
	return func(c *Conn) error {
		if size == 0 {
			size = sendbuf.DefaultSize
		}
		c.sendBufferSize = sendbuf.ClampSize(size)

		return nil
	}
}

// CheckMTU reports whether mtu leaves room for an RTP header and fits in an
// RFC 4571 frame.
func CheckMTU(mtu int) error {
	if mtu <= rtpHeaderSize || mtu > maxFrameSize {
		return fmt.Errorf("%w: %d", errInvalidMTU, mtu)
	}

	return nil
}

// WithMTU sets the largest RTP packet emitted, header included.
func WithMTU(mtu int) Option {
	return func(c *Conn) error {
		if err := CheckMTU(mtu); err != nil {
			return err
		}
		c.mtu = mtu

		return nil
	}
}

// WithStreamID sets the name announced in an RTCP SDES CNAME item alongside
// every metadata packet.
func WithStreamID(id string) Option {
	return func(c *Conn) error {
		c.streamID = id

		return nil
	}
}

// WithClockRates sets the RTP clock rates of the video and audio streams.
func WithClockRates(video, audio uint32) Option {
	return func(c *Conn) error {
		if video == 0 || audio == 0 {
			return errInvalidClockRate
		}
		c.videoClockRate = video
		c.audioClockRate = audio

		return nil
	}
}

// WithLoggerFactory sets a logger factory for the connection.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(c *Conn) error {
		c.loggerFactory = loggerFactory

		return nil
	}
}
