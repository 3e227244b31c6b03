// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package rtpconn sends publisher packets as RTP and RTCP over a stream
// socket using RFC 4571 framing.
package rtpconn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher/internal/ntp"
	"github.com/pion/publisher/pkg/media"
	"github.com/pion/publisher/pkg/sendbuf"
	"github.com/pion/randutil"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const (
	rtpHeaderSize = 12

	// DefaultMTU keeps packets clear of common tunnel overheads.
	DefaultMTU = 1200

	// VideoPayloadType and AudioPayloadType are the dynamic payload types
	// used for the two media streams.
	VideoPayloadType = 96
	AudioPayloadType = 97

	defaultVideoClockRate = 90000
	defaultAudioClockRate = 48000

	// metadataName is the RTCP APP name carrying stream metadata.
	metadataName = "META"
)

var (
	// ErrNotConnected is returned when sending on a closed or failed connection.
	ErrNotConnected = errors.New("rtpconn: not connected")

	errUnknownChannel   = errors.New("rtpconn: unknown channel")
	errInvalidMTU       = errors.New("rtpconn: invalid MTU")
	errInvalidClockRate = errors.New("rtpconn: clock rate must be positive")
	errFrameTooLarge    = errors.New("rtpconn: packet exceeds frame size")
)

type stream struct {
	ssrc        uint32
	payloadType uint8
	clockRate   uint32
	sequencer   rtp.Sequencer

	packets   uint32
	octets    uint32
	timestamp uint32
}

// senderReport describes what s has sent so far, or nil if it sent nothing.
func (s *stream) senderReport(now time.Time) rtcp.Packet {
	if s.packets == 0 {
		return nil
	}

	return &rtcp.SenderReport{
		SSRC:        s.ssrc,
		NTPTime:     ntp.ToNTP(now),
		RTPTime:     s.timestamp,
		PacketCount: s.packets,
		OctetCount:  s.octets,
	}
}

// Conn multiplexes the publisher's channels onto one stream socket. Audio
// and video channels become RTP streams and control messages become RTCP
// APP packets.
type Conn struct {
	log           logging.LeveledLogger
	loggerFactory logging.LoggerFactory

	mtu            int
	streamID       string
	sendBufferSize int
	videoClockRate uint32
	audioClockRate uint32

	lock      sync.Mutex
	sock      io.WriteCloser
	out       io.Writer
	sendBuf   *sendbuf.Writer
	scratch   []byte
	streams   map[uint8]*stream
	ctrlSSRC  uint32
	connected atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Dial connects to addr over TCP. Without send buffering Nagle's algorithm
// is left on so the kernel coalesces small packets instead.
func Dial(ctx context.Context, addr string, opts ...Option) (*Conn, error) {
	var d net.Dialer
	sock, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}

	conn, err := NewConn(sock, opts...)
	if err != nil {
		_ = sock.Close()

		return nil, err
	}

	if tcp, ok := sock.(*net.TCPConn); ok && conn.sendBuf == nil {
		if err := tcp.SetNoDelay(false); err != nil {
			conn.log.Warnf("failed to enable Nagle's algorithm: %v", err)
		}
	}
	conn.log.Infof("connected to %s", addr)

	return conn, nil
}

// NewConn wraps an established stream.
func NewConn(sock io.WriteCloser, opts ...Option) (*Conn, error) {
	c := &Conn{
		mtu:            DefaultMTU,
		videoClockRate: defaultVideoClockRate,
		audioClockRate: defaultAudioClockRate,
		sock:           sock,
		out:            sock,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.loggerFactory == nil {
		c.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	c.log = c.loggerFactory.NewLogger("rtpconn")

	if c.sendBufferSize > 0 {
		c.sendBuf = sendbuf.NewWriter(sock, c.sendBufferSize)
		c.out = c.sendBuf
	}

	gen := randutil.NewMathRandomGenerator()
	c.ctrlSSRC = gen.Uint32()
	c.streams = map[uint8]*stream{
		media.ChannelVideo: {
			ssrc:        gen.Uint32(),
			payloadType: VideoPayloadType,
			clockRate:   c.videoClockRate,
			sequencer:   rtp.NewRandomSequencer(),
		},
		media.ChannelAudio: {
			ssrc:        gen.Uint32(),
			payloadType: AudioPayloadType,
			clockRate:   c.audioClockRate,
			sequencer:   rtp.NewRandomSequencer(),
		},
	}
	c.connected.Store(true)

	return c, nil
}

// SendFramedPacket sends body on channel. Timestamps are in milliseconds.
// Any socket error leaves the connection disconnected.
func (c *Conn) SendFramedPacket(channel uint8, kind media.PacketKind, timestamp uint32, body []byte) error {
	if !c.connected.Load() {
		return ErrNotConnected
	}

	c.lock.Lock()
	defer c.lock.Unlock()

	var err error
	switch kind {
	case media.PacketInfo:
		err = c.writeMetadata(body)
	case media.PacketAudio, media.PacketVideo:
		s, ok := c.streams[channel]
		if !ok {
			return fmt.Errorf("%w: %#x", errUnknownChannel, channel)
		}
		err = c.writeMedia(s, timestamp, body)
	default:
		return fmt.Errorf("%w: %s", errUnknownChannel, kind)
	}
	if err != nil {
		c.disconnect(err)
	}

	return err
}

// writeMedia packetizes body into MTU sized RTP packets, marking the last.
func (c *Conn) writeMedia(s *stream, timestamp uint32, body []byte) error {
	rtpTimestamp := uint32(uint64(timestamp) * uint64(s.clockRate) / 1000) //nolint:gosec
	maxPayload := c.mtu - rtpHeaderSize

	c.scratch = c.scratch[:0]
	for first := true; first || len(body) > 0; first = false {
		n := min(len(body), maxPayload)
		pkt := rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				Marker:         n == len(body),
				PayloadType:    s.payloadType,
				SequenceNumber: s.sequencer.NextSequenceNumber(),
				Timestamp:      rtpTimestamp,
				SSRC:           s.ssrc,
			},
			Payload: body[:n],
		}
		body = body[n:]
		s.packets++
		s.octets += uint32(n) //nolint:gosec
		s.timestamp = rtpTimestamp

		raw, err := pkt.Marshal()
		if err != nil {
			return err
		}
		if c.scratch, err = appendFrame(c.scratch, raw); err != nil {
			return err
		}
	}

	return c.write(c.scratch)
}

func (c *Conn) writeMetadata(body []byte) error {
	pkts := []rtcp.Packet{&rtcp.ApplicationDefined{
		SSRC: c.ctrlSSRC,
		Name: metadataName,
		Data: body,
	}}
	if c.streamID != "" {
		pkts = append(pkts, &rtcp.SourceDescription{
			Chunks: []rtcp.SourceDescriptionChunk{{
				Source: c.ctrlSSRC,
				Items:  []rtcp.SourceDescriptionItem{{Type: rtcp.SDESCNAME, Text: c.streamID}},
			}},
		})
	}

	return c.writeRTCP(pkts)
}

func (c *Conn) writeRTCP(pkts []rtcp.Packet) error {
	raw, err := rtcp.Marshal(pkts)
	if err != nil {
		return err
	}
	c.scratch, err = appendFrame(c.scratch[:0], raw)
	if err != nil {
		return err
	}

	return c.write(c.scratch)
}

func (c *Conn) write(b []byte) error {
	_, err := c.out.Write(b)

	return err
}

// IsConnected reports whether the connection can still send.
func (c *Conn) IsConnected() bool {
	return c.connected.Load()
}

// SendBuffer returns the writer outgoing bytes are coalesced in, or nil when
// send buffering is disabled.
func (c *Conn) SendBuffer() *sendbuf.Writer {
	return c.sendBuf
}

// Flush sends any buffered bytes. A failure leaves the connection
// disconnected.
func (c *Conn) Flush() error {
	if c.sendBuf == nil {
		return nil
	}
	if err := c.sendBuf.Flush(); err != nil {
		c.disconnect(err)

		return err
	}

	return nil
}

// Close announces the end of the streams with RTCP sender reports and a BYE,
// flushes and closes the socket.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		if c.connected.Load() {
			c.lock.Lock()
			err := c.writeRTCP(c.goodbye(time.Now()))
			c.lock.Unlock()
			if err == nil {
				err = c.Flush()
			}
			if err != nil {
				c.log.Debugf("failed to send goodbye: %v", err)
			}
		}

		c.connected.Store(false)
		c.closeErr = c.sock.Close()
	})

	return c.closeErr
}

// Abort closes the socket without announcing the end of the streams or
// flushing. It never waits on a send in progress; that send fails instead.
func (c *Conn) Abort() error {
	c.closeOnce.Do(func() {
		c.connected.Store(false)
		c.closeErr = c.sock.Close()
	})

	return c.closeErr
}

func (c *Conn) goodbye(now time.Time) []rtcp.Packet {
	var pkts []rtcp.Packet
	bye := &rtcp.Goodbye{Sources: []uint32{c.ctrlSSRC}}
	for _, channel := range []uint8{media.ChannelVideo, media.ChannelAudio} {
		s := c.streams[channel]
		if sr := s.senderReport(now); sr != nil {
			pkts = append(pkts, sr)
		}
		bye.Sources = append(bye.Sources, s.ssrc)
	}

	return append(pkts, bye)
}

func (c *Conn) disconnect(err error) {
	if c.connected.Swap(false) {
		c.log.Warnf("connection lost: %v", err)
	}
}
