// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package rtpconn

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const (
	lengthPrefixSize = 2
	maxFrameSize     = 0xFFFF
)

// appendFrame appends pkt to buf behind an RFC 4571 length prefix.
func appendFrame(buf, pkt []byte) ([]byte, error) {
	if len(pkt) > maxFrameSize {
		return buf, errFrameTooLarge
	}
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(pkt))) //nolint:gosec

	return append(buf, pkt...), nil
}

// Frame is one packet read back from an RFC 4571 stream. Exactly one of RTP
// and RTCP is set.
type Frame struct {
	RTP  *rtp.Packet
	RTCP []rtcp.Packet
}

// Reader splits an RFC 4571 stream back into RTP and RTCP packets.
type Reader struct {
	src    io.Reader
	header [lengthPrefixSize]byte
}

// NewReader creates a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{src: r}
}

// Next reads the next framed packet. It returns io.EOF at a clean end of
// stream.
func (r *Reader) Next() (Frame, error) {
	if _, err := io.ReadFull(r.src, r.header[:]); err != nil {
		return Frame{}, err
	}
	buf := make([]byte, binary.BigEndian.Uint16(r.header[:]))
	if _, err := io.ReadFull(r.src, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}

		return Frame{}, err
	}

	h := &rtcp.Header{}
	if err := h.Unmarshal(buf); err == nil && h.Type >= rtcp.TypeSenderReport && h.Type <= 207 {
		pkts, err := rtcp.Unmarshal(buf)
		if err != nil {
			return Frame{}, err
		}

		return Frame{RTCP: pkts}, nil
	}

	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf); err != nil {
		return Frame{}, err
	}

	return Frame{RTP: pkt}, nil
}
