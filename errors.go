// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package publisher

import (
	"errors"

	"github.com/pion/publisher/pkg/sendbuf"
)

var (
	// ErrConnectionLost is returned when the transport reports it is no
	// longer connected. It stops the session.
	ErrConnectionLost = errors.New("publisher: connection lost")
	// ErrSocketWriteFailed is returned when the socket rejects a write.
	ErrSocketWriteFailed = sendbuf.ErrWriteFailed
	// ErrSocketClosedByPeer is returned when the socket accepts no bytes.
	ErrSocketClosedByPeer = sendbuf.ErrClosedByPeer
	// ErrHeaderPublish is returned when the initial metadata and codec
	// headers could not be sent.
	ErrHeaderPublish = errors.New("publisher: failed to publish stream headers")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("publisher: session closed")
	// ErrSessionStarted is returned when Start is called twice.
	ErrSessionStarted = errors.New("publisher: session already started")

	errJoinTimeout      = errors.New("publisher: timed out waiting for sender to exit")
	errInvalidBitrate   = errors.New("publisher: video bitrate must be positive")
	errInvalidBuffer    = errors.New("publisher: encoder buffer size must be positive")
	errInvalidFrameRate = errors.New("publisher: frame rate must be positive")
)
