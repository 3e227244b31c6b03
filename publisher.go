// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package publisher sends encoded audio and video frames over a transport,
// discarding video frames in GOP order when the network cannot keep up with
// the encoder.
package publisher

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher/internal/types"
	"github.com/pion/publisher/pkg/congestion"
	"github.com/pion/publisher/pkg/media"
	"github.com/pion/publisher/pkg/queue"
	"github.com/pion/publisher/pkg/sendbuf"
	"golang.org/x/time/rate"
)

const (
	defaultVideoKbps         = 1000
	defaultAudioKbps         = 96
	defaultEncoderBufferKbit = 1000
	defaultFrameRate         = 30
	defaultMaxBufferedTime   = 400 * time.Millisecond
	defaultJoinTimeout       = 20 * time.Second
)

// Transport frames and sends packets on a connected stream.
type Transport interface {
	SendFramedPacket(channel uint8, kind media.PacketKind, timestamp uint32, body []byte) error
	IsConnected() bool
}

// HeaderSource provides the stream metadata and codec headers sent before
// any frame.
type HeaderSource interface {
	Metadata() ([]byte, error)
	AudioHeaders() ([]byte, error)
	VideoHeaders() ([]byte, error)
}

// Aborter is implemented by transports that can be torn down while a send is
// still blocked on them. Close uses it when the sender does not exit in time.
type Aborter interface {
	Abort() error
}

// Flusher is a buffered writer that can be forced to send what it holds.
type Flusher interface {
	Flush() error
}

// StaticHeaders is a HeaderSource backed by fixed byte slices.
type StaticHeaders struct {
	Meta  []byte
	Audio []byte
	Video []byte
}

// Metadata implements HeaderSource.
func (h StaticHeaders) Metadata() ([]byte, error) { return h.Meta, nil }

// AudioHeaders implements HeaderSource.
func (h StaticHeaders) AudioHeaders() ([]byte, error) { return h.Audio, nil }

// VideoHeaders implements HeaderSource.
func (h StaticHeaders) VideoHeaders() ([]byte, error) { return h.Video, nil }

// Stats is a snapshot of the session counters.
type Stats struct {
	BytesSent               uint64
	DisposableFramesDropped uint64
	DependentFramesDropped  uint64
	CongestionLevel         congestion.Level
}

// Session queues frames submitted by an encoder and drains them to a
// Transport from a dedicated sender goroutine.
type Session struct {
	log           logging.LeveledLogger
	loggerFactory logging.LoggerFactory
	sendLog       rate.Sometimes

	transport  Transport
	flusher    Flusher
	controller *congestion.Controller

	videoBitrate      types.DataRate
	audioBitrate      types.DataRate
	encoderBufferBits uint64
	sendBufferSize    int
	frameRate         uint32
	maxBufferedMs     uint32
	joinTimeout       time.Duration
	now               func() time.Time
	alloc             queue.Allocator

	notify chan struct{}
	closed chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup

	started   atomic.Bool
	stopping  atomic.Bool
	closeOnce sync.Once
	doneOnce  sync.Once
	closeErr  error

	errLock sync.Mutex
	err     error

	bytesSent atomic.Uint64
}

// NewSession creates a Session sending through transport. The sender does
// not run until Start is called.
func NewSession(transport Transport, opts ...Option) (*Session, error) {
	s := &Session{
		sendLog:           rate.Sometimes{Interval: time.Second},
		transport:         transport,
		videoBitrate:      types.Kbps(defaultVideoKbps),
		audioBitrate:      types.Kbps(defaultAudioKbps),
		encoderBufferBits: defaultEncoderBufferKbit * 1000,
		sendBufferSize:    sendbuf.DefaultSize,
		frameRate:         defaultFrameRate,
		maxBufferedMs:     uint32(defaultMaxBufferedTime.Milliseconds()),
		joinTimeout:       defaultJoinTimeout,
		now:               time.Now,
		notify:            make(chan struct{}, 1),
		closed:            make(chan struct{}),
		done:              make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	if s.loggerFactory == nil {
		s.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	s.log = s.loggerFactory.NewLogger("publisher")

	controller, err := congestion.NewController(congestion.Config{
		MaxBitRate:     s.videoBitrate + s.audioBitrate,
		Window:         s.videoBitrate.BufferDuration(s.encoderBufferBits, time.Second),
		SendBufferSize: s.sendBufferSize,
		FrameRate:      s.frameRate,
	},
		congestion.WithLoggerFactory(s.loggerFactory),
		congestion.WithClock(s.now),
		congestion.WithAllocator(s.alloc),
	)
	if err != nil {
		return nil, err
	}
	s.controller = controller

	if s.flusher != nil {
		s.log.Infof("send buffer size: %d", s.sendBufferSize)
	} else {
		s.log.Info("not using send buffering")
	}

	return s, nil
}

// BeginPublishing sends the stream metadata followed by the audio and video
// codec headers. It must complete before frames are submitted. Any failure
// stops the session.
func (s *Session) BeginPublishing(headers HeaderSource) error {
	if s.stopping.Load() {
		return ErrSessionClosed
	}

	steps := []struct {
		name    string
		channel uint8
		kind    media.PacketKind
		body    func() ([]byte, error)
	}{
		{"metadata", media.ChannelControl, media.PacketInfo, headers.Metadata},
		{"audio headers", media.ChannelAudio, media.PacketAudio, headers.AudioHeaders},
		{"video headers", media.ChannelVideo, media.PacketVideo, headers.VideoHeaders},
	}
	for _, step := range steps {
		body, err := step.body()
		if err == nil {
			err = s.transport.SendFramedPacket(step.channel, step.kind, 0, body)
		}
		if err != nil {
			err = fmt.Errorf("%w: %s: %w", ErrHeaderPublish, step.name, err)
			s.fail(err)

			return err
		}
	}

	return nil
}

// Start launches the sender goroutine.
func (s *Session) Start() error {
	if err := s.Err(); err != nil {
		return err
	}
	if s.stopping.Load() {
		return ErrSessionClosed
	}
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionStarted
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.sendLoop()
	}()

	return nil
}

// SubmitFrame offers an encoded frame for transmission. It never blocks on
// the network. Frames the congestion controller rejects are dropped silently
// and only show up in the statistics. The payload is copied.
func (s *Session) SubmitFrame(kind media.FrameKind, timestamp uint32, payload []byte) {
	if s.stopping.Load() {
		return
	}
	if !kind.Valid() {
		s.log.Warnf("ignoring frame of unknown kind %d", kind)

		return
	}

	if s.controller.Admit(kind, timestamp, payload) == congestion.Admitted {
		select {
		case s.notify <- struct{}{}:
		default:
		}
	}
}

// Close stops the sender, flushes any buffered bytes while the transport is
// still connected and releases every queued frame. If the transport is an
// io.Closer it is closed too.
//
// If the sender does not exit within the join timeout it is presumed stuck in
// a send. Nothing more is flushed, and a transport implementing Aborter is
// aborted rather than closed so the stuck send is released.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.stopping.Store(true)
		close(s.closed)

		joined := true
		if err := s.join(); err != nil {
			s.log.Errorf("%v", err)
			s.closeErr = err
			joined = false
		}

		if joined && s.flusher != nil && s.transport.IsConnected() {
			if err := s.flusher.Flush(); err != nil {
				s.log.Warnf("final flush failed: %v", err)
			}
		}

		if n := s.controller.Close(); n > 0 {
			s.log.Debugf("released %d queued packets", n)
		}
		s.log.Infof("number of disposable frames dropped: %d, number of dependent frames dropped: %d",
			s.controller.DisposableDropped(), s.controller.DependentDropped())

		if err := s.closeTransport(joined); err != nil && s.closeErr == nil {
			s.closeErr = err
		}

		s.markDone()
	})

	return s.closeErr
}

func (s *Session) closeTransport(joined bool) error {
	if aborter, ok := s.transport.(Aborter); ok && !joined {
		return aborter.Abort()
	}
	if closer, ok := s.transport.(io.Closer); ok {
		return closer.Close()
	}

	return nil
}

func (s *Session) join() error {
	exited := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(exited)
	}()

	timer := time.NewTimer(s.joinTimeout)
	defer timer.Stop()
	select {
	case <-exited:
		return nil
	case <-timer.C:
		return errJoinTimeout
	}
}

// Done returns a channel that is closed once the session has stopped, either
// through Close or a fatal transport error.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Err returns the fatal error that stopped the session, if any.
func (s *Session) Err() error {
	s.errLock.Lock()
	defer s.errLock.Unlock()

	return s.err
}

// CongestionLevel reports how aggressively frames are being dropped.
func (s *Session) CongestionLevel() congestion.Level {
	return s.controller.Level()
}

// BytesSent returns the payload bytes handed to the transport.
func (s *Session) BytesSent() uint64 {
	return s.bytesSent.Load()
}

// DroppedFrameCount returns the number of frames discarded so far.
func (s *Session) DroppedFrameCount() uint64 {
	return s.controller.DisposableDropped() + s.controller.DependentDropped()
}

// Stats returns a snapshot of the session counters.
func (s *Session) Stats() Stats {
	return Stats{
		BytesSent:               s.bytesSent.Load(),
		DisposableFramesDropped: s.controller.DisposableDropped(),
		DependentFramesDropped:  s.controller.DependentDropped(),
		CongestionLevel:         s.controller.Level(),
	}
}

// fail records the first fatal error and stops the session.
func (s *Session) fail(err error) {
	s.errLock.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errLock.Unlock()

	s.log.Errorf("stopping session: %v", err)
	s.stopping.Store(true)
	s.markDone()
}

func (s *Session) markDone() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}
