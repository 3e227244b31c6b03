// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package congestion decides which encoded frames enter the send queue and
// which queued frames are discarded when the network falls behind the
// encoder.
package congestion

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher/internal/types"
	"github.com/pion/publisher/pkg/bitrate"
	"github.com/pion/publisher/pkg/media"
	"github.com/pion/publisher/pkg/queue"
	"golang.org/x/time/rate"
)

var (
	errInvalidWindow    = errors.New("congestion: bit window must be positive")
	errInvalidFrameRate = errors.New("congestion: frame rate must be positive")
)

// Level summarizes how aggressively frames are being discarded.
type Level int

// Congestion levels.
const (
	// Normal means no drop episode is in progress.
	Normal Level = iota
	// Shedding means frames nothing depends on are being discarded.
	Shedding
	// SheddingDependent means predicted frames are being discarded too.
	SheddingDependent
)

func (l Level) String() string {
	switch l {
	case Normal:
		return "normal"
	case Shedding:
		return "shedding"
	case SheddingDependent:
		return "shedding-dependent"
	default:
		return "unknown"
	}
}

// Verdict is the outcome of Admit.
type Verdict int

// Admission outcomes.
const (
	Admitted Verdict = iota
	Rejected
	Closed
)

// Config holds the controller thresholds.
type Config struct {
	// MaxBitRate is the combined audio and video bitrate the encoder targets.
	MaxBitRate types.DataRate
	// Window is how far back the bit windows look.
	Window time.Duration
	// SendBufferSize is the size in bytes of the socket send buffer.
	SendBufferSize int
	// FrameRate is the target video frame rate.
	FrameRate uint32
}

// State is a snapshot of the controller state.
type State struct {
	WaitType                media.FrameKind
	DumpMode                bool
	DroppingDependentFrames bool
	QueuedBits              uint64
	QueuedPackets           int
	QueuedVideoPackets      int
}

// Controller owns the packet queue and the inbound and outbound bit windows.
// Admission, eviction and dequeue are serialized by a single mutex.
type Controller struct {
	log           logging.LeveledLogger
	loggerFactory logging.LoggerFactory
	dropLog       rate.Sometimes

	cfg   Config
	now   func() time.Time
	alloc queue.Allocator

	mu      sync.Mutex
	queue   *queue.Queue
	bitsIn  *bitrate.Window
	bitsOut *bitrate.Window

	waitType                media.FrameKind
	dumpMode                bool
	droppingDependentFrames bool
	closed                  bool

	level             atomic.Int32
	disposableDropped atomic.Uint64
	dependentDropped  atomic.Uint64
}

// NewController creates a Controller with an empty queue.
func NewController(cfg Config, opts ...Option) (*Controller, error) {
	if cfg.Window <= 0 {
		return nil, errInvalidWindow
	}
	if cfg.FrameRate == 0 {
		return nil, errInvalidFrameRate
	}

	c := &Controller{
		cfg:      cfg,
		now:      time.Now,
		dropLog:  rate.Sometimes{Interval: time.Second},
		waitType: media.VideoDisposable,
	}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if c.loggerFactory == nil {
		c.loggerFactory = logging.NewDefaultLoggerFactory()
	}
	c.log = c.loggerFactory.NewLogger("congestion")
	c.queue = queue.New(c.alloc)
	c.bitsIn = bitrate.NewWindow(cfg.Window)
	c.bitsOut = bitrate.NewWindow(cfg.Window)

	return c, nil
}

// Admit decides whether a frame enters the queue. Admitted payloads are
// copied; the caller keeps ownership of payload.
func (c *Controller) Admit(kind media.FrameKind, timestamp uint32, payload []byte) Verdict {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return Closed
	}

	now := c.now()
	prune := !c.dumpMode
	bitsIn := c.bitsIn.BitsPerWindow(now, prune)
	bitsOut := c.bitsOut.BitsPerWindow(now, prune)
	if c.dumpMode && bitsIn <= bitsOut {
		c.dumpMode = false
		c.droppingDependentFrames = false
		if c.waitType < media.VideoHighest {
			c.waitType = media.VideoDisposable
		}
		c.log.Debugf("network caught up, bits_in=%d bits_out=%d", bitsIn, bitsOut)
	}

	bits := uint64(len(payload)) * 8
	if !c.admits(kind) {
		c.bitsOut.AddSample(bits, now)
		c.disposableDropped.Add(1)
		c.updateLevel()

		return Rejected
	}

	if kind.IsVideo() {
		c.waitType = c.relaxedFloor()
		c.bitsIn.AddSample(bits, now)
	}
	c.queue.Push(kind, timestamp, payload)

	if kind.IsVideo() {
		c.relieveBacklog(bitsIn, bitsOut)
	}
	c.updateLevel()

	return Admitted
}

// admits reports whether kind clears the admission floor. Audio always does.
func (c *Controller) admits(kind media.FrameKind) bool {
	if kind == media.Audio {
		return true
	}

	return kind >= c.waitType
}

// relaxedFloor is the floor an admitted frame resets admission to.
func (c *Controller) relaxedFloor() media.FrameKind {
	if c.dumpMode {
		return media.VideoLow
	}

	return media.VideoDisposable
}

// backlogged reports whether the queue has grown beyond what buffering alone
// can absorb while the connection is busy.
func (c *Controller) backlogged(bitsIn, bitsOut uint64) bool {
	queued := c.queue.Bits()

	return queued > bitsIn &&
		queued > uint64(c.cfg.SendBufferSize)*8 &&
		uint32(c.queue.VideoCount()) > c.cfg.FrameRate/12 && //nolint:gosec
		bitsOut > c.cfg.MaxBitRate.BitsIn(c.cfg.Window)/3
}

func (c *Controller) relieveBacklog(bitsIn, bitsOut uint64) {
	if !c.backlogged(bitsIn, bitsOut) {
		return
	}

	if bitsIn > bitsOut {
		if !c.dumpMode {
			c.dumpMode = true
			if c.waitType == media.VideoDisposable {
				c.waitType = media.VideoLow
			}
			c.log.Infof("encoder outrunning network, shedding frames: bits_in=%d bits_out=%d queued_bits=%d",
				bitsIn, bitsOut, c.queue.Bits())
		}
		c.evictDisposable()

		if c.waitType >= media.VideoHigh {
			c.droppingDependentFrames = true
		}
	}

	if bitsIn*10 > bitsOut*14 && c.queue.VideoCount() > 0 {
		c.evictDependent()
	}
}

// Dequeue removes the oldest queued packet. The caller transmits it and then
// hands it back with Release.
func (c *Controller) Dequeue() (*media.Packet, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.queue.PopFront()
	if !ok {
		return nil, false
	}
	if p.Kind.IsVideo() {
		c.bitsOut.AddSample(p.Bits(), c.now())
	}

	return p, true
}

// Release frees the payload of a dequeued packet.
func (c *Controller) Release(p *media.Packet) {
	c.queue.Release(p)
}

// Close stops admission and frees every queued payload. It returns the number
// of packets that were still queued.
func (c *Controller) Close() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0
	}
	c.closed = true

	return c.queue.Drain()
}

// State returns a snapshot of the controller state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return State{
		WaitType:                c.waitType,
		DumpMode:                c.dumpMode,
		DroppingDependentFrames: c.droppingDependentFrames,
		QueuedBits:              c.queue.Bits(),
		QueuedPackets:           c.queue.Len(),
		QueuedVideoPackets:      c.queue.VideoCount(),
	}
}

// Level returns the current congestion level without taking the lock.
func (c *Controller) Level() Level {
	return Level(c.level.Load())
}

// DisposableDropped returns how many frames nothing depended on were dropped.
func (c *Controller) DisposableDropped() uint64 {
	return c.disposableDropped.Load()
}

// DependentDropped returns how many frames other frames depended on were
// dropped.
func (c *Controller) DependentDropped() uint64 {
	return c.dependentDropped.Load()
}

func (c *Controller) updateLevel() {
	level := Normal
	switch {
	case c.droppingDependentFrames:
		level = SheddingDependent
	case c.dumpMode:
		level = Shedding
	}
	c.level.Store(int32(level)) //nolint:gosec
}
