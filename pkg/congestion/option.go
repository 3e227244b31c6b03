// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package congestion

import (
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher/pkg/queue"
)

// Option is a configuration option for a Controller.
type Option func(*Controller) error

// WithLoggerFactory sets a logger factory for the controller.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(c *Controller) error {
		c.loggerFactory = loggerFactory

		return nil
	}
}

// WithClock replaces the wall clock used to timestamp bit samples.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) error {
		c.now = now

		return nil
	}
}

// WithAllocator sets the allocator queued payloads are copied into.
func WithAllocator(alloc queue.Allocator) Option {
	return func(c *Controller) error {
		c.alloc = alloc

		return nil
	}
}
