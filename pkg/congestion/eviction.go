// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package congestion

import "github.com/pion/publisher/pkg/media"

// planDisposable finds the first queued video packet of kind floor and the
// packets of lower or equal priority that follow it. boundary is set when the
// scan stopped on a packet above floor.
func planDisposable(kinds []media.FrameKind, floor media.FrameKind) (victims []int, boundary bool) {
	for i, k := range kinds {
		if k == media.Audio {
			continue
		}

		if len(victims) > 0 {
			if k > floor {
				return victims, true
			}
			victims = append(victims, i)

			continue
		}

		if k == floor {
			victims = append(victims, i)
		}
	}

	return victims, false
}

// planDependent picks the predicted frame to drop. Scanning from the newest
// packet, it prefers the first VideoHigh found behind a keyframe, since only
// frames up to that keyframe depend on it. Otherwise it falls back to the
// newest VideoHigh. bounded reports whether a keyframe follows the victim.
func planDependent(kinds []media.FrameKind) (victim int, bounded bool, ok bool) {
	victim = -1
	foundKeyframe := false
	for i := len(kinds) - 1; i >= 0; i-- {
		switch kinds[i] {
		case media.VideoHigh:
			if foundKeyframe {
				return i, true, true
			}
			if victim < 0 {
				victim = i
			}
		case media.VideoHighest:
			foundKeyframe = true
		default:
		}
	}

	return victim, false, victim >= 0
}

// evictDisposable drops the lowest priority frames nothing depends on,
// starting at the current floor and moving up to, but not including,
// VideoHigh. Must be called with c.mu held.
func (c *Controller) evictDisposable() bool {
	prev := c.waitType
	kinds := c.queue.Kinds()

	for c.waitType < media.VideoHigh {
		victims, boundary := planDisposable(kinds, c.waitType)
		if len(victims) > 0 {
			c.evict(victims)
			if boundary {
				c.waitType = c.relaxedFloor()
			}

			return true
		}
		c.waitType++
	}

	c.waitType = prev

	return false
}

// evictDependent drops one predicted frame. Unless a newer keyframe bounds
// the damage, admission is suspended until the next keyframe. Must be called
// with c.mu held.
func (c *Controller) evictDependent() bool {
	victim, bounded, ok := planDependent(c.queue.Kinds())
	if !ok {
		return false
	}

	prev := c.waitType
	c.evict([]int{victim})
	if bounded {
		c.waitType = prev
	} else {
		c.waitType = media.VideoHighest
	}
	if c.waitType >= media.VideoHigh {
		c.droppingDependentFrames = true
	}

	c.dropLog.Do(func() {
		c.log.Warnf("dropped predicted frame, bounded=%v floor=%v queued_bits=%d", bounded, c.waitType, c.queue.Bits())
	})

	return true
}

func (c *Controller) evict(victims []int) {
	now := c.now()
	for _, e := range c.queue.Evict(victims) {
		c.bitsOut.AddSample(e.Bits, now)
		if e.Kind.IsDependent() {
			c.dependentDropped.Add(1)
		} else {
			c.disposableDropped.Add(1)
		}
	}
}
