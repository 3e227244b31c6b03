// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package synth produces encoder shaped frame sequences for exercising a
// publisher without a real encoder.
package synth

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/pion/publisher"
	"github.com/pion/publisher/pkg/media"
)

const (
	// AudioSampleRate and AudioFrameSamples describe AAC style audio frames.
	AudioSampleRate   = 48000
	AudioFrameSamples = 1024
)

var errInvalidConfig = errors.New("synth: frame rate, GOP length and video bitrate must be positive")

// relative frame sizes within a GOP.
var frameWeights = map[media.FrameKind]uint64{ //nolint:gochecknoglobals
	media.VideoHighest:    8,
	media.VideoHigh:       3,
	media.VideoLow:        2,
	media.VideoDisposable: 1,
}

// Sink receives generated frames.
type Sink interface {
	SubmitFrame(kind media.FrameKind, timestamp uint32, payload []byte)
}

// Config describes the stream to synthesize.
type Config struct {
	VideoKbps uint64
	AudioKbps uint64
	FrameRate uint32
	GOPLength int
}

// Generator emits a keyframe every GOPLength frames followed by a repeating
// P, B, reference B pattern, sized so each GOP averages the video bitrate.
type Generator struct {
	cfg       Config
	sizes     map[media.FrameKind]int
	audioSize int
	payload   []byte
}

// New creates a Generator.
func New(cfg Config) (*Generator, error) {
	if cfg.FrameRate == 0 || cfg.GOPLength < 1 || cfg.VideoKbps == 0 {
		return nil, errInvalidConfig
	}

	g := &Generator{cfg: cfg, sizes: map[media.FrameKind]int{}}

	var gopWeight uint64
	for i := 0; i < cfg.GOPLength; i++ {
		gopWeight += frameWeights[g.KindAt(i)]
	}
	gopBytes := cfg.VideoKbps * 1000 / 8 * uint64(cfg.GOPLength) / uint64(cfg.FrameRate) //nolint:gosec
	largest := 0
	for kind, weight := range frameWeights {
		size := max(int(gopBytes*weight/gopWeight), 1) //nolint:gosec
		g.sizes[kind] = size
		largest = max(largest, size)
	}

	g.audioSize = int(cfg.AudioKbps * 1000 / 8 * AudioFrameSamples / AudioSampleRate) //nolint:gosec
	g.payload = make([]byte, max(largest, g.audioSize))
	for i := range g.payload {
		g.payload[i] = byte(i)
	}

	return g, nil
}

// KindAt returns the kind of the i-th video frame.
func (g *Generator) KindAt(i int) media.FrameKind {
	pos := i % g.cfg.GOPLength
	if pos == 0 {
		return media.VideoHighest
	}
	switch (pos - 1) % 3 {
	case 0:
		return media.VideoHigh
	case 1:
		return media.VideoDisposable
	default:
		return media.VideoLow
	}
}

// VideoFrame returns the kind, millisecond timestamp and payload of the i-th
// video frame. The payload is shared and must not be modified.
func (g *Generator) VideoFrame(i int) (media.FrameKind, uint32, []byte) {
	kind := g.KindAt(i)

	return kind, uint32(uint64(i) * 1000 / uint64(g.cfg.FrameRate)), g.payload[:g.sizes[kind]] //nolint:gosec
}

// AudioFrame returns the millisecond timestamp and payload of the i-th audio
// frame. The payload is empty when audio is disabled.
func (g *Generator) AudioFrame(i int) (uint32, []byte) {
	return uint32(uint64(i) * AudioFrameSamples * 1000 / AudioSampleRate), g.payload[:g.audioSize] //nolint:gosec
}

// Headers returns stream metadata describing the synthetic stream and
// placeholder codec headers.
func (g *Generator) Headers() publisher.StaticHeaders {
	meta, _ := json.Marshal(map[string]any{ //nolint:errchkjson
		"videodatarate":   g.cfg.VideoKbps,
		"audiodatarate":   g.cfg.AudioKbps,
		"framerate":       g.cfg.FrameRate,
		"audiosamplerate": AudioSampleRate,
		"encoder":         "framepub synthetic",
	})

	return publisher.StaticHeaders{
		Meta:  meta,
		Audio: []byte{0xAF, 0x00, 0x11, 0x90},
		Video: []byte{0x17, 0x00, 0x00, 0x00, 0x00},
	}
}

// Run submits frames to sink in real time until ctx is done.
func (g *Generator) Run(ctx context.Context, sink Sink) error {
	video := time.NewTicker(time.Second / time.Duration(g.cfg.FrameRate))
	defer video.Stop()
	audio := time.NewTicker(time.Second * AudioFrameSamples / AudioSampleRate)
	defer audio.Stop()

	var videoFrames, audioFrames int
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-video.C:
			kind, ts, payload := g.VideoFrame(videoFrames)
			sink.SubmitFrame(kind, ts, payload)
			videoFrames++
		case <-audio.C:
			if g.audioSize == 0 {
				continue
			}
			ts, payload := g.AudioFrame(audioFrames)
			sink.SubmitFrame(media.Audio, ts, payload)
			audioFrames++
		}
	}
}
