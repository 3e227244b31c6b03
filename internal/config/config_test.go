// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher"
	"github.com/pion/publisher/internal/test"
	"github.com/pion/publisher/pkg/rtpconn"
	"github.com/pion/publisher/pkg/sendbuf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validTestConfig() *Config {
	return &Config{
		Publish: PublishConfig{Address: "127.0.0.1:5004", StreamID: "live"},
		Video:   VideoConfig{MaxBitrateKbps: 1000, BufferSizeKbit: 1000, FrameRate: 30, GOPLength: 60},
		Audio:   AudioConfig{BitrateKbps: 96},
		Network: NetworkConfig{SendBufferBytes: 1460, UseSendBuffering: true, MaxBufferedMs: 400, MTU: 1200},
		Logging: LoggingConfig{Level: "info"},
		Run:     RunConfig{StatsInterval: time.Second},
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "127.0.0.1:5004", cfg.Publish.Address)
	assert.Equal(t, "live", cfg.Publish.StreamID)

	assert.Equal(t, uint64(1000), cfg.Video.MaxBitrateKbps)
	assert.Equal(t, uint64(1000), cfg.Video.BufferSizeKbit)
	assert.Equal(t, uint32(30), cfg.Video.FrameRate)
	assert.Equal(t, 60, cfg.Video.GOPLength)
	assert.Equal(t, uint64(96), cfg.Audio.BitrateKbps)

	assert.Equal(t, sendbuf.DefaultSize, cfg.Network.SendBufferBytes)
	assert.True(t, cfg.Network.UseSendBuffering)
	assert.Equal(t, 400, cfg.Network.MaxBufferedMs)
	assert.Equal(t, rtpconn.DefaultMTU, cfg.Network.MTU)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Zero(t, cfg.Run.Duration)
	assert.Equal(t, 5*time.Second, cfg.Run.StatsInterval)
}

func TestLoad_FromFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "framepub.yaml")

	configContent := `
publish:
  address: "ingest.example.com:6000"
video:
  max_bitrate_kbps: 2500
  frame_rate: 60
network:
  send_buffer_bytes: 100
  use_send_buffering: false
run:
  duration: 30s
`
	err := os.WriteFile(configPath, []byte(configContent), 0o600)
	require.NoError(t, err)

	cfg, err := Load(configPath, nil)
	require.NoError(t, err)

	assert.Equal(t, "ingest.example.com:6000", cfg.Publish.Address)
	assert.Equal(t, uint64(2500), cfg.Video.MaxBitrateKbps)
	assert.Equal(t, uint32(60), cfg.Video.FrameRate)
	assert.Equal(t, sendbuf.MinSize, cfg.Network.SendBufferBytes, "send buffer is clamped")
	assert.False(t, cfg.Network.UseSendBuffering)
	assert.Equal(t, 30*time.Second, cfg.Run.Duration)

	// Unset values keep their defaults.
	assert.Equal(t, uint64(96), cfg.Audio.BitrateKbps)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("FRAMEPUB_PUBLISH_ADDRESS", "10.0.0.1:5004")
	t.Setenv("FRAMEPUB_VIDEO_MAX_BITRATE_KBPS", "4000")
	t.Setenv("FRAMEPUB_LOGGING_LEVEL", "debug")

	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, "10.0.0.1:5004", cfg.Publish.Address)
	assert.Equal(t, uint64(4000), cfg.Video.MaxBitrateKbps)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestLoad_OverridesWin(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "framepub.yaml")
	err := os.WriteFile(configPath, []byte("video:\n  frame_rate: 25\n"), 0o600)
	require.NoError(t, err)

	t.Setenv("FRAMEPUB_VIDEO_FRAME_RATE", "50")

	cfg, err := Load(configPath, map[string]any{"video.frame_rate": 24})
	require.NoError(t, err)
	assert.Equal(t, uint32(24), cfg.Video.FrameRate)
}

func TestLoad_InvalidConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "framepub.yaml")
	err := os.WriteFile(configPath, []byte("video: [unclosed"), 0o600)
	require.NoError(t, err)

	_, err = Load(configPath, nil)
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	require.NoError(t, validTestConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"missing address", func(c *Config) { c.Publish.Address = "" }, "publish.address"},
		{"zero bitrate", func(c *Config) { c.Video.MaxBitrateKbps = 0 }, "video.max_bitrate_kbps"},
		{"zero buffer", func(c *Config) { c.Video.BufferSizeKbit = 0 }, "video.buffer_size_kbit"},
		{"zero frame rate", func(c *Config) { c.Video.FrameRate = 0 }, "video.frame_rate"},
		{"zero gop", func(c *Config) { c.Video.GOPLength = 0 }, "video.gop_length"},
		{"huge audio", func(c *Config) { c.Audio.BitrateKbps = 1 << 40 }, "audio.bitrate_kbps"},
		{"negative buffered", func(c *Config) { c.Network.MaxBufferedMs = -1 }, "network.max_buffered_ms"},
		{"tiny mtu", func(c *Config) { c.Network.MTU = 12 }, "network.mtu"},
		{"bad level", func(c *Config) { c.Logging.Level = "loud" }, "logging.level"},
		{"negative duration", func(c *Config) { c.Run.Duration = -time.Second }, "run.duration"},
		{"zero stats interval", func(c *Config) { c.Run.StatsInterval = 0 }, "run.stats_interval"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validTestConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestLoggerFactory(t *testing.T) {
	cfg := validTestConfig()
	cfg.Logging.Level = "WARN"

	factory, ok := cfg.LoggerFactory().(*logging.DefaultLoggerFactory)
	require.True(t, ok)
	assert.Equal(t, logging.LogLevelWarn, factory.DefaultLogLevel)
}

func TestConnOptions(t *testing.T) {
	cfg := validTestConfig()
	cfg.Network.SendBufferBytes = 2000

	conn, err := rtpconn.NewConn(test.NewMockSocket(0), cfg.ConnOptions(logging.NewDefaultLoggerFactory())...)
	require.NoError(t, err)
	require.NotNil(t, conn.SendBuffer())
	assert.Equal(t, 2000, conn.SendBuffer().Size())

	cfg.Network.UseSendBuffering = false
	conn, err = rtpconn.NewConn(test.NewMockSocket(0), cfg.ConnOptions(logging.NewDefaultLoggerFactory())...)
	require.NoError(t, err)
	assert.Nil(t, conn.SendBuffer())
}

func TestSessionOptions(t *testing.T) {
	cfg := validTestConfig()
	session, err := publisher.NewSession(test.NewMockTransport(), cfg.SessionOptions(logging.NewDefaultLoggerFactory())...)
	require.NoError(t, err)
	require.NoError(t, session.Close())

	cfg.Video.FrameRate = 0
	_, err = publisher.NewSession(test.NewMockTransport(), cfg.SessionOptions(logging.NewDefaultLoggerFactory())...)
	assert.Error(t, err)
}
