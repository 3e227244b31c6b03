// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package config loads publisher settings from a file, the environment and
// defaults using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher"
	"github.com/pion/publisher/pkg/rtpconn"
	"github.com/pion/publisher/pkg/sendbuf"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, with dots in keys replaced
// by underscores. Example: FRAMEPUB_VIDEO_MAX_BITRATE_KBPS=2500.
const EnvPrefix = "FRAMEPUB"

const (
	defaultAddress           = "127.0.0.1:5004"
	defaultVideoKbps         = 1000
	defaultBufferKbit        = 1000
	defaultFrameRate         = 30
	defaultGOPLength         = 60
	defaultAudioKbps         = 96
	defaultMaxBufferedMs     = 400
	defaultStatsInterval     = 5 * time.Second
	maxSupportedFrameRate    = 240
	maxSupportedBitrateKbps  = 100_000
	defaultUseSendBuffering  = true
	defaultLoggingLevel      = "info"
	defaultStreamIdentifier  = "live"
	defaultConfigName        = "framepub"
	defaultConfigSearchPaths = "."
)

// Config holds all publisher settings.
type Config struct {
	Publish PublishConfig `mapstructure:"publish"`
	Video   VideoConfig   `mapstructure:"video"`
	Audio   AudioConfig   `mapstructure:"audio"`
	Network NetworkConfig `mapstructure:"network"`
	Logging LoggingConfig `mapstructure:"logging"`
	Run     RunConfig     `mapstructure:"run"`
}

// PublishConfig names the destination.
type PublishConfig struct {
	Address  string `mapstructure:"address"`
	StreamID string `mapstructure:"stream_id"`
}

// VideoConfig describes the video encoder output.
type VideoConfig struct {
	MaxBitrateKbps uint64 `mapstructure:"max_bitrate_kbps"`
	BufferSizeKbit uint64 `mapstructure:"buffer_size_kbit"`
	FrameRate      uint32 `mapstructure:"frame_rate"`
	GOPLength      int    `mapstructure:"gop_length"`
}

// AudioConfig describes the audio encoder output.
type AudioConfig struct {
	BitrateKbps uint64 `mapstructure:"bitrate_kbps"`
}

// NetworkConfig controls socket buffering and packetization.
type NetworkConfig struct {
	SendBufferBytes  int  `mapstructure:"send_buffer_bytes"`
	UseSendBuffering bool `mapstructure:"use_send_buffering"`
	MaxBufferedMs    int  `mapstructure:"max_buffered_ms"`
	MTU              int  `mapstructure:"mtu"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `mapstructure:"level"` // trace, debug, info, warn, error, disabled
}

// RunConfig bounds a publishing run. A zero Duration runs until interrupted.
type RunConfig struct {
	Duration      time.Duration `mapstructure:"duration"`
	StatsInterval time.Duration `mapstructure:"stats_interval"`
}

// Load reads configuration from configPath, or framepub.yaml in the working
// directory when empty, then applies FRAMEPUB_ environment overrides and
// overrides. The overrides map config keys to values and takes precedence
// over everything else.
func Load(configPath string, overrides map[string]any) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName(defaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(defaultConfigSearchPaths)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	for key, value := range overrides {
		v.Set(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("publish.address", defaultAddress)
	v.SetDefault("publish.stream_id", defaultStreamIdentifier)

	v.SetDefault("video.max_bitrate_kbps", defaultVideoKbps)
	v.SetDefault("video.buffer_size_kbit", defaultBufferKbit)
	v.SetDefault("video.frame_rate", defaultFrameRate)
	v.SetDefault("video.gop_length", defaultGOPLength)

	v.SetDefault("audio.bitrate_kbps", defaultAudioKbps)

	v.SetDefault("network.send_buffer_bytes", sendbuf.DefaultSize)
	v.SetDefault("network.use_send_buffering", defaultUseSendBuffering)
	v.SetDefault("network.max_buffered_ms", defaultMaxBufferedMs)
	v.SetDefault("network.mtu", rtpconn.DefaultMTU)

	v.SetDefault("logging.level", defaultLoggingLevel)

	v.SetDefault("run.duration", time.Duration(0))
	v.SetDefault("run.stats_interval", defaultStatsInterval)
}

// Validate checks the configuration for errors. Send buffer sizes outside the
// supported range are clamped rather than rejected.
func (c *Config) Validate() error {
	if c.Publish.Address == "" {
		return fmt.Errorf("publish.address is required")
	}

	if c.Video.MaxBitrateKbps == 0 || c.Video.MaxBitrateKbps > maxSupportedBitrateKbps {
		return fmt.Errorf("video.max_bitrate_kbps must be between 1 and %d", maxSupportedBitrateKbps)
	}
	if c.Video.BufferSizeKbit == 0 {
		return fmt.Errorf("video.buffer_size_kbit must be at least 1")
	}
	if c.Video.FrameRate == 0 || c.Video.FrameRate > maxSupportedFrameRate {
		return fmt.Errorf("video.frame_rate must be between 1 and %d", maxSupportedFrameRate)
	}
	if c.Video.GOPLength < 1 {
		return fmt.Errorf("video.gop_length must be at least 1")
	}
	if c.Audio.BitrateKbps > maxSupportedBitrateKbps {
		return fmt.Errorf("audio.bitrate_kbps must be at most %d", maxSupportedBitrateKbps)
	}

	if c.Network.MaxBufferedMs < 0 {
		return fmt.Errorf("network.max_buffered_ms must not be negative")
	}
	if err := rtpconn.CheckMTU(c.Network.MTU); err != nil {
		return fmt.Errorf("network.mtu: %w", err)
	}

	if _, ok := logLevels[strings.ToLower(c.Logging.Level)]; !ok {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, disabled")
	}

	if c.Run.Duration < 0 {
		return fmt.Errorf("run.duration must not be negative")
	}
	if c.Run.StatsInterval <= 0 {
		return fmt.Errorf("run.stats_interval must be positive")
	}

	c.Network.SendBufferBytes = sendbuf.ClampSize(c.Network.SendBufferBytes)

	return nil
}

var logLevels = map[string]logging.LogLevel{ //nolint:gochecknoglobals
	"trace":    logging.LogLevelTrace,
	"debug":    logging.LogLevelDebug,
	"info":     logging.LogLevelInfo,
	"warn":     logging.LogLevelWarn,
	"error":    logging.LogLevelError,
	"disabled": logging.LogLevelDisabled,
}

// LoggerFactory builds a logger factory at the configured level.
func (c *Config) LoggerFactory() logging.LoggerFactory {
	factory := logging.NewDefaultLoggerFactory()
	if level, ok := logLevels[strings.ToLower(c.Logging.Level)]; ok {
		factory.DefaultLogLevel = level
	}

	return factory
}

// SessionOptions converts the encoder and buffering settings into session
// options. The send buffer itself is attached by the caller once the
// connection exists.
func (c *Config) SessionOptions(loggerFactory logging.LoggerFactory) []publisher.Option {
	return []publisher.Option{
		publisher.WithMaxBitrate(c.Video.MaxBitrateKbps, c.Audio.BitrateKbps),
		publisher.WithEncoderBufferSize(c.Video.BufferSizeKbit),
		publisher.WithSendBufferSize(c.Network.SendBufferBytes),
		publisher.WithTargetFrameRate(c.Video.FrameRate),
		publisher.WithMaxBufferedDuration(time.Duration(c.Network.MaxBufferedMs) * time.Millisecond),
		publisher.WithLoggerFactory(loggerFactory),
	}
}

// ConnOptions converts the network settings into connection options.
func (c *Config) ConnOptions(loggerFactory logging.LoggerFactory) []rtpconn.Option {
	opts := []rtpconn.Option{
		rtpconn.WithMTU(c.Network.MTU),
		rtpconn.WithStreamID(c.Publish.StreamID),
		rtpconn.WithLoggerFactory(loggerFactory),
	}
	if c.Network.UseSendBuffering {
		opts = append(opts, rtpconn.WithSendBuffering(c.Network.SendBufferBytes))
	}

	return opts
}
