// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package cmd implements the framepub commands.
package cmd

import (
	"fmt"

	"github.com/pion/publisher/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// cfgFile holds the config file path from CLI flag.
var cfgFile string //nolint:gochecknoglobals

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{ //nolint:gochecknoglobals
	"log-level":      "logging.level",
	"address":        "publish.address",
	"stream-id":      "publish.stream_id",
	"video-kbps":     "video.max_bitrate_kbps",
	"buffer-kbit":    "video.buffer_size_kbit",
	"fps":            "video.frame_rate",
	"gop":            "video.gop_length",
	"audio-kbps":     "audio.bitrate_kbps",
	"send-buffer":    "network.send_buffer_bytes",
	"send-buffering": "network.use_send_buffering",
	"max-buffered":   "network.max_buffered_ms",
	"mtu":            "network.mtu",
	"duration":       "run.duration",
	"stats-interval": "run.stats_interval",
	"listen":         "publish.address",
}

var rootCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:     "framepub",
	Short:   "Publish live audio and video over RTP with congestion aware frame dropping",
	Version: version,
	Long: `framepub streams encoded frames to an RTP over TCP (RFC 4571) receiver.
When the network falls behind the encoder it drops video frames in an order
that keeps every GOP decodable.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	if err := rootCmd.Execute(); err != nil {
		return fmt.Errorf("executing root command: %w", err)
	}

	return nil
}

func init() { //nolint:gochecknoinits
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./framepub.yaml)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error, disabled)")
}

// loadConfig loads the configuration. Flags override the file and
// environment only when set explicitly, so their defaults never mask
// FRAMEPUB_ variables.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := map[string]any{}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		if key, ok := flagKeys[f.Name]; ok {
			overrides[key] = f.Value.String()
		}
	})

	return config.Load(cfgFile, overrides)
}
