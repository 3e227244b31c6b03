// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pion/publisher"
	"github.com/pion/publisher/internal/synth"
	"github.com/pion/publisher/pkg/rtpconn"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var publishCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "publish",
	Short: "Publish a synthetic stream",
	Long: `Publish connects to the configured address and streams synthetic frames
shaped like an encoder's output until interrupted, the configured duration
elapses or the connection is lost.`,
	RunE: runPublish,
}

func init() { //nolint:gochecknoinits
	flags := publishCmd.Flags()
	flags.String("address", "", "receiver host:port")
	flags.String("stream-id", "", "stream name announced to the receiver")
	flags.Uint64("video-kbps", 0, "video bitrate in kbps")
	flags.Uint64("buffer-kbit", 0, "encoder rate control buffer in kbit")
	flags.Uint32("fps", 0, "video frame rate")
	flags.Int("gop", 0, "frames per GOP")
	flags.Uint64("audio-kbps", 0, "audio bitrate in kbps")
	flags.Int("send-buffer", 0, "send buffer size in bytes")
	flags.Bool("send-buffering", true, "coalesce packets in a send buffer")
	flags.Int("max-buffered", 0, "maximum buffered video in milliseconds")
	flags.Int("mtu", 0, "largest RTP packet in bytes")
	flags.Duration("duration", 0, "stop after this long (0 runs until interrupted)")
	flags.Duration("stats-interval", 0, "how often to log statistics")

	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	loggerFactory := cfg.LoggerFactory()
	log := loggerFactory.NewLogger("framepub")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if cfg.Run.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Run.Duration)
		defer cancel()
	}

	gen, err := synth.New(synth.Config{
		VideoKbps: cfg.Video.MaxBitrateKbps,
		AudioKbps: cfg.Audio.BitrateKbps,
		FrameRate: cfg.Video.FrameRate,
		GOPLength: cfg.Video.GOPLength,
	})
	if err != nil {
		return err
	}

	conn, err := rtpconn.Dial(ctx, cfg.Publish.Address, cfg.ConnOptions(loggerFactory)...)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", cfg.Publish.Address, err)
	}

	opts := cfg.SessionOptions(loggerFactory)
	if conn.SendBuffer() != nil {
		opts = append(opts, publisher.WithSendBuffer(conn))
	}
	session, err := publisher.NewSession(conn, opts...)
	if err != nil {
		_ = conn.Close()

		return err
	}

	if err = session.BeginPublishing(gen.Headers()); err == nil {
		err = session.Start()
	}
	if err != nil {
		_ = session.Close()

		return err
	}
	log.Infof("publishing to %s", cfg.Publish.Address)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return gen.Run(gctx, session)
	})
	g.Go(func() error {
		select {
		case <-session.Done():
			return session.Err()
		case <-gctx.Done():
			return nil
		}
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Run.StatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				stats := session.Stats()
				log.Infof("sent=%d bytes dropped=%d/%d (disposable/dependent) congestion=%s",
					stats.BytesSent, stats.DisposableFramesDropped, stats.DependentFramesDropped, stats.CongestionLevel)
			}
		}
	})

	runErr := g.Wait()
	if err := session.Close(); err != nil && runErr == nil {
		runErr = err
	}
	stats := session.Stats()
	log.Infof("finished: sent %d bytes, dropped %d frames", stats.BytesSent,
		stats.DisposableFramesDropped+stats.DependentFramesDropped)

	return runErr
}
