// SPDX-FileCopyrightText: 2026 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package cmd

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/pion/logging"
	"github.com/pion/publisher/internal/sequencenumber"
	"github.com/pion/publisher/pkg/rtpconn"
	"github.com/pion/rtcp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var sinkCmd = &cobra.Command{ //nolint:gochecknoglobals
	Use:   "sink",
	Short: "Receive and count a published stream",
	Long: `Sink accepts publisher connections on the configured address and logs how
many RTP packets and bytes arrive, which is handy for watching drops while
shaping the link between the two.`,
	RunE: runSink,
}

func init() { //nolint:gochecknoinits
	sinkCmd.Flags().String("listen", "", "address to accept connections on")
	sinkCmd.Flags().Duration("stats-interval", 0, "how often to log statistics")

	rootCmd.AddCommand(sinkCmd)
}

type sinkStats struct {
	packets  atomic.Uint64
	bytes    atomic.Uint64
	metadata atomic.Uint64
}

func runSink(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cfg.LoggerFactory().NewLogger("sink")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", cfg.Publish.Address)
	if err != nil {
		return err
	}
	log.Infof("listening on %s", listener.Addr())

	var stats sinkStats
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()

		return listener.Close()
	})
	g.Go(func() error {
		for {
			sock, err := listener.Accept()
			if err != nil {
				if gctx.Err() != nil {
					return nil
				}

				return err
			}
			g.Go(func() error {
				receive(gctx, sock, &stats, log)

				return nil
			})
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
				log.Infof("received %d RTP packets, %d payload bytes, %d metadata packets",
					stats.packets.Load(), stats.bytes.Load(), stats.metadata.Load())
			}
		}
	})

	return g.Wait()
}

func receive(ctx context.Context, sock net.Conn, stats *sinkStats, log logging.LeveledLogger) {
	log.Infof("accepted %s", sock.RemoteAddr())
	stop := context.AfterFunc(ctx, func() { _ = sock.Close() })
	defer stop()
	defer func() { _ = sock.Close() }()

	trackers := map[uint32]*sequencenumber.Tracker{}
	defer func() {
		for ssrc, tracker := range trackers {
			log.Infof("%s: ssrc %d received %d packets, lost %d",
				sock.RemoteAddr(), ssrc, tracker.Received(), tracker.Lost())
		}
	}()

	r := rtpconn.NewReader(sock)
	for {
		frame, err := r.Next()
		if err != nil {
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				log.Warnf("%s: %v", sock.RemoteAddr(), err)
			}

			return
		}

		if frame.RTP != nil {
			tracker, ok := trackers[frame.RTP.SSRC]
			if !ok {
				tracker = &sequencenumber.Tracker{}
				trackers[frame.RTP.SSRC] = tracker
			}
			tracker.Push(frame.RTP.SequenceNumber)
			stats.packets.Add(1)
			stats.bytes.Add(uint64(len(frame.RTP.Payload)))

			continue
		}
		for _, pkt := range frame.RTCP {
			switch pkt := pkt.(type) {
			case *rtcp.ApplicationDefined:
				stats.metadata.Add(1)
				log.Debugf("metadata: %s", pkt.Data)
			case *rtcp.SenderReport:
				log.Debugf("%s: ssrc %d reports %d packets sent", sock.RemoteAddr(), pkt.SSRC, pkt.PacketCount)
			case *rtcp.Goodbye:
				log.Infof("%s: end of stream", sock.RemoteAddr())
			}
		}
	}
}
