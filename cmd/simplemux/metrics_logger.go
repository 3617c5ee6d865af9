package main

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jsaldana/simplemux/internal/metrics"
)

// startMetricsLogger periodically logs a metrics snapshot, for operators
// without a Prometheus scraper. Disabled when interval <= 0.
func startMetricsLogger(ctx context.Context, interval time.Duration, l *slog.Logger, wg *sync.WaitGroup) {
	if interval <= 0 {
		return
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				snap := metrics.Snap()
				l.Info("metrics_snapshot",
					"tun_rx", snap.TunRx,
					"tun_tx", snap.TunTx,
					"udp_rx", snap.UDPRx,
					"udp_tx", snap.UDPTx,
					"bundles_sent", snap.BundlesSent,
					"packets_muxed", snap.PacketsMuxed,
					"packets_demuxed", snap.PacketsDemuxed,
					"native_passthrough", snap.Passthrough,
					"rohc_feedback", snap.RohcFeedback,
					"rohc_segmented", snap.RohcSegmented,
					"errors", snap.Errors,
				)
			case <-ctx.Done():
				return
			}
		}
	}()
}
