// Command simplemux runs one tunnel-optimizer endpoint: it multiplexes
// small packets from a local virtual network device into UDP bundles
// bound for a peer, optionally compressing their headers with ROHC, and
// performs the inverse on datagrams received from that peer.
package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jsaldana/simplemux/internal/codec"
	"github.com/jsaldana/simplemux/internal/engine"
	"github.com/jsaldana/simplemux/internal/metrics"
	"github.com/jsaldana/simplemux/internal/trigger"
)

const metricsLogInterval = 30 * time.Second

// version, commit and date are overridable at build time via -ldflags,
// following the teacher's release tooling convention.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cfg, exitAfterUsage := parseFlags()
	if exitAfterUsage {
		os.Exit(1)
	}
	if cfg == nil {
		os.Exit(1)
	}

	l := setupLogger(cfg.debug)

	dev, err := openDevice(cfg)
	if err != nil {
		l.Error("device_open_failed", "error", err)
		os.Exit(1)
	}
	defer dev.Close()

	info, mtu, err := resolveLocalInterface(cfg, l)
	if err != nil {
		l.Error("iface_resolve_failed", "error", err)
		os.Exit(1)
	}

	sock, err := openSocket(info, cfg.port)
	if err != nil {
		l.Error("socket_open_failed", "error", err)
		os.Exit(1)
	}
	defer sock.Close()

	logSink, err := openEventLog(cfg)
	if err != nil {
		l.Error("event_log_open_failed", "error", err)
		os.Exit(1)
	}
	if logSink != nil {
		defer logSink.Close()
	}

	var cdc codec.Codec
	if cfg.rohc {
		rc, err := codec.NewRohc(l, cfg.debug)
		if err != nil {
			l.Error("rohc_init_failed", "error", err)
			os.Exit(1)
		}
		defer rc.Close()
		cdc = rc
	} else {
		cdc = codec.NewPassthrough()
	}

	sizeSet, timeoutSet, periodSet := cfg.triggersSet()
	trigCfg := trigger.Config{
		LimitPackets:  cfg.limitPkts,
		SizeThreshold: cfg.sizeThresh,
		Timeout:       time.Duration(cfg.timeoutUS) * time.Microsecond,
		Period:        time.Duration(cfg.periodUS) * time.Microsecond,
	}
	trigCfg.Normalize(sizeSet, timeoutSet, periodSet)

	waiter := engine.NewPollWaiter(int32(dev.Fd()), sock.Fd())

	eng, err := engine.New(
		engine.WithDevice(dev),
		engine.WithSocket(sock),
		engine.WithWaiter(waiter),
		engine.WithMTU(mtu),
		engine.WithCodec(cdc),
		engine.WithTriggerClock(trigger.New(trigCfg)),
		engine.WithEventLog(logSink),
		engine.WithLogger(l),
		engine.WithPeer(net.ParseIP(cfg.peerAddr), cfg.port),
	)
	if err != nil {
		l.Error("engine_init_failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	startMetricsLogger(ctx, metricsLogInterval, l, &wg)
	metrics.SetReadinessFunc(func() bool { return ctx.Err() == nil })

	if cfg.metricsAddr != "" {
		metrics.InitBuildInfo(version, commit, date)
		httpSrv := metrics.StartHTTP(cfg.metricsAddr)
		defer func() { _ = httpSrv.Shutdown(context.Background()) }()
	}

	errCh := make(chan error, 1)
	go func() { errCh <- eng.Run(ctx) }()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sigCh:
		l.Info("shutdown_signal", "signal", s.String())
		cancel()
		<-errCh
	case err := <-errCh:
		cancel()
		if err != nil {
			l.Error("engine_fatal", "error", err)
			wg.Wait()
			os.Exit(1)
		}
	}
	wg.Wait()
}
