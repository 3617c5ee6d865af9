package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/jsaldana/simplemux/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus counters
var (
	TunRxPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tun_rx_packets_total",
		Help: "Total packets read from the virtual device.",
	})
	TunTxPackets = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tun_tx_packets_total",
		Help: "Total packets written to the virtual device.",
	})
	UDPRxDatagrams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_rx_datagrams_total",
		Help: "Total UDP datagrams received from the network.",
	})
	UDPTxDatagrams = promauto.NewCounter(prometheus.CounterOpts{
		Name: "udp_tx_datagrams_total",
		Help: "Total UDP datagrams sent to the peer.",
	})
	BundlesSent = promauto.NewCounter(prometheus.CounterOpts{
		Name: "bundles_sent_total",
		Help: "Total multiplexed bundles flushed and sent.",
	})
	FlushReasons = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bundle_flush_reasons_total",
		Help: "Flush events by triggering reason.",
	}, []string{"reason"})
	PacketsMuxed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packets_muxed_total",
		Help: "Total packets appended into an outgoing bundle.",
	})
	PacketsDemuxed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "packets_demuxed_total",
		Help: "Total packets extracted from an incoming bundle.",
	})
	NativePassthrough = promauto.NewCounter(prometheus.CounterOpts{
		Name: "native_passthrough_total",
		Help: "Total datagrams forwarded verbatim (source port != multiplex port).",
	})
	RohcFeedback = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rohc_feedback_total",
		Help: "Total ROHC decompress calls that produced no IP packet.",
	})
	RohcSegmented = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rohc_segmented_total",
		Help: "Total ROHC compress calls that fell back to uncompressed due to segmentation.",
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})

	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrBadSeparator   = "bad_separator"
	ErrDemuxBadLength = "demux_bad_length"
	ErrComprFailed    = "compr_failed"
	ErrDecompFailed   = "decomp_failed"
	ErrUDPSend        = "udp_send"
	ErrUDPRead        = "udp_read"
	ErrTunRead        = "tun_read"
	ErrTunWrite       = "tun_write"
	ErrWait           = "wait"
)

// StartHTTP serves Prometheus metrics at /metrics on a fresh mux.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for cheap in-process reads (periodic log lines).
var (
	localTunRx       uint64
	localTunTx       uint64
	localUDPRx       uint64
	localUDPTx       uint64
	localBundlesSent uint64
	localMuxed       uint64
	localDemuxed     uint64
	localPassthrough uint64
	localFeedback    uint64
	localSegmented   uint64
	localErrors      uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	TunRx          uint64
	TunTx          uint64
	UDPRx          uint64
	UDPTx          uint64
	BundlesSent    uint64
	PacketsMuxed   uint64
	PacketsDemuxed uint64
	Passthrough    uint64
	RohcFeedback   uint64
	RohcSegmented  uint64
	Errors         uint64
}

func Snap() Snapshot {
	return Snapshot{
		TunRx:          atomic.LoadUint64(&localTunRx),
		TunTx:          atomic.LoadUint64(&localTunTx),
		UDPRx:          atomic.LoadUint64(&localUDPRx),
		UDPTx:          atomic.LoadUint64(&localUDPTx),
		BundlesSent:    atomic.LoadUint64(&localBundlesSent),
		PacketsMuxed:   atomic.LoadUint64(&localMuxed),
		PacketsDemuxed: atomic.LoadUint64(&localDemuxed),
		Passthrough:    atomic.LoadUint64(&localPassthrough),
		RohcFeedback:   atomic.LoadUint64(&localFeedback),
		RohcSegmented:  atomic.LoadUint64(&localSegmented),
		Errors:         atomic.LoadUint64(&localErrors),
	}
}

func IncTunRx() { TunRxPackets.Inc(); atomic.AddUint64(&localTunRx, 1) }
func IncTunTx() { TunTxPackets.Inc(); atomic.AddUint64(&localTunTx, 1) }
func IncUDPRx() { UDPRxDatagrams.Inc(); atomic.AddUint64(&localUDPRx, 1) }
func IncUDPTx() { UDPTxDatagrams.Inc(); atomic.AddUint64(&localUDPTx, 1) }

// IncBundleSent records a flushed bundle along with every reason that
// contributed to the flush decision (multiple reasons may co-occur, §4.5).
func IncBundleSent(reasons []string) {
	BundlesSent.Inc()
	atomic.AddUint64(&localBundlesSent, 1)
	for _, r := range reasons {
		FlushReasons.WithLabelValues(r).Inc()
	}
}

func AddPacketsMuxed(n int) {
	PacketsMuxed.Add(float64(n))
	atomic.AddUint64(&localMuxed, uint64(n))
}

func AddPacketsDemuxed(n int) {
	PacketsDemuxed.Add(float64(n))
	atomic.AddUint64(&localDemuxed, uint64(n))
}

func IncNativePassthrough() {
	NativePassthrough.Inc()
	atomic.AddUint64(&localPassthrough, 1)
}

func IncRohcFeedback() {
	RohcFeedback.Inc()
	atomic.AddUint64(&localFeedback, 1)
}

func IncRohcSegmented() {
	RohcSegmented.Inc()
	atomic.AddUint64(&localSegmented, 1)
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// InitBuildInfo sets the build info gauge and pre-registers error label
// series so the first error of each kind does not pay registration cost.
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	for _, lbl := range []string{
		ErrBadSeparator, ErrDemuxBadLength, ErrComprFailed, ErrDecompFailed,
		ErrUDPSend, ErrUDPRead, ErrTunRead, ErrTunWrite, ErrWait,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil {
		return true
	}
	return fn()
}
