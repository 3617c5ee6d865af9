// Package engine implements the single-threaded event loop (C6): it owns
// the bundle buffer, the header codec, and the trigger clock, and
// arbitrates between the virtual device, the network socket, and the
// flush-period timer. There is no worker pool and no background
// goroutine; everything below Run executes on the caller's goroutine.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"time"

	"github.com/jsaldana/simplemux/internal/bundle"
	"github.com/jsaldana/simplemux/internal/codec"
	"github.com/jsaldana/simplemux/internal/demux"
	"github.com/jsaldana/simplemux/internal/eventlog"
	"github.com/jsaldana/simplemux/internal/logging"
	"github.com/jsaldana/simplemux/internal/metrics"
	"github.com/jsaldana/simplemux/internal/trigger"
)

// Device is the virtual network device collaborator (tun.Device satisfies
// this, packet-oriented, no-packet-information mode per §6).
type Device interface {
	Read([]byte) (int, error)
	Write([]byte) (int, error)
}

// Socket is the UDP transport collaborator (engine.Socket satisfies this).
type Socket interface {
	RecvFrom([]byte) (n int, srcIP net.IP, srcPort int, err error)
	SendTo(data []byte, ip net.IP, port int) error
}

// Engine owns all mutable state of one tunnel endpoint: the bundle
// buffer, the trigger clock, and (through Device/Socket/Codec) the three
// exclusively-owned resources described in §5.
type Engine struct {
	dev    Device
	sock   Socket
	waiter Waiter

	peerIP   net.IP
	peerPort int
	muxPort  int
	mtu      int

	codec  codec.Codec
	buf    *bundle.Buffer
	trig   *trigger.Clock
	log    *eventlog.Sink
	logger *slog.Logger

	sentCounter  int
	demuxCounter int
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// New builds an Engine. Device, Socket, Waiter, peer address, and mux
// port are required; everything else defaults (passthrough codec,
// single-packet trigger, no event log).
func New(opts ...Option) (*Engine, error) {
	e := &Engine{logger: logging.L()}
	for _, o := range opts {
		o(e)
	}
	if e.dev == nil {
		return nil, fmt.Errorf("%w: device", ErrMissingConfig)
	}
	if e.sock == nil {
		return nil, fmt.Errorf("%w: socket", ErrMissingConfig)
	}
	if e.waiter == nil {
		return nil, fmt.Errorf("%w: waiter", ErrMissingConfig)
	}
	if e.peerIP == nil || e.peerPort == 0 || e.muxPort == 0 {
		return nil, fmt.Errorf("%w: peer address/port", ErrMissingConfig)
	}
	if e.mtu == 0 {
		e.mtu = 1500
	}
	if e.codec == nil {
		e.codec = codec.NewPassthrough()
	}
	if e.buf == nil {
		e.buf = bundle.New(e.mtu)
	}
	if e.trig == nil {
		e.trig = trigger.New(trigger.Config{LimitPackets: 1})
	}
	return e, nil
}

func WithDevice(d Device) Option   { return func(e *Engine) { e.dev = d } }
func WithSocket(s Socket) Option   { return func(e *Engine) { e.sock = s } }
func WithWaiter(w Waiter) Option   { return func(e *Engine) { e.waiter = w } }
func WithMTU(mtu int) Option       { return func(e *Engine) { e.mtu = mtu } }
func WithCodec(c codec.Codec) Option { return func(e *Engine) { e.codec = c } }
func WithTriggerClock(c *trigger.Clock) Option { return func(e *Engine) { e.trig = c } }
func WithEventLog(s *eventlog.Sink) Option { return func(e *Engine) { e.log = s } }
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithPeer sets the peer address and UDP port; the same port number is
// also the "configured multiplex port" used to recognize self-identifying
// bundle datagrams on the wire (§6).
func WithPeer(ip net.IP, port int) Option {
	return func(e *Engine) {
		e.peerIP = ip
		e.peerPort = port
		e.muxPort = port
	}
}

// Snapshot reports the current bundle-buffer occupancy, useful for status
// logging without exposing the buffer itself.
func (e *Engine) Snapshot() (count, size int) { return e.buf.Count(), e.buf.Size() }

// Run executes the event loop until ctx is cancelled or an unrecoverable
// wait error occurs (§4.6, §7). It never returns nil except via ctx
// cancellation; any other return is the fatal error that stopped it.
func (e *Engine) Run(ctx context.Context) error {
	devBuf := make([]byte, e.mtu)
	sockBuf := make([]byte, e.mtu)

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		remaining := e.trig.TimeUntilPeriod()
		devReady, sockReady, err := e.waiter.Wait(remaining)
		if err != nil {
			wrap := fmt.Errorf("%w: %v", ErrWait, err)
			metrics.IncError(mapErrToMetric(wrap))
			return wrap
		}

		switch {
		case sockReady:
			if err := e.handleSocketReadable(sockBuf); err != nil {
				e.logger.Error("socket_dispatch_error", "error", err)
			}
		case devReady:
			if err := e.handleDeviceReadable(devBuf); err != nil {
				e.logger.Error("device_dispatch_error", "error", err)
			}
		default:
			e.onPeriodTick()
		}
	}
}

// handleSocketReadable services §4.6 step 5 "Socket readable".
func (e *Engine) handleSocketReadable(buf []byte) error {
	n, srcIP, srcPort, err := e.sock.RecvFrom(buf)
	if err != nil {
		metrics.IncError(metrics.ErrUDPRead)
		return fmt.Errorf("%w: %v", ErrSocketRead, err)
	}
	metrics.IncUDPRx()
	datagram := buf[:n]

	if srcPort != e.muxPort {
		metrics.IncNativePassthrough()
		if _, err := e.dev.Write(datagram); err != nil {
			metrics.IncError(metrics.ErrTunWrite)
			return fmt.Errorf("%w: %v", ErrDeviceWrite, err)
		}
		metrics.IncTunTx()
		e.logEvent(eventlog.ActionForward, eventlog.KindNative, n, 0, "from", srcIP, srcPort)
		return nil
	}

	e.demultiplexAndInject(datagram, srcIP, srcPort)
	return nil
}

// demultiplexAndInject runs C4 then C2.decompress over one received
// bundle, injecting every successfully decoded packet into the virtual
// device in strict bundle order (§4.6 ordering guarantee).
func (e *Engine) demultiplexAndInject(datagram []byte, srcIP net.IP, srcPort int) {
	packets, structErr := demux.Demultiplex(datagram)
	for _, pkt := range packets {
		e.demuxCounter++
		dr, err := e.codec.Decompress(pkt)
		if err != nil {
			metrics.IncError(metrics.ErrDecompFailed)
			e.logEvent(eventlog.ActionError, eventlog.KindDecompFailed, len(pkt), e.demuxCounter, "", nil, 0)
			continue
		}
		if dr.FeedbackOnly {
			metrics.IncRohcFeedback()
			e.logEvent(eventlog.ActionRec, eventlog.KindRohcFeedback, len(pkt), e.demuxCounter, "", nil, 0)
			continue
		}
		if _, err := e.dev.Write(dr.Data); err != nil {
			metrics.IncError(metrics.ErrTunWrite)
			e.logger.Error("device_write_error", "error", err)
			continue
		}
		metrics.IncTunTx()
	}
	metrics.AddPacketsDemuxed(len(packets))

	if structErr != nil {
		kind := eventlog.KindDemuxBadLength
		label := metrics.ErrDemuxBadLength
		if structErr.Reason == demux.ReasonBadSeparator {
			kind = eventlog.KindBadSeparator
			label = metrics.ErrBadSeparator
		}
		metrics.IncError(label)
		e.logEvent(eventlog.ActionError, kind, len(datagram), len(packets), "from", srcIP, srcPort)
		return
	}
	e.logEvent(eventlog.ActionRec, eventlog.KindDemuxed, len(datagram), len(packets), "from", srcIP, srcPort)
}

// handleDeviceReadable services §4.6 step 5 "Virtual device readable".
func (e *Engine) handleDeviceReadable(buf []byte) error {
	n, err := e.dev.Read(buf)
	if err != nil {
		metrics.IncError(metrics.ErrTunRead)
		return fmt.Errorf("%w: %v", ErrDeviceRead, err)
	}
	metrics.IncTunRx()
	packet := append([]byte(nil), buf[:n]...)

	cr, err := e.codec.Compress(packet)
	if err != nil {
		metrics.IncError(metrics.ErrComprFailed)
		e.logEvent(eventlog.ActionError, eventlog.KindComprFailed, n, 0, "", nil, 0)
		return nil
	}
	if cr.Segmented {
		metrics.IncRohcSegmented()
	}

	preCount := e.buf.Count()
	outcome, flushed, err := e.buf.TryAppend(cr.Data)
	if err != nil {
		e.logger.Error("bundle_append_error", "error", err)
		return nil
	}
	if outcome == bundle.Flushed {
		e.sendBundle(flushed, preCount, []string{"MTU"})
		e.buf.AppendNow(cr.Data)
	}
	metrics.AddPacketsMuxed(1)

	if ok, reasons := e.trig.ShouldFlush(trigger.State{Count: e.buf.Count(), Size: e.buf.Size()}); ok {
		count := e.buf.Count()
		e.sendBundle(e.buf.Drain(), count, reasonStrings(reasons))
	}
	return nil
}

// onPeriodTick services §4.6 step 5 "Neither (timeout)": the wait elapsed
// with no fd ready, meaning the hard period has expired. No compression
// is performed here; any buffered packets were already compressed on
// arrival.
func (e *Engine) onPeriodTick() {
	if e.buf.Count() > 0 {
		count := e.buf.Count()
		e.sendBundle(e.buf.Drain(), count, []string{"period"})
		return
	}
	e.trig.MarkSent()
}

// sendBundle transmits data to the peer and records the flush. Called
// with an already-nonempty bundle; an empty bundle is a programming
// error upstream and is simply dropped.
func (e *Engine) sendBundle(data []byte, packetCount int, reasons []string) {
	if len(data) == 0 {
		return
	}
	if err := e.sock.SendTo(data, e.peerIP, e.peerPort); err != nil {
		metrics.IncError(metrics.ErrUDPSend)
		e.logger.Error("udp_send_error", "error", err)
		e.trig.MarkSent()
		return
	}
	metrics.IncUDPTx()
	e.sentCounter++
	metrics.IncBundleSent(reasons)
	e.logEvent(eventlog.ActionSent, eventlog.KindMuxed, len(data), packetCount, "to", e.peerIP, e.peerPort, reasons...)
	e.trig.MarkSent()
}

func reasonStrings(reasons []trigger.Reason) []string {
	out := make([]string, len(reasons))
	for i, r := range reasons {
		out[i] = string(r)
	}
	return out
}

// logEvent writes to the event log sink when one is configured; silent
// no-op otherwise (the default is no log file, §6).
func (e *Engine) logEvent(action eventlog.Action, kind eventlog.Kind, n, counter int, direction string, peerIP net.IP, peerPort int, extra ...string) {
	if e.log == nil {
		return
	}
	ev := eventlog.Event{Action: action, Kind: kind, Bytes: n, Counter: counter, Extra: extra}
	if direction != "" {
		ev.Direction = direction
		if peerIP != nil {
			ev.PeerIP = peerIP.String()
		}
		ev.PeerPort = peerPort
	}
	if err := e.log.Write(time.Now(), ev); err != nil {
		e.logger.Error("event_log_write_error", "error", err)
	}
}
