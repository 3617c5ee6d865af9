package engine

import (
	"bytes"
	"io"
	"net"
	"testing"
	"time"

	"github.com/jsaldana/simplemux/internal/bundle"
	"github.com/jsaldana/simplemux/internal/codec"
	"github.com/jsaldana/simplemux/internal/logging"
	"github.com/jsaldana/simplemux/internal/trigger"
)

type fakeDevice struct {
	readQueue [][]byte
	written   [][]byte
}

func (f *fakeDevice) Read(buf []byte) (int, error) {
	if len(f.readQueue) == 0 {
		return 0, io.EOF
	}
	pkt := f.readQueue[0]
	f.readQueue = f.readQueue[1:]
	return copy(buf, pkt), nil
}

func (f *fakeDevice) Write(buf []byte) (int, error) {
	f.written = append(f.written, append([]byte(nil), buf...))
	return len(buf), nil
}

type fakeDatagram struct {
	data    []byte
	srcIP   net.IP
	srcPort int
}

type fakeSocket struct {
	sent      []sentDatagram
	recvQueue []fakeDatagram
}

type sentDatagram struct {
	data []byte
	ip   net.IP
	port int
}

func (f *fakeSocket) RecvFrom(buf []byte) (int, net.IP, int, error) {
	if len(f.recvQueue) == 0 {
		return 0, nil, 0, io.EOF
	}
	d := f.recvQueue[0]
	f.recvQueue = f.recvQueue[1:]
	return copy(buf, d.data), d.srcIP, d.srcPort, nil
}

func (f *fakeSocket) SendTo(data []byte, ip net.IP, port int) error {
	f.sent = append(f.sent, sentDatagram{data: append([]byte(nil), data...), ip: ip, port: port})
	return nil
}

func newTestEngine(cfg trigger.Config) (*Engine, *fakeDevice, *fakeSocket) {
	dev := &fakeDevice{}
	sock := &fakeSocket{}
	e := &Engine{
		dev:      dev,
		sock:     sock,
		codec:    codec.NewPassthrough(),
		buf:      bundle.New(1500),
		trig:     trigger.New(cfg),
		logger:   logging.L(),
		peerIP:   net.IPv4(10, 0, 0, 2),
		peerPort: 55555,
		muxPort:  55555,
		mtu:      1500,
	}
	return e, dev, sock
}

// TestSingleSmallPacketNoTriggers implements concrete scenario 1: a single
// 40-byte packet with no triggers configured (limit_packets=1) produces
// one UDP datagram of 41 bytes: separator 0x28 followed by the payload.
func TestSingleSmallPacketNoTriggers(t *testing.T) {
	cfg := trigger.Config{}
	cfg.Normalize(false, false, false)
	e, dev, sock := newTestEngine(cfg)

	payload := bytes.Repeat([]byte{0xAB}, 40)
	dev.readQueue = [][]byte{payload}

	if err := e.handleDeviceReadable(make([]byte, e.mtu)); err != nil {
		t.Fatalf("handleDeviceReadable: %v", err)
	}

	if len(sock.sent) != 1 {
		t.Fatalf("sent %d datagrams, want 1", len(sock.sent))
	}
	got := sock.sent[0].data
	if len(got) != 41 || got[0] != 0x28 || !bytes.Equal(got[1:], payload) {
		t.Fatalf("datagram = %x, want 0x28 followed by payload", got)
	}
}

// TestTwoPacketsBelowThresholdFlushOnTimeout implements concrete scenario
// 2: with -n 3, two packets below the count threshold stay buffered until
// the loop's wait times out with no descriptor ready (onPeriodTick), which
// sends both as one 92-byte bundle.
func TestTwoPacketsBelowThresholdFlushOnTimeout(t *testing.T) {
	base := time.Unix(0, 0)
	now := base
	cfg := trigger.Config{LimitPackets: 3, SizeThreshold: 1 << 20, Timeout: 10 * time.Microsecond, Period: time.Hour}
	e, dev, sock := newTestEngine(trigger.Config{})
	e.trig = trigger.NewWithClock(cfg, func() time.Time { return now })

	p1 := bytes.Repeat([]byte{0x11}, 40)
	p2 := bytes.Repeat([]byte{0x22}, 50)
	dev.readQueue = [][]byte{p1, p2}

	if err := e.handleDeviceReadable(make([]byte, e.mtu)); err != nil {
		t.Fatalf("first packet: %v", err)
	}
	if len(sock.sent) != 0 {
		t.Fatalf("sent %d datagrams after first packet, want 0", len(sock.sent))
	}

	if err := e.handleDeviceReadable(make([]byte, e.mtu)); err != nil {
		t.Fatalf("second packet: %v", err)
	}
	if len(sock.sent) != 0 {
		t.Fatalf("sent %d datagrams after second packet, want 0 (count below limit)", len(sock.sent))
	}

	now = base.Add(11 * time.Microsecond)
	e.onPeriodTick()

	if len(sock.sent) != 1 {
		t.Fatalf("sent %d datagrams after timeout, want 1", len(sock.sent))
	}
	want := append([]byte{0x28}, p1...)
	want = append(want, 0x32)
	want = append(want, p2...)
	if !bytes.Equal(sock.sent[0].data, want) {
		t.Fatalf("datagram = %x, want %x", sock.sent[0].data, want)
	}
}

// TestMalformedBundleProducesNoWrites implements concrete scenario 6.
func TestMalformedBundleProducesNoWrites(t *testing.T) {
	cfg := trigger.Config{}
	cfg.Normalize(false, false, false)
	e, dev, sock := newTestEngine(cfg)
	sock.recvQueue = []fakeDatagram{{
		data:    []byte{0x80, 0x01, 0x02},
		srcIP:   net.IPv4(10, 0, 0, 2),
		srcPort: e.muxPort,
	}}

	if err := e.handleSocketReadable(make([]byte, e.mtu)); err != nil {
		t.Fatalf("handleSocketReadable: %v", err)
	}
	if len(dev.written) != 0 {
		t.Fatalf("device writes = %d, want 0", len(dev.written))
	}
}

// TestNativePassthroughWrongSourcePort verifies a datagram whose source
// port differs from the configured multiplex port is forwarded verbatim.
func TestNativePassthroughWrongSourcePort(t *testing.T) {
	cfg := trigger.Config{}
	cfg.Normalize(false, false, false)
	e, dev, _ := newTestEngine(cfg)
	payload := []byte("native packet")
	e.sock.(*fakeSocket).recvQueue = []fakeDatagram{{
		data:    payload,
		srcIP:   net.IPv4(10, 0, 0, 9),
		srcPort: 12345,
	}}

	if err := e.handleSocketReadable(make([]byte, e.mtu)); err != nil {
		t.Fatalf("handleSocketReadable: %v", err)
	}
	if len(dev.written) != 1 || !bytes.Equal(dev.written[0], payload) {
		t.Fatalf("device writes = %v, want [%q]", dev.written, payload)
	}
}

// TestMTUPreemptionFlushesThenAppends implements concrete scenario 5 at
// the engine level: a full 1400-byte buffer plus a 120-byte arrival
// forces a flush of the old bundle before the new packet starts a fresh
// one.
func TestMTUPreemptionFlushesThenAppends(t *testing.T) {
	cfg := trigger.Config{LimitPackets: 1000, SizeThreshold: 1 << 20, Timeout: time.Hour, Period: time.Hour}
	e, dev, sock := newTestEngine(cfg)
	e.mtu = 1500
	e.buf = bundle.New(1500)

	seed := bytes.Repeat([]byte{0x01}, 1398)
	dev.readQueue = [][]byte{seed}
	if err := e.handleDeviceReadable(make([]byte, e.mtu)); err != nil {
		t.Fatalf("seed packet: %v", err)
	}
	if e.buf.Size() != 1400 {
		t.Fatalf("buffer size = %d, want 1400", e.buf.Size())
	}
	if len(sock.sent) != 0 {
		t.Fatalf("sent %d datagrams after seed, want 0", len(sock.sent))
	}

	next := bytes.Repeat([]byte{0x02}, 120)
	dev.readQueue = [][]byte{next}
	if err := e.handleDeviceReadable(make([]byte, e.mtu)); err != nil {
		t.Fatalf("preempting packet: %v", err)
	}
	if len(sock.sent) != 1 || len(sock.sent[0].data) != 1400 {
		t.Fatalf("sent = %v, want one 1400-byte flush", sock.sent)
	}
	if e.buf.Size() != 122 || e.buf.Count() != 1 {
		t.Fatalf("buffer after preemption: size=%d count=%d, want size=122 count=1", e.buf.Size(), e.buf.Count())
	}
}
