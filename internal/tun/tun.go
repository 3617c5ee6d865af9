//go:build linux

// Package tun allocates a Linux tun or tap virtual network device via the
// TUNSETIFF ioctl, opened in no-packet-information mode, mirroring the
// raw-socket allocation pattern used for SocketCAN devices but targeting
// /dev/net/tun instead of AF_CAN.
package tun

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	// Kind selects tun (layer-3) or tap (layer-2) semantics.
	KindTun Kind = iota
	KindTap
)

type Kind int

const (
	ifNameSize  = 16
	iffTun      = 0x0001
	iffTap      = 0x0002
	iffNoPI     = 0x1000
	tunSetIFF   = 0x400454ca
	devNetTun   = "/dev/net/tun"
)

type ifReq struct {
	Name  [ifNameSize]byte
	Flags uint16
	_     [22]byte // pad to match struct ifreq size on amd64/arm64
}

// Device is an open tun/tap handle. Read/write is packet-oriented: each
// Read/Write call transfers exactly one packet, matching the §6 contract
// of the virtual device collaborator.
type Device struct {
	f    *os.File
	Name string
}

// Open creates or attaches to the named virtual device. If name is empty
// the kernel assigns one and Device.Name reports it back.
func Open(name string, kind Kind) (*Device, error) {
	f, err := os.OpenFile(devNetTun, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", devNetTun, err)
	}

	var req ifReq
	copy(req.Name[:], name)
	switch kind {
	case KindTap:
		req.Flags = iffTap | iffNoPI
	default:
		req.Flags = iffTun | iffNoPI
	}

	if err := ioctl(f.Fd(), tunSetIFF, uintptr(unsafe.Pointer(&req))); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("TUNSETIFF %q: %w", name, err)
	}

	assigned := nullTerminated(req.Name[:])
	return &Device{f: f, Name: assigned}, nil
}

func ioctl(fd uintptr, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, fd, req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}

func nullTerminated(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

// Read reads one packet. Buf must be sized at least to the configured MTU.
func (d *Device) Read(buf []byte) (int, error) { return d.f.Read(buf) }

// Write writes one packet verbatim.
func (d *Device) Write(buf []byte) (int, error) { return d.f.Write(buf) }

// Fd exposes the raw descriptor so the event loop can multiplex it
// alongside the UDP socket in a single poll/select wait.
func (d *Device) Fd() uintptr { return d.f.Fd() }

func (d *Device) Close() error { return d.f.Close() }
