//go:build linux

// Package ifaceutil looks up the local physical interface's index (via
// net.InterfaceByName), and its IPv4 address and MTU via the SIOCGIFADDR
// and SIOCGIFMTU ioctls used by the original tool, so the UDP socket can
// bind to that interface's real address instead of INADDR_ANY.
package ifaceutil

import (
	"fmt"
	"net"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	siocgifaddr = 0x8915
	siocgifmtu  = 0x8921
)

type ifreqAddr struct {
	Name [16]byte
	Addr unix.RawSockaddrInet4
	_    [8]byte
}

type ifreqMTU struct {
	Name [16]byte
	MTU  int32
	_    [12]byte
}

// Info is the result of a local interface lookup.
type Info struct {
	Index int
	Addr  net.IP
	MTU   int
}

// Lookup resolves name to its kernel interface index, bound IPv4 address,
// and configured MTU.
func Lookup(name string) (Info, error) {
	ifi, err := net.InterfaceByName(name)
	if err != nil {
		return Info{}, fmt.Errorf("interface %q: %w", name, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return Info{}, fmt.Errorf("socket(AF_INET): %w", err)
	}
	defer unix.Close(fd)

	addr, err := getAddr(fd, name)
	if err != nil {
		return Info{}, err
	}
	mtu, err := getMTU(fd, name)
	if err != nil {
		return Info{}, err
	}

	return Info{Index: ifi.Index, Addr: addr, MTU: mtu}, nil
}

func getAddr(fd int, name string) (net.IP, error) {
	var req ifreqAddr
	copy(req.Name[:], name)
	if err := ioctl(fd, siocgifaddr, uintptr(unsafe.Pointer(&req))); err != nil {
		return nil, fmt.Errorf("SIOCGIFADDR %q: %w", name, err)
	}
	return net.IPv4(req.Addr.Addr[0], req.Addr.Addr[1], req.Addr.Addr[2], req.Addr.Addr[3]), nil
}

func getMTU(fd int, name string) (int, error) {
	var req ifreqMTU
	copy(req.Name[:], name)
	if err := ioctl(fd, siocgifmtu, uintptr(unsafe.Pointer(&req))); err != nil {
		return 0, fmt.Errorf("SIOCGIFMTU %q: %w", name, err)
	}
	return int(req.MTU), nil
}

func ioctl(fd int, req uintptr, arg uintptr) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, arg)
	if errno != 0 {
		return errno
	}
	return nil
}
