//go:build linux

package engine

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"
)

// Socket is the UDP transport collaborator the event loop reads datagrams
// from and sends bundles to. A raw AF_INET/SOCK_DGRAM socket is used
// instead of net.UDPConn so the loop can wait on its file descriptor
// alongside the virtual device's in a single poll, the same way the
// SocketCAN backend owns its raw socket outright.
type Socket struct {
	fd int
}

// NewSocket opens a UDP socket bound to localIP:port. Binding to the
// interface's real address (rather than INADDR_ANY) means datagrams sent
// from this socket carry that address as their source.
func NewSocket(localIP net.IP, port int) (*Socket, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_DGRAM, 0)
	if err != nil {
		return nil, fmt.Errorf("socket(AF_INET): %w", err)
	}
	sa := &unix.SockaddrInet4{Port: port}
	if ip4 := localIP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	if err := unix.Bind(fd, sa); err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("bind(%s:%d): %w", localIP, port, err)
	}
	return &Socket{fd: fd}, nil
}

// Fd exposes the raw descriptor for the poll waiter.
func (s *Socket) Fd() int32 { return int32(s.fd) }

// RecvFrom reads one datagram, reporting the sender's address and port so
// the engine can apply the native-passthrough source-port test (§6).
func (s *Socket) RecvFrom(buf []byte) (int, net.IP, int, error) {
	n, from, err := unix.Recvfrom(s.fd, buf, 0)
	if err != nil {
		return 0, nil, 0, err
	}
	sa4, ok := from.(*unix.SockaddrInet4)
	if !ok {
		return n, nil, 0, fmt.Errorf("unexpected sockaddr type %T", from)
	}
	addr := make(net.IP, 4)
	copy(addr, sa4.Addr[:])
	return n, addr, sa4.Port, nil
}

// SendTo transmits data to ip:port. Failures are the caller's to log; the
// loop never retries a send (§7).
func (s *Socket) SendTo(data []byte, ip net.IP, port int) error {
	sa := &unix.SockaddrInet4{Port: port}
	if ip4 := ip.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	return unix.Sendto(s.fd, data, 0, sa)
}

func (s *Socket) Close() error { return unix.Close(s.fd) }
