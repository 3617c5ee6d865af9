package main

import (
	"fmt"
	"log/slog"

	"github.com/jsaldana/simplemux/internal/engine"
	"github.com/jsaldana/simplemux/internal/ifaceutil"
	"github.com/jsaldana/simplemux/internal/tun"
)

const (
	minMTU = 128
	maxMTU = 1500
)

// openDevice allocates the tun/tap device named by -i in no-packet-
// information mode.
func openDevice(cfg *appConfig) (*tun.Device, error) {
	kind := tun.KindTun
	if cfg.tap {
		kind = tun.KindTap
	}
	dev, err := tun.Open(cfg.devName, kind)
	if err != nil {
		return nil, fmt.Errorf("open virtual device %q: %w", cfg.devName, err)
	}
	return dev, nil
}

// resolveLocalInterface looks up the physical interface named by -e and
// derives the effective MTU: the smaller of the interface's real MTU and
// the [128,1500] range the core supports (§9 design notes), warning if
// the configured size threshold exceeds that MTU minus the 28-byte
// tunnel overhead.
func resolveLocalInterface(cfg *appConfig, l *slog.Logger) (ifaceutil.Info, int, error) {
	info, err := ifaceutil.Lookup(cfg.physIface)
	if err != nil {
		return ifaceutil.Info{}, 0, fmt.Errorf("local interface %q: %w", cfg.physIface, err)
	}

	mtu := info.MTU
	if mtu > maxMTU {
		mtu = maxMTU
	}
	if mtu < minMTU {
		return info, 0, fmt.Errorf("interface %q MTU %d below minimum %d", cfg.physIface, info.MTU, minMTU)
	}
	if cfg.sizeThresh > mtu-28 {
		l.Warn("size_threshold_exceeds_mtu", "size_threshold", cfg.sizeThresh, "mtu", mtu,
			"iface", cfg.physIface, "headroom", mtu-28)
	}
	return info, mtu, nil
}

// openSocket binds the UDP socket to the local interface's real address,
// per the local-IP-binding supplement to the §6 wire protocol (rather
// than INADDR_ANY).
func openSocket(info ifaceutil.Info, port int) (*engine.Socket, error) {
	sock, err := engine.NewSocket(info.Addr, port)
	if err != nil {
		return nil, fmt.Errorf("bind udp socket %s:%d: %w", info.Addr, port, err)
	}
	return sock, nil
}
