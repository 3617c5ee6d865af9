package main

import (
	"errors"
	"flag"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
)

type appConfig struct {
	devName     string
	physIface   string
	peerAddr    string
	port        int
	tap         bool
	rohc        bool
	limitPkts   int
	sizeThresh  int
	timeoutUS   int64
	periodUS    int64
	logFile     string
	autoLog     bool
	debug       int
	metricsAddr string
}

const (
	defaultPort       = 55555
	defaultSizeThresh = 1472
	defaultTimeoutUS  = 100_000_000
	defaultPeriodUS   = 100_000_000
)

func parseFlags() (*appConfig, bool) {
	cfg := &appConfig{}
	devName := flag.String("i", "", "virtual device name (required)")
	physIface := flag.String("e", "", "local physical interface (required)")
	peerAddr := flag.String("c", "", "peer IPv4 address (required)")
	port := flag.Int("p", defaultPort, "UDP port")
	tun := flag.Bool("u", false, "use tun mode (layer 3, default)")
	tap := flag.Bool("a", false, "use tap mode (layer 2)")
	rohc := flag.Bool("r", false, "enable ROHC header compression")
	limitPkts := flag.Int("n", 0, "packet-count trigger (0 = unset, max 100)")
	sizeThresh := flag.Int("b", defaultSizeThresh, "size-threshold trigger, bytes")
	timeoutUS := flag.Int64("t", defaultTimeoutUS, "idle-timeout trigger, microseconds")
	periodUS := flag.Int64("P", defaultPeriodUS, "hard-period trigger, microseconds")
	logFile := flag.String("l", "", "log file path")
	autoLog := flag.Bool("L", false, "auto-named log file (YYYY-MM-DD_HH.MM.SS)")
	debug := flag.Int("d", 0, "debug verbosity, 0..3")
	metricsAddr := flag.String("metrics-addr", "", "metrics HTTP listen address (e.g., :9090); empty disables")
	help := flag.Bool("h", false, "show usage and exit")
	flag.Parse()

	if *help {
		flag.Usage()
		return nil, true
	}

	setFlags := map[string]struct{}{}
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = struct{}{} })

	cfg.devName = *devName
	cfg.physIface = *physIface
	cfg.peerAddr = *peerAddr
	cfg.port = *port
	cfg.tap = *tap && !*tun
	cfg.rohc = *rohc
	cfg.limitPkts = *limitPkts
	cfg.sizeThresh = *sizeThresh
	cfg.timeoutUS = *timeoutUS
	cfg.periodUS = *periodUS
	cfg.logFile = *logFile
	cfg.autoLog = *autoLog
	cfg.debug = *debug
	cfg.metricsAddr = *metricsAddr

	if err := applyEnvOverrides(cfg, setFlags); err != nil {
		fmt.Printf("environment override error: %v\n", err)
		return nil, false
	}
	if err := cfg.validate(); err != nil {
		fmt.Printf("configuration error: %v\n", err)
		flag.Usage()
		return nil, false
	}
	return cfg, false
}

// validate performs basic semantic validation of the parsed configuration.
// It does not attempt to open devices or sockets -- it only checks values,
// and clamps -d into 0..3.
func (c *appConfig) validate() error {
	if c == nil {
		return errors.New("nil config")
	}
	if c.devName == "" {
		return errors.New("-i (virtual device name) is required")
	}
	if c.physIface == "" {
		return errors.New("-e (local physical interface) is required")
	}
	if c.peerAddr == "" {
		return errors.New("-c (peer address) is required")
	}
	if net.ParseIP(c.peerAddr).To4() == nil {
		return fmt.Errorf("-c %q is not a valid IPv4 address", c.peerAddr)
	}
	if c.port <= 0 || c.port > 65535 {
		return fmt.Errorf("-p %d out of range", c.port)
	}
	if c.limitPkts < 0 || c.limitPkts > 100 {
		return fmt.Errorf("-n %d out of range [0,100]", c.limitPkts)
	}
	if c.sizeThresh <= 0 {
		return fmt.Errorf("-b %d must be > 0", c.sizeThresh)
	}
	if c.timeoutUS <= 0 {
		return fmt.Errorf("-t %d must be > 0", c.timeoutUS)
	}
	if c.periodUS <= 0 {
		return fmt.Errorf("-P %d must be > 0", c.periodUS)
	}
	if c.debug < 0 {
		c.debug = 0
	}
	if c.debug > 3 {
		c.debug = 3
	}
	if c.logFile != "" && c.autoLog {
		return errors.New("-l and -L are mutually exclusive")
	}
	return nil
}

// triggersSet reports which of size/timeout/period were tightened, the
// input trigger.Config.Normalize needs for the §3 defaulting rule
// (limit_packets defaults to 100 if any other trigger was tightened, else 1).
// "Tightened" means made to fire more eagerly than the default -- a lower
// threshold or a shorter deadline -- matching simplemux.c's strict
// less-than checks against MAXTHRESHOLD/MAXTIMEOUT; loosening a trigger
// (e.g. a larger -b alone) must not implicitly enable packet-count limiting.
func (c *appConfig) triggersSet() (sizeSet, timeoutSet, periodSet bool) {
	sizeSet = c.sizeThresh < defaultSizeThresh
	timeoutSet = c.timeoutUS < defaultTimeoutUS
	periodSet = c.periodUS < defaultPeriodUS
	return
}

// applyEnvOverrides maps SIMPLEMUX_* environment variables unless the
// corresponding flag was explicitly set (flag wins over env).
func applyEnvOverrides(c *appConfig, set map[string]struct{}) error {
	var firstErr error
	get := func(k string) (string, bool) { v, ok := os.LookupEnv(k); return strings.TrimSpace(v), ok }

	if _, ok := set["i"]; !ok {
		if v, ok := get("SIMPLEMUX_DEVICE"); ok && v != "" {
			c.devName = v
		}
	}
	if _, ok := set["e"]; !ok {
		if v, ok := get("SIMPLEMUX_IFACE"); ok && v != "" {
			c.physIface = v
		}
	}
	if _, ok := set["c"]; !ok {
		if v, ok := get("SIMPLEMUX_PEER"); ok && v != "" {
			c.peerAddr = v
		}
	}
	if _, ok := set["p"]; !ok {
		if v, ok := get("SIMPLEMUX_PORT"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.port = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid SIMPLEMUX_PORT: %w", err)
			}
		}
	}
	if _, ok := set["a"]; !ok {
		if v, ok := get("SIMPLEMUX_MODE"); ok && v != "" {
			c.tap = strings.EqualFold(v, "tap")
		}
	}
	if _, ok := set["r"]; !ok {
		if v, ok := get("SIMPLEMUX_ROHC"); ok && v != "" {
			c.rohc = isTruthy(v)
		}
	}
	if _, ok := set["n"]; !ok {
		if v, ok := get("SIMPLEMUX_LIMIT_PACKETS"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.limitPkts = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid SIMPLEMUX_LIMIT_PACKETS: %w", err)
			}
		}
	}
	if _, ok := set["b"]; !ok {
		if v, ok := get("SIMPLEMUX_SIZE_THRESHOLD"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.sizeThresh = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid SIMPLEMUX_SIZE_THRESHOLD: %w", err)
			}
		}
	}
	if _, ok := set["t"]; !ok {
		if v, ok := get("SIMPLEMUX_TIMEOUT_US"); ok && v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				c.timeoutUS = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid SIMPLEMUX_TIMEOUT_US: %w", err)
			}
		}
	}
	if _, ok := set["P"]; !ok {
		if v, ok := get("SIMPLEMUX_PERIOD_US"); ok && v != "" {
			if n, err := strconv.ParseInt(v, 10, 64); err == nil {
				c.periodUS = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid SIMPLEMUX_PERIOD_US: %w", err)
			}
		}
	}
	if _, ok := set["l"]; !ok {
		if v, ok := get("SIMPLEMUX_LOG_FILE"); ok {
			c.logFile = v
		}
	}
	if _, ok := set["L"]; !ok {
		if v, ok := get("SIMPLEMUX_LOG_AUTO"); ok && v != "" {
			c.autoLog = isTruthy(v)
		}
	}
	if _, ok := set["d"]; !ok {
		if v, ok := get("SIMPLEMUX_DEBUG"); ok && v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				c.debug = n
			} else if firstErr == nil {
				firstErr = fmt.Errorf("invalid SIMPLEMUX_DEBUG: %w", err)
			}
		}
	}
	if _, ok := set["metrics-addr"]; !ok {
		if v, ok := get("SIMPLEMUX_METRICS_ADDR"); ok {
			c.metricsAddr = v
		}
	}
	return firstErr
}

func isTruthy(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
