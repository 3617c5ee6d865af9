package main

import (
	"flag"
	"io"
	"os"
	"testing"
)

func TestValidateRequiresDeviceIfacePeer(t *testing.T) {
	cfg := &appConfig{port: defaultPort, sizeThresh: defaultSizeThresh, timeoutUS: defaultTimeoutUS, periodUS: defaultPeriodUS}
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for missing -i/-e/-c")
	}
	cfg.devName = "tun0"
	cfg.physIface = "eth0"
	cfg.peerAddr = "10.0.0.2"
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsBadPeerAddr(t *testing.T) {
	cfg := &appConfig{
		devName: "tun0", physIface: "eth0", peerAddr: "not-an-ip",
		port: defaultPort, sizeThresh: defaultSizeThresh, timeoutUS: defaultTimeoutUS, periodUS: defaultPeriodUS,
	}
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for invalid -c")
	}
}

func TestValidateClampsDebug(t *testing.T) {
	cfg := &appConfig{
		devName: "tun0", physIface: "eth0", peerAddr: "10.0.0.2", debug: 9,
		port: defaultPort, sizeThresh: defaultSizeThresh, timeoutUS: defaultTimeoutUS, periodUS: defaultPeriodUS,
	}
	if err := cfg.validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.debug != 3 {
		t.Fatalf("debug = %d, want clamped to 3", cfg.debug)
	}
}

func TestValidateRejectsConflictingLogFlags(t *testing.T) {
	cfg := &appConfig{
		devName: "tun0", physIface: "eth0", peerAddr: "10.0.0.2",
		logFile: "/tmp/x.log", autoLog: true,
		port: defaultPort, sizeThresh: defaultSizeThresh, timeoutUS: defaultTimeoutUS, periodUS: defaultPeriodUS,
	}
	if err := cfg.validate(); err == nil {
		t.Fatalf("expected error for -l and -L together")
	}
}

func TestTriggersSetDetectsNonDefaults(t *testing.T) {
	cfg := &appConfig{sizeThresh: defaultSizeThresh, timeoutUS: defaultTimeoutUS, periodUS: defaultPeriodUS}
	sizeSet, timeoutSet, periodSet := cfg.triggersSet()
	if sizeSet || timeoutSet || periodSet {
		t.Fatalf("expected all unset at defaults")
	}
	cfg.sizeThresh = 900
	sizeSet, _, _ = cfg.triggersSet()
	if !sizeSet {
		t.Fatalf("expected sizeSet once -b is tightened below the default")
	}
}

func TestTriggersSetIgnoresLoosening(t *testing.T) {
	cfg := &appConfig{sizeThresh: 2000, timeoutUS: defaultTimeoutUS, periodUS: defaultPeriodUS}
	sizeSet, timeoutSet, periodSet := cfg.triggersSet()
	if sizeSet || timeoutSet || periodSet {
		t.Fatalf("expected -b 2000 alone (a looser threshold) to leave all triggers unset")
	}
}

func TestApplyEnvOverridesSkipsExplicitFlags(t *testing.T) {
	t.Setenv("SIMPLEMUX_PEER", "192.168.1.1")
	cfg := &appConfig{peerAddr: "10.0.0.2"}
	set := map[string]struct{}{"c": {}}
	if err := applyEnvOverrides(cfg, set); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.peerAddr != "10.0.0.2" {
		t.Fatalf("peerAddr = %q, want unchanged (flag wins)", cfg.peerAddr)
	}
}

func TestParseFlagsHelpRequestsExit(t *testing.T) {
	oldArgs := os.Args
	oldCommandLine := flag.CommandLine
	defer func() {
		os.Args = oldArgs
		flag.CommandLine = oldCommandLine
	}()

	flag.CommandLine = flag.NewFlagSet(oldArgs[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(io.Discard)
	os.Args = []string{"simplemux", "-h"}

	cfg, exitAfterUsage := parseFlags()
	if !exitAfterUsage {
		t.Fatalf("exitAfterUsage = false, want true for -h")
	}
	if cfg != nil {
		t.Fatalf("cfg = %v, want nil on the help path", cfg)
	}
}

func TestApplyEnvOverridesAppliesWhenUnset(t *testing.T) {
	t.Setenv("SIMPLEMUX_PEER", "192.168.1.1")
	cfg := &appConfig{}
	if err := applyEnvOverrides(cfg, map[string]struct{}{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.peerAddr != "192.168.1.1" {
		t.Fatalf("peerAddr = %q, want env value", cfg.peerAddr)
	}
}
