package main

import (
	"fmt"
	"time"

	"github.com/jsaldana/simplemux/internal/eventlog"
)

// openEventLog opens the C7 log sink per -l/-L. Neither flag set means
// no event log at all (the §6 default).
func openEventLog(cfg *appConfig) (*eventlog.Sink, error) {
	switch {
	case cfg.autoLog:
		path := eventlog.AutoName(time.Now()) + ".log"
		sink, err := eventlog.Open(path, false)
		if err != nil {
			return nil, fmt.Errorf("open auto-named log %q: %w", path, err)
		}
		return sink, nil
	case cfg.logFile != "":
		sink, err := eventlog.Open(cfg.logFile, true)
		if err != nil {
			return nil, fmt.Errorf("open log file %q: %w", cfg.logFile, err)
		}
		return sink, nil
	default:
		return nil, nil
	}
}
