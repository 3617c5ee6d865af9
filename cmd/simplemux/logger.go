package main

import (
	"log/slog"
	"os"

	"github.com/jsaldana/simplemux/internal/logging"
	"github.com/jsaldana/simplemux/internal/rohc"
)

// setupLogger maps the -d debug verbosity (0..3) onto a slog level: 0 is
// info, anything above is debug. Level 3 additionally unmutes the ROHC
// trace callback (§4.2).
func setupLogger(debug int) *slog.Logger {
	lvl := slog.LevelInfo
	if debug > 0 {
		lvl = slog.LevelDebug
	}
	l := logging.New("text", lvl, os.Stderr).With("app", "simplemux")
	logging.Set(l)
	rohc.SetTraceLevel(debug)
	return l
}
