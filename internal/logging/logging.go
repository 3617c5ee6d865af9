package logging

import (
	"context"
	"encoding/hex"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
)

// Global structured logger. Initialized with a reasonable text handler.
var logger atomic.Pointer[slog.Logger]

func init() {
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	logger.Store(l)
}

// L returns the current global logger.
func L() *slog.Logger { return logger.Load() }

// Set replaces the global logger.
func Set(l *slog.Logger) {
	if l != nil {
		logger.Store(l)
	}
}

// New creates a new logger with given level, format ("text" or "json"), and optional writer (defaults stderr).
func New(format string, level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	var h slog.Handler
	switch format {
	case "json":
		h = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	default:
		h = slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	}
	return slog.New(h)
}

// HexDump logs data as 16-byte rows grouped by 8, the way simplemux's
// original packet dump does at its highest verbosity. A no-op unless
// debugLevel is at the max (3) and the logger's debug level is enabled,
// since a full packet dump on every compress/decompress call is too
// expensive to pay for unconditionally.
func HexDump(l *slog.Logger, debugLevel int, label string, data []byte) {
	if debugLevel < 3 || l == nil || !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	l.Debug(label, "bytes", len(data), "hex", formatHexRows(data))
}

func formatHexRows(data []byte) string {
	var rows []string
	for off := 0; off < len(data); off += 16 {
		end := off + 16
		if end > len(data) {
			end = len(data)
		}
		row := data[off:end]
		var b strings.Builder
		for i, c := range row {
			if i == 8 {
				b.WriteByte(' ')
			}
			b.WriteString(hex.EncodeToString([]byte{c}))
			b.WriteByte(' ')
		}
		rows = append(rows, strings.TrimSpace(b.String()))
	}
	return strings.Join(rows, " | ")
}
