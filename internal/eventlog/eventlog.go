// Package eventlog implements the structured event log sink (C7): a
// tab-separated, append-only, one-line-per-event stream over the field
// grammar of §6, flushed after every line so the record survives abrupt
// termination. When file rotation is requested, the sink writes through
// lumberjack the same way the ambient logger writes through slog.
package eventlog

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/natefinch/lumberjack"
)

// Action is the verb of a log line (§6: action ∈ {rec, sent, forward, error}).
type Action string

const (
	ActionRec     Action = "rec"
	ActionSent    Action = "sent"
	ActionForward Action = "forward"
	ActionError   Action = "error"
)

// Kind classifies the packet or condition the event describes.
type Kind string

const (
	KindNative          Kind = "native"
	KindMuxed           Kind = "muxed"
	KindDemuxed         Kind = "demuxed"
	KindRohcFeedback    Kind = "ROHC_feedback"
	KindBadSeparator    Kind = "bad_separator"
	KindDemuxBadLength  Kind = "demux_bad_length"
	KindComprFailed     Kind = "compr_failed"
	KindDecompFailed    Kind = "decomp_failed"
)

// Event is one log line. Peer and Extra are optional per the §6 grammar.
type Event struct {
	Action    Action
	Kind      Kind
	Bytes     int
	Counter   int
	Direction string // "from" or "to"; empty when no peer is attached
	PeerIP    string
	PeerPort  int
	Extra     []string
}

// Sink is a write-only, line-flushed event log. Safe for concurrent use,
// though the engine's single event loop is its only writer in practice.
type Sink struct {
	mu sync.Mutex
	w  io.Writer
	c  io.Closer
}

// Open creates a Sink writing to path. If rotate is true, writes go
// through lumberjack with sane size/age defaults; otherwise the file is
// opened for plain unbounded append (auto-named files from -L also pass
// rotate=false, since each process run already gets its own file).
func Open(path string, rotate bool) (*Sink, error) {
	if rotate {
		lj := &lumberjack.Logger{
			Filename:   path,
			MaxSize:    100, // megabytes
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		}
		return &Sink{w: lj, c: lj}, nil
	}
	f, err := openAppend(path)
	if err != nil {
		return nil, err
	}
	return &Sink{w: f, c: f}, nil
}

// AutoName builds the -L auto-named log file timestamp, YYYY-MM-DD_HH.MM.SS.
func AutoName(now time.Time) string {
	return now.Format("2006-01-02_15.04.05")
}

// Close releases the underlying file handle.
func (s *Sink) Close() error {
	if s.c != nil {
		return s.c.Close()
	}
	return nil
}

// Write appends one event as a tab-separated line, flushing immediately.
func (s *Sink) Write(ts time.Time, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var b strings.Builder
	b.WriteString(strconv.FormatInt(ts.UnixMicro(), 10))
	b.WriteByte('\t')
	b.WriteString(string(ev.Action))
	b.WriteByte('\t')
	b.WriteString(string(ev.Kind))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(ev.Bytes))
	b.WriteByte('\t')
	b.WriteString(strconv.Itoa(ev.Counter))
	if ev.Direction != "" {
		fmt.Fprintf(&b, "\t%s\t%s\t%d", ev.Direction, ev.PeerIP, ev.PeerPort)
	}
	for _, e := range ev.Extra {
		b.WriteByte('\t')
		b.WriteString(e)
	}
	b.WriteByte('\n')

	_, err := io.WriteString(s.w, b.String())
	if err != nil {
		return err
	}
	if f, ok := s.w.(flusher); ok {
		return f.Flush()
	}
	if f, ok := s.w.(syncer); ok {
		return f.Sync()
	}
	return nil
}

type flusher interface{ Flush() error }
type syncer interface{ Sync() error }

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
}
