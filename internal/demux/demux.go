// Package demux implements the bundle demultiplexer (C4): it parses an
// incoming datagram into an ordered sequence of payloads, using the
// separator codec, and reports structural errors that abort the rest of
// the datagram.
package demux

import (
	"errors"
	"fmt"

	"github.com/jsaldana/simplemux/internal/separator"
)

// Reason classifies a structural demux failure for logging (§6 "kind").
type Reason string

const (
	ReasonBadSeparator   Reason = "bad_separator"
	ReasonDemuxBadLength Reason = "demux_bad_length"
)

// StructuralError aborts the remainder of a datagram. Packets already
// decoded before the error occurred are still returned by Demultiplex.
type StructuralError struct {
	Reason Reason
	Err    error
}

func (e *StructuralError) Error() string { return fmt.Sprintf("demux: %s: %v", e.Reason, e.Err) }

func (e *StructuralError) Unwrap() error { return e.Err }

// ErrTruncatedPayload is wrapped into a StructuralError with ReasonDemuxBadLength
// when a separator claims more payload bytes than remain in the datagram.
var ErrTruncatedPayload = errors.New("demux: declared payload length exceeds remaining bytes")

// Demultiplex parses datagram into an ordered sequence of payload slices
// (each a sub-slice of datagram, not copied). On a structural error it
// returns the packets successfully decoded so far plus the error; the
// caller must treat that as "abort the rest of this datagram".
func Demultiplex(datagram []byte) ([][]byte, *StructuralError) {
	var packets [][]byte
	pos := 0
	n := len(datagram)
	for pos < n {
		length, consumed, err := separator.Decode(datagram[pos:])
		if err != nil {
			if errors.Is(err, separator.ErrBadSeparator) {
				return packets, &StructuralError{Reason: ReasonBadSeparator, Err: err}
			}
			// Truncated separator: no more full separator available; this is
			// itself a length-framing failure, report identically to a bad length.
			return packets, &StructuralError{Reason: ReasonDemuxBadLength, Err: err}
		}
		if pos+consumed+length > n {
			return packets, &StructuralError{Reason: ReasonDemuxBadLength, Err: ErrTruncatedPayload}
		}
		start := pos + consumed
		packets = append(packets, datagram[start:start+length])
		pos = start + length
	}
	return packets, nil
}
