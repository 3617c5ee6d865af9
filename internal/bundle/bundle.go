// Package bundle implements the outgoing-datagram accumulator (C3):
// packets are appended with their separator until a trigger or the MTU
// forces a flush.
package bundle

import (
	"errors"

	"github.com/jsaldana/simplemux/internal/separator"
)

// ErrPacketTooLarge is returned when a single payload cannot possibly fit
// an empty buffer of the configured MTU.
var ErrPacketTooLarge = errors.New("bundle: payload exceeds MTU even alone")

// Buffer accumulates (separator, payload) pairs into a single outgoing
// datagram body. It is not safe for concurrent use; the event loop is its
// sole owner.
type Buffer struct {
	mtu   int
	bytes []byte
	count int
}

// New creates an empty Buffer bounded by mtu bytes.
func New(mtu int) *Buffer {
	return &Buffer{mtu: mtu, bytes: make([]byte, 0, mtu)}
}

// Count returns the number of packets currently buffered.
func (b *Buffer) Count() int { return b.count }

// Size returns the number of accumulated bytes (separators + payloads).
func (b *Buffer) Size() int { return len(b.bytes) }

// Outcome is returned by TryAppend.
type Outcome int

const (
	// Rejected means payload was not appended and no bundle was produced;
	// check the returned error.
	Rejected Outcome = iota
	// Appended means payload was added to the buffer.
	Appended
	// Flushed means the buffer was full; payload was NOT appended and the
	// caller must call AppendNow after draining the returned bundle.
	Flushed
)

// TryAppend attempts to add payload to the buffer. If adding it would
// exceed the configured MTU, it returns Flushed along with the bundle
// that must be sent before the caller retries via AppendNow.
func (b *Buffer) TryAppend(payload []byte) (Outcome, []byte, error) {
	if separator.Len(len(payload))+len(payload) > b.mtu {
		return Rejected, nil, ErrPacketTooLarge
	}
	predicted := len(b.bytes) + separator.Len(len(payload)) + len(payload)
	if predicted > b.mtu {
		return Flushed, b.Drain(), nil
	}
	b.AppendNow(payload)
	return Appended, nil, nil
}

// AppendNow appends payload unconditionally; used after a Flushed outcome
// once the buffer has been drained.
func (b *Buffer) AppendNow(payload []byte) {
	b.bytes, _ = separator.AppendEncode(b.bytes, len(payload))
	b.bytes = append(b.bytes, payload...)
	b.count++
}

// Drain returns the accumulated bundle and resets the buffer to empty.
func (b *Buffer) Drain() []byte {
	out := b.bytes
	b.bytes = make([]byte, 0, b.mtu)
	b.count = 0
	return out
}
