// Package codec implements the header codec (C2): a uniform interface
// over "no compression" and ROHC compression, so the engine can treat
// both tunnel modes identically.
package codec

import (
	"log/slog"

	"github.com/jsaldana/simplemux/internal/logging"
	"github.com/jsaldana/simplemux/internal/rohc"
)

// CompressResult carries a compressed (or passed-through) packet. Segmented
// is true when the ROHC compressor could not fit the packet under the
// negotiated MRRU; Data is then the original, uncompressed packet, muxed
// into the outgoing bundle exactly like any other payload.
type CompressResult struct {
	Data      []byte
	Segmented bool
}

// DecompressResult carries a decompressed packet. FeedbackOnly is true
// when the codec consumed the input (e.g. a ROHC feedback-only segment)
// without producing a decompressed packet to forward to the tunnel device.
type DecompressResult struct {
	Data         []byte
	FeedbackOnly bool
}

// Codec compresses packets read from the tunnel device before muxing them
// onto the network, and decompresses packets demultiplexed from the
// network before writing them to the tunnel device.
type Codec interface {
	Compress(packet []byte) (CompressResult, error)
	Decompress(packet []byte) (DecompressResult, error)
	Close()
}

// Passthrough is the identity codec used when ROHC compression is
// disabled; Compress and Decompress both return their input unchanged.
type Passthrough struct{}

// NewPassthrough returns a Codec that performs no compression.
func NewPassthrough() *Passthrough { return &Passthrough{} }

func (Passthrough) Compress(packet []byte) (CompressResult, error) {
	return CompressResult{Data: packet}, nil
}

func (Passthrough) Decompress(packet []byte) (DecompressResult, error) {
	return DecompressResult{Data: packet}, nil
}

func (Passthrough) Close() {}

// compressor and decompressor narrow rohc.Compressor/rohc.Decompressor to
// the methods Rohc needs, so tests can exercise Rohc's segmented/feedback
// branches with a fake instead of the real cgo-backed librohc calls.
type compressor interface {
	Compress(ipPacket []byte) (out []byte, segmented bool, err error)
	Close()
}

type decompressor interface {
	Decompress(rohcPacket []byte) (out []byte, feedbackOnly bool, err error)
	Close()
}

// Rohc delegates to a librohc compressor/decompressor pair.
type Rohc struct {
	comp       compressor
	decomp     decompressor
	logger     *slog.Logger
	debugLevel int
}

// NewRohc constructs a Rohc codec, creating both the compressor and the
// decompressor; either side failing to initialize fails the whole codec,
// since a tunnel endpoint needs both directions. debugLevel gates the
// packet hex-dump carried over from simplemux.c's -d 3 trace output; a
// nil logger disables it regardless of debugLevel.
func NewRohc(logger *slog.Logger, debugLevel int) (*Rohc, error) {
	comp, err := rohc.NewCompressor()
	if err != nil {
		return nil, err
	}
	decomp, err := rohc.NewDecompressor()
	if err != nil {
		comp.Close()
		return nil, err
	}
	return &Rohc{comp: comp, decomp: decomp, logger: logger, debugLevel: debugLevel}, nil
}

func (r *Rohc) Compress(packet []byte) (CompressResult, error) {
	logging.HexDump(r.logger, r.debugLevel, "rohc_compress_input", packet)
	out, segmented, err := r.comp.Compress(packet)
	if err != nil {
		return CompressResult{}, err
	}
	if segmented {
		// The compressor fell back to segmentation (packet exceeds the
		// negotiated MRRU); out is a ROHC segment, not a full packet, so the
		// caller must send the original payload verbatim instead.
		if r.logger != nil {
			r.logger.Info("rohc_segmented", "bytes", len(packet))
		}
		return CompressResult{Data: packet, Segmented: true}, nil
	}
	logging.HexDump(r.logger, r.debugLevel, "rohc_compress_output", out)
	return CompressResult{Data: out, Segmented: false}, nil
}

func (r *Rohc) Decompress(packet []byte) (DecompressResult, error) {
	logging.HexDump(r.logger, r.debugLevel, "rohc_decompress_input", packet)
	out, feedbackOnly, err := r.decomp.Decompress(packet)
	if err != nil {
		return DecompressResult{}, err
	}
	logging.HexDump(r.logger, r.debugLevel, "rohc_decompress_output", out)
	return DecompressResult{Data: out, FeedbackOnly: feedbackOnly}, nil
}

func (r *Rohc) Close() {
	r.comp.Close()
	r.decomp.Close()
}
