// Package rohc is a thin cgo wrapper around librohc (rohc-lib.org),
// exposing only the compressor/decompressor lifecycle and the single
// compress/decompress call each needs. No mature pure-Go RFC 3095
// implementation exists, so this binds to the reference C library
// directly, mirroring the profile and mode setup of the original
// simplemux.c (rohc_comp_new2/rohc_decomp_new2, profile enable calls,
// and the trace callback).
package rohc

/*
#cgo LDFLAGS: -lrohc
#include <stdlib.h>
#include <rohc/rohc.h>
#include <rohc/rohc_comp.h>
#include <rohc/rohc_decomp.h>

static unsigned int simplemux_rand_state;

void simplemux_seed_rand(unsigned int seed) {
	simplemux_rand_state = seed;
}

// simplemux_gen_random_num is a deterministic LCG so the CID allocation
// sequence is reproducible given the seed, matching the spec's requirement
// that the stream of values be reproducible.
int simplemux_gen_random_num(const struct rohc_comp *const comp, void *const user_context) {
	simplemux_rand_state = simplemux_rand_state*1103515245u + 12345u;
	return (int)((simplemux_rand_state >> 16) & 0x7fff);
}

static int simplemux_trace_threshold = 0;

void simplemux_set_trace_threshold(int level) {
	simplemux_trace_threshold = level;
}

void simplemux_print_rohc_traces(void *const priv_ctxt,
                                  const rohc_trace_level_t level,
                                  const rohc_trace_entity_t entity,
                                  const int profile,
                                  const char *const format,
                                  ...) {
	if (simplemux_trace_threshold < 3) {
		return;
	}
	va_list args;
	va_start(args, format);
	vfprintf(stdout, format, args);
	va_end(args);
}

static struct rohc_comp *simplemux_new_compressor(unsigned int seed) {
	simplemux_seed_rand(seed);
	struct rohc_comp *c = rohc_comp_new2(ROHC_SMALL_CID, ROHC_SMALL_CID_MAX, simplemux_gen_random_num, NULL);
	if (c == NULL) {
		return NULL;
	}
	if (!rohc_comp_enable_profile(c, ROHC_PROFILE_UNCOMPRESSED)) goto fail;
	if (!rohc_comp_enable_profile(c, ROHC_PROFILE_IP)) goto fail;
	if (!rohc_comp_enable_profiles(c, ROHC_PROFILE_UDP, ROHC_PROFILE_UDPLITE, -1)) goto fail;
	if (!rohc_comp_enable_profile(c, ROHC_PROFILE_TCP)) goto fail;
	if (!rohc_comp_set_traces_cb2(c, simplemux_print_rohc_traces, NULL)) goto fail;
	return c;
fail:
	rohc_comp_free(c);
	return NULL;
}

static struct rohc_decomp *simplemux_new_decompressor(void) {
	struct rohc_decomp *d = rohc_decomp_new2(ROHC_SMALL_CID, ROHC_SMALL_CID_MAX, ROHC_O_MODE);
	if (d == NULL) {
		return NULL;
	}
	if (!rohc_decomp_enable_profiles(d,
			ROHC_PROFILE_UNCOMPRESSED, ROHC_PROFILE_UDP, ROHC_PROFILE_IP,
			ROHC_PROFILE_UDPLITE, ROHC_PROFILE_RTP, ROHC_PROFILE_ESP,
			ROHC_PROFILE_TCP, -1)) {
		rohc_decomp_free(d);
		return NULL;
	}
	if (!rohc_decomp_set_traces_cb2(d, simplemux_print_rohc_traces, NULL)) {
		rohc_decomp_free(d);
		return NULL;
	}
	return d;
}

static int simplemux_compress(struct rohc_comp *c, const unsigned char *in, size_t inlen,
                               unsigned char *out, size_t outcap, size_t *outlen, int *segmented) {
	struct rohc_buf ip_packet = rohc_buf_init_empty((unsigned char *)in, inlen);
	ip_packet.len = inlen;
	unsigned char *scratch = malloc(outcap);
	if (scratch == NULL) {
		return -1;
	}
	struct rohc_buf rohc_packet = rohc_buf_init_empty(scratch, outcap);
	rohc_status_t status = rohc_compress4(c, ip_packet, &rohc_packet);
	int rc;
	if (status == ROHC_STATUS_OK) {
		*outlen = rohc_packet.len;
		if (*outlen > outcap) *outlen = outcap;
		memcpy(out, rohc_buf_data(rohc_packet), *outlen);
		*segmented = 0;
		rc = 0;
	} else if (status == ROHC_STATUS_SEGMENT) {
		*outlen = rohc_packet.len;
		if (*outlen > outcap) *outlen = outcap;
		memcpy(out, rohc_buf_data(rohc_packet), *outlen);
		*segmented = 1;
		rc = 0;
	} else {
		rc = -1;
	}
	free(scratch);
	return rc;
}

static int simplemux_decompress(struct rohc_decomp *d, const unsigned char *in, size_t inlen,
                                 unsigned char *out, size_t outcap, size_t *outlen, int *feedback_only) {
	unsigned char *scratch = malloc(inlen > 0 ? inlen : 1);
	if (scratch == NULL) {
		return -1;
	}
	memcpy(scratch, in, inlen);
	struct rohc_buf rohc_packet = rohc_buf_init_empty(scratch, inlen);
	rohc_packet.len = inlen;
	unsigned char *outbuf = malloc(outcap);
	if (outbuf == NULL) {
		free(scratch);
		return -1;
	}
	struct rohc_buf ip_packet = rohc_buf_init_empty(outbuf, outcap);
	rohc_status_t status = rohc_decompress3(d, rohc_packet, &ip_packet, NULL, NULL);
	int rc;
	if (status == ROHC_STATUS_OK) {
		if (rohc_buf_is_empty(ip_packet)) {
			*feedback_only = 1;
			*outlen = 0;
		} else {
			*feedback_only = 0;
			*outlen = ip_packet.len;
			if (*outlen > outcap) *outlen = outcap;
			memcpy(out, rohc_buf_data(ip_packet), *outlen);
		}
		rc = 0;
	} else {
		rc = -1;
	}
	free(scratch);
	free(outbuf);
	return rc;
}
*/
import "C"

import (
	"errors"
	"time"
	"unsafe"
)

// ErrCompressFailed and ErrDecompressFailed signal a hard codec failure;
// the caller drops the single packet and continues (§4.2, §7).
var (
	ErrCompressFailed   = errors.New("rohc: compression failed")
	ErrDecompressFailed = errors.New("rohc: decompression failed")
	ErrCreateCompressor = errors.New("rohc: failed to create compressor")
	ErrCreateDecompressor = errors.New("rohc: failed to create decompressor")
)

const scratchCapacity = 1 << 16

// SetTraceLevel gates the C trace callback; traces print only at level 3
// (matching simplemux's "-d 3" maximum verbosity).
func SetTraceLevel(level int) {
	C.simplemux_set_trace_threshold(C.int(level))
}

// Compressor wraps a struct rohc_comp*. Not safe for concurrent use; the
// engine's single event loop owns it for the process lifetime.
type Compressor struct {
	ptr *C.struct_rohc_comp
}

// NewCompressor creates a ROHC compressor with small CIDs (max CID 15) and
// the Uncompressed/IP/UDP/UDP-Lite/TCP profiles enabled, seeded
// deterministically from the wall clock at construction time.
func NewCompressor() (*Compressor, error) {
	seed := uint32(time.Now().UnixNano())
	ptr := C.simplemux_new_compressor(C.uint(seed))
	if ptr == nil {
		return nil, ErrCreateCompressor
	}
	return &Compressor{ptr: ptr}, nil
}

// Close releases the underlying rohc_comp.
func (c *Compressor) Close() {
	if c.ptr != nil {
		C.rohc_comp_free(c.ptr)
		c.ptr = nil
	}
}

// Compress compresses an IP packet. A non-nil error means a hard failure
// (caller should log compr_failed and drop the packet).
func (c *Compressor) Compress(ipPacket []byte) (out []byte, segmented bool, err error) {
	out = make([]byte, scratchCapacity)
	var outlen C.size_t
	var cSegmented C.int
	var inPtr *C.uchar
	if len(ipPacket) > 0 {
		inPtr = (*C.uchar)(unsafe.Pointer(&ipPacket[0]))
	}
	rc := C.simplemux_compress(c.ptr, inPtr, C.size_t(len(ipPacket)),
		(*C.uchar)(unsafe.Pointer(&out[0])), C.size_t(len(out)), &outlen, &cSegmented)
	if rc != 0 {
		return nil, false, ErrCompressFailed
	}
	return out[:outlen], cSegmented != 0, nil
}

// Decompressor wraps a struct rohc_decomp*.
type Decompressor struct {
	ptr *C.struct_rohc_decomp
}

// NewDecompressor creates a ROHC decompressor with small CIDs (max CID 15)
// in bidirectional-optimistic mode, with the Uncompressed/UDP/IP/UDP-Lite/
// RTP/ESP/TCP profiles enabled.
func NewDecompressor() (*Decompressor, error) {
	ptr := C.simplemux_new_decompressor()
	if ptr == nil {
		return nil, ErrCreateDecompressor
	}
	return &Decompressor{ptr: ptr}, nil
}

// Close releases the underlying rohc_decomp.
func (d *Decompressor) Close() {
	if d.ptr != nil {
		C.rohc_decomp_free(d.ptr)
		d.ptr = nil
	}
}

// Decompress decompresses a ROHC packet. feedbackOnly=true with err=nil
// means no IP packet was produced (segment or feedback-only); this is a
// normal condition (§4.2 "ROHC_feedback"), not an error.
func (d *Decompressor) Decompress(rohcPacket []byte) (out []byte, feedbackOnly bool, err error) {
	out = make([]byte, scratchCapacity)
	var outlen C.size_t
	var cFeedbackOnly C.int
	var inPtr *C.uchar
	if len(rohcPacket) > 0 {
		inPtr = (*C.uchar)(unsafe.Pointer(&rohcPacket[0]))
	}
	rc := C.simplemux_decompress(d.ptr, inPtr, C.size_t(len(rohcPacket)),
		(*C.uchar)(unsafe.Pointer(&out[0])), C.size_t(len(out)), &outlen, &cFeedbackOnly)
	if rc != 0 {
		return nil, false, ErrDecompressFailed
	}
	if cFeedbackOnly != 0 {
		return nil, true, nil
	}
	return out[:outlen], false, nil
}
