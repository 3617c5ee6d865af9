package codec

import (
	"bytes"
	"errors"
	"testing"
)

type fakeCompressor struct {
	out       []byte
	segmented bool
	err       error
}

func (f fakeCompressor) Compress(ipPacket []byte) ([]byte, bool, error) { return f.out, f.segmented, f.err }
func (fakeCompressor) Close()                                          {}

type fakeDecompressor struct {
	out          []byte
	feedbackOnly bool
	err          error
}

func (f fakeDecompressor) Decompress(rohcPacket []byte) ([]byte, bool, error) {
	return f.out, f.feedbackOnly, f.err
}
func (fakeDecompressor) Close() {}

func TestPassthroughRoundTrip(t *testing.T) {
	p := NewPassthrough()
	in := []byte("hello world")

	cr, err := p.Compress(in)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !bytes.Equal(cr.Data, in) || cr.Segmented {
		t.Fatalf("Compress(%q) = %+v, want identity non-segmented", in, cr)
	}

	dr, err := p.Decompress(cr.Data)
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !bytes.Equal(dr.Data, in) || dr.FeedbackOnly {
		t.Fatalf("Decompress(%q) = %+v, want identity non-feedback", cr.Data, dr)
	}
}

func TestPassthroughEmptyPacket(t *testing.T) {
	p := NewPassthrough()
	cr, err := p.Compress(nil)
	if err != nil || len(cr.Data) != 0 {
		t.Fatalf("Compress(nil) = %+v, %v", cr, err)
	}
}

func TestRohcCompressSegmentedReturnsOriginalPacket(t *testing.T) {
	in := []byte("a much larger original ip packet than the segmented rohc form")
	r := &Rohc{
		comp: fakeCompressor{out: []byte("rohc-segment-fragment"), segmented: true},
	}
	cr, err := r.Compress(in)
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if !cr.Segmented {
		t.Fatalf("cr.Segmented = false, want true")
	}
	if !bytes.Equal(cr.Data, in) {
		t.Fatalf("cr.Data = %q, want the original packet %q verbatim", cr.Data, in)
	}
}

func TestRohcCompressNotSegmentedReturnsCompressedForm(t *testing.T) {
	compressed := []byte("rohc-compressed-form")
	r := &Rohc{
		comp: fakeCompressor{out: compressed, segmented: false},
	}
	cr, err := r.Compress([]byte("original"))
	if err != nil {
		t.Fatalf("Compress: %v", err)
	}
	if cr.Segmented || !bytes.Equal(cr.Data, compressed) {
		t.Fatalf("Compress = %+v, want non-segmented compressed form", cr)
	}
}

func TestRohcCompressError(t *testing.T) {
	r := &Rohc{comp: fakeCompressor{err: errors.New("boom")}}
	if _, err := r.Compress([]byte("x")); err == nil {
		t.Fatalf("expected error to propagate")
	}
}

func TestRohcDecompressFeedbackOnly(t *testing.T) {
	r := &Rohc{decomp: fakeDecompressor{feedbackOnly: true}}
	dr, err := r.Decompress([]byte("feedback"))
	if err != nil {
		t.Fatalf("Decompress: %v", err)
	}
	if !dr.FeedbackOnly || len(dr.Data) != 0 {
		t.Fatalf("Decompress = %+v, want FeedbackOnly with no data", dr)
	}
}
