package separator

import "testing"

func TestRoundTrip(t *testing.T) {
	for l := 0; l <= MaxLongLength; l++ {
		enc, err := Encode(l)
		if err != nil {
			t.Fatalf("Encode(%d): %v", l, err)
		}
		got, consumed, err := Decode(enc)
		if err != nil {
			t.Fatalf("Decode(Encode(%d)): %v", l, err)
		}
		if got != l || consumed != len(enc) {
			t.Fatalf("Decode(Encode(%d)) = (%d, %d), want (%d, %d)", l, got, consumed, l, len(enc))
		}
	}
}

func TestShortFormBoundary(t *testing.T) {
	enc, err := Encode(63)
	if err != nil || len(enc) != 1 {
		t.Fatalf("Encode(63) = %v, %v, want 1 byte", enc, err)
	}
	enc, err = Encode(64)
	if err != nil || len(enc) != 2 {
		t.Fatalf("Encode(64) = %v, %v, want 2 bytes", enc, err)
	}
}

func TestLongFormMaximum(t *testing.T) {
	enc, err := Encode(16383)
	if err != nil {
		t.Fatalf("Encode(16383): %v", err)
	}
	if enc[0] != 0x7F || enc[1] != 0xFF {
		t.Fatalf("Encode(16383) = % X, want 7F FF", enc)
	}
}

func TestEncodeOutOfRange(t *testing.T) {
	if _, err := Encode(-1); err != ErrLengthOutOfRange {
		t.Fatalf("Encode(-1) err = %v, want ErrLengthOutOfRange", err)
	}
	if _, err := Encode(16384); err != ErrLengthOutOfRange {
		t.Fatalf("Encode(16384) err = %v, want ErrLengthOutOfRange", err)
	}
}

func TestDecodeBadSeparator(t *testing.T) {
	if _, _, err := Decode([]byte{0x80}); err != ErrBadSeparator {
		t.Fatalf("Decode(0x80) err = %v, want ErrBadSeparator", err)
	}
	if _, _, err := Decode([]byte{0xFF, 0x00}); err != ErrBadSeparator {
		t.Fatalf("Decode(0xFF, ..) err = %v, want ErrBadSeparator", err)
	}
}

func TestDecodeTruncated(t *testing.T) {
	if _, _, err := Decode([]byte{}); err != ErrTruncated {
		t.Fatalf("Decode([]) err = %v, want ErrTruncated", err)
	}
	if _, _, err := Decode([]byte{0x40}); err != ErrTruncated {
		t.Fatalf("Decode(0x40) err = %v, want ErrTruncated", err)
	}
}

func TestExampleEncodings(t *testing.T) {
	enc, _ := Encode(40)
	if len(enc) != 1 || enc[0] != 0x28 {
		t.Fatalf("Encode(40) = % X, want 28", enc)
	}
	enc, _ = Encode(100)
	if len(enc) != 2 || enc[0] != 0x40 || enc[1] != 0x64 {
		t.Fatalf("Encode(100) = % X, want 40 64", enc)
	}
}

// FuzzDecode exercises Decode with arbitrary inputs to ensure no panics
// and that every error path returns one of the documented sentinels.
func FuzzDecode(f *testing.F) {
	seed := [][]byte{
		{},
		{0x80},
		{0xFF, 0x00},
		{0x40},
		{0x28},
		{0x40, 0x64},
		{0x7F, 0xFF},
	}
	for _, s := range seed {
		f.Add(s)
	}
	f.Fuzz(func(t *testing.T, data []byte) {
		length, consumed, err := Decode(data)
		if err != nil {
			if err != ErrBadSeparator && err != ErrTruncated {
				t.Fatalf("Decode(% X) returned unexpected error: %v", data, err)
			}
			return
		}
		if consumed < 1 || consumed > 2 || consumed > len(data) {
			t.Fatalf("Decode(% X) = (%d, %d), consumed out of range", data, length, consumed)
		}
		if length < 0 || length > MaxLongLength {
			t.Fatalf("Decode(% X) = (%d, %d), length out of range", data, length, consumed)
		}
	})
}
