// Package separator implements the 1- or 2-byte length prefix that
// precedes each packet inside a multiplexed bundle.
//
// Byte 0, bit 7 (MBB) is always 0 on the wire; a received separator with
// MBB=1 means the datagram is malformed and must be dropped by the caller.
// Bit 6 (PFF) selects the short (1-byte) or long (2-byte) form.
package separator

import "errors"

// MaxShortLength is the largest length encodable in the 1-byte short form.
const MaxShortLength = 63

// MaxLongLength is the largest length encodable in the 2-byte long form.
const MaxLongLength = 16383

// ErrBadSeparator is returned when the MSB of byte 0 is set (MBB=1).
var ErrBadSeparator = errors.New("separator: MBB bit set")

// ErrTruncated is returned when PFF=1 but only one byte remains.
var ErrTruncated = errors.New("separator: truncated long-form separator")

// ErrLengthOutOfRange is returned by Encode for L outside [0, 16383].
var ErrLengthOutOfRange = errors.New("separator: length out of range")

// Encode returns the wire form of the length prefix for a payload of l bytes.
func Encode(l int) ([]byte, error) {
	if l < 0 || l > MaxLongLength {
		return nil, ErrLengthOutOfRange
	}
	if l <= MaxShortLength {
		return []byte{byte(l) & 0x3F}, nil
	}
	return []byte{0x40 | byte((l>>8)&0x3F), byte(l & 0xFF)}, nil
}

// AppendEncode appends the wire form of l to dst and returns the result.
func AppendEncode(dst []byte, l int) ([]byte, error) {
	if l < 0 || l > MaxLongLength {
		return dst, ErrLengthOutOfRange
	}
	if l <= MaxShortLength {
		return append(dst, byte(l)&0x3F), nil
	}
	return append(dst, 0x40|byte((l>>8)&0x3F), byte(l&0xFF)), nil
}

// Len returns the number of bytes Encode would produce for l (1 or 2),
// without validating the upper bound as strictly as Encode.
func Len(l int) int {
	if l <= MaxShortLength {
		return 1
	}
	return 2
}

// Decode reads one separator from the start of b.
// It returns the decoded length and the number of bytes consumed (1 or 2).
func Decode(b []byte) (length int, consumed int, err error) {
	if len(b) == 0 {
		return 0, 0, ErrTruncated
	}
	b0 := b[0]
	if b0&0x80 != 0 {
		return 0, 0, ErrBadSeparator
	}
	if b0&0x40 == 0 {
		return int(b0 & 0x3F), 1, nil
	}
	if len(b) < 2 {
		return 0, 0, ErrTruncated
	}
	return (int(b0&0x3F) << 8) | int(b[1]), 2, nil
}
