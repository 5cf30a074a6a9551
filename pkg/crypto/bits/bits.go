// Package bits converts between byte strings and fixed-length bit vectors.
//
// A bit vector is a []byte holding one bit (0 or 1) per element. Bytes are
// unpacked MSB-first: byte i contributes vector positions 8i..8i+7, with bit 7
// of the byte at the earliest position. Packing is the inverse, zero-padding
// the final byte when the vector length is not a multiple of 8.
package bits

import "fmt"

// FromBytes unpacks b into 8*len(b) bits, MSB-first.
func FromBytes(b []byte) []byte {
	out := make([]byte, 8*len(b))
	for i, v := range b {
		for j := 0; j < 8; j++ {
			out[8*i+j] = (v >> (7 - j)) & 1
		}
	}
	return out
}

// ToBytes packs a bit vector into ceil(len(v)/8) bytes, MSB-first. Any nonzero
// element counts as a set bit.
func ToBytes(v []byte) []byte {
	out := make([]byte, PackedLen(len(v)))
	for i, bit := range v {
		if bit != 0 {
			out[i/8] |= 0x80 >> (i % 8)
		}
	}
	return out
}

// PackedLen returns the number of bytes needed to hold n bits.
func PackedLen(n int) int {
	return (n + 7) / 8
}

// Fit unpacks b and zero-pads or truncates the result to exactly n bits. The
// same rule must be applied at enrollment and at verification.
func Fit(b []byte, n int) []byte {
	out := make([]byte, n)
	for i := 0; i < n && i/8 < len(b); i++ {
		out[i] = (b[i/8] >> (7 - i%8)) & 1
	}
	return out
}

// Xor returns a XOR b element-wise. Both vectors must have the same length.
func Xor(a, b []byte) ([]byte, error) {
	if len(a) != len(b) {
		return nil, fmt.Errorf("bit vector length mismatch: %d != %d", len(a), len(b))
	}
	out := make([]byte, len(a))
	for i := range a {
		out[i] = (a[i] ^ b[i]) & 1
	}
	return out, nil
}

// Weight returns the number of set bits in v.
func Weight(v []byte) int {
	w := 0
	for _, bit := range v {
		if bit != 0 {
			w++
		}
	}
	return w
}

// Distance returns the Hamming distance between two equal-length vectors.
func Distance(a, b []byte) (int, error) {
	x, err := Xor(a, b)
	if err != nil {
		return 0, err
	}
	return Weight(x), nil
}

// Flip toggles the bits of v at the given positions in place.
func Flip(v []byte, positions ...int) error {
	for _, p := range positions {
		if p < 0 || p >= len(v) {
			return fmt.Errorf("bit position %d out of range [0, %d)", p, len(v))
		}
		v[p] ^= 1
	}
	return nil
}
