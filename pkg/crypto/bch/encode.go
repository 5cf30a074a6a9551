package bch

import "fmt"

// Encode multiplies the k-bit message polynomial by g(x) and returns the n
// coefficients of the product as the codeword. Any nonzero message element
// is treated as a set bit.
func (c *Code) Encode(msg []byte) ([]byte, error) {
	if len(msg) != c.k {
		return nil, fmt.Errorf("message length %d, want %d", len(msg), c.k)
	}
	return mulGF2(msg, c.gen), nil
}

// IsCodeword reports whether w is an n-bit multiple of g(x).
func (c *Code) IsCodeword(w []byte) bool {
	if len(w) != c.n {
		return false
	}
	_, rem := divGF2(w, c.gen)
	return isZero(rem)
}

// Message recovers the message from a codeword by exact division by g(x).
func (c *Code) Message(codeword []byte) ([]byte, error) {
	if len(codeword) != c.n {
		return nil, fmt.Errorf("codeword length %d, want %d", len(codeword), c.n)
	}
	quot, rem := divGF2(codeword, c.gen)
	if !isZero(rem) {
		return nil, fmt.Errorf("%w: word is not divisible by the generator", ErrDecodeFailure)
	}
	return quot, nil
}
