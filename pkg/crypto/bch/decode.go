package bch

import (
	"fmt"

	"github.com/Davincible/biokey/pkg/crypto/gf2m"
)

// Syndromes evaluates the received polynomial at alpha^1 ... alpha^(d-1).
// Element i of the result is S_(i+1).
func (c *Code) Syndromes(r []byte) []gf2m.Element {
	syn := make([]gf2m.Element, c.d-1)
	for j, bit := range r {
		if bit == 0 {
			continue
		}
		for i := range syn {
			syn[i] ^= c.field.Exp((i + 1) * j)
		}
	}
	return syn
}

// BerlekampMassey returns the shortest LFSR connection polynomial sigma(x)
// generating the syndrome sequence, together with its length L. For at most
// t errors sigma is the error locator: its roots are the inverses of
// alpha^j for every error position j, and L is the number of errors.
func (c *Code) BerlekampMassey(syn []gf2m.Element) ([]gf2m.Element, int) {
	f := c.field

	sigma := []gf2m.Element{1}
	prev := []gf2m.Element{1}
	L := 0
	shift := 1
	lastDelta := gf2m.Element(1)

	for r := range syn {
		delta := syn[r]
		for i := 1; i <= L && i < len(sigma); i++ {
			delta ^= f.Mul(sigma[i], syn[r-i])
		}

		if delta == 0 {
			shift++
			continue
		}

		coef := f.Div(delta, lastDelta)
		next := gf2m.PolyAdd(sigma, gf2m.PolyShift(f.PolyScale(prev, coef), shift))

		if 2*L <= r {
			prev = sigma
			L = r + 1 - L
			lastDelta = delta
			shift = 1
		} else {
			shift++
		}
		sigma = next
	}

	return gf2m.Trim(sigma), L
}

// ChienSearch evaluates sigma at alpha^(-j) for every j in [0, 2^m - 1) and
// returns the positions j where it vanishes.
func (c *Code) ChienSearch(sigma []gf2m.Element) []int {
	var positions []int
	for j := 0; j < c.field.Order(); j++ {
		if c.field.Eval(sigma, c.field.Exp(-j)) == 0 {
			positions = append(positions, j)
		}
	}
	return positions
}

// Correct returns the codeword nearest to r together with the flipped
// positions. It fails with ErrDecodeFailure when the error locator has more
// than t roots, when the number of roots disagrees with its degree, or when a
// root falls outside a shortened code.
func (c *Code) Correct(r []byte) ([]byte, []int, error) {
	if len(r) != c.n {
		return nil, nil, fmt.Errorf("received word length %d, want %d", len(r), c.n)
	}
	word := normalize(r)

	syn := c.Syndromes(word)
	if allZero(syn) {
		return word, nil, nil
	}

	sigma, nu := c.BerlekampMassey(syn)
	if nu > c.t {
		return nil, nil, fmt.Errorf("%w: error locator degree %d exceeds correction radius %d", ErrDecodeFailure, nu, c.t)
	}
	if gf2m.Degree(sigma) != nu {
		return nil, nil, fmt.Errorf("%w: error locator degree %d does not match LFSR length %d", ErrDecodeFailure, gf2m.Degree(sigma), nu)
	}

	positions := c.ChienSearch(sigma)
	if len(positions) != nu {
		return nil, nil, fmt.Errorf("%w: found %d roots for %d errors", ErrDecodeFailure, len(positions), nu)
	}
	for _, p := range positions {
		if p >= c.n {
			return nil, nil, fmt.Errorf("%w: error position %d outside code length %d", ErrDecodeFailure, p, c.n)
		}
		word[p] ^= 1
	}

	if !allZero(c.Syndromes(word)) {
		return nil, nil, fmt.Errorf("%w: corrected word has nonzero syndromes", ErrDecodeFailure)
	}
	return word, positions, nil
}

// Decode corrects r and divides the result by g(x) to recover the k-bit
// message.
func (c *Code) Decode(r []byte) ([]byte, error) {
	codeword, _, err := c.Correct(r)
	if err != nil {
		return nil, err
	}
	msg, err := c.Message(codeword)
	for i := range codeword {
		codeword[i] = 0
	}
	return msg, err
}

func allZero(syn []gf2m.Element) bool {
	for _, s := range syn {
		if s != 0 {
			return false
		}
	}
	return true
}
