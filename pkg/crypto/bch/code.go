// Package bch implements narrow-sense binary BCH codes: generator polynomial
// construction over GF(2^m), non-systematic encoding and syndrome decoding
// with Berlekamp-Massey and Chien search.
//
// Shortened codes (n < 2^m - 1) are supported. A Code is immutable once built
// and safe for concurrent use.
//
// The decoder corrects every error pattern of weight at most T(). Heavier
// patterns are either rejected with ErrDecodeFailure or, when they land within
// distance T() of another codeword, decoded to that codeword. The second case
// cannot be detected by the code itself and callers that need to rule it out
// must check the decoded message some other way.
package bch

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Davincible/biokey/pkg/crypto/gf2m"
)

var (
	// ErrConfiguration reports an (n, d) pair that yields no usable code.
	ErrConfiguration = errors.New("bch: invalid code configuration")
	// ErrDecodeFailure reports a received word that could not be corrected.
	ErrDecodeFailure = errors.New("bch: uncorrectable error pattern")
)

const MinLength = 3

// MaxLength is the longest code the largest supported field can carry.
const MaxLength = 1<<gf2m.MaxDegree - 1

// Code holds the parameters of one binary BCH code.
type Code struct {
	field *gf2m.Field
	n     int
	d     int
	t     int
	k     int
	gen   []byte // generator coefficients, gen[i] for x^i, monic
}

// New builds the BCH code of length n and designed distance d over the
// smallest field GF(2^m) with 2^m - 1 >= n.
func New(n, d int) (*Code, error) {
	m, err := FieldDegree(n)
	if err != nil {
		return nil, err
	}
	f, err := gf2m.DefaultField(m)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return NewWithField(n, d, f)
}

// NewWithField builds the code over a caller-supplied field, for example one
// built from a non-default primitive polynomial.
func NewWithField(n, d int, f *gf2m.Field) (*Code, error) {
	if f == nil {
		return nil, fmt.Errorf("%w: nil field", ErrConfiguration)
	}
	if n < MinLength || n > f.Order() {
		return nil, fmt.Errorf("%w: length %d outside [%d, %d] for %s", ErrConfiguration, n, MinLength, f.Order(), f)
	}
	if d < 2 {
		return nil, fmt.Errorf("%w: designed distance must be at least 2, got %d", ErrConfiguration, d)
	}
	if d > n {
		return nil, fmt.Errorf("%w: designed distance %d exceeds length %d", ErrConfiguration, d, n)
	}

	gen, err := generatorPoly(f, d)
	if err != nil {
		return nil, err
	}
	deg := len(gen) - 1
	if deg >= n {
		return nil, fmt.Errorf("%w: generator degree %d leaves no message space for n=%d, d=%d", ErrConfiguration, deg, n, d)
	}

	return &Code{
		field: f,
		n:     n,
		d:     d,
		t:     (d - 1) / 2,
		k:     n - deg,
		gen:   gen,
	}, nil
}

// FieldDegree returns the smallest m with 2^m - 1 >= n.
func FieldDegree(n int) (int, error) {
	if n < MinLength || n > MaxLength {
		return 0, fmt.Errorf("%w: length %d outside [%d, %d]", ErrConfiguration, n, MinLength, MaxLength)
	}
	m := gf2m.MinDegree
	for (1<<m)-1 < n {
		m++
	}
	return m, nil
}

// generatorPoly returns lcm(M_1, ..., M_{d-1}), where M_i is the minimal
// polynomial of alpha^i. Conjugate powers share a minimal polynomial, so the
// lcm is the product over distinct cyclotomic cosets.
func generatorPoly(f *gf2m.Field, d int) ([]byte, error) {
	seen := make(map[int]bool)
	gen := []byte{1}

	for i := 1; i < d; i++ {
		coset := cyclotomicCoset(i%f.Order(), f.Order())
		if seen[coset[0]] {
			continue
		}
		for _, c := range coset {
			seen[c] = true
		}

		mp, err := minimalPoly(f, coset)
		if err != nil {
			return nil, err
		}
		gen = mulGF2(gen, mp)
	}
	return gen, nil
}

// cyclotomicCoset returns {i, 2i, 4i, ...} mod order, smallest element first.
func cyclotomicCoset(i, order int) []int {
	coset := []int{i}
	for c := (2 * i) % order; c != i; c = (2 * c) % order {
		coset = append(coset, c)
	}
	minIdx := 0
	for j, c := range coset {
		if c < coset[minIdx] {
			minIdx = j
		}
	}
	coset[0], coset[minIdx] = coset[minIdx], coset[0]
	return coset
}

// minimalPoly expands prod (x + alpha^c) over the coset. The coefficients lie
// in GF(2); anything else means the field tables are inconsistent.
func minimalPoly(f *gf2m.Field, coset []int) ([]byte, error) {
	p := []gf2m.Element{1}
	for _, c := range coset {
		p = f.PolyMul(p, []gf2m.Element{f.Exp(c), 1})
	}

	out := make([]byte, len(p))
	for i, c := range p {
		switch c {
		case 0:
		case 1:
			out[i] = 1
		default:
			return nil, fmt.Errorf("%w: minimal polynomial of alpha^%d has coefficient %d outside GF(2)", ErrConfiguration, coset[0], c)
		}
	}
	return out, nil
}

// N returns the block length.
func (c *Code) N() int { return c.n }

// K returns the message length, n - deg(g).
func (c *Code) K() int { return c.k }

// D returns the designed distance.
func (c *Code) D() int { return c.d }

// T returns the number of bit errors corrected with certainty.
func (c *Code) T() int { return c.t }

// M returns the degree of the underlying field.
func (c *Code) M() int { return c.field.M() }

// Field returns the underlying field.
func (c *Code) Field() *gf2m.Field { return c.field }

// Generator returns a copy of the generator polynomial coefficients,
// lowest degree first.
func (c *Code) Generator() []byte {
	out := make([]byte, len(c.gen))
	copy(out, c.gen)
	return out
}

// GeneratorString renders g(x) as a sum of powers, highest first.
func (c *Code) GeneratorString() string {
	var terms []string
	for i := len(c.gen) - 1; i >= 0; i-- {
		if c.gen[i] == 0 {
			continue
		}
		switch i {
		case 0:
			terms = append(terms, "1")
		case 1:
			terms = append(terms, "x")
		default:
			terms = append(terms, fmt.Sprintf("x^%d", i))
		}
	}
	return strings.Join(terms, " + ")
}

func (c *Code) String() string {
	return fmt.Sprintf("BCH(n=%d, k=%d, d=%d, t=%d) over GF(2^%d)", c.n, c.k, c.d, c.t, c.field.M())
}
