// Package gf2m implements arithmetic over the binary extension fields GF(2^m)
// for 2 <= m <= 16 using precomputed log/antilog tables.
//
// A Field is built once from a primitive polynomial and is read-only
// afterwards, so a single *Field may be shared by any number of goroutines.
package gf2m

import (
	"errors"
	"fmt"
	"math/bits"
)

const (
	MinDegree = 2
	MaxDegree = 16
)

// ErrNotPrimitive is returned when the supplied polynomial does not generate
// the full multiplicative group of GF(2^m).
var ErrNotPrimitive = errors.New("polynomial is not primitive")

// Element is a field element in polynomial basis, an integer in [0, 2^m).
type Element uint32

// Primitive polynomials for each supported degree, low bit = x^0.
var defaultPolys = map[int]uint32{
	2:  0x7,     // x^2 + x + 1
	3:  0xB,     // x^3 + x + 1
	4:  0x13,    // x^4 + x + 1
	5:  0x25,    // x^5 + x^2 + 1
	6:  0x43,    // x^6 + x + 1
	7:  0x89,    // x^7 + x^3 + 1
	8:  0x11D,   // x^8 + x^4 + x^3 + x^2 + 1
	9:  0x211,   // x^9 + x^4 + 1
	10: 0x409,   // x^10 + x^3 + 1
	11: 0x805,   // x^11 + x^2 + 1
	12: 0x1053,  // x^12 + x^6 + x^4 + x + 1
	13: 0x201B,  // x^13 + x^4 + x^3 + x + 1
	14: 0x4443,  // x^14 + x^10 + x^6 + x + 1
	15: 0x8003,  // x^15 + x + 1
	16: 0x1100B, // x^16 + x^12 + x^3 + x + 1
}

// Field holds the log/antilog tables for GF(2^m).
type Field struct {
	m     int
	poly  uint32
	order int // 2^m - 1, size of the multiplicative group

	// exp has 2*order entries so that exp[log a + log b] needs no reduction.
	exp []Element
	log []int
}

// DefaultPoly returns the built-in primitive polynomial for degree m.
func DefaultPoly(m int) (uint32, bool) {
	p, ok := defaultPolys[m]
	return p, ok
}

// DefaultField builds GF(2^m) from the built-in primitive polynomial.
func DefaultField(m int) (*Field, error) {
	poly, ok := defaultPolys[m]
	if !ok {
		return nil, fmt.Errorf("field degree %d out of range [%d, %d]", m, MinDegree, MaxDegree)
	}
	return NewField(m, poly)
}

// NewField builds GF(2^m) from poly, which must be a primitive polynomial of
// degree exactly m. Primitivity is verified by checking that the powers of x
// do not return to 1 before 2^m - 1 steps.
func NewField(m int, poly uint32) (*Field, error) {
	if m < MinDegree || m > MaxDegree {
		return nil, fmt.Errorf("field degree %d out of range [%d, %d]", m, MinDegree, MaxDegree)
	}
	if bits.Len32(poly)-1 != m {
		return nil, fmt.Errorf("polynomial %#x has degree %d, want %d", poly, bits.Len32(poly)-1, m)
	}
	if poly&1 == 0 {
		return nil, fmt.Errorf("%w: %#x is divisible by x", ErrNotPrimitive, poly)
	}

	size := 1 << m
	f := &Field{
		m:     m,
		poly:  poly,
		order: size - 1,
		exp:   make([]Element, 2*(size-1)),
		log:   make([]int, size),
	}

	x := uint32(1)
	for i := 0; i < f.order; i++ {
		if i > 0 && x == 1 {
			return nil, fmt.Errorf("%w: %#x, root has order %d instead of %d", ErrNotPrimitive, poly, i, f.order)
		}
		f.exp[i] = Element(x)
		f.log[x] = i

		x <<= 1
		if x&uint32(size) != 0 {
			x ^= poly
		}
	}
	if x != 1 {
		return nil, fmt.Errorf("%w: %#x", ErrNotPrimitive, poly)
	}
	for i := f.order; i < len(f.exp); i++ {
		f.exp[i] = f.exp[i-f.order]
	}
	// log(0) is undefined; callers must check for zero first.
	f.log[0] = -1

	return f, nil
}

// M returns the extension degree.
func (f *Field) M() int { return f.m }

// Order returns 2^m - 1, the number of nonzero elements.
func (f *Field) Order() int { return f.order }

// Size returns 2^m.
func (f *Field) Size() int { return f.order + 1 }

// Poly returns the primitive polynomial the field was built from.
func (f *Field) Poly() uint32 { return f.poly }

// Add returns a + b, which is XOR in characteristic 2. Subtraction is the same.
func (f *Field) Add(a, b Element) Element {
	return a ^ b
}

// Mul returns a * b.
func (f *Field) Mul(a, b Element) Element {
	if a == 0 || b == 0 {
		return 0
	}
	return f.exp[f.log[a]+f.log[b]]
}

// Div returns a / b. Division by zero panics.
func (f *Field) Div(a, b Element) Element {
	if b == 0 {
		panic("gf2m: division by zero")
	}
	if a == 0 {
		return 0
	}
	return f.exp[f.log[a]-f.log[b]+f.order]
}

// Inv returns the multiplicative inverse of a nonzero element. Inverting zero
// panics.
func (f *Field) Inv(a Element) Element {
	if a == 0 {
		panic("gf2m: inverse of zero")
	}
	return f.exp[(f.order-f.log[a])%f.order]
}

// Exp returns alpha^i for the primitive element alpha. Any integer exponent is
// accepted, including negative ones.
func (f *Field) Exp(i int) Element {
	i %= f.order
	if i < 0 {
		i += f.order
	}
	return f.exp[i]
}

// Log returns the discrete logarithm of a nonzero element to base alpha.
func (f *Field) Log(a Element) (int, error) {
	if a == 0 || int(a) >= len(f.log) {
		return 0, fmt.Errorf("log of %d undefined in GF(2^%d)", a, f.m)
	}
	return f.log[a], nil
}

// Pow returns a^e. 0^0 is 1.
func (f *Field) Pow(a Element, e int) Element {
	if e == 0 {
		return 1
	}
	if a == 0 {
		return 0
	}
	return f.Exp(f.log[a] * (e % f.order))
}

// Contains reports whether a is a valid element of the field.
func (f *Field) Contains(a Element) bool {
	return int(a) <= f.order
}

func (f *Field) String() string {
	return fmt.Sprintf("GF(2^%d) mod %#x", f.m, f.poly)
}
