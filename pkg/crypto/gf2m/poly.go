package gf2m

// Polynomials over GF(2^m) are slices of coefficients, lowest degree first.

// Eval evaluates p at x using Horner's rule.
func (f *Field) Eval(p []Element, x Element) Element {
	if len(p) == 0 {
		return 0
	}
	result := p[len(p)-1]
	for i := len(p) - 2; i >= 0; i-- {
		result = f.Mul(result, x) ^ p[i]
	}
	return result
}

// PolyMul returns p * q.
func (f *Field) PolyMul(p, q []Element) []Element {
	if len(p) == 0 || len(q) == 0 {
		return nil
	}
	out := make([]Element, len(p)+len(q)-1)
	for i, a := range p {
		if a == 0 {
			continue
		}
		for j, b := range q {
			out[i+j] ^= f.Mul(a, b)
		}
	}
	return out
}

// PolyAdd returns p + q.
func PolyAdd(p, q []Element) []Element {
	if len(p) < len(q) {
		p, q = q, p
	}
	out := make([]Element, len(p))
	copy(out, p)
	for i, b := range q {
		out[i] ^= b
	}
	return out
}

// PolyScale returns c * p.
func (f *Field) PolyScale(p []Element, c Element) []Element {
	out := make([]Element, len(p))
	for i, a := range p {
		out[i] = f.Mul(a, c)
	}
	return out
}

// PolyShift returns x^k * p.
func PolyShift(p []Element, k int) []Element {
	out := make([]Element, len(p)+k)
	copy(out[k:], p)
	return out
}

// Degree returns the degree of p, or -1 for the zero polynomial.
func Degree(p []Element) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] != 0 {
			return i
		}
	}
	return -1
}

// Trim drops zero high-order coefficients.
func Trim(p []Element) []Element {
	return p[:Degree(p)+1]
}
