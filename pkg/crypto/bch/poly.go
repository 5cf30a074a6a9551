package bch

// Binary polynomials are bit vectors: element i is the coefficient of x^i.

func degreeGF2(p []byte) int {
	for i := len(p) - 1; i >= 0; i-- {
		if p[i] != 0 {
			return i
		}
	}
	return -1
}

// mulGF2 returns p * q over GF(2).
func mulGF2(p, q []byte) []byte {
	if len(p) == 0 || len(q) == 0 {
		return nil
	}
	out := make([]byte, len(p)+len(q)-1)
	for i, a := range p {
		if a == 0 {
			continue
		}
		for j, b := range q {
			if b != 0 {
				out[i+j] ^= 1
			}
		}
	}
	return out
}

// divGF2 divides p by the nonzero polynomial g and returns the quotient and
// remainder. The quotient has len(p)-deg(g) coefficients (at least one), the
// remainder deg(g).
func divGF2(p, g []byte) (quot, rem []byte) {
	dg := degreeGF2(g)
	if dg < 0 {
		panic("bch: division by zero polynomial")
	}

	rem = normalize(p)

	qlen := len(p) - dg
	if qlen < 1 {
		qlen = 1
	}
	quot = make([]byte, qlen)

	for i := len(p) - 1; i >= dg; i-- {
		if rem[i] == 0 {
			continue
		}
		shift := i - dg
		quot[shift] = 1
		for j := 0; j <= dg; j++ {
			if g[j] != 0 {
				rem[shift+j] ^= 1
			}
		}
	}

	if len(rem) > dg {
		rem = rem[:dg]
	}
	return quot, rem
}

// normalize copies v, mapping every nonzero element to 1.
func normalize(v []byte) []byte {
	out := make([]byte, len(v))
	for i, b := range v {
		if b != 0 {
			out[i] = 1
		}
	}
	return out
}

func isZero(p []byte) bool {
	for _, b := range p {
		if b != 0 {
			return false
		}
	}
	return true
}
