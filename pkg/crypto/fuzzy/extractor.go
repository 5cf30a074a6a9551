// Package fuzzy implements a code-offset fuzzy extractor over binary BCH
// codes.
//
// Generate draws a random k-bit key K, encodes it to a codeword C and
// publishes helper = w XOR C for the enrollment vector w. Reproduce computes
// w' XOR helper = C XOR (w XOR w') and decodes it, recovering K whenever w'
// is within T() bit errors of w.
//
// Descriptor bytes are unpacked MSB-first and zero-padded or truncated to n
// bits. Enrollment and verification must use the same descriptor convention
// and the same (n, d), otherwise keys fail to match without any error being
// reported.
//
// An Extractor is immutable and safe for concurrent use provided its random
// source is. Returned key slices belong to the caller, who should wipe them
// with secure.Zero when done. This package never logs.
package fuzzy

import (
	"errors"
	"fmt"
	"io"

	"github.com/Davincible/biokey/pkg/crypto/bch"
	"github.com/Davincible/biokey/pkg/crypto/bits"
	"github.com/Davincible/biokey/pkg/secure"
)

var (
	ErrConfiguration = bch.ErrConfiguration
	// ErrDecodeFailure means the noise between enrollment and verification
	// exceeded the correction radius. Decoding is deterministic, so retrying
	// with the same inputs gives the same result.
	ErrDecodeFailure = bch.ErrDecodeFailure
	ErrInvalidHelper = errors.New("fuzzy: invalid helper data")
)

// Params describes the sizes an Extractor works with.
type Params struct {
	N           int `json:"n"`
	D           int `json:"d"`
	K           int `json:"k"`
	T           int `json:"t"`
	M           int `json:"m"`
	KeyBytes    int `json:"key_bytes"`
	HelperBytes int `json:"helper_bytes"`
}

type Extractor struct {
	code *bch.Code
	rand io.Reader
}

type Option func(*Extractor)

// WithRandom replaces crypto/rand as the source of key bits. The reader must
// be safe for concurrent use if the Extractor is shared.
func WithRandom(r io.Reader) Option {
	return func(e *Extractor) {
		e.rand = r
	}
}

// New builds an extractor for the BCH code with length n and designed
// distance d.
func New(n, d int, opts ...Option) (*Extractor, error) {
	code, err := bch.New(n, d)
	if err != nil {
		return nil, err
	}
	return NewWithCode(code, opts...), nil
}

// NewWithCode builds an extractor around an existing code.
func NewWithCode(code *bch.Code, opts ...Option) *Extractor {
	e := &Extractor{code: code}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Extractor) Code() *bch.Code { return e.code }

func (e *Extractor) Params() Params {
	return Params{
		N:           e.code.N(),
		D:           e.code.D(),
		K:           e.code.K(),
		T:           e.code.T(),
		M:           e.code.M(),
		KeyBytes:    bits.PackedLen(e.code.K()),
		HelperBytes: bits.PackedLen(e.code.N()),
	}
}

// Generate enrolls a biometric descriptor and returns the packed k-bit key
// and the packed n-bit helper data.
func (e *Extractor) Generate(biometric []byte) (key, helper []byte, err error) {
	n, k := e.code.N(), e.code.K()

	seed, err := secure.Random(e.rand, bits.PackedLen(k))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to draw key bits: %w", err)
	}
	keyBits := bits.Fit(seed, k)
	secure.Zero(seed)
	defer secure.Zero(keyBits)

	codeword, err := e.code.Encode(keyBits)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode key: %w", err)
	}
	defer secure.Zero(codeword)

	w := bits.Fit(biometric, n)
	defer secure.Zero(w)

	offset, err := bits.Xor(w, codeword)
	if err != nil {
		return nil, nil, err
	}

	return bits.ToBytes(keyBits), bits.ToBytes(offset), nil
}

// Reproduce recovers the enrollment key from a fresh descriptor and the
// helper data. It returns ErrDecodeFailure when the descriptors differ by
// more bits than the code can correct; no key material is returned then.
func (e *Extractor) Reproduce(biometric, helper []byte) ([]byte, error) {
	n := e.code.N()
	if len(helper) != bits.PackedLen(n) {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidHelper, len(helper), bits.PackedLen(n))
	}

	w := bits.Fit(biometric, n)
	defer secure.Zero(w)

	offset := bits.Fit(helper, n)
	received, err := bits.Xor(w, offset)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(received)

	msg, err := e.code.Decode(received)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(msg)

	return bits.ToBytes(msg), nil
}
