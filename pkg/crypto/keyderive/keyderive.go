// Package keyderive turns the variable-length key produced by the fuzzy
// extractor into fixed-length symmetric keys, key commitments and paper
// backups.
package keyderive

import (
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"io"
	"strings"

	"github.com/Davincible/biokey/pkg/secure"
	"github.com/tyler-smith/go-bip39"
	"golang.org/x/crypto/hkdf"
)

// Method selects how an extractor key is adjusted to a cipher key length.
type Method string

const (
	// MethodHKDF expands the key with HKDF-SHA256. This is the default.
	MethodHKDF Method = "hkdf"
	// MethodPad zero-pads or truncates the key, matching keys produced by
	// older deployments.
	MethodPad Method = "pad"
)

const (
	SaltSize       = 32
	CommitmentSize = 32

	infoCipherKey  = "biokey/v1 cipher key"
	infoCommitment = "biokey/v1 key commitment"
)

// ValidKeyLength reports whether n is an AES key length.
func ValidKeyLength(n int) bool {
	return n == 16 || n == 24 || n == 32
}

// ParseMethod parses a method name; the empty string means MethodHKDF.
func ParseMethod(s string) (Method, error) {
	switch Method(strings.ToLower(strings.TrimSpace(s))) {
	case "", MethodHKDF:
		return MethodHKDF, nil
	case MethodPad:
		return MethodPad, nil
	default:
		return "", fmt.Errorf("unknown key derivation method %q (want hkdf or pad)", s)
	}
}

// Fit zero-pads or truncates key to length bytes.
func Fit(key []byte, length int) []byte {
	out := make([]byte, length)
	copy(out, key)
	return out
}

// Expand derives length bytes from key with HKDF-SHA256.
func Expand(key, salt []byte, info string, length int) ([]byte, error) {
	if len(key) == 0 {
		return nil, fmt.Errorf("key cannot be empty")
	}
	if length <= 0 || length > 255*sha256.Size {
		return nil, fmt.Errorf("invalid output length: %d", length)
	}

	out := make([]byte, length)
	r := hkdf.New(sha256.New, key, salt, []byte(info))
	if _, err := io.ReadFull(r, out); err != nil {
		secure.Zero(out)
		return nil, fmt.Errorf("failed to expand key: %w", err)
	}
	return out, nil
}

// CipherKey adjusts an extractor key to a cipher key of the given length.
func CipherKey(key, salt []byte, method Method, length int) ([]byte, error) {
	if !ValidKeyLength(length) {
		return nil, fmt.Errorf("key length must be 16, 24 or 32 bytes, got %d", length)
	}
	switch method {
	case MethodPad:
		return Fit(key, length), nil
	case MethodHKDF, "":
		return Expand(key, salt, infoCipherKey, length)
	default:
		return nil, fmt.Errorf("unknown key derivation method %q", method)
	}
}

// Commitment binds key to salt so a later reproduction can be checked
// without storing the key.
func Commitment(key, salt []byte) ([]byte, error) {
	return Expand(key, salt, infoCommitment, CommitmentSize)
}

// VerifyCommitment recomputes the commitment for key and compares it in
// constant time.
func VerifyCommitment(key, salt, commitment []byte) bool {
	got, err := Commitment(key, salt)
	if err != nil {
		return false
	}
	defer secure.Zero(got)
	return hmac.Equal(got, commitment)
}

// ToMnemonic renders a 16-32 byte key, length a multiple of 4, as BIP39
// words for offline backup.
func ToMnemonic(key []byte) (string, error) {
	if len(key) < 16 || len(key) > 32 || len(key)%4 != 0 {
		return "", fmt.Errorf("key of %d bytes cannot be rendered as a mnemonic", len(key))
	}
	words, err := bip39.NewMnemonic(key)
	if err != nil {
		return "", fmt.Errorf("failed to build mnemonic: %w", err)
	}
	return words, nil
}

// FromMnemonic parses words produced by ToMnemonic back into the key.
func FromMnemonic(words string) ([]byte, error) {
	words = strings.Join(strings.Fields(words), " ")
	key, err := bip39.EntropyFromMnemonic(words)
	if err != nil {
		return nil, fmt.Errorf("invalid mnemonic: %w", err)
	}
	return key, nil
}
