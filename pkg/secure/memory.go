// Package secure holds helpers for handling key and biometric material in
// memory: zeroing, constant-time comparison and random draws.
package secure

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"
	"io"
	"runtime"
)

// Zero overwrites b with zeros.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
	runtime.KeepAlive(b)
}

// ZeroAll zeroes every slice given.
func ZeroAll(bufs ...[]byte) {
	for _, b := range bufs {
		Zero(b)
	}
}

func ConstantTimeCompare(x, y []byte) bool {
	if len(x) != len(y) {
		return false
	}
	return subtle.ConstantTimeCompare(x, y) == 1
}

// Random reads size bytes from r, or from crypto/rand when r is nil. On a
// short read the partial buffer is wiped before returning the error.
func Random(r io.Reader, size int) ([]byte, error) {
	if size < 0 {
		return nil, fmt.Errorf("invalid random length: %d", size)
	}
	if r == nil {
		r = rand.Reader
	}
	b := make([]byte, size)
	if _, err := io.ReadFull(r, b); err != nil {
		Zero(b)
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}
