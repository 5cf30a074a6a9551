package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Davincible/biokey/pkg/crypto/keyderive"
	"github.com/Davincible/biokey/pkg/secure"
)

const (
	SaltSize    = 32
	NonceSize   = 12
	KeySize     = 32
	sealVersion = 1
	sealInfo    = "biokey/v1 sealed payload"
)

// SealedData is the on-disk form of a sealed payload.
type SealedData struct {
	Version    int    `json:"version"`
	Subject    string `json:"subject,omitempty"`
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Seal encrypts plaintext with AES-256-GCM under a key expanded from the
// extractor key with a fresh salt. The subject is bound as associated data.
func Seal(plaintext, key []byte, subject string) ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	gcm, err := newGCM(key, salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, NonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := SealedData{
		Version:    sealVersion,
		Subject:    subject,
		Salt:       salt,
		Nonce:      nonce,
		Ciphertext: gcm.Seal(nil, nonce, plaintext, []byte(subject)),
	}

	data, err := json.Marshal(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sealed data: %w", err)
	}
	return data, nil
}

// Open reverses Seal.
func Open(data, key []byte) ([]byte, error) {
	var sealed SealedData
	if err := json.Unmarshal(data, &sealed); err != nil {
		return nil, fmt.Errorf("failed to parse sealed data: %w", err)
	}
	if sealed.Version != sealVersion {
		return nil, fmt.Errorf("unsupported sealed data version %d", sealed.Version)
	}
	if len(sealed.Nonce) != NonceSize {
		return nil, fmt.Errorf("invalid nonce length %d", len(sealed.Nonce))
	}

	gcm, err := newGCM(key, sealed.Salt)
	if err != nil {
		return nil, err
	}

	plaintext, err := gcm.Open(nil, sealed.Nonce, sealed.Ciphertext, []byte(sealed.Subject))
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// SealFile seals the file at in and writes the result to out with 0600
// permissions.
func SealFile(in, out string, key []byte, subject string) error {
	plaintext, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	defer secure.Zero(plaintext)

	sealed, err := Seal(plaintext, key, subject)
	if err != nil {
		return err
	}
	return writePrivate(out, sealed)
}

// OpenFile opens the sealed file at in and writes the plaintext to out.
func OpenFile(in, out string, key []byte) error {
	data, err := os.ReadFile(in)
	if err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	plaintext, err := Open(data, key)
	if err != nil {
		return err
	}
	defer secure.Zero(plaintext)

	return writePrivate(out, plaintext)
}

func newGCM(key, salt []byte) (cipher.AEAD, error) {
	aesKey, err := keyderive.Expand(key, salt, sealInfo, KeySize)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(aesKey)

	block, err := aes.NewCipher(aesKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

func writePrivate(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
