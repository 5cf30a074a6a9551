package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/Davincible/biokey/pkg/crypto/bch"
	"github.com/Davincible/biokey/pkg/crypto/keyderive"
)

var (
	hexPattern     = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	subjectPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,127}$`)
)

var modalities = []string{"face", "fingerprint", "voice", "other"}

func ValidateHex(input string) error {
	input = strings.TrimSpace(input)
	if len(input) == 0 {
		return fmt.Errorf("hex string cannot be empty")
	}

	if len(input)%2 != 0 {
		return fmt.Errorf("hex string must have even length")
	}

	if !hexPattern.MatchString(input) {
		return fmt.Errorf("invalid hex characters")
	}

	return nil
}

// ValidateSubjectID checks an opaque subject identifier. Identifiers become
// file names, so path separators and leading dots are rejected.
func ValidateSubjectID(subject string) error {
	if subject == "" {
		return fmt.Errorf("subject id cannot be empty")
	}
	if !subjectPattern.MatchString(subject) {
		return fmt.Errorf("invalid subject id %q: use letters, digits, '.', '_' or '-' (max 128, not starting with a symbol)", subject)
	}
	return nil
}

// ValidateCodeParams checks the cheap bounds on (n, d). Whether a generator
// polynomial fits is only known once the code is built.
func ValidateCodeParams(n, d int) error {
	if n < bch.MinLength || n > bch.MaxLength {
		return fmt.Errorf("n must be between %d and %d (got %d)", bch.MinLength, bch.MaxLength, n)
	}
	if d < 2 || d > n {
		return fmt.Errorf("d must be between 2 and n=%d (got %d)", n, d)
	}
	return nil
}

func ValidateKeyLength(length int) error {
	if !keyderive.ValidKeyLength(length) {
		return fmt.Errorf("key length must be 16, 24 or 32 bytes (got %d)", length)
	}
	return nil
}

func ValidateKeyMethod(method string) error {
	_, err := keyderive.ParseMethod(method)
	return err
}

func ValidateEscrowParams(parts, threshold int) error {
	if parts < 2 || parts > 255 {
		return fmt.Errorf("parts must be between 2 and 255 (got %d)", parts)
	}

	if threshold < 2 || threshold > parts {
		return fmt.Errorf("threshold must be between 2 and %d (got %d)", parts, threshold)
	}

	return nil
}

func ValidateModality(modality string) error {
	if modality == "" {
		return nil
	}
	for _, m := range modalities {
		if modality == m {
			return nil
		}
	}
	return fmt.Errorf("unknown modality %q (want one of %s)", modality, strings.Join(modalities, ", "))
}

// NormalizeHex strips whitespace and an optional 0x prefix from a hex
// descriptor.
func NormalizeHex(input string) string {
	input = strings.Join(strings.Fields(input), "")
	input = strings.TrimPrefix(input, "0x")
	return strings.TrimPrefix(input, "0X")
}
