// Package escrow splits an extractor key into Shamir shares so that an
// enrollment can be recovered when the biometric itself no longer matches,
// for example after injury or sensor replacement.
package escrow

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/hashicorp/vault/shamir"
)

// Share is one escrow share. Data carries the share bytes as produced by the
// vault implementation, whose last byte is the x-coordinate.
type Share struct {
	Index byte
	Data  []byte
}

type Config struct {
	Parts     int `json:"parts"`
	Threshold int `json:"threshold"`
}

func (c *Config) Validate() error {
	if c.Parts < 2 {
		return fmt.Errorf("parts must be at least 2, got %d", c.Parts)
	}
	if c.Threshold < 2 {
		return fmt.Errorf("threshold must be at least 2, got %d", c.Threshold)
	}
	if c.Threshold > c.Parts {
		return fmt.Errorf("threshold (%d) cannot be greater than parts (%d)", c.Threshold, c.Parts)
	}
	if c.Parts > 255 {
		return fmt.Errorf("parts cannot exceed 255, got %d", c.Parts)
	}
	return nil
}

func Split(key []byte, config Config) ([]Share, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid escrow config: %w", err)
	}
	if len(key) == 0 {
		return nil, fmt.Errorf("key cannot be empty")
	}

	parts, err := shamir.Split(key, config.Parts, config.Threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split key: %w", err)
	}

	shares := make([]Share, len(parts))
	for i, p := range parts {
		shares[i] = Share{
			Index: p[len(p)-1],
			Data:  p,
		}
	}
	return shares, nil
}

func Combine(shares []Share) ([]byte, error) {
	if len(shares) < 2 {
		return nil, fmt.Errorf("at least 2 shares are required for recovery")
	}

	parts := make([][]byte, len(shares))
	for i, s := range shares {
		if len(s.Data) < 2 {
			return nil, fmt.Errorf("share %d is too short", s.Index)
		}
		parts[i] = s.Data
	}

	key, err := shamir.Combine(parts)
	if err != nil {
		return nil, fmt.Errorf("failed to combine shares: %w", err)
	}
	return key, nil
}

// String encodes the share as hex.
func (s Share) String() string {
	return hex.EncodeToString(s.Data)
}

// ParseShare decodes a hex share produced by Share.String.
func ParseShare(encoded string) (Share, error) {
	data, err := hex.DecodeString(strings.TrimSpace(encoded))
	if err != nil {
		return Share{}, fmt.Errorf("invalid share encoding: %w", err)
	}
	if len(data) < 2 {
		return Share{}, fmt.Errorf("share is too short")
	}
	return Share{Index: data[len(data)-1], Data: data}, nil
}
