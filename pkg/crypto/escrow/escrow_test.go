package escrow

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitAndCombine(t *testing.T) {
	tests := []struct {
		name      string
		key       []byte
		parts     int
		threshold int
	}{
		{"extractor key 2 of 3", bytes.Repeat([]byte{0x5A}, 31), 3, 2},
		{"cipher key 3 of 5", bytes.Repeat([]byte{0x42}, 32), 5, 3},
		{"short key 4 of 4", []byte{1, 2, 3}, 4, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shares, err := Split(tt.key, Config{Parts: tt.parts, Threshold: tt.threshold})
			require.NoError(t, err)
			assert.Len(t, shares, tt.parts)

			seen := map[byte]bool{}
			for _, s := range shares {
				assert.Len(t, s.Data, len(tt.key)+1)
				assert.False(t, seen[s.Index], "duplicate share index")
				seen[s.Index] = true
			}

			got, err := Combine(shares[:tt.threshold])
			require.NoError(t, err)
			assert.Equal(t, tt.key, got)

			got, err = Combine(shares[tt.parts-tt.threshold:])
			require.NoError(t, err)
			assert.Equal(t, tt.key, got)
		})
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantError bool
	}{
		{"valid", Config{Parts: 5, Threshold: 3}, false},
		{"parts too small", Config{Parts: 1, Threshold: 1}, true},
		{"threshold too small", Config{Parts: 5, Threshold: 1}, true},
		{"threshold above parts", Config{Parts: 3, Threshold: 5}, true},
		{"parts above maximum", Config{Parts: 256, Threshold: 100}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSplitRejectsEmptyKey(t *testing.T) {
	_, err := Split(nil, Config{Parts: 3, Threshold: 2})
	assert.Error(t, err)
}

func TestCombineRejectsBadShares(t *testing.T) {
	shares, err := Split([]byte("key material"), Config{Parts: 3, Threshold: 2})
	require.NoError(t, err)

	_, err = Combine(shares[:1])
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "at least 2 shares")

	_, err = Combine([]Share{{Index: 1, Data: []byte{1}}, shares[1]})
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "too short")
}

func TestShareEncoding(t *testing.T) {
	shares, err := Split([]byte("escrowed key"), Config{Parts: 3, Threshold: 2})
	require.NoError(t, err)

	parsed := make([]Share, 0, 2)
	for _, s := range shares[1:] {
		p, err := ParseShare(" " + s.String() + "\n")
		require.NoError(t, err)
		assert.Equal(t, s, p)
		parsed = append(parsed, p)
	}

	got, err := Combine(parsed)
	require.NoError(t, err)
	assert.Equal(t, []byte("escrowed key"), got)

	_, err = ParseShare("zz")
	assert.Error(t, err)
	_, err = ParseShare("ab")
	assert.Error(t, err)
}
