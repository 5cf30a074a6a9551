package fuzzy

import (
	"bytes"
	"crypto/rand"
	mrand "math/rand"
	"sync"
	"testing"

	"github.com/Davincible/biokey/pkg/crypto/bits"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomDescriptor(t *testing.T, size int) []byte {
	t.Helper()
	b := make([]byte, size)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

// noisy flips the given descriptor bit positions in a copy of b.
func noisy(b []byte, positions ...int) []byte {
	out := append([]byte(nil), b...)
	for _, p := range positions {
		out[p/8] ^= 0x80 >> (p % 8)
	}
	return out
}

func TestParams(t *testing.T) {
	e, err := New(255, 3)
	require.NoError(t, err)

	p := e.Params()
	assert.Equal(t, 255, p.N)
	assert.Equal(t, 3, p.D)
	assert.Equal(t, 247, p.K)
	assert.Equal(t, 1, p.T)
	assert.Equal(t, 8, p.M)
	assert.Equal(t, 31, p.KeyBytes)
	assert.Equal(t, 32, p.HelperBytes)
	assert.Same(t, e.Code(), e.Code())
}

func TestNewRejectsBadConfiguration(t *testing.T) {
	_, err := New(15, 15+1)
	assert.ErrorIs(t, err, ErrConfiguration)

	_, err = New(1, 3)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestZeroNoiseRoundTrip(t *testing.T) {
	configs := []struct{ n, d int }{{255, 3}, {255, 21}, {127, 9}, {200, 11}, {511, 31}, {31, 5}}

	for _, cfg := range configs {
		e, err := New(cfg.n, cfg.d)
		require.NoError(t, err)
		p := e.Params()

		for _, size := range []int{0, 5, p.HelperBytes, 2 * p.HelperBytes} {
			w := randomDescriptor(t, size)

			key, helper, err := e.Generate(w)
			require.NoError(t, err)
			assert.Len(t, key, p.KeyBytes)
			assert.Len(t, helper, p.HelperBytes)

			got, err := e.Reproduce(w, helper)
			require.NoError(t, err, "n=%d d=%d size=%d", cfg.n, cfg.d, size)
			assert.Equal(t, key, got)
		}
	}
}

func TestBoundedNoiseRecovery(t *testing.T) {
	rng := mrand.New(mrand.NewSource(11))
	e, err := New(255, 21)
	require.NoError(t, err)
	p := e.Params()
	require.Equal(t, 10, p.T)

	w := randomDescriptor(t, p.HelperBytes)
	key, helper, err := e.Generate(w)
	require.NoError(t, err)

	for weight := 0; weight <= p.T; weight++ {
		for trial := 0; trial < 5; trial++ {
			wPrime := noisy(w, rng.Perm(p.N)[:weight]...)
			d, err := bits.Distance(bits.Fit(w, p.N), bits.Fit(wPrime, p.N))
			require.NoError(t, err)
			require.Equal(t, weight, d)

			got, err := e.Reproduce(wPrime, helper)
			require.NoError(t, err, "weight %d", weight)
			assert.Equal(t, key, got)
		}
	}
}

func TestBeyondRadius(t *testing.T) {
	rng := mrand.New(mrand.NewSource(12))
	e, err := New(127, 9)
	require.NoError(t, err)
	p := e.Params()

	w := randomDescriptor(t, p.HelperBytes)
	key, helper, err := e.Generate(w)
	require.NoError(t, err)

	for trial := 0; trial < 100; trial++ {
		weight := p.T + 1 + rng.Intn(10)
		got, err := e.Reproduce(noisy(w, rng.Perm(p.N)[:weight]...), helper)
		if err != nil {
			assert.ErrorIs(t, err, ErrDecodeFailure)
			assert.Nil(t, got)
			continue
		}
		assert.Len(t, got, p.KeyBytes)
		assert.NotEqual(t, key, got)
	}
}

func TestBitsBeyondLengthAreIgnored(t *testing.T) {
	// n = 250 uses 250 of 256 descriptor bits and trailing bytes are dropped
	e, err := New(250, 5)
	require.NoError(t, err)

	w := randomDescriptor(t, 40)
	key, helper, err := e.Generate(w)
	require.NoError(t, err)

	changed := noisy(w, 250, 251, 255, 260, 300)
	got, err := e.Reproduce(changed, helper)
	require.NoError(t, err)
	assert.Equal(t, key, got)

	// descriptor shorter than n is zero padded
	short := w[:20]
	key2, helper2, err := e.Generate(short)
	require.NoError(t, err)
	padded := append(append([]byte(nil), short...), make([]byte, 12)...)
	got2, err := e.Reproduce(padded, helper2)
	require.NoError(t, err)
	assert.Equal(t, key2, got2)
}

func TestRandomVectorsDoNotRecoverKey(t *testing.T) {
	e, err := New(63, 11)
	require.NoError(t, err)
	p := e.Params()

	w := randomDescriptor(t, p.HelperBytes)
	key, helper, err := e.Generate(w)
	require.NoError(t, err)

	// a uniform 63-bit vector lands within distance 5 of the enrolled one with
	// probability sum C(63,i), i<=5, over 2^63, about 8e-13
	for i := 0; i < 500; i++ {
		got, err := e.Reproduce(randomDescriptor(t, p.HelperBytes), helper)
		if err == nil {
			assert.NotEqual(t, key, got)
		}
	}
}

func TestReproduceRejectsBadHelper(t *testing.T) {
	e, err := New(255, 3)
	require.NoError(t, err)

	_, err = e.Reproduce([]byte("descriptor"), make([]byte, 31))
	assert.ErrorIs(t, err, ErrInvalidHelper)

	_, err = e.Reproduce([]byte("descriptor"), nil)
	assert.ErrorIs(t, err, ErrInvalidHelper)
}

func TestGenerateIsRandomized(t *testing.T) {
	e, err := New(255, 7)
	require.NoError(t, err)

	w := randomDescriptor(t, 32)
	key1, helper1, err := e.Generate(w)
	require.NoError(t, err)
	key2, helper2, err := e.Generate(w)
	require.NoError(t, err)

	assert.NotEqual(t, key1, key2)
	assert.NotEqual(t, helper1, helper2)
	assert.NotEqual(t, w, helper1, "helper must not expose the descriptor")
}

func TestWithRandomIsDeterministic(t *testing.T) {
	w := []byte("fixed enrollment descriptor 0123")

	e1, err := New(255, 5, WithRandom(mrand.New(mrand.NewSource(42))))
	require.NoError(t, err)
	e2, err := New(255, 5, WithRandom(mrand.New(mrand.NewSource(42))))
	require.NoError(t, err)

	key1, helper1, err := e1.Generate(w)
	require.NoError(t, err)
	key2, helper2, err := e2.Generate(w)
	require.NoError(t, err)

	assert.Equal(t, key1, key2)
	assert.Equal(t, helper1, helper2)
}

func TestKeyPaddingBitsAreZero(t *testing.T) {
	// k = 247 leaves one unused bit in the last key byte
	e, err := New(255, 3, WithRandom(bytes.NewReader(bytes.Repeat([]byte{0xFF}, 31))))
	require.NoError(t, err)

	key, _, err := e.Generate(nil)
	require.NoError(t, err)
	require.Len(t, key, 31)
	assert.Equal(t, byte(0xFE), key[30])
}

func TestGenerateFailsOnRandomError(t *testing.T) {
	e, err := New(255, 3, WithRandom(bytes.NewReader(nil)))
	require.NoError(t, err)

	key, helper, err := e.Generate([]byte("w"))
	assert.Error(t, err)
	assert.Nil(t, key)
	assert.Nil(t, helper)
}

func TestConcurrentUse(t *testing.T) {
	e, err := New(255, 11)
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := make([]byte, 32)
			if _, err := rand.Read(w); err != nil {
				errs <- err
				return
			}
			key, helper, err := e.Generate(w)
			if err != nil {
				errs <- err
				return
			}
			got, err := e.Reproduce(noisy(w, 3, 77, 200), helper)
			if err != nil {
				errs <- err
				return
			}
			if !bytes.Equal(key, got) {
				errs <- assert.AnError
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
