package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Davincible/biokey/pkg/config"
	"github.com/Davincible/biokey/pkg/crypto/fuzzy"
	"github.com/Davincible/biokey/pkg/storage"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t       *testing.T
	dir     string
	cfgPath string
}

// newTestEnv writes a config using BCH(255, d=21), t=10, and a store inside
// a temporary directory.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.json")

	cm, err := config.NewConfigManagerAt(cfgPath)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Code.D = 21
	cfg.Storage.Dir = filepath.Join(dir, "enrollments")
	cfg.UI.UseColor = false
	require.NoError(t, cm.SetConfig(cfg))
	require.NoError(t, cm.SaveConfig())

	return &testEnv{t: t, dir: dir, cfgPath: cfgPath}
}

func (e *testEnv) run(stdin string, args ...string) (string, error) {
	e.t.Helper()

	root := NewRootCommand("test", nil)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append(args, "--config", e.cfgPath))

	err := root.Execute()
	return out.String(), err
}

func (e *testEnv) runJSON(v interface{}, args ...string) {
	e.t.Helper()
	out, err := e.run("", append(args, "--json")...)
	require.NoError(e.t, err)
	require.NoError(e.t, json.Unmarshal([]byte(out), v), out)
}

func randomDescriptor(seed int64) []byte {
	d := make([]byte, 32)
	rand.New(rand.NewSource(seed)).Read(d)
	return d
}

// flipped returns a copy of d with the given MSB-first bit positions flipped.
func flipped(d []byte, positions ...int) string {
	out := append([]byte(nil), d...)
	for _, p := range positions {
		out[p/8] ^= 0x80 >> (p % 8)
	}
	return hex.EncodeToString(out)
}

func TestEnrollVerifyWorkflow(t *testing.T) {
	env := newTestEnv(t)
	desc := randomDescriptor(1)

	var enrolled EnrollResult
	env.runJSON(&enrolled, "enroll", "alice", "--descriptor-hex", hex.EncodeToString(desc), "--modality", "face", "--show-key")
	assert.Equal(t, "alice", enrolled.Subject)
	assert.Equal(t, 255, enrolled.Params.N)
	assert.Equal(t, 10, enrolled.Params.T)
	assert.Len(t, enrolled.CipherKey, 64)
	assert.NotEmpty(t, enrolled.ID)

	t.Run("exact descriptor", func(t *testing.T) {
		var res VerifyResult
		env.runJSON(&res, "verify", "alice", "--descriptor-hex", hex.EncodeToString(desc), "--show-key")
		assert.True(t, res.Match)
		assert.Equal(t, enrolled.CipherKey, res.CipherKey)
	})

	t.Run("noise within radius", func(t *testing.T) {
		var res VerifyResult
		env.runJSON(&res, "verify", "alice", "--descriptor-hex", flipped(desc, 0, 17, 63, 100, 128, 200, 211, 230, 250, 254), "--show-key")
		assert.Equal(t, enrolled.CipherKey, res.CipherKey)
	})

	t.Run("padding bit ignored", func(t *testing.T) {
		var res VerifyResult
		env.runJSON(&res, "verify", "alice", "--descriptor-hex", flipped(desc, 255), "--show-key")
		assert.Equal(t, enrolled.CipherKey, res.CipherKey)
	})

	t.Run("different person", func(t *testing.T) {
		_, err := env.run("", "verify", "alice", "--descriptor-hex", hex.EncodeToString(randomDescriptor(2)))
		require.Error(t, err)
		assert.True(t, isRejection(err), "unexpected error: %v", err)
	})

	t.Run("descriptor from stdin", func(t *testing.T) {
		out, err := env.run(hex.EncodeToString(desc)+"\n", "verify", "alice", "--stdin")
		require.NoError(t, err)
		assert.Contains(t, out, "matches enrollment")
	})

	t.Run("descriptor prompt", func(t *testing.T) {
		_, err := env.run(flipped(desc, 3)+"\n", "verify", "alice")
		require.NoError(t, err)
	})
}

func isRejection(err error) bool {
	return errors.Is(err, fuzzy.ErrDecodeFailure) || errors.Is(err, storage.ErrKeyMismatch)
}

func TestEnrollExistingSubject(t *testing.T) {
	env := newTestEnv(t)
	desc := hex.EncodeToString(randomDescriptor(3))

	_, err := env.run("", "enroll", "bob", "--descriptor-hex", desc)
	require.NoError(t, err)

	_, err = env.run("", "enroll", "bob", "--descriptor-hex", desc)
	assert.ErrorIs(t, err, storage.ErrExists)

	_, err = env.run("", "enroll", "bob", "--descriptor-hex", desc, "--force")
	assert.NoError(t, err)
}

func TestEnrollRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)
	desc := hex.EncodeToString(randomDescriptor(4))

	tests := []struct {
		name string
		args []string
	}{
		{"bad subject", []string{"enroll", "../etc", "--descriptor-hex", desc}},
		{"bad modality", []string{"enroll", "x", "--modality", "iris", "--descriptor-hex", desc}},
		{"bad hex", []string{"enroll", "x", "--descriptor-hex", "xyz"}},
		{"bad code", []string{"enroll", "x", "--n", "15", "--d", "16", "--descriptor-hex", desc}},
		{"bad key length", []string{"enroll", "x", "--key-length", "20", "--descriptor-hex", desc}},
		{"bad method", []string{"enroll", "x", "--key-method", "xor", "--descriptor-hex", desc}},
		{"bad escrow", []string{"enroll", "x", "--escrow", "--escrow-parts", "2", "--escrow-threshold", "3", "--descriptor-hex", desc}},
		{"two sources", []string{"enroll", "x", "--stdin", "--descriptor-hex", desc}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.run("", tt.args...)
			assert.Error(t, err)
		})
	}

	_, err := os.Stat(filepath.Join(env.dir, "enrollments", "x.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestSealOpenWorkflow(t *testing.T) {
	env := newTestEnv(t)
	desc := randomDescriptor(5)

	var enrolled EnrollResult
	env.runJSON(&enrolled, "enroll", "carol", "--descriptor-hex", hex.EncodeToString(desc), "--show-key", "--mnemonic")

	plain := filepath.Join(env.dir, "report.txt")
	sealed := filepath.Join(env.dir, "report.txt.sealed")
	content := []byte("quarterly access log\n")
	require.NoError(t, os.WriteFile(plain, content, 0600))

	_, err := env.run("", "seal", "carol", plain, sealed, "--descriptor-hex", flipped(desc, 5, 6, 7))
	require.NoError(t, err)

	tests := []struct {
		name string
		args []string
	}{
		{"noisy descriptor", []string{"--descriptor-hex", flipped(desc, 100, 101)}},
		{"recovered key", []string{"--key-hex", enrolled.CipherKey}},
		{"backup words", []string{"--words", enrolled.Mnemonic}},
	}

	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restored := filepath.Join(env.dir, "restored", string(rune('a'+i)))
			args := append([]string{"open", "carol", sealed, restored}, tt.args...)
			_, err := env.run("", args...)
			require.NoError(t, err)

			got, err := os.ReadFile(restored)
			require.NoError(t, err)
			assert.Equal(t, content, got)
		})
	}

	t.Run("wrong descriptor", func(t *testing.T) {
		_, err := env.run("", "open", "carol", sealed, filepath.Join(env.dir, "nope"), "--descriptor-hex", hex.EncodeToString(randomDescriptor(6)))
		assert.Error(t, err)
	})
}

func TestEscrowCombine(t *testing.T) {
	env := newTestEnv(t)

	var enrolled EnrollResult
	env.runJSON(&enrolled, "enroll", "dave", "--descriptor-hex", hex.EncodeToString(randomDescriptor(7)),
		"--show-key", "--escrow", "--escrow-parts", "5", "--escrow-threshold", "3")
	require.Len(t, enrolled.EscrowShares, 5)
	assert.Equal(t, 3, enrolled.Threshold)

	var combined CombineResult
	env.runJSON(&combined, "escrow", "combine", enrolled.EscrowShares[4], enrolled.EscrowShares[0], enrolled.EscrowShares[2])
	assert.Equal(t, enrolled.CipherKey, combined.CipherKey)

	out, err := env.run(strings.Join(enrolled.EscrowShares[1:4], "\n")+"\n", "escrow", "combine", "--stdin", "--json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &combined))
	assert.Equal(t, enrolled.CipherKey, combined.CipherKey)

	_, err = env.run("", "escrow", "combine", enrolled.EscrowShares[0])
	assert.Error(t, err)

	_, err = env.run("", "escrow", "combine", "zz", enrolled.EscrowShares[0])
	assert.Error(t, err)
}

func TestListAndRevoke(t *testing.T) {
	env := newTestEnv(t)
	for i, s := range []string{"erin", "frank"} {
		_, err := env.run("", "enroll", s, "--descriptor-hex", hex.EncodeToString(randomDescriptor(int64(10+i))))
		require.NoError(t, err)
	}

	var listed []EnrollmentSummary
	env.runJSON(&listed, "list")
	require.Len(t, listed, 2)
	assert.Equal(t, "erin", listed[0].Subject)
	assert.Equal(t, 255, listed[1].N)

	out, err := env.run("n\n", "revoke", "erin")
	require.NoError(t, err)
	assert.Contains(t, out, "cancelled")

	_, err = env.run("yes\n", "revoke", "erin")
	require.NoError(t, err)

	_, err = env.run("", "revoke", "frank", "--force")
	require.NoError(t, err)

	_, err = env.run("", "verify", "frank", "--descriptor-hex", hex.EncodeToString(randomDescriptor(11)))
	assert.ErrorIs(t, err, storage.ErrNotFound)

	out, err = env.run("", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No enrollments found")
}

func TestParamsCommand(t *testing.T) {
	env := newTestEnv(t)

	var res ParamsResult
	env.runJSON(&res, "params", "--n", "15", "--d", "5")
	assert.Equal(t, 7, res.K)
	assert.Equal(t, 2, res.T)
	assert.Equal(t, 4, res.M)
	assert.Equal(t, "x^8 + x^7 + x^6 + x^4 + 1", res.Generator)

	env.runJSON(&res, "params")
	assert.Equal(t, 255, res.N)
	assert.Equal(t, 10, res.T)
	assert.Equal(t, 32, res.HelperBytes)

	_, err := env.run("", "params", "--n", "2")
	assert.Error(t, err)
}

func TestRunSimulation(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	ext, err := fuzzy.New(255, 21, fuzzy.WithRandom(rng))
	require.NoError(t, err)

	calls := 0
	res, err := runSimulation(ext, rng, 10, 25, func() { calls++ })
	require.NoError(t, err)
	assert.Equal(t, 25, calls)
	assert.Equal(t, 25, res.Recovered)
	assert.Zero(t, res.Failed+res.Miscorrected)
	assert.Equal(t, 1.0, res.SuccessRate)

	res, err = runSimulation(ext, rng, 40, 25, nil)
	require.NoError(t, err)
	assert.Equal(t, 25, res.Recovered+res.Failed+res.Miscorrected)
	assert.Less(t, res.Recovered, 25)

	_, err = runSimulation(ext, rng, 256, 1, nil)
	assert.Error(t, err)
	_, err = runSimulation(ext, rng, 1, 0, nil)
	assert.Error(t, err)
}

func TestSimulateCommand(t *testing.T) {
	env := newTestEnv(t)

	var res SimulationResult
	env.runJSON(&res, "simulate", "--n", "63", "--d", "11", "--trials", "10", "--seed", "9")
	assert.Equal(t, 5, res.Flips)
	assert.Equal(t, 10, res.Recovered)
	assert.Equal(t, int64(9), res.Seed)
}
