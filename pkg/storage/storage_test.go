package storage

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecord(subject string) *Record {
	return &Record{
		Subject:    subject,
		Modality:   "face",
		N:          255,
		D:          3,
		K:          247,
		Helper:     bytes.Repeat([]byte{0xA5}, 32),
		Salt:       bytes.Repeat([]byte{0x01}, 32),
		Commitment: bytes.Repeat([]byte{0x02}, 32),
		KeyMethod:  "hkdf",
		KeyLength:  32,
	}
}

func TestEnrollmentStoreSaveLoad(t *testing.T) {
	store, err := NewEnrollmentStore(filepath.Join(t.TempDir(), "enrollments"))
	require.NoError(t, err)

	rec := newRecord("alice")
	require.NoError(t, store.Save(rec, false))
	assert.NotEmpty(t, rec.ID)
	assert.False(t, rec.Created.IsZero())
	assert.Len(t, rec.Checksum, 32)

	loaded, err := store.Load("alice")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rec.Helper, loaded.Helper)
	assert.Equal(t, rec.Commitment, loaded.Commitment)
	assert.True(t, rec.Created.Equal(loaded.Created))

	info, err := os.Stat(filepath.Join(store.Dir(), "alice.json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestEnrollmentStoreOverwrite(t *testing.T) {
	store, err := NewEnrollmentStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, store.Save(newRecord("bob"), false))

	err = store.Save(newRecord("bob"), false)
	assert.ErrorIs(t, err, ErrExists)

	replacement := newRecord("bob")
	replacement.Helper = bytes.Repeat([]byte{0x11}, 32)
	require.NoError(t, store.Save(replacement, true))

	loaded, err := store.Load("bob")
	require.NoError(t, err)
	assert.Equal(t, replacement.Helper, loaded.Helper)
}

func TestEnrollmentStoreDetectsTampering(t *testing.T) {
	store, err := NewEnrollmentStore(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, store.Save(newRecord("carol"), false))

	path := filepath.Join(store.Dir(), "carol.json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := bytes.Replace(data, []byte(`"n": 255`), []byte(`"n": 127`), 1)
	require.NotEqual(t, data, tampered)
	require.NoError(t, os.WriteFile(path, tampered, 0600))

	_, err = store.Load("carol")
	assert.ErrorIs(t, err, ErrCorrupted)
}

func TestEnrollmentStoreDeleteAndList(t *testing.T) {
	store, err := NewEnrollmentStore(t.TempDir())
	require.NoError(t, err)

	for _, s := range []string{"zoe", "adam", "mia"} {
		require.NoError(t, store.Save(newRecord(s), false))
	}
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("x"), 0600))

	subjects, err := store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"adam", "mia", "zoe"}, subjects)

	require.NoError(t, store.Delete("mia"))
	assert.False(t, store.Exists("mia"))

	_, err = store.Load("mia")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, store.Delete("mia"), ErrNotFound)

	subjects, err = store.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"adam", "zoe"}, subjects)
}

func TestEnrollmentStoreRejectsEmpty(t *testing.T) {
	_, err := NewEnrollmentStore("")
	assert.Error(t, err)

	store, err := NewEnrollmentStore(t.TempDir())
	require.NoError(t, err)
	assert.Error(t, store.Save(&Record{}, false))
}

func TestSealOpen(t *testing.T) {
	key := bytes.Repeat([]byte{0x3C}, 31)
	plaintext := []byte("case file evidence bundle")

	sealed, err := Seal(plaintext, key, "alice")
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), string(plaintext))

	got, err := Open(sealed, key)
	require.NoError(t, err)
	assert.Equal(t, plaintext, got)

	wrong := append([]byte(nil), key...)
	wrong[0] ^= 1
	_, err = Open(sealed, wrong)
	assert.Error(t, err)

	_, err = Open([]byte("{not json"), key)
	assert.Error(t, err)

	_, err = Seal(plaintext, nil, "alice")
	assert.Error(t, err)
}

func TestSealBindsSubject(t *testing.T) {
	key := bytes.Repeat([]byte{0x77}, 16)
	sealed, err := Seal([]byte("payload"), key, "alice")
	require.NoError(t, err)

	swapped := bytes.Replace(sealed, []byte(`"subject":"alice"`), []byte(`"subject":"mallory"`), 1)
	require.NotEqual(t, sealed, swapped)

	_, err = Open(swapped, key)
	assert.Error(t, err)
}

func TestSealFileOpenFile(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "archive.zip")
	sealedPath := filepath.Join(dir, "out", "archive.zip.sealed")
	outPath := filepath.Join(dir, "restored.zip")

	content := bytes.Repeat([]byte("PK\x03\x04 data "), 100)
	require.NoError(t, os.WriteFile(in, content, 0644))

	key := bytes.Repeat([]byte{0x09}, 31)
	require.NoError(t, SealFile(in, sealedPath, key, "dave"))
	require.NoError(t, OpenFile(sealedPath, outPath, key))

	restored, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, content, restored)

	assert.Error(t, SealFile(filepath.Join(dir, "missing"), sealedPath, key, "dave"))
}
