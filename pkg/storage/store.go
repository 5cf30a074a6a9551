// Package storage persists enrollment records and seals payloads under keys
// reproduced by the fuzzy extractor.
//
// Records hold only public data: code parameters, helper data, and a salted
// commitment to the key. Neither the key nor the biometric descriptor is ever
// written.
package storage

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/Davincible/biokey/pkg/secure"
	"github.com/google/uuid"
)

const recordExt = ".json"

var (
	ErrNotFound = errors.New("enrollment not found")
	ErrExists   = errors.New("enrollment already exists")
	// ErrKeyMismatch means a reproduced key did not match the enrolled
	// commitment, which happens when noise beyond the correction radius was
	// decoded to a different codeword.
	ErrKeyMismatch = errors.New("reproduced key does not match enrollment")
	ErrCorrupted   = errors.New("enrollment record checksum mismatch")
)

// Record is the persisted, non-secret half of an enrollment.
type Record struct {
	ID         string    `json:"id"`
	Subject    string    `json:"subject"`
	Modality   string    `json:"modality,omitempty"`
	N          int       `json:"n"`
	D          int       `json:"d"`
	K          int       `json:"k"`
	Helper     []byte    `json:"helper"`
	Salt       []byte    `json:"salt"`
	Commitment []byte    `json:"commitment"`
	KeyMethod  string    `json:"key_method"`
	KeyLength  int       `json:"key_length"`
	Created    time.Time `json:"created"`
	Checksum   []byte    `json:"checksum_sha256"`
}

// EnrollmentStore keeps one JSON file per subject in a directory.
type EnrollmentStore struct {
	dir string
}

func NewEnrollmentStore(dir string) (*EnrollmentStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("store directory cannot be empty")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	return &EnrollmentStore{dir: dir}, nil
}

func (s *EnrollmentStore) Dir() string { return s.dir }

// Save writes rec. Unless overwrite is set an existing enrollment for the
// same subject is an error.
func (s *EnrollmentStore) Save(rec *Record, overwrite bool) error {
	if rec.Subject == "" {
		return fmt.Errorf("record subject cannot be empty")
	}
	if !overwrite && s.Exists(rec.Subject) {
		return fmt.Errorf("%w: %s", ErrExists, rec.Subject)
	}

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Created.IsZero() {
		rec.Created = time.Now().UTC()
	}
	if err := rec.seal(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	path := s.path(rec.Subject)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to commit record: %w", err)
	}
	return nil
}

// Load reads the enrollment for subject and verifies its checksum.
func (s *EnrollmentStore) Load(subject string) (*Record, error) {
	data, err := os.ReadFile(s.path(subject))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, subject)
		}
		return nil, fmt.Errorf("failed to read record: %w", err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to parse record: %w", err)
	}
	if err := rec.verify(); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *EnrollmentStore) Exists(subject string) bool {
	_, err := os.Stat(s.path(subject))
	return err == nil
}

// Delete overwrites the record with random bytes before removing it.
func (s *EnrollmentStore) Delete(subject string) error {
	path := s.path(subject)
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, subject)
		}
		return err
	}

	junk := make([]byte, info.Size())
	if _, err := rand.Read(junk); err != nil {
		return fmt.Errorf("failed to overwrite record: %w", err)
	}
	if err := os.WriteFile(path, junk, 0600); err != nil {
		return fmt.Errorf("failed to overwrite record: %w", err)
	}
	return os.Remove(path)
}

// List returns all subjects with a record, sorted.
func (s *EnrollmentStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read store directory: %w", err)
	}

	var subjects []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, recordExt) {
			continue
		}
		subjects = append(subjects, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(subjects)
	return subjects, nil
}

func (s *EnrollmentStore) path(subject string) string {
	return filepath.Join(s.dir, filepath.Base(subject)+recordExt)
}

func (r *Record) checksum() ([]byte, error) {
	tmp := *r
	tmp.Checksum = nil
	data, err := json.Marshal(tmp)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal record for checksum: %w", err)
	}
	sum := sha256.Sum256(data)
	return sum[:], nil
}

func (r *Record) seal() error {
	sum, err := r.checksum()
	if err != nil {
		return err
	}
	r.Checksum = sum
	return nil
}

func (r *Record) verify() error {
	if len(r.Checksum) == 0 {
		return fmt.Errorf("%w: missing checksum", ErrCorrupted)
	}
	sum, err := r.checksum()
	if err != nil {
		return err
	}
	if !secure.ConstantTimeCompare(sum, r.Checksum) {
		return fmt.Errorf("%w: %s", ErrCorrupted, r.Subject)
	}
	return nil
}
