package cli

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"syscall"

	"github.com/Davincible/biokey/internal/validation"
	"github.com/Davincible/biokey/pkg/config"
	"github.com/Davincible/biokey/pkg/crypto/fuzzy"
	"github.com/Davincible/biokey/pkg/crypto/keyderive"
	"github.com/Davincible/biokey/pkg/secure"
	"github.com/Davincible/biokey/pkg/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// descriptorFlags are shared by every command that consumes a biometric
// descriptor.
type descriptorFlags struct {
	hex   string
	file  string
	stdin bool
}

func (f *descriptorFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.hex, "descriptor-hex", "", "Biometric descriptor as hex")
	cmd.Flags().StringVar(&f.file, "descriptor-file", "", "Read the raw descriptor bytes from a file")
	cmd.Flags().BoolVar(&f.stdin, "stdin", false, "Read the descriptor as hex from stdin")
	cmd.MarkFlagsMutuallyExclusive("descriptor-hex", "descriptor-file", "stdin")
}

// read returns the descriptor bytes. Without any flag the user is prompted
// for hex input, which is not echoed on a terminal.
func (f *descriptorFlags) read(in io.Reader) ([]byte, error) {
	switch {
	case f.file != "":
		data, err := os.ReadFile(f.file)
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor file: %w", err)
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("descriptor file %s is empty", f.file)
		}
		return data, nil
	case f.hex != "":
		return decodeDescriptor(f.hex)
	case f.stdin:
		data, err := io.ReadAll(in)
		if err != nil {
			return nil, fmt.Errorf("failed to read stdin: %w", err)
		}
		defer secure.Zero(data)
		return decodeDescriptor(string(data))
	default:
		return readDescriptorInteractive(in)
	}
}

func decodeDescriptor(input string) ([]byte, error) {
	input = validation.NormalizeHex(input)
	if err := validation.ValidateHex(input); err != nil {
		return nil, fmt.Errorf("invalid descriptor: %w", err)
	}
	return hex.DecodeString(input)
}

func readDescriptorInteractive(in io.Reader) ([]byte, error) {
	fmt.Fprint(os.Stderr, "Enter biometric descriptor (hex): ")

	if in == os.Stdin && term.IsTerminal(int(syscall.Stdin)) {
		input, err := term.ReadPassword(int(syscall.Stdin))
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return nil, err
		}
		defer secure.Zero(input)
		return decodeDescriptor(string(input))
	}

	// Fallback for non-terminal
	reader := bufio.NewReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && err != io.EOF {
		return nil, err
	}
	return decodeDescriptor(strings.TrimSpace(input))
}

// loadConfig honours the persistent --config flag before falling back to the
// default lookup.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")

	var (
		cm  *config.ConfigManager
		err error
	)
	if path != "" {
		cm, err = config.NewConfigManagerAt(path)
	} else {
		cm, err = config.NewConfigManager()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	cfg := cm.GetConfig()
	if !cfg.UI.UseColor {
		color.NoColor = true
	}
	slog.Debug("Loaded config", "path", cm.Path())
	return cfg, nil
}

func openStore(cfg *config.Config) (*storage.EnrollmentStore, error) {
	dir, err := cfg.StoreDir()
	if err != nil {
		return nil, err
	}
	return storage.NewEnrollmentStore(dir)
}

func loadRecord(cmd *cobra.Command, subject string) (*storage.Record, error) {
	if err := validation.ValidateSubjectID(subject); err != nil {
		return nil, err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}
	return store.Load(subject)
}

// reproduceKey runs the extractor for rec and returns the cipher key once the
// reproduced key matches the stored commitment.
func reproduceKey(rec *storage.Record, descriptor []byte) ([]byte, error) {
	ext, err := fuzzy.New(rec.N, rec.D)
	if err != nil {
		return nil, fmt.Errorf("enrollment %s: %w", rec.Subject, err)
	}

	key, err := ext.Reproduce(descriptor, rec.Helper)
	if err != nil {
		return nil, err
	}
	defer secure.Zero(key)

	if !keyderive.VerifyCommitment(key, rec.Salt, rec.Commitment) {
		return nil, storage.ErrKeyMismatch
	}

	method, err := keyderive.ParseMethod(rec.KeyMethod)
	if err != nil {
		return nil, err
	}
	return keyderive.CipherKey(key, rec.Salt, method, rec.KeyLength)
}

func outputJSONResult(w io.Writer, result interface{}) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(result)
}

func jsonFlag(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// printWords prints a mnemonic four words per line.
func printWords(w io.Writer, words string) {
	fields := strings.Fields(words)
	for i := 0; i < len(fields); i += 4 {
		end := i + 4
		if end > len(fields) {
			end = len(fields)
		}
		fmt.Fprintf(w, "  %s\n", strings.Join(fields[i:end], " "))
	}
}
