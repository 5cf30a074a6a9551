package cli

import (
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Davincible/biokey/pkg/crypto/fuzzy"
	"github.com/Davincible/biokey/pkg/crypto/keyderive"
	"github.com/Davincible/biokey/pkg/secure"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type VerifyResult struct {
	Subject   string `json:"subject"`
	Match     bool   `json:"match"`
	CipherKey string `json:"cipher_key,omitempty"`
	Mnemonic  string `json:"mnemonic,omitempty"`
}

func NewVerifyCommand() *cobra.Command {
	var (
		descriptor descriptorFlags
		showKey    bool
		mnemonic   bool
	)

	cmd := &cobra.Command{
		Use:   "verify <subject>",
		Short: "Check a fresh descriptor against an enrollment",
		Long: `Reproduce the enrolled key from a fresh biometric descriptor and check it
against the stored key commitment.

Verification fails when the descriptor differs from the enrolled one in
more bits than the code corrects, or when the decoder lands on a different
codeword. Neither case reveals anything about the key.`,
		Example: `  biokey verify alice --descriptor-hex 8f3a...
  biokey verify alice --descriptor-file probe.tpl --show-key`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := args[0]
			rec, err := loadRecord(cmd, subject)
			if err != nil {
				return err
			}

			bio, err := descriptor.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer secure.Zero(bio)

			cipherKey, err := reproduceKey(rec, bio)
			if err != nil {
				slog.Info("Verification failed", "subject", subject, "error", err)
				if errors.Is(err, fuzzy.ErrDecodeFailure) {
					return fmt.Errorf("descriptor does not match enrollment for %s: %w", subject, err)
				}
				return err
			}
			defer secure.Zero(cipherKey)

			result := VerifyResult{Subject: subject, Match: true}
			if showKey {
				result.CipherKey = hex.EncodeToString(cipherKey)
			}
			if mnemonic {
				words, err := keyderive.ToMnemonic(cipherKey)
				if err != nil {
					return err
				}
				result.Mnemonic = words
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				return outputJSONResult(out, result)
			}

			green := color.New(color.FgGreen, color.Bold)
			cyan := color.New(color.FgCyan, color.Bold)

			fmt.Fprintln(out)
			green.Fprintf(out, "✓ Descriptor matches enrollment for %s\n", subject)
			if result.CipherKey != "" {
				fmt.Fprintln(out)
				cyan.Fprint(out, "Cipher key: ")
				fmt.Fprintln(out, result.CipherKey)
			}
			if result.Mnemonic != "" {
				fmt.Fprintln(out)
				cyan.Fprintln(out, "Backup words:")
				printWords(out, result.Mnemonic)
			}

			return nil
		},
	}

	descriptor.register(cmd)
	cmd.Flags().BoolVar(&showKey, "show-key", false, "Print the reproduced cipher key as hex")
	cmd.Flags().BoolVar(&mnemonic, "mnemonic", false, "Print the reproduced cipher key as BIP39 words")

	return cmd
}
