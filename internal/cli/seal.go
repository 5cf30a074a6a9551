package cli

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/Davincible/biokey/internal/validation"
	"github.com/Davincible/biokey/pkg/crypto/keyderive"
	"github.com/Davincible/biokey/pkg/secure"
	"github.com/Davincible/biokey/pkg/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func NewSealCommand() *cobra.Command {
	var descriptor descriptorFlags

	cmd := &cobra.Command{
		Use:   "seal <subject> <input> <output>",
		Short: "Encrypt a file with a subject's biometric key",
		Long: `Reproduce the subject's cipher key from a fresh descriptor and encrypt the
input file with AES-256-GCM. The subject id is bound to the ciphertext.`,
		Example: `  biokey seal alice report.pdf report.pdf.sealed --descriptor-file probe.tpl`,
		Args:    cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, in, out := args[0], args[1], args[2]

			rec, err := loadRecord(cmd, subject)
			if err != nil {
				return err
			}

			bio, err := descriptor.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer secure.Zero(bio)

			key, err := reproduceKey(rec, bio)
			if err != nil {
				return err
			}
			defer secure.Zero(key)

			if err := storage.SealFile(in, out, key, subject); err != nil {
				return err
			}
			slog.Info("Sealed file", "subject", subject, "input", in, "output", out)

			color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "✓ Sealed %s to %s\n", in, out)
			return nil
		},
	}

	descriptor.register(cmd)

	return cmd
}

func NewOpenCommand() *cobra.Command {
	var (
		descriptor descriptorFlags
		keyHex     string
		words      string
	)

	cmd := &cobra.Command{
		Use:   "open <subject> <input> <output>",
		Short: "Decrypt a sealed file",
		Long: `Decrypt a file produced by 'biokey seal'.

The key is normally reproduced from a fresh descriptor. When the biometric
no longer matches, a key recovered with 'biokey escrow combine' or from the
backup words printed at enrollment can be passed instead.`,
		Example: `  biokey open alice report.pdf.sealed report.pdf --descriptor-file probe.tpl

  # Recovery without the biometric
  biokey open alice report.pdf.sealed report.pdf --key-hex 4be1...`,
		Args: cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject, in, out := args[0], args[1], args[2]

			var (
				key []byte
				err error
			)
			switch {
			case keyHex != "":
				key, err = decodeKey(keyHex)
			case words != "":
				key, err = keyderive.FromMnemonic(words)
			default:
				var rec *storage.Record
				rec, err = loadRecord(cmd, subject)
				if err != nil {
					return err
				}
				var bio []byte
				bio, err = descriptor.read(cmd.InOrStdin())
				if err != nil {
					return err
				}
				defer secure.Zero(bio)
				key, err = reproduceKey(rec, bio)
			}
			if err != nil {
				return err
			}
			defer secure.Zero(key)

			if err := storage.OpenFile(in, out, key); err != nil {
				return err
			}
			slog.Info("Opened file", "subject", subject, "input", in, "output", out)

			color.New(color.FgGreen, color.Bold).Fprintf(cmd.OutOrStdout(), "✓ Opened %s to %s\n", in, out)
			return nil
		},
	}

	descriptor.register(cmd)
	cmd.Flags().StringVar(&keyHex, "key-hex", "", "Recovered cipher key as hex")
	cmd.Flags().StringVar(&words, "words", "", "Recovered cipher key as BIP39 words")
	cmd.MarkFlagsMutuallyExclusive("key-hex", "words", "descriptor-hex", "descriptor-file", "stdin")

	return cmd
}

func decodeKey(input string) ([]byte, error) {
	input = validation.NormalizeHex(input)
	if err := validation.ValidateHex(input); err != nil {
		return nil, fmt.Errorf("invalid key: %w", err)
	}
	key, err := hex.DecodeString(input)
	if err != nil {
		return nil, err
	}
	if err := validation.ValidateKeyLength(len(key)); err != nil {
		return nil, err
	}
	return key, nil
}
