package cli

import (
	"encoding/hex"
	"fmt"
	"log/slog"

	"github.com/Davincible/biokey/internal/validation"
	"github.com/Davincible/biokey/pkg/crypto/escrow"
	"github.com/Davincible/biokey/pkg/crypto/fuzzy"
	"github.com/Davincible/biokey/pkg/crypto/keyderive"
	"github.com/Davincible/biokey/pkg/secure"
	"github.com/Davincible/biokey/pkg/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type EnrollResult struct {
	ID           string       `json:"id"`
	Subject      string       `json:"subject"`
	Modality     string       `json:"modality,omitempty"`
	Params       fuzzy.Params `json:"params"`
	KeyMethod    string       `json:"key_method"`
	KeyLength    int          `json:"key_length"`
	Store        string       `json:"store"`
	CipherKey    string       `json:"cipher_key,omitempty"`
	Mnemonic     string       `json:"mnemonic,omitempty"`
	EscrowShares []string     `json:"escrow_shares,omitempty"`
	Threshold    int          `json:"escrow_threshold,omitempty"`
}

func NewEnrollCommand() *cobra.Command {
	var (
		code       codeFlags
		descriptor descriptorFlags
		modality   string
		keyMethod  string
		keyLength  int
		force      bool
		showKey    bool
		mnemonic   bool
		useEscrow  bool
		parts      int
		threshold  int
	)

	cmd := &cobra.Command{
		Use:   "enroll <subject>",
		Short: "Enroll a biometric descriptor for a subject",
		Long: `Enroll a subject by binding a fresh random key to a biometric descriptor.

Only public helper data, a salt and a key commitment are stored. The key
itself is never written to disk; it is reproduced later from a descriptor
that differs from the enrolled one in at most t bits.

The cipher key can optionally be printed as hex, rendered as BIP39 words,
or split into Shamir escrow shares for recovery when the biometric no
longer matches.`,
		Example: `  # Enroll from a hex descriptor
  biokey enroll alice --descriptor-hex 8f3a...

  # Enroll a fingerprint template file with a stronger code
  biokey enroll bob --descriptor-file bob.tpl --modality fingerprint --n 511 --d 61

  # Also produce 5 escrow shares, any 3 of which recover the key
  biokey enroll carol --descriptor-hex 8f3a... --escrow --escrow-parts 5 --escrow-threshold 3`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := args[0]
			if err := validation.ValidateSubjectID(subject); err != nil {
				return err
			}
			if err := validation.ValidateModality(modality); err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("key-method") {
				keyMethod = cfg.Key.Method
			}
			if !cmd.Flags().Changed("key-length") {
				keyLength = cfg.Key.Length
			}
			if !cmd.Flags().Changed("escrow-parts") {
				parts = cfg.Escrow.Parts
			}
			if !cmd.Flags().Changed("escrow-threshold") {
				threshold = cfg.Escrow.Threshold
			}

			method, err := keyderive.ParseMethod(keyMethod)
			if err != nil {
				return err
			}
			if err := validation.ValidateKeyLength(keyLength); err != nil {
				return err
			}
			if useEscrow {
				if err := validation.ValidateEscrowParams(parts, threshold); err != nil {
					return err
				}
			}

			store, err := openStore(cfg)
			if err != nil {
				return err
			}
			if store.Exists(subject) && !force {
				return fmt.Errorf("%w: %s (use --force to replace)", storage.ErrExists, subject)
			}

			n, d := code.resolve(cfg)
			ext, err := fuzzy.New(n, d)
			if err != nil {
				return err
			}

			bio, err := descriptor.read(cmd.InOrStdin())
			if err != nil {
				return err
			}
			defer secure.Zero(bio)

			if len(bio)*8 < n {
				slog.Warn("Descriptor shorter than code length, padding with zero bits",
					"descriptor_bits", len(bio)*8, "n", n)
			}

			key, helper, err := ext.Generate(bio)
			if err != nil {
				return fmt.Errorf("failed to enroll: %w", err)
			}
			defer secure.Zero(key)

			salt, err := secure.Random(nil, keyderive.SaltSize)
			if err != nil {
				return err
			}
			commitment, err := keyderive.Commitment(key, salt)
			if err != nil {
				return err
			}
			cipherKey, err := keyderive.CipherKey(key, salt, method, keyLength)
			if err != nil {
				return err
			}
			defer secure.Zero(cipherKey)

			params := ext.Params()
			rec := &storage.Record{
				Subject:    subject,
				Modality:   modality,
				N:          params.N,
				D:          params.D,
				K:          params.K,
				Helper:     helper,
				Salt:       salt,
				Commitment: commitment,
				KeyMethod:  string(method),
				KeyLength:  keyLength,
			}
			if err := store.Save(rec, force); err != nil {
				return err
			}
			slog.Info("Enrolled subject", "subject", subject, "id", rec.ID, "n", params.N, "d", params.D)

			result := EnrollResult{
				ID:        rec.ID,
				Subject:   subject,
				Modality:  modality,
				Params:    params,
				KeyMethod: string(method),
				KeyLength: keyLength,
				Store:     store.Dir(),
			}
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
			if useEscrow {
				shares, err := escrow.Split(cipherKey, escrow.Config{Parts: parts, Threshold: threshold})
				if err != nil {
					return err
				}
				for _, s := range shares {
					result.EscrowShares = append(result.EscrowShares, s.String())
				}
				result.Threshold = threshold
			}

			if jsonFlag(cmd) {
				return outputJSONResult(cmd.OutOrStdout(), result)
			}
			return outputEnrollResult(cmd, result)
		},
	}

	code.register(cmd)
	descriptor.register(cmd)
	cmd.Flags().StringVar(&modality, "modality", "", "Biometric modality (face, fingerprint, voice, other)")
	cmd.Flags().StringVar(&keyMethod, "key-method", "hkdf", "Cipher key derivation (hkdf or pad)")
	cmd.Flags().IntVar(&keyLength, "key-length", 32, "Cipher key length in bytes (16, 24 or 32)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "Replace an existing enrollment")
	cmd.Flags().BoolVar(&showKey, "show-key", false, "Print the cipher key as hex")
	cmd.Flags().BoolVar(&mnemonic, "mnemonic", false, "Print the cipher key as BIP39 words")
	cmd.Flags().BoolVar(&useEscrow, "escrow", false, "Split the cipher key into Shamir escrow shares")
	cmd.Flags().IntVar(&parts, "escrow-parts", 3, "Number of escrow shares")
	cmd.Flags().IntVar(&threshold, "escrow-threshold", 2, "Shares needed to recover the key")

	return cmd
}

func outputEnrollResult(cmd *cobra.Command, result EnrollResult) error {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow)
	red := color.New(color.FgRed, color.Bold)
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Fprintln(out)
	green.Fprintf(out, "✓ Enrolled %s\n", result.Subject)
	fmt.Fprintln(out)

	yellow.Fprintln(out, "Enrollment details:")
	fmt.Fprintf(out, "  ID:        %s\n", result.ID)
	if result.Modality != "" {
		fmt.Fprintf(out, "  Modality:  %s\n", result.Modality)
	}
	fmt.Fprintf(out, "  Code:      n=%d k=%d d=%d\n", result.Params.N, result.Params.K, result.Params.D)
	fmt.Fprintf(out, "  Tolerance: %d bits\n", result.Params.T)
	fmt.Fprintf(out, "  Key:       %d bytes (%s)\n", result.KeyLength, result.KeyMethod)
	fmt.Fprintf(out, "  Store:     %s\n", result.Store)

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

	if len(result.EscrowShares) > 0 {
		fmt.Fprintln(out)
		cyan.Fprintf(out, "Escrow shares (any %d of %d):\n", result.Threshold, len(result.EscrowShares))
		for i, s := range result.EscrowShares {
			fmt.Fprintf(out, "  %d: %s\n", i+1, s)
		}
	}

	if result.CipherKey != "" || result.Mnemonic != "" || len(result.EscrowShares) > 0 {
		fmt.Fprintln(out)
		red.Fprintln(out, "⚠️  SECURITY WARNING:")
		fmt.Fprintln(out, "- The output above recovers the key without the biometric")
		fmt.Fprintln(out, "- Store escrow shares in different secure locations")
	}

	return nil
}
