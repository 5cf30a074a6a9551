package cli

import (
	"bufio"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/Davincible/biokey/pkg/crypto/escrow"
	"github.com/Davincible/biokey/pkg/crypto/keyderive"
	"github.com/Davincible/biokey/pkg/secure"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type CombineResult struct {
	CipherKey string `json:"cipher_key"`
	Mnemonic  string `json:"mnemonic,omitempty"`
	Shares    int    `json:"shares"`
}

func NewEscrowCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "escrow",
		Short: "Recover keys from escrow shares",
		Long: `Escrow shares are created with 'biokey enroll --escrow'. They hold the
cipher key split with Shamir's Secret Sharing and allow sealed files to be
opened when the biometric no longer matches.`,
	}

	cmd.AddCommand(newEscrowCombineCommand())

	return cmd
}

func newEscrowCombineCommand() *cobra.Command {
	var (
		useStdin bool
		mnemonic bool
	)

	cmd := &cobra.Command{
		Use:   "combine [share...]",
		Short: "Combine escrow shares into the cipher key",
		Example: `  biokey escrow combine 3f0a...01 9bc2...03

  # One share per line
  cat shares.txt | biokey escrow combine --stdin`,
		RunE: func(cmd *cobra.Command, args []string) error {
			encoded := args
			if useStdin {
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					if line := strings.TrimSpace(scanner.Text()); line != "" {
						encoded = append(encoded, line)
					}
				}
				if err := scanner.Err(); err != nil {
					return fmt.Errorf("failed to read shares: %w", err)
				}
			}

			shares := make([]escrow.Share, 0, len(encoded))
			for i, e := range encoded {
				s, err := escrow.ParseShare(e)
				if err != nil {
					return fmt.Errorf("share %d: %w", i+1, err)
				}
				shares = append(shares, s)
			}

			key, err := escrow.Combine(shares)
			if err != nil {
				return err
			}
			defer secure.Zero(key)

			result := CombineResult{
				CipherKey: hex.EncodeToString(key),
				Shares:    len(shares),
			}
			if mnemonic {
				words, err := keyderive.ToMnemonic(key)
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
			green.Fprintf(out, "✓ Combined %d shares\n", result.Shares)
			fmt.Fprintln(out)
			cyan.Fprint(out, "Cipher key: ")
			fmt.Fprintln(out, result.CipherKey)
			if result.Mnemonic != "" {
				fmt.Fprintln(out)
				cyan.Fprintln(out, "Backup words:")
				printWords(out, result.Mnemonic)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Shamir combination cannot detect a wrong or missing share.")
			fmt.Fprintln(out, "Confirm the key with 'biokey open --key-hex' on a sealed file.")

			return nil
		},
	}

	cmd.Flags().BoolVar(&useStdin, "stdin", false, "Read shares from stdin, one per line")
	cmd.Flags().BoolVar(&mnemonic, "mnemonic", false, "Also print the key as BIP39 words")

	return cmd
}
