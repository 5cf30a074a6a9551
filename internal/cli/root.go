package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// NewRootCommand assembles the biokey command tree. level is lowered to
// Debug when --verbose is set; it may be nil.
func NewRootCommand(version string, level *slog.LevelVar) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "biokey",
		Short: "Biometric key binding with BCH fuzzy extractors",
		Long: `Biokey derives stable cryptographic keys from noisy biometric descriptors.

A random key is bound to an enrollment descriptor with a binary BCH code.
Only public helper data is stored; a later descriptor within t bit errors
of the enrolled one reproduces the same key.

Features:
- BCH codes of any length up to 65535 bits and any designed distance
- Salted key commitments to catch decoding past the correction radius
- AES-256-GCM file sealing under the reproduced key
- Shamir escrow shares and BIP39 backup words for recovery`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose, _ := cmd.Flags().GetBool("verbose"); verbose && level != nil {
				level.Set(slog.LevelDebug)
			}
		},
	}

	rootCmd.AddCommand(
		NewParamsCommand(),
		NewEnrollCommand(),
		NewVerifyCommand(),
		NewSealCommand(),
		NewOpenCommand(),
		NewListCommand(),
		NewRevokeCommand(),
		NewSimulateCommand(),
		NewEscrowCommand(),
	)

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Config file (default $BIOKEY_CONFIG or ~/.config/biokey/config.json)")

	return rootCmd
}
