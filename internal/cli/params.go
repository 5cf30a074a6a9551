package cli

import (
	"fmt"

	"github.com/Davincible/biokey/pkg/config"
	"github.com/Davincible/biokey/pkg/crypto/fuzzy"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type ParamsResult struct {
	fuzzy.Params
	Generator string `json:"generator"`
}

// codeFlags lets a command override the configured (n, d).
type codeFlags struct {
	n int
	d int
}

func (f *codeFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.n, "n", 0, "BCH code length in bits (default from config)")
	cmd.Flags().IntVar(&f.d, "d", 0, "BCH designed distance (default from config)")
}

func (f *codeFlags) resolve(cfg *config.Config) (int, int) {
	n, d := cfg.Code.N, cfg.Code.D
	if f.n != 0 {
		n = f.n
	}
	if f.d != 0 {
		d = f.d
	}
	return n, d
}

func NewParamsCommand() *cobra.Command {
	var code codeFlags

	cmd := &cobra.Command{
		Use:   "params",
		Short: "Show the BCH code parameters for a configuration",
		Long: `Build the BCH code for the given length and designed distance and show
the key size, correction radius and generator polynomial.

The correction radius t is the number of descriptor bits that may differ
between enrollment and verification while still reproducing the key.`,
		Example: `  # Parameters from the config file
  biokey params

  # Explore a stronger code
  biokey params --n 511 --d 61`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			n, d := code.resolve(cfg)
			ext, err := fuzzy.New(n, d)
			if err != nil {
				return err
			}

			result := ParamsResult{
				Params:    ext.Params(),
				Generator: ext.Code().GeneratorString(),
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				return outputJSONResult(out, result)
			}

			cyan := color.New(color.FgCyan, color.Bold)
			yellow := color.New(color.FgYellow)

			fmt.Fprintln(out)
			cyan.Fprintln(out, ext.Code().String())
			fmt.Fprintln(out)
			yellow.Fprintln(out, "Sizes:")
			fmt.Fprintf(out, "  Key:        %d bits (%d bytes)\n", result.K, result.KeyBytes)
			fmt.Fprintf(out, "  Helper:     %d bits (%d bytes)\n", result.N, result.HelperBytes)
			fmt.Fprintf(out, "  Corrects:   up to %d flipped bits\n", result.T)
			fmt.Fprintln(out)
			yellow.Fprintln(out, "Generator polynomial:")
			fmt.Fprintf(out, "  %s\n", result.Generator)

			return nil
		},
	}

	code.register(cmd)

	return cmd
}
