package cli

import (
	"bufio"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Davincible/biokey/internal/validation"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type EnrollmentSummary struct {
	Subject  string `json:"subject"`
	ID       string `json:"id"`
	Modality string `json:"modality,omitempty"`
	N        int    `json:"n"`
	D        int    `json:"d"`
	K        int    `json:"k"`
	Created  string `json:"created"`
}

func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List enrolled subjects",
		Long:  "Display every enrollment record in the store with its code parameters.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			subjects, err := store.List()
			if err != nil {
				return err
			}

			summaries := make([]EnrollmentSummary, 0, len(subjects))
			for _, s := range subjects {
				rec, err := store.Load(s)
				if err != nil {
					slog.Warn("Skipping unreadable enrollment", "subject", s, "error", err)
					continue
				}
				summaries = append(summaries, EnrollmentSummary{
					Subject:  rec.Subject,
					ID:       rec.ID,
					Modality: rec.Modality,
					N:        rec.N,
					D:        rec.D,
					K:        rec.K,
					Created:  rec.Created.Format("2006-01-02 15:04"),
				})
			}

			out := cmd.OutOrStdout()
			if jsonFlag(cmd) {
				return outputJSONResult(out, summaries)
			}

			if len(summaries) == 0 {
				fmt.Fprintln(out, "No enrollments found.")
				return nil
			}

			cyan := color.New(color.FgCyan)
			for i, s := range summaries {
				if i > 0 {
					fmt.Fprintln(out)
				}
				cyan.Fprintf(out, "👤 %s\n", s.Subject)
				fmt.Fprintf(out, "   ID: %s\n", s.ID)
				fmt.Fprintf(out, "   Code: n=%d k=%d d=%d", s.N, s.K, s.D)
				if s.Modality != "" {
					fmt.Fprintf(out, " | Modality: %s", s.Modality)
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "   Created: %s\n", s.Created)
			}

			return nil
		},
	}

	return cmd
}

func NewRevokeCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "revoke <subject>",
		Short: "Delete a subject's enrollment",
		Long: `Delete the enrollment record for a subject. The helper data is overwritten
before removal, after which the key can only be recovered from escrow
shares or backup words.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			subject := args[0]
			if err := validation.ValidateSubjectID(subject); err != nil {
				return err
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return err
			}

			rec, err := store.Load(subject)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !force {
				fmt.Fprintf(out, "This will delete the enrollment for '%s'.\n", rec.Subject)
				fmt.Fprintf(out, "ID: %s\n", rec.ID)
				fmt.Fprint(out, "Are you sure? (y/N): ")

				response, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Fprintln(out, "Revocation cancelled.")
					return nil
				}
			}

			if err := store.Delete(subject); err != nil {
				return fmt.Errorf("failed to revoke enrollment: %w", err)
			}
			slog.Info("Revoked enrollment", "subject", subject, "id", rec.ID)

			color.New(color.FgGreen).Fprintf(out, "✅ Enrollment for %s revoked\n", subject)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation")

	return cmd
}
