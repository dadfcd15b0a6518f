// ABOUTME: seed command: creates users listed in a TOML file
// ABOUTME: Existing accounts are skipped so the command can be re-run safely

package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/labmap/internal/admin"
	"github.com/2389/labmap/internal/config"
	"github.com/2389/labmap/internal/store"
)

func newSeedCmd(a *app) *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create users from a TOML seed file",
		Long: `Create every [[users]] entry of a TOML seed file:

  [[users]]
  email = "admin@example.com"
  username = "admin"
  role = "admin"
  password = "${LABMAP_ADMIN_PASSWORD}"

Users whose email or username already exists are skipped.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			seed, err := config.LoadSeed(file)
			if err != nil {
				return err
			}

			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			out := cmd.OutOrStdout()
			green := color.New(color.FgGreen)
			yellow := color.New(color.FgYellow)
			svc := admin.NewService(s)

			var created, skipped int
			for _, su := range seed.Users {
				u, err := svc.CreateUser(cmd.Context(), cliActor, su.Email, su.Username, su.Role, su.Password)
				switch {
				case errors.Is(err, store.ErrUserExists):
					yellow.Fprintf(out, "  - %s already exists, skipped\n", su.Email)
					skipped++
				case err != nil:
					return fmt.Errorf("creating %s: %w", su.Email, err)
				default:
					green.Fprintf(out, "  ✓ Created %s (%s)\n", u.Email, u.Role)
					created++
				}
			}

			fmt.Fprintf(out, "\n%d created, %d skipped\n", created, skipped)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "users.toml", "seed file")
	return cmd
}
