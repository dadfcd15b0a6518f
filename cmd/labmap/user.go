// ABOUTME: user commands: add, list, role and passwd against the configured directory
// ABOUTME: Mutations go through admin.Service so they are validated and audited like the web UI

package main

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/labmap/internal/admin"
	"github.com/2389/labmap/internal/auth"
	"github.com/2389/labmap/internal/store"
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage the user directory",
	}
	cmd.AddCommand(
		newUserAddCmd(a),
		newUserListCmd(a),
		newUserRoleCmd(a),
		newUserPasswdCmd(a),
	)
	return cmd
}

func newUserAddCmd(a *app) *cobra.Command {
	var username, role string

	cmd := &cobra.Command{
		Use:   "add <email>",
		Short: "Create a user, prompting for the password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := auth.ParseRole(role); err != nil {
				return err
			}

			password, err := promptNewPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := admin.NewService(s).CreateUser(cmd.Context(), cliActor, args[0], username, role, password)
			if err != nil {
				return fmt.Errorf("creating user: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ Created %s (%s) uid=%s\n", u.Email, u.Role, u.UID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&username, "username", "u", "", "optional login name")
	cmd.Flags().StringVarP(&role, "role", "r", string(auth.RoleUser), "user or admin")
	return cmd
}

func newUserListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List users",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			users, err := admin.NewService(s).ListUsers(cmd.Context())
			if err != nil {
				return fmt.Errorf("listing users: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "  UID\tEMAIL\tUSERNAME\tROLE\tCREATED")
			fmt.Fprintln(w, "  ---\t-----\t--------\t----\t-------")
			for _, u := range users {
				username := u.Username
				if username == "" {
					username = "-"
				}
				fmt.Fprintf(w, "  %s\t%s\t%s\t%s\t%s\n", u.UID, u.Email, username, u.Role, u.CreatedAt.Format("Jan 02 2006"))
			}
			return w.Flush()
		},
	}
}

func newUserRoleCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "role <uid|email|username> <user|admin>",
		Short: "Change a user's role",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := findUser(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}
			if err := admin.NewService(s).SetRole(cmd.Context(), cliActor, u.UID, args[1]); err != nil {
				return fmt.Errorf("setting role: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ %s is now %s\n", u.Email, args[1])
			return nil
		},
	}
}

func newUserPasswdCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "passwd <uid|email|username>",
		Short: "Reset a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			u, err := findUser(cmd.Context(), s, args[0])
			if err != nil {
				return err
			}

			password, err := promptNewPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			if err := admin.NewService(s).ResetPassword(cmd.Context(), cliActor, u.UID, password); err != nil {
				return fmt.Errorf("resetting password: %w", err)
			}

			color.New(color.FgGreen).Fprintf(cmd.OutOrStdout(), "  ✓ Password reset for %s\n", u.Email)
			return nil
		},
	}
}

// findUser resolves a uid, falling back to an email or username.
func findUser(ctx context.Context, s store.Store, ref string) (*store.User, error) {
	u, err := s.GetUser(ctx, ref)
	if errors.Is(err, store.ErrUserNotFound) {
		u, err = s.GetUserByIdentifier(ctx, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up %q: %w", ref, err)
	}
	return u, nil
}
