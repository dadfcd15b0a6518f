// ABOUTME: Hidden password prompts and the hash-password command
// ABOUTME: Prompts go to stderr so stdout carries only command output

package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/2389/labmap/internal/auth"
)

// readPassword is swapped out in tests.
var readPassword = term.ReadPassword

var errPasswordMismatch = errors.New("passwords do not match")

func promptPassword(w io.Writer, label string) (string, error) {
	fmt.Fprint(w, label)
	b, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(b), nil
}

// promptNewPassword asks twice and rejects empty or mismatched input.
func promptNewPassword(w io.Writer) (string, error) {
	pw, err := promptPassword(w, "New password: ")
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", auth.ErrEmptyPassword
	}

	confirm, err := promptPassword(w, "Confirm password: ")
	if err != nil {
		return "", err
	}
	if confirm != pw {
		return "", errPasswordMismatch
	}
	return pw, nil
}

func newHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print the bcrypt hash of a password",
		Long: `Prompt for a password and print its bcrypt hash, suitable for the
password_hash column of the users table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			pw, err := promptNewPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return fmt.Errorf("hashing password: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
