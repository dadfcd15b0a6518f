// ABOUTME: init command: writes a sample config file and creates the database
// ABOUTME: Refuses to overwrite an existing config unless --force is given

package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/labmap/internal/config"
	"github.com/2389/labmap/internal/server"
)

func newInitCmd(a *app) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a sample config file and create the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.runInit(cmd, force)
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing config file")
	return cmd
}

func (a *app) runInit(cmd *cobra.Command, force bool) error {
	out := cmd.OutOrStdout()
	green := color.New(color.FgGreen)
	cyan := color.New(color.FgCyan)

	path := config.ResolvePath(a.configPath)
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("config file %s already exists (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(config.SampleConfig), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	green.Fprintf(out, "  ✓ Created config: %s\n", path)

	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := server.OpenStore(cmd.Context(), cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()
	green.Fprintf(out, "  ✓ Database: %s\n", describeDatabase(cfg.Database))

	fmt.Fprintln(out)
	cyan.Fprintln(out, "  Next: labmap user add --role admin <email>")
	return nil
}
