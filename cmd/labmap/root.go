// ABOUTME: Root cobra command and shared helpers for config and store access
// ABOUTME: Every subcommand resolves the config file the same way through --config

package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/2389/labmap/internal/config"
	"github.com/2389/labmap/internal/server"
	"github.com/2389/labmap/internal/store"
)

// cliActor is recorded as the actor of directory changes made from the CLI.
const cliActor = "labmap-cli"

// app holds the flags shared by all subcommands.
type app struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "labmap",
		Short: "Join laboratory and product exports behind a login",
		Long: `labmap is a small web application that joins a laboratory export
(LABOS) with a product export (PRODUITS) on the company identifier and offers
the result as a CSV download. Access is restricted to users of its directory.

Run "labmap init" once, create an administrator with "labmap user add",
then start the web server with "labmap serve".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			slog.SetDefault(setupLogger(config.LoggingConfig{Level: "warn"}, cmd.ErrOrStderr()))
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "",
		"config file (default $LABMAP_CONFIG or $XDG_CONFIG_HOME/labmap/config.yaml)")

	root.AddCommand(
		newServeCmd(a),
		newInitCmd(a),
		newUserCmd(a),
		newSeedCmd(a),
		newHashPasswordCmd(),
	)
	return root
}

// loadConfig loads the resolved config file. Without --config or
// LABMAP_CONFIG a missing file falls back to the defaults.
func (a *app) loadConfig() (*config.Config, string, error) {
	path := config.ResolvePath(a.configPath)

	cfg, err := config.Load(path)
	if err != nil {
		explicit := a.configPath != "" || os.Getenv("LABMAP_CONFIG") != ""
		if errors.Is(err, fs.ErrNotExist) && !explicit {
			return config.Default(), path, nil
		}
		return nil, path, fmt.Errorf("loading config: %w", err)
	}
	return cfg, path, nil
}

// openStore loads the config and opens its user directory.
func (a *app) openStore(ctx context.Context) (store.Store, error) {
	cfg, _, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	return server.OpenStore(ctx, cfg.Database)
}
