// ABOUTME: serve command: starts the labmap web server
// ABOUTME: Prints the banner and startup summary, then blocks until interrupted

package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/labmap/internal/config"
	"github.com/2389/labmap/internal/server"
)

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the web server",
		Args:  cobra.NoArgs,
		RunE:  a.runServe,
	}
}

func (a *app) runServe(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cyan := color.New(color.FgCyan)
	cyan.Fprint(out, banner)

	gray := color.New(color.FgHiBlack)
	gray.Fprintf(out, "    version: %s\n\n", version)

	cfg, configPath, err := a.loadConfig()
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)
	slog.SetDefault(logger)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Config:    %s\n", configPath)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Fprint(out, "    ▶ ")
	fmt.Fprintf(out, "Database:  %s\n", describeDatabase(cfg.Database))
	if cfg.Archive.Enabled {
		green.Fprint(out, "    ▶ ")
		fmt.Fprint(out, "Archive:   ")
		cyan.Fprintf(out, "s3://%s/%s", cfg.Archive.Bucket, cfg.Archive.Prefix)
		if cfg.Archive.Endpoint != "" {
			gray.Fprintf(out, " (%s)", cfg.Archive.Endpoint)
		}
		fmt.Fprintln(out)
	}
	if !cfg.Server.SecureCookies {
		yellow.Fprintln(out, "    ! secure_cookies is off, serve behind HTTPS in production")
	}
	fmt.Fprintln(out)

	logger.Info("starting labmap",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"driver", cfg.Database.Driver,
	)

	srv, err := server.New(cmd.Context(), cfg, logger)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	return srv.Run(cmd.Context())
}

// describeDatabase names the backend without printing credentials.
func describeDatabase(cfg config.DatabaseConfig) string {
	if cfg.Driver == config.DriverPostgres {
		return "postgres"
	}
	return "sqlite " + cfg.Path
}
