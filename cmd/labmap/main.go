// ABOUTME: Entry point for the labmap web application and its admin CLI
// ABOUTME: Joins laboratory and product exports behind a login, manages the user directory

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const banner = `
  _       _
 | | __ _| |__  _ __ ___   __ _ _ __
 | |/ _' | '_ \| '_ ' _ \ / _' | '_ \
 | | (_| | |_) | | | | | | (_| | |_) |
 |_|\__,_|_.__/|_| |_| |_|\__,_| .__/
                               |_|
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.New(color.FgRed, color.Bold).Sprint("error:"), err)
		stop()
		os.Exit(1)
	}
}
