// Package main is the entrypoint for the rouster CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/rouster/internal/output"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Global flags
var (
	configPath string
	name       string
	verbosity  int
	debug      bool
	noColor    bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		errOut := output.New(os.Stderr)
		errOut.SetColor(!noColor)
		errOut.Failure(err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "rouster",
	Short: "Rouster - drive virtual machines for integration testing",
	Long: `Rouster runs commands on a test machine and on the controlling host,
moves files to and from the machine, inspects file metadata and drives the
machine's lifecycle through Vagrant.

Configuration comes from a YAML file (--config) and ROUSTER_* environment
variables; flags win over both.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Session configuration file (YAML)")
	rootCmd.PersistentFlags().StringVar(&name, "name", "", "Machine name (overrides config)")
	rootCmd.PersistentFlags().IntVarP(&verbosity, "verbosity", "v", 0, "Log verbosity, 1 (debug) to 5 (fatal)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Enable debug output and debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(localCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(putCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(parseLsCmd)
	rootCmd.AddCommand(reachableCmd)
	rootCmd.AddCommand(factsCmd)
	rootCmd.AddCommand(restartCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(destroyCmd)
	rootCmd.AddCommand(suspendCmd)
	rootCmd.AddCommand(rebuildCmd)
	rootCmd.AddCommand(statusCmd)
}
