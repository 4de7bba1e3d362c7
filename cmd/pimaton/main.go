// Pimaton is a photo booth controller for the Raspberry Pi.
//
// It waits for a trigger (keyboard, GPIO button or the web panel), takes
// a burst of pictures, composes them into a single printable image with
// an optional QR code, prints it and syncs the output to a remote host.
//
// See 'pimaton --help' for available commands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time with -ldflags "-X main.version=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "pimaton",
	Short: "Raspberry Pi photo booth",
	Long: `Pimaton drives a Raspberry Pi photo booth.

Each session takes a burst of pictures, lays them out on a printable
canvas, sends the result to a CUPS printer and optionally syncs the
pictures to another host with rsync.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Example: `  # Run the booth with the default configuration
  pimaton run

  # One session, then exit
  pimaton run --config /etc/pimaton.yaml --single

  # Enable the web panel on port 8080
  pimaton run --web

  # Validate a configuration file
  pimaton check-config --config /etc/pimaton.yaml`,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkConfigCmd)
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("pimaton %s (commit: %s)\n", version, commit)
	},
}
