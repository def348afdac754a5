package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the roost agent.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "roost",
	Short: "Supervise per-device workers for a mobile-testing device farm",
	Long: `roost is a single-node agent that supervises background workers for
a mobile-testing device farm: it allocates automation ports, keeps a
durable device registry, and starts, health-checks, and restarts
per-device worker processes when devices connect and disconnect.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors
	// that are handled by the application.
	SilenceUsage: true,
}

// SetVersion sets the version for the root command. Called from the main
// package to inject the build version.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application. It is called by
// main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "roost version %s\n" .Version}}`)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
}
