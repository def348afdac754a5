package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"roost/internal/app"
)

// serveDebug enables verbose logging across the agent.
var serveDebug bool

// serveConfigPath specifies a custom agent config file. When empty the
// agent looks for roost.yaml in its install folder.
var serveConfigPath string

// serveInstallFolder overrides the install folder; by default it is the
// directory of the running binary.
var serveInstallFolder string

// serveWatch enables reloading plugin definitions when the config file
// changes.
var serveWatch bool

// serveCmd starts the agent: the device registry autosave loop, the plugin
// health monitor, and the device-event trigger, running until interrupted.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the roost agent",
	Long: `Starts the roost agent and runs it until interrupted.

The agent loads its configuration file, registers the configured plugin
definitions, starts every enabled definition, and then supervises the
resulting workers: unhealthy instances are restarted according to their
restart policy, and device connect/disconnect events start and stop
per-device workers.

When running under systemd the agent reports readiness via sd_notify, so
the unit can use Type=notify.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := &app.Config{
		ConfigPath:    serveConfigPath,
		InstallFolder: serveInstallFolder,
		Debug:         serveDebug,
		Watch:         serveWatch,
	}

	application, err := app.NewApplication(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return application.Run(ctx)
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().BoolVar(&serveDebug, "debug", false, "Enable debug logging")
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Agent config file (default: roost.yaml in the install folder)")
	serveCmd.Flags().StringVar(&serveInstallFolder, "install-folder", "", "Installation root (default: directory of the binary)")
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "Reload plugin definitions when the config file changes")
}
