package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"roost/internal/devices"
	pkgstrings "roost/pkg/strings"
)

// statusRegistryPath is the device registry file to read. Defaults to
// devices.json next to the binary.
var statusRegistryPath string

// statusOutputFormat selects table or json output.
var statusOutputFormat string

// statusCmd renders the persisted device registry. It reads the registry
// JSON file directly, so it works whether or not the agent is running; the
// agent itself exposes no network API.
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the devices known to the agent",
	Long: `Reads the device registry file the agent persists and prints the
known devices with their connection state and automation sessions.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	path := statusRegistryPath
	if path == "" {
		path = filepath.Join(defaultInstallFolder(), "devices.json")
	}

	registry := devices.NewRegistry(path, 0)
	registry.Load()
	all := registry.GetAll()

	switch statusOutputFormat {
	case "json":
		data, err := json.MarshalIndent(all, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to render devices: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	case "table":
		renderDeviceTable(cmd, all, registry.LastUpdated())
		return nil
	default:
		return fmt.Errorf("unknown output format %q (use table or json)", statusOutputFormat)
	}
}

func renderDeviceTable(cmd *cobra.Command, all []devices.Device, lastUpdated time.Time) {
	if len(all) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No devices known.")
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"DEVICE", "PLATFORM", "KIND", "NAME", "STATE", "LAST SEEN", "SESSION", "PORTS"})

	for _, d := range all {
		session, ports := "-", "-"
		if d.Session != nil {
			session = fmt.Sprintf("%s (%s)", d.Session.ID, d.Session.Status)
			ports = formatPorts(d.Session.Ports)
		}
		t.AppendRow(table.Row{
			d.ID,
			d.Platform,
			d.Kind,
			pkgstrings.Truncate(d.Name, pkgstrings.DefaultColumnMaxLen),
			colorState(d.State),
			d.LastSeen.Format(time.RFC3339),
			session,
			ports,
		})
	}
	t.Render()

	if !lastUpdated.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "Last updated: %s\n", lastUpdated.Format(time.RFC3339))
	}
}

func formatPorts(ports map[string]int) string {
	if len(ports) == 0 {
		return "-"
	}
	out := ""
	for _, role := range []string{devices.PortServer, devices.PortDriver, devices.PortStream} {
		if p, ok := ports[role]; ok {
			if out != "" {
				out += " "
			}
			out += fmt.Sprintf("%s:%d", role, p)
		}
	}
	return out
}

// defaultInstallFolder resolves the agent's installation root from the
// running binary's location.
func defaultInstallFolder() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

func colorState(state devices.ConnectionState) string {
	switch state {
	case devices.StateConnected:
		return text.FgGreen.Sprint(state)
	case devices.StateUnauthorized:
		return text.FgYellow.Sprint(state)
	default:
		return text.FgRed.Sprint(state)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().StringVar(&statusRegistryPath, "registry", "", "Device registry file (default: devices.json in the install folder)")
	statusCmd.Flags().StringVarP(&statusOutputFormat, "output", "o", "table", "Output format (table, json)")
}
