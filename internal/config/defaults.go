package config

import "path/filepath"

const (
	// DefaultPortStart and DefaultPortEnd are the default session port
	// pool, one hundred ports starting at the conventional automation
	// server port.
	DefaultPortStart = 4723
	DefaultPortEnd   = 4822

	// DefaultAutosaveSeconds is the device registry autosave period.
	DefaultAutosaveSeconds = 30

	// DefaultHealthCheckSeconds is the global health-monitor tick.
	DefaultHealthCheckSeconds = 30

	// DefaultRestartBackoffSeconds is the restart throttle window.
	DefaultRestartBackoffSeconds = 60

	registryFileName = "devices.json"
)

// GetDefaultConfig returns the configuration used when no config file
// exists. installFolder anchors the registry path.
func GetDefaultConfig(installFolder string) AgentConfig {
	return AgentConfig{
		InstallFolder:              installFolder,
		RegistryPath:               filepath.Join(installFolder, registryFileName),
		AutosaveIntervalSeconds:    DefaultAutosaveSeconds,
		Ports:                      PortRange{Start: DefaultPortStart, End: DefaultPortEnd},
		HealthCheckIntervalSeconds: DefaultHealthCheckSeconds,
		RestartBackoffSeconds:      DefaultRestartBackoffSeconds,
	}
}

// applyDefaults fills zero-valued fields after parsing a config file.
func applyDefaults(c *AgentConfig, installFolder string) {
	if c.InstallFolder == "" {
		c.InstallFolder = installFolder
	}
	if c.RegistryPath == "" {
		c.RegistryPath = filepath.Join(c.InstallFolder, registryFileName)
	}
	if c.AutosaveIntervalSeconds <= 0 {
		c.AutosaveIntervalSeconds = DefaultAutosaveSeconds
	}
	if c.Ports.Start == 0 && c.Ports.End == 0 {
		c.Ports = PortRange{Start: DefaultPortStart, End: DefaultPortEnd}
	}
	if c.HealthCheckIntervalSeconds <= 0 {
		c.HealthCheckIntervalSeconds = DefaultHealthCheckSeconds
	}
	if c.RestartBackoffSeconds <= 0 {
		c.RestartBackoffSeconds = DefaultRestartBackoffSeconds
	}
}
