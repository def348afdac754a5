package config

import (
	"time"

	"roost/internal/plugins"
)

// AgentConfig is the top-level configuration for the roost agent. It is
// read once at startup and re-read by the watcher when the file changes.
// Field tags are json because the file is parsed YAML-or-JSON through
// sigs.k8s.io/yaml.
type AgentConfig struct {
	// InstallFolder is the agent's installation root, exposed to workers
	// through the {installFolder} placeholder.
	InstallFolder string `json:"installFolder,omitempty"`

	// RegistryPath is the device registry JSON file. Defaults to
	// devices.json under the install folder.
	RegistryPath string `json:"registryPath,omitempty"`

	// AutosaveIntervalSeconds is the device registry autosave period.
	AutosaveIntervalSeconds int `json:"autosaveIntervalSeconds,omitempty"`

	// Ports is the pool sessions allocate consecutive ports from.
	Ports PortRange `json:"ports"`

	// HealthCheckIntervalSeconds is the global health-monitor tick;
	// definitions may override it per instance.
	HealthCheckIntervalSeconds int `json:"healthCheckIntervalSeconds,omitempty"`

	// RestartBackoffSeconds is the window within which an unhealthy
	// instance is not restarted again.
	RestartBackoffSeconds int `json:"restartBackoffSeconds,omitempty"`

	// Plugins are the worker definitions registered at startup and on
	// config reload.
	Plugins []plugins.Definition `json:"plugins,omitempty"`
}

// PortRange is a contiguous, inclusive port range.
type PortRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// AutosaveInterval returns the registry autosave period as a duration.
func (c AgentConfig) AutosaveInterval() time.Duration {
	return time.Duration(c.AutosaveIntervalSeconds) * time.Second
}

// HealthCheckInterval returns the global health-monitor tick as a duration.
func (c AgentConfig) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalSeconds) * time.Second
}

// RestartBackoff returns the restart throttle window as a duration.
func (c AgentConfig) RestartBackoff() time.Duration {
	return time.Duration(c.RestartBackoffSeconds) * time.Second
}
