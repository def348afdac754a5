package app

// Config carries the command-line level settings the agent is started
// with. The agent's own configuration file is loaded during bootstrap.
type Config struct {
	// ConfigPath is the agent config file. Empty means the default path
	// under the install folder.
	ConfigPath string

	// InstallFolder is the agent's installation root.
	InstallFolder string

	// Debug enables debug-level logging.
	Debug bool

	// Silent suppresses all log output.
	Silent bool

	// Watch enables reloading plugin definitions when the config file
	// changes.
	Watch bool
}
