package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"roost/internal/config"
	"roost/internal/template"
	"roost/pkg/logging"
)

const defaultConfigFileName = "roost.yaml"

// Application bootstraps and runs the roost agent. Construction performs
// the full wiring: logging, configuration, and the supervision core. Run
// then drives the components until the context is cancelled.
type Application struct {
	config   *Config
	services *Services
}

// NewApplication loads the agent configuration and wires the supervision
// core. It returns an error when the configuration is malformed or a
// component cannot be constructed.
func NewApplication(cfg *Config) (*Application, error) {
	level := logging.LevelInfo
	if cfg.Debug {
		level = logging.LevelDebug
	}
	var output io.Writer = os.Stdout
	if cfg.Silent {
		output = io.Discard
	}
	logging.Init(level, output)

	if cfg.InstallFolder == "" {
		cfg.InstallFolder = defaultInstallFolder()
	}
	if cfg.ConfigPath == "" {
		cfg.ConfigPath = filepath.Join(cfg.InstallFolder, defaultConfigFileName)
	}

	agentCfg, err := config.Load(cfg.ConfigPath, cfg.InstallFolder)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load agent configuration")
		return nil, fmt.Errorf("failed to load agent configuration: %w", err)
	}

	services, err := InitializeServices(cfg, agentCfg)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	return &Application{
		config:   cfg,
		services: services,
	}, nil
}

// Services exposes the wired components, for the serve command and tests.
func (a *Application) Services() *Services {
	return a.services
}

// baseContext is the correlation context used for instances that are not
// tied to a device event.
func (a *Application) baseContext() *template.Context {
	return &template.Context{InstallFolder: a.config.InstallFolder}
}

// defaultInstallFolder resolves the agent's installation root from the
// running binary's location, falling back to the working directory.
func defaultInstallFolder() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}
