package app

import (
	"fmt"

	"roost/internal/bus"
	"roost/internal/config"
	"roost/internal/devices"
	"roost/internal/orchestrator"
	"roost/internal/plugins"
	"roost/internal/ports"
	"roost/internal/trigger"
	"roost/pkg/logging"
)

// Services holds every component of the supervision core, constructed once
// at bootstrap and passed by reference. There is no ambient state; the
// composition root owns all singletons.
type Services struct {
	Bus            *bus.Bus
	Allocator      *ports.Allocator
	DeviceRegistry *devices.Registry
	SessionManager *devices.SessionManager
	PluginRegistry *plugins.Registry
	Orchestrator   *orchestrator.Orchestrator
	Trigger        *trigger.DeviceEventTrigger
	Watcher        *config.Watcher
}

// InitializeServices wires the supervision core from the loaded agent
// configuration.
func InitializeServices(cfg *Config, agentCfg config.AgentConfig) (*Services, error) {
	allocator, err := ports.NewAllocator(agentCfg.Ports.Start, agentCfg.Ports.End)
	if err != nil {
		return nil, fmt.Errorf("failed to create port allocator: %w", err)
	}

	deviceRegistry := devices.NewRegistry(agentCfg.RegistryPath, agentCfg.AutosaveInterval())
	deviceRegistry.Load()

	pluginRegistry := plugins.NewRegistry()
	registerDefinitions(pluginRegistry, agentCfg.Plugins)

	eventBus := bus.New()
	orch := orchestrator.New(orchestrator.Config{
		Registry:       pluginRegistry,
		CheckInterval:  agentCfg.HealthCheckInterval(),
		RestartBackoff: agentCfg.RestartBackoff(),
	})

	s := &Services{
		Bus:            eventBus,
		Allocator:      allocator,
		DeviceRegistry: deviceRegistry,
		SessionManager: devices.NewSessionManager(allocator, deviceRegistry),
		PluginRegistry: pluginRegistry,
		Orchestrator:   orch,
		Trigger:        trigger.New(eventBus, pluginRegistry, orch, agentCfg.InstallFolder),
	}

	if cfg.Watch {
		s.Watcher = config.NewWatcher(cfg.ConfigPath, cfg.InstallFolder, func(reloaded config.AgentConfig) {
			logging.Info("Bootstrap", "Configuration reloaded, re-registering %d plugin definitions", len(reloaded.Plugins))
			registerDefinitions(pluginRegistry, reloaded.Plugins)
		})
	}

	return s, nil
}

// registerDefinitions registers (or re-registers, replace-in-place) the
// configured plugin definitions.
func registerDefinitions(registry *plugins.Registry, defs []plugins.Definition) {
	for _, def := range defs {
		if err := registry.RegisterDefinition(def); err != nil {
			logging.Error("Bootstrap", err, "Cannot register plugin definition %s", def.ID)
		}
	}
}
