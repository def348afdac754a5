package trigger

import (
	"context"

	"roost/internal/bus"
	"roost/internal/devices"
	"roost/internal/plugins"
	"roost/internal/template"
	"roost/pkg/logging"
)

// Orchestrator is the slice of the plugin orchestrator the trigger drives.
type Orchestrator interface {
	StartInstance(ctx context.Context, definitionID string, tc *template.Context) bool
	StopInstance(instanceID string) bool
}

// DeviceEventTrigger maps device connectivity events to orchestrator calls
// according to each definition's trigger rule and stop-on-disconnect flag.
type DeviceEventTrigger struct {
	bus           *bus.Bus
	registry      *plugins.Registry
	orchestrator  Orchestrator
	installFolder string

	subscriptions []bus.Subscription
}

// New creates a trigger over the given bus, definition registry, and
// orchestrator. Call Bind to start receiving events.
func New(b *bus.Bus, registry *plugins.Registry, orchestrator Orchestrator, installFolder string) *DeviceEventTrigger {
	return &DeviceEventTrigger{
		bus:           b,
		registry:      registry,
		orchestrator:  orchestrator,
		installFolder: installFolder,
	}
}

// Bind subscribes the trigger to device connectivity events. Calling Bind
// twice duplicates the subscriptions, so callers bind exactly once.
func (t *DeviceEventTrigger) Bind() {
	t.subscriptions = append(t.subscriptions,
		t.bus.Subscribe(bus.DeviceConnected, t.onDeviceConnected),
		t.bus.Subscribe(bus.DeviceDisconnected, t.onDeviceDisconnected),
	)
	logging.Debug("Trigger", "Bound to device connectivity events")
}

// Unbind removes the trigger's bus subscriptions.
func (t *DeviceEventTrigger) Unbind() {
	for _, sub := range t.subscriptions {
		t.bus.Unsubscribe(sub)
	}
	t.subscriptions = nil
}

func (t *DeviceEventTrigger) onDeviceConnected(event bus.Event) error {
	device, ok := event.Payload.(devices.Device)
	if !ok {
		logging.Warn("Trigger", "Ignoring %s event with payload %T", event.Type, event.Payload)
		return nil
	}
	logging.Info("Trigger", "Device %s connected", device.ID)

	tc := t.contextFor(device)
	for _, def := range t.registry.Definitions() {
		if !def.Enabled || def.TriggerOn != plugins.TriggerOnDeviceConnect {
			continue
		}
		if !t.orchestrator.StartInstance(context.Background(), def.ID, tc) {
			logging.Warn("Trigger", "Connect-triggered start failed for %s on device %s", def.ID, device.ID)
		}
	}
	return nil
}

func (t *DeviceEventTrigger) onDeviceDisconnected(event bus.Event) error {
	device, ok := event.Payload.(devices.Device)
	if !ok {
		logging.Warn("Trigger", "Ignoring %s event with payload %T", event.Type, event.Payload)
		return nil
	}
	logging.Info("Trigger", "Device %s disconnected", device.ID)

	tc := t.contextFor(device)
	for _, def := range t.registry.Definitions() {
		switch {
		case def.Enabled && def.TriggerOn == plugins.TriggerOnDeviceDisconnect:
			if !t.orchestrator.StartInstance(context.Background(), def.ID, tc) {
				logging.Warn("Trigger", "Disconnect-triggered start failed for %s on device %s", def.ID, device.ID)
			}
		case def.TriggerOn == plugins.TriggerOnDeviceConnect && def.StopOnDisconnect:
			instanceID := plugins.InstanceID(def.ID, device.ID)
			if !t.orchestrator.StopInstance(instanceID) {
				logging.Debug("Trigger", "No instance %s to stop on disconnect", instanceID)
			}
		}
	}
	return nil
}

// contextFor builds the correlation context for a device event. Workers see
// the device through {deviceId} and {device} placeholders.
func (t *DeviceEventTrigger) contextFor(device devices.Device) *template.Context {
	return &template.Context{
		InstallFolder: t.installFolder,
		Variables: map[string]string{
			"deviceId": device.ID,
			"device":   device.Name,
			"platform": string(device.Platform),
		},
	}
}
