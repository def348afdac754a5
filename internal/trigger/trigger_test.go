package trigger

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roost/internal/bus"
	"roost/internal/devices"
	"roost/internal/plugins"
	"roost/internal/template"
)

type fakeOrchestrator struct {
	mu       sync.Mutex
	started  []string
	stopped  []string
	contexts map[string]*template.Context
	failIDs  map[string]bool
}

func newFakeOrchestrator() *fakeOrchestrator {
	return &fakeOrchestrator{
		contexts: make(map[string]*template.Context),
		failIDs:  make(map[string]bool),
	}
}

func (f *fakeOrchestrator) StartInstance(ctx context.Context, definitionID string, tc *template.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, definitionID)
	f.contexts[definitionID] = tc
	return !f.failIDs[definitionID]
}

func (f *fakeOrchestrator) StopInstance(instanceID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, instanceID)
	return true
}

func triggeredDefinition(id string, rule plugins.TriggerRule) plugins.Definition {
	return plugins.Definition{
		ID:         id,
		Type:       plugins.TypeProcess,
		Executable: "worker",
		Enabled:    true,
		TriggerOn:  rule,
	}
}

func testDevice() devices.Device {
	return devices.Device{
		ID:       "emulator-5554",
		Platform: devices.PlatformAndroid,
		Name:     "Pixel 8",
		State:    devices.StateConnected,
	}
}

func setup(t *testing.T, defs ...plugins.Definition) (*bus.Bus, *fakeOrchestrator) {
	t.Helper()
	b := bus.New()
	registry := plugins.NewRegistry()
	for _, def := range defs {
		require.NoError(t, registry.RegisterDefinition(def))
	}
	orch := newFakeOrchestrator()
	New(b, registry, orch, "/opt/roost").Bind()
	return b, orch
}

func TestConnectStartsOnlyMatchingEnabledDefinitions(t *testing.T) {
	connect := triggeredDefinition("on-connect", plugins.TriggerOnDeviceConnect)

	disabled := triggeredDefinition("disabled", plugins.TriggerOnDeviceConnect)
	disabled.Enabled = false

	disconnect := triggeredDefinition("on-disconnect", plugins.TriggerOnDeviceDisconnect)
	untriggered := triggeredDefinition("manual", plugins.TriggerNone)

	b, orch := setup(t, connect, disabled, disconnect, untriggered)
	b.Publish(bus.Event{Type: bus.DeviceConnected, Payload: testDevice()})

	assert.Equal(t, []string{"on-connect"}, orch.started)
	assert.Empty(t, orch.stopped)
}

func TestConnectContextCarriesDeviceVariables(t *testing.T) {
	b, orch := setup(t, triggeredDefinition("p1", plugins.TriggerOnDeviceConnect))
	b.Publish(bus.Event{Type: bus.DeviceConnected, Payload: testDevice()})

	tc := orch.contexts["p1"]
	require.NotNil(t, tc)
	assert.Equal(t, "/opt/roost", tc.InstallFolder)

	id, ok := tc.Lookup("deviceId")
	require.True(t, ok)
	assert.Equal(t, "emulator-5554", id)

	name, ok := tc.Lookup("device")
	require.True(t, ok)
	assert.Equal(t, "Pixel 8", name)
}

func TestDisconnectStartsAndStops(t *testing.T) {
	cleanup := triggeredDefinition("cleanup", plugins.TriggerOnDeviceDisconnect)

	perDevice := triggeredDefinition("per-device", plugins.TriggerOnDeviceConnect)
	perDevice.StopOnDisconnect = true

	sticky := triggeredDefinition("sticky", plugins.TriggerOnDeviceConnect)

	b, orch := setup(t, cleanup, perDevice, sticky)
	b.Publish(bus.Event{Type: bus.DeviceDisconnected, Payload: testDevice()})

	assert.Equal(t, []string{"cleanup"}, orch.started)
	assert.Equal(t, []string{"per-device:emulator-5554"}, orch.stopped)
}

func TestStopOnDisconnectIgnoresEnabledFlag(t *testing.T) {
	// A definition disabled after its instances were started must still be
	// stopped when its device goes away.
	def := triggeredDefinition("p1", plugins.TriggerOnDeviceConnect)
	def.StopOnDisconnect = true
	def.Enabled = false

	b, orch := setup(t, def)
	b.Publish(bus.Event{Type: bus.DeviceDisconnected, Payload: testDevice()})

	assert.Equal(t, []string{"p1:emulator-5554"}, orch.stopped)
}

func TestFailureDoesNotBlockRemainingDefinitions(t *testing.T) {
	first := triggeredDefinition("first", plugins.TriggerOnDeviceConnect)
	second := triggeredDefinition("second", plugins.TriggerOnDeviceConnect)

	b, orch := setup(t, first, second)
	orch.failIDs["first"] = true

	b.Publish(bus.Event{Type: bus.DeviceConnected, Payload: testDevice()})

	assert.Equal(t, []string{"first", "second"}, orch.started)
}

func TestNonDevicePayloadIsIgnored(t *testing.T) {
	b, orch := setup(t, triggeredDefinition("p1", plugins.TriggerOnDeviceConnect))
	b.Publish(bus.Event{Type: bus.DeviceConnected, Payload: "not a device"})

	assert.Empty(t, orch.started)
}

func TestUnbindStopsDelivery(t *testing.T) {
	b := bus.New()
	registry := plugins.NewRegistry()
	require.NoError(t, registry.RegisterDefinition(triggeredDefinition("p1", plugins.TriggerOnDeviceConnect)))
	orch := newFakeOrchestrator()

	trig := New(b, registry, orch, "/opt/roost")
	trig.Bind()
	trig.Unbind()

	b.Publish(bus.Event{Type: bus.DeviceConnected, Payload: testDevice()})
	assert.Empty(t, orch.started)
}
