package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roost/internal/devices"
)

func writeAgentConfig(t *testing.T, content string) (dir, path string) {
	t.Helper()
	dir = t.TempDir()
	path = filepath.Join(dir, "roost.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return dir, path
}

func TestNewApplicationWiresCore(t *testing.T) {
	dir, path := writeAgentConfig(t, `
ports:
  start: 43000
  end: 43009
plugins:
  - id: appium
    type: process
    executable: appium
    restartPolicy: OnFailure
    enabled: false
`)

	app, err := NewApplication(&Config{
		ConfigPath:    path,
		InstallFolder: dir,
		Silent:        true,
	})
	require.NoError(t, err)

	s := app.Services()
	require.NotNil(t, s.Bus)
	require.NotNil(t, s.Allocator)
	require.NotNil(t, s.DeviceRegistry)
	require.NotNil(t, s.SessionManager)
	require.NotNil(t, s.Orchestrator)
	require.NotNil(t, s.Trigger)
	assert.Nil(t, s.Watcher, "watcher only built when requested")

	defs := s.PluginRegistry.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "appium", defs[0].ID)
}

func TestNewApplicationRejectsInvalidConfig(t *testing.T) {
	dir, path := writeAgentConfig(t, `
ports:
  start: 500
  end: 400
`)

	_, err := NewApplication(&Config{ConfigPath: path, InstallFolder: dir, Silent: true})
	assert.Error(t, err)
}

func TestNewApplicationMissingConfigUsesDefaults(t *testing.T) {
	dir := t.TempDir()
	app, err := NewApplication(&Config{
		ConfigPath:    filepath.Join(dir, "absent.yaml"),
		InstallFolder: dir,
		Silent:        true,
	})
	require.NoError(t, err)
	assert.Empty(t, app.Services().PluginRegistry.Definitions())
}

func TestRunShutsDownCleanly(t *testing.T) {
	dir, path := writeAgentConfig(t, `
autosaveIntervalSeconds: 1
ports:
  start: 43100
  end: 43109
`)

	app, err := NewApplication(&Config{ConfigPath: path, InstallFolder: dir, Silent: true})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- app.Run(ctx)
	}()

	// Mutate the registry so shutdown has something to flush.
	app.Services().DeviceRegistry.Upsert(devices.Device{
		ID:       "emulator-5554",
		Platform: devices.PlatformAndroid,
		State:    devices.StateConnected,
	})
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("agent did not shut down")
	}

	_, err = os.Stat(filepath.Join(dir, "devices.json"))
	assert.NoError(t, err, "registry must be flushed on shutdown")
}
