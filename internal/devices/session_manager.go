package devices

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"roost/internal/ports"
	"roost/pkg/logging"
)

// SessionManager allocates ports and starts/stops per-device automation
// sessions. It is called by the device detector when a device becomes
// usable or goes away.
type SessionManager struct {
	allocator *ports.Allocator
	registry  *Registry
}

// NewSessionManager creates a session manager backed by the given port
// allocator and device registry.
func NewSessionManager(allocator *ports.Allocator, registry *Registry) *SessionManager {
	return &SessionManager{
		allocator: allocator,
		registry:  registry,
	}
}

// portRoles returns the ordered port roles a session needs on the given
// platform. The first role is always the primary server port.
func portRoles(platform Platform) []string {
	switch platform {
	case PlatformIOS:
		return []string{PortServer, PortDriver, PortStream}
	default:
		return []string{PortServer, PortStream}
	}
}

// StartSession allocates a consecutive port run for the device's platform,
// creates a session in Starting state, and stores it on the device in the
// registry. Returns nil (with the error) when the port range is exhausted;
// callers may retry later.
func (m *SessionManager) StartSession(device Device) (*Session, error) {
	if device.Session != nil {
		logging.Debug("SessionManager", "Device %s already has session %s", device.ID, device.Session.ID)
		return device.Session.clone(), nil
	}

	roles := portRoles(device.Platform)
	run, err := m.allocator.AllocateConsecutive(len(roles))
	if err != nil {
		if errors.Is(err, ports.ErrExhausted) {
			logging.Warn("SessionManager", "No ports available for device %s", device.ID)
		}
		return nil, fmt.Errorf("failed to allocate session ports for device %s: %w", device.ID, err)
	}

	session := &Session{
		ID:        uuid.NewString(),
		Ports:     make(map[string]int, len(roles)),
		StartedAt: time.Now(),
		Status:    SessionStarting,
	}
	for i, role := range roles {
		session.Ports[role] = run[i]
	}

	device.Session = session
	m.registry.Upsert(device)

	logging.Info("SessionManager", "Started session %s for device %s on ports %v", session.ID, device.ID, run)
	return session.clone(), nil
}

// MarkSessionRunning records the backing process id once the detector has
// launched the session's server process.
func (m *SessionManager) MarkSessionRunning(deviceID string, pid int) bool {
	device, ok := m.registry.Get(deviceID)
	if !ok || device.Session == nil {
		logging.Warn("SessionManager", "Cannot mark session running, no session for device %s", deviceID)
		return false
	}

	device.Session.ProcessID = pid
	device.Session.Status = SessionRunning
	m.registry.Upsert(device)
	return true
}

// StopSession releases the session's ports and removes the session from
// the device. Returns false when the device has no session.
func (m *SessionManager) StopSession(device Device) bool {
	current, ok := m.registry.Get(device.ID)
	if !ok {
		current = device
	}
	if current.Session == nil {
		logging.Debug("SessionManager", "Device %s has no session to stop", device.ID)
		return false
	}

	m.allocator.Release(current.Session.PortList())

	sessionID := current.Session.ID
	current.Session = nil
	m.registry.Upsert(current)

	logging.Info("SessionManager", "Stopped session %s for device %s", sessionID, device.ID)
	return true
}
