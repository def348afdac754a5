package devices

import "time"

// Platform is the device operating-system family.
type Platform string

const (
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// Kind distinguishes physical hardware from virtual devices.
type Kind string

const (
	KindPhysical  Kind = "physical"
	KindEmulator  Kind = "emulator"
	KindSimulator Kind = "simulator"
)

// ConnectionState is the device's current connectivity as reported by the
// device detector.
type ConnectionState string

const (
	StateConnected    ConnectionState = "Connected"
	StateDisconnected ConnectionState = "Disconnected"
	StateOffline      ConnectionState = "Offline"
	StateUnauthorized ConnectionState = "Unauthorized"
)

// SessionStatus tracks the lifecycle of a device's automation session.
type SessionStatus string

const (
	SessionStarting SessionStatus = "Starting"
	SessionRunning  SessionStatus = "Running"
	SessionFailed   SessionStatus = "Failed"
	SessionStopped  SessionStatus = "Stopped"
)

// Port roles within a session. Every session has a primary server port;
// iOS sessions additionally carry a driver port, and both platforms carry
// a stream port for screen capture.
const (
	PortServer = "server"
	PortDriver = "driver"
	PortStream = "stream"
)

// Session is the automation session bound to a single device. It is owned
// exclusively by the device it is embedded in and destroyed when the
// session stops.
type Session struct {
	ID        string         `json:"sessionId"`
	Ports     map[string]int `json:"ports"`
	StartedAt time.Time      `json:"startedAt"`
	ProcessID int            `json:"processId"`
	Status    SessionStatus  `json:"status"`
}

// clone returns a deep copy so registry readers cannot mutate shared state.
func (s *Session) clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Ports = make(map[string]int, len(s.Ports))
	for role, port := range s.Ports {
		c.Ports[role] = port
	}
	return &c
}

// PortList returns all allocated ports of the session in no particular
// order. Convenient for handing the whole set back to the allocator.
func (s *Session) PortList() []int {
	if s == nil {
		return nil
	}
	ports := make([]int, 0, len(s.Ports))
	for _, p := range s.Ports {
		ports = append(ports, p)
	}
	return ports
}

// Device is one connected (or previously seen) test device. Devices are
// created and updated by the device detector through Registry.Upsert and
// removed only by explicit pruning.
type Device struct {
	ID             string          `json:"id"`
	Platform       Platform        `json:"platform"`
	Kind           Kind            `json:"type"`
	Name           string          `json:"name"`
	State          ConnectionState `json:"state"`
	ConnectedAt    time.Time       `json:"connectedAt"`
	LastSeen       time.Time       `json:"lastSeen"`
	DisconnectedAt *time.Time      `json:"disconnectedAt,omitempty"`
	Session        *Session        `json:"appiumSession,omitempty"`
}

// Clone returns a deep copy of the device.
func (d Device) Clone() Device {
	c := d
	if d.DisconnectedAt != nil {
		t := *d.DisconnectedAt
		c.DisconnectedAt = &t
	}
	c.Session = d.Session.clone()
	return c
}
