package app

import "roost/internal/plugins"

// UnitWriter renders native service-manager unit text (systemd unit,
// launchd plist, Windows service definition) for a plugin definition.
// Generation itself is an external collaborator; the agent only fixes the
// contract.
type UnitWriter interface {
	// WriteUnit returns the unit text for the definition, with launch
	// parameters anchored at installFolder.
	WriteUnit(def plugins.Definition, installFolder string) (string, error)
}
