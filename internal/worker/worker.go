package worker

import (
	"fmt"

	"roost/internal/plugins"
)

// Compile-time checks that both variants satisfy the instance contract.
var (
	_ plugins.Instance = (*Process)(nil)
	_ plugins.Instance = (*Script)(nil)
)

// New constructs the worker variant selected by the definition's type tag.
func New(id string, def plugins.Definition) (plugins.Instance, error) {
	switch def.Type {
	case plugins.TypeProcess:
		return NewProcess(id, def), nil
	case plugins.TypeScript:
		return NewScript(id, def), nil
	default:
		return nil, fmt.Errorf("unknown plugin type %q for definition %s", def.Type, def.ID)
	}
}
