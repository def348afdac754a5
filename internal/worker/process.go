package worker

import (
	"context"

	"roost/internal/plugins"
	"roost/internal/template"
)

// Process is the worker variant that launches the definition's executable
// directly.
type Process struct {
	base
}

// NewProcess creates a process worker for the given instance id.
func NewProcess(id string, def plugins.Definition) *Process {
	return &Process{base: newBase(id, def)}
}

func (p *Process) Type() plugins.Type { return plugins.TypeProcess }

// Start launches the executable with its arguments, both expanded through
// the template context.
func (p *Process) Start(ctx context.Context, tc *template.Context) error {
	return p.launch(ctx, tc, p.def.Executable, p.def.Arguments)
}
