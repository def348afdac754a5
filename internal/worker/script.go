package worker

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"roost/internal/plugins"
	"roost/internal/template"
	"roost/pkg/logging"
)

// RuntimeEnvVar can name the interpreter to use for script workers whose
// definition carries no explicit runtime hint.
const RuntimeEnvVar = "ROOST_SCRIPT_RUNTIME"

// Script is the worker variant that launches the definition's target
// through an interpreter (runtime wrapper).
type Script struct {
	base
}

// NewScript creates a script worker for the given instance id.
func NewScript(id string, def plugins.Definition) *Script {
	return &Script{base: newBase(id, def)}
}

func (s *Script) Type() plugins.Type { return plugins.TypeScript }

// Start resolves the runtime wrapper and launches the script through it.
// The script path becomes the wrapper's first argument, followed by the
// definition's own arguments.
func (s *Script) Start(ctx context.Context, tc *template.Context) error {
	wrapper := s.resolveRuntime(tc)
	args := append([]string{s.def.Executable}, s.def.Arguments...)
	logging.Debug(s.logContext(), "Using runtime wrapper %s", wrapper)
	return s.launch(ctx, tc, wrapper, args)
}

// resolveRuntime picks the interpreter: the definition's explicit hint
// first, then the environment hint, then file-extension sniffing.
func (s *Script) resolveRuntime(tc *template.Context) string {
	if s.def.Runtime != "" {
		return template.Expand(s.def.Runtime, tc)
	}
	if env := os.Getenv(RuntimeEnvVar); env != "" {
		return env
	}
	return runtimeForExtension(filepath.Ext(s.def.Executable))
}

func runtimeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".sh":
		return "sh"
	case ".py":
		if runtime.GOOS == "windows" {
			return "python"
		}
		return "python3"
	case ".js":
		return "node"
	default:
		// .ps1 and anything unrecognized go to the platform script host.
		return platformScriptHost()
	}
}

func platformScriptHost() string {
	if runtime.GOOS == "windows" {
		return "powershell"
	}
	return "sh"
}
