// Package runtimedriver abstracts the per-language install/spawn behavior
// the Sandbox Manager needs, replacing the teacher's duck-typed per-runtime
// code (WorkspaceCloner/ContainerHook in the original apple-container
// wrapper) with an explicit capability-set interface, per spec.md §9
// Design Note promoted to a first-class data-model entry.
package runtimedriver

import (
	"context"
	"os/exec"

	"github.com/pactown/pactown/internal/markpact"
)

// LogFunc receives a line of installer output as it streams, so callers can
// tee it into the supervisor's log ring or a plain stdout writer.
type LogFunc func(line string)

// Driver is the capability set a single language runtime must provide.
type Driver interface {
	// Name identifies the driver for logging and manifest runtime.type.
	Name() string
	// Detect reports whether this driver should handle a sandbox whose
	// file blocks wrote the given relative paths and whose deps blocks
	// parsed to the given specifiers.
	Detect(files []string, deps []markpact.DepSpec) bool
	// Scaffold writes the runtime's dependency manifest (requirements.txt,
	// package.json, ...) without invoking the package manager. The Sandbox
	// Manager calls this unconditionally, even when dependency installation
	// itself is skipped, so a materialized sandbox always carries the
	// manifest file a later `pip install`/`npm install` would need.
	Scaffold(sandboxDir string, deps []markpact.DepSpec) error
	// Install runs the package manager against sandboxDir, writing its
	// manifest (requirements.txt, package.json, ...) first if needed.
	// onLog is called once per line of subprocess output; it may be nil.
	Install(ctx context.Context, sandboxDir string, deps []markpact.DepSpec, env map[string]string, onLog LogFunc) error
	// Spawn prepares (but does not start) the exec.Cmd for the service's
	// run command, with the runtime's own environment conventions
	// (e.g. PYTHONUNBUFFERED=1) layered under the caller's env.
	Spawn(ctx context.Context, sandboxDir, runCmd string, env map[string]string) (*exec.Cmd, error)
}

// Registry is a priority-ordered list of drivers; Resolve picks the first
// whose Detect returns true, matching the teacher's registration-order
// convention for chained hooks/handlers.
type Registry struct {
	drivers []Driver
}

// NewRegistry builds an immutable registry from drivers, in priority order.
func NewRegistry(drivers ...Driver) *Registry {
	return &Registry{drivers: append([]Driver{}, drivers...)}
}

// Resolve returns the first registered driver that detects ownership of
// files/deps. If none claims it and the registry is non-empty, the first
// registered driver is returned as the default, the same "no signal found,
// fall back to the first-registered option" shape as Target Resolver's
// (web, generic) fallback.
func (r *Registry) Resolve(files []string, deps []markpact.DepSpec) Driver {
	for _, d := range r.drivers {
		if d.Detect(files, deps) {
			return d
		}
	}
	if len(r.drivers) > 0 {
		return r.drivers[0]
	}
	return nil
}

// ByName returns the registered driver with the given Name(), or nil.
func (r *Registry) ByName(name string) Driver {
	for _, d := range r.drivers {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// Default returns the standard registry wired for this implementation:
// Python first (the original project's primary runtime, per
// original_source/examples/fast-start-demo/demo.py), then Node.
func Default() *Registry {
	return NewRegistry(NewPythonDriver(), NewNodeDriver())
}
