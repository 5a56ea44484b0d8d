// Package targets resolves a markpact document's deployment target — the
// platform/framework pairing used to pick a build command, artifact glob,
// and base Docker image — and classifies its runtime (python, node, ...).
package targets

import (
	"fmt"

	"github.com/google/go-containerregistry/pkg/name"
)

// Platform is the coarse deployment shape a framework targets.
type Platform string

const (
	PlatformWeb     Platform = "web"
	PlatformDesktop Platform = "desktop"
	PlatformMobile  Platform = "mobile"
	PlatformCLI     Platform = "cli"
	PlatformWorker  Platform = "worker"
)

// TargetConfig is the resolved deployment target for a service, derived
// either from an explicit target block or inferred from dependency names.
type TargetConfig struct {
	Platform         Platform
	Framework        string
	BuildCmd         string
	ArtifactPatterns []string
	Meta             map[string]string
}

// FrameworkMeta is one immutable, process-wide registry entry: everything
// needed to scaffold and containerize a service once its framework is known.
type FrameworkMeta struct {
	Name             string
	Platform         Platform
	DefaultBuildCmd  string
	ArtifactPatterns []string
	BaseImage        string
	ScaffoldHints    []string
}

// registry is the framework lookup table. It is populated once at package
// init and never mutated afterward, matching spec §5 ("the framework
// registry is read-only after initialization").
var registry = map[string]FrameworkMeta{
	"fastapi": {
		Name:             "fastapi",
		Platform:         PlatformWeb,
		DefaultBuildCmd:  "pip install -r requirements.txt",
		ArtifactPatterns: []string{"**/*.py"},
		BaseImage:        "python:3.12-slim",
		ScaffoldHints:    []string{"main.py", "requirements.txt"},
	},
	"django": {
		Name:             "django",
		Platform:         PlatformWeb,
		DefaultBuildCmd:  "pip install -r requirements.txt",
		ArtifactPatterns: []string{"**/*.py"},
		BaseImage:        "python:3.12-slim",
		ScaffoldHints:    []string{"manage.py", "requirements.txt"},
	},
	"flask": {
		Name:             "flask",
		Platform:         PlatformWeb,
		DefaultBuildCmd:  "pip install -r requirements.txt",
		ArtifactPatterns: []string{"**/*.py"},
		BaseImage:        "python:3.12-slim",
		ScaffoldHints:    []string{"app.py", "requirements.txt"},
	},
	"express": {
		Name:             "express",
		Platform:         PlatformWeb,
		DefaultBuildCmd:  "npm install",
		ArtifactPatterns: []string{"**/*.js"},
		BaseImage:        "node:22-slim",
		ScaffoldHints:    []string{"server.js", "package.json"},
	},
	"next": {
		Name:             "next",
		Platform:         PlatformWeb,
		DefaultBuildCmd:  "npm install && npm run build",
		ArtifactPatterns: []string{".next/**"},
		BaseImage:        "node:22-slim",
		ScaffoldHints:    []string{"package.json"},
	},
	"electron": {
		Name:             "electron",
		Platform:         PlatformDesktop,
		DefaultBuildCmd:  "npm install && npm run build",
		ArtifactPatterns: []string{"dist/**"},
		BaseImage:        "node:22-slim",
		ScaffoldHints:    []string{"package.json"},
	},
	"generic": {
		Name:             "generic",
		Platform:         PlatformWeb,
		DefaultBuildCmd:  "",
		ArtifactPatterns: nil,
		BaseImage:        "debian:bookworm-slim",
	},
}

// Lookup returns the registry entry for framework, and whether it exists.
func Lookup(framework string) (FrameworkMeta, bool) {
	fm, ok := registry[framework]
	return fm, ok
}

// ValidateBaseImage normalizes and validates a FrameworkMeta's base image
// reference the way a Dockerfile FROM line would need it: a well-formed
// registry/repository[:tag|@digest]. Malformed entries in the registry are
// a programming error caught here rather than surfacing as a cryptic
// docker build failure much later in the pipeline.
func ValidateBaseImage(fm FrameworkMeta) (name.Reference, error) {
	ref, err := name.ParseReference(fm.BaseImage, name.WeakValidation)
	if err != nil {
		return nil, fmt.Errorf("targets: framework %q has invalid base image %q: %w", fm.Name, fm.BaseImage, err)
	}
	return ref, nil
}
