// Package manifest writes the three sibling files a materialized sandbox
// needs for portability outside this process: pactown.sandbox.yaml (the
// persisted descriptor), a Dockerfile, and a docker-compose.yaml.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pactown/pactown/internal/markpact"
	"github.com/pactown/pactown/internal/targets"
)

const apiVersion = "pactown.dev/v1alpha1"

// Manifest mirrors the SandboxManifest data model from spec §3, marshaled
// to `pactown.sandbox.yaml`. Field names/nesting match
// original_source/tests/test_iac_manifest.py exactly: spec.runtime.type,
// spec.run.port, spec.health.path, spec.env.keys.
type Manifest struct {
	Kind       string       `yaml:"kind"`
	APIVersion string       `yaml:"apiVersion"`
	Metadata   MetadataSpec `yaml:"metadata"`
	Spec       ManifestSpec `yaml:"spec"`
}

type MetadataSpec struct {
	Name string `yaml:"name"`
}

type ManifestSpec struct {
	Runtime RuntimeSpec `yaml:"runtime"`
	Deps    []string    `yaml:"deps,omitempty"`
	Run     RunSpec     `yaml:"run"`
	Health  HealthSpec  `yaml:"health,omitempty"`
	Env     EnvSpec     `yaml:"env,omitempty"`
}

type RuntimeSpec struct {
	Type string `yaml:"type"`
}

type RunSpec struct {
	Command string `yaml:"command"`
	Port    int    `yaml:"port"`
}

type HealthSpec struct {
	Path string `yaml:"path,omitempty"`
}

type EnvSpec struct {
	// Keys carries only env *names*, never values — persisting a value
	// here would leak secrets into a file meant for portability/version
	// control (spec §6 env-leakage invariant).
	Keys []string `yaml:"keys,omitempty"`
}

// BuildManifest assembles a Manifest from the resolved pipeline state. env
// is the caller's raw env map; only its keys are retained.
func BuildManifest(name string, runtime markpact.RuntimeKind, deps []markpact.DepSpec, runCmd string, port int, healthPath string, env map[string]string) Manifest {
	depSpecs := make([]string, 0, len(deps))
	for _, d := range deps {
		depSpecs = append(depSpecs, d.Raw)
	}

	keys := make([]string, 0, len(env))
	for k := range env {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return Manifest{
		Kind:       "Sandbox",
		APIVersion: apiVersion,
		Metadata:   MetadataSpec{Name: name},
		Spec: ManifestSpec{
			Runtime: RuntimeSpec{Type: string(runtime)},
			Deps:    depSpecs,
			Run:     RunSpec{Command: runCmd, Port: port},
			Health:  HealthSpec{Path: healthPath},
			Env:     EnvSpec{Keys: keys},
		},
	}
}

// Write emits pactown.sandbox.yaml, Dockerfile, and docker-compose.yaml as
// sibling files under sandboxDir. fm supplies the base image; when deps
// is empty or the runtime has no package.json/requirements.txt of its own,
// the Dockerfile still builds (pip/npm with no deps is a no-op).
func Write(sandboxDir string, m Manifest, fm targets.FrameworkMeta) error {
	if err := writeManifestYAML(sandboxDir, m); err != nil {
		return err
	}
	if err := writeDockerfile(sandboxDir, m, fm); err != nil {
		return err
	}
	if err := writeCompose(sandboxDir, m); err != nil {
		return err
	}
	return nil
}

func writeManifestYAML(sandboxDir string, m Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	path := filepath.Join(sandboxDir, "pactown.sandbox.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write %s: %w", path, err)
	}
	return nil
}

func writeDockerfile(sandboxDir string, m Manifest, fm targets.FrameworkMeta) error {
	ref, err := targets.ValidateBaseImage(fm)
	if err != nil {
		return err
	}

	var installLine string
	switch markpact.RuntimeKind(m.Spec.Runtime.Type) {
	case markpact.RuntimeNode:
		installLine = "RUN npm install --no-audit --no-fund || true"
	default:
		installLine = "RUN pip install --no-cache-dir -r requirements.txt || true"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "FROM %s\n", ref.Name())
	b.WriteString("WORKDIR /app\n")
	b.WriteString("COPY . /app\n")
	b.WriteString(installLine + "\n")
	fmt.Fprintf(&b, "EXPOSE %d\n", m.Spec.Run.Port)
	fmt.Fprintf(&b, "CMD [\"/bin/sh\", \"-c\", %q]\n", m.Spec.Run.Command)

	path := filepath.Join(sandboxDir, "Dockerfile")
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("manifest: write Dockerfile: %w", err)
	}
	return nil
}

// composeFile is the minimal shape docker-compose.yaml needs; only port
// mapping and the service name vary per sandbox.
type composeFile struct {
	Services map[string]composeService `yaml:"services"`
}

type composeService struct {
	Build string   `yaml:"build"`
	Ports []string `yaml:"ports"`
}

func writeCompose(sandboxDir string, m Manifest) error {
	cf := composeFile{
		Services: map[string]composeService{
			m.Metadata.Name: {
				Build: ".",
				Ports: []string{fmt.Sprintf("%d:%d", m.Spec.Run.Port, m.Spec.Run.Port)},
			},
		},
	}
	data, err := yaml.Marshal(cf)
	if err != nil {
		return fmt.Errorf("manifest: marshal compose: %w", err)
	}
	path := filepath.Join(sandboxDir, "docker-compose.yaml")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("manifest: write docker-compose.yaml: %w", err)
	}
	return nil
}
