package runtimedriver

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pactown/pactown/internal/markpact"
	"github.com/pactown/pactown/internal/runtimedriver/cliflags"
)

// NodeDriver installs dependencies with npm into a package.json and spawns
// the run command through node/npm, the way the original's node_modules
// caching support materializes a Node service.
type NodeDriver struct{}

func NewNodeDriver() *NodeDriver { return &NodeDriver{} }

func (d *NodeDriver) Name() string { return "node" }

func (d *NodeDriver) Detect(files []string, deps []markpact.DepSpec) bool {
	for _, f := range files {
		if strings.HasSuffix(f, ".js") || strings.HasSuffix(f, ".ts") || strings.HasSuffix(f, ".mjs") {
			return true
		}
	}
	return false
}

// Scaffold writes package.json without running npm, so a sandbox
// materialized with dependency installation skipped still carries the
// manifest file a later `npm install` would need.
func (d *NodeDriver) Scaffold(sandboxDir string, deps []markpact.DepSpec) error {
	return writePackageJSON(filepath.Join(sandboxDir, "package.json"), deps)
}

func (d *NodeDriver) Install(ctx context.Context, sandboxDir string, deps []markpact.DepSpec, env map[string]string, onLog LogFunc) error {
	if err := d.Scaffold(sandboxDir, deps); err != nil {
		return err
	}
	if len(deps) == 0 {
		return nil
	}

	opts := cliflags.NpmInstallOptions{NoAudit: true, NoFund: true}
	if registry := env["NPM_REGISTRY"]; registry != "" {
		opts.Registry = registry
	}
	args := append([]string{"install"}, cliflags.ToArgs(&opts)...)

	cmd := exec.CommandContext(ctx, "npm", args...)
	cmd.Dir = sandboxDir
	cmd.Env = mergeEnv(os.Environ(), env)
	return runStreamed(cmd, onLog)
}

func (d *NodeDriver) Spawn(ctx context.Context, sandboxDir, runCmd string, env map[string]string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", runCmd)
	cmd.Dir = sandboxDir
	cmd.Env = mergeEnv(os.Environ(), env)
	return cmd, nil
}

// packageJSON is the minimal shape written for a scaffolded service; real
// user-authored package.json files (if a file block already wrote one) are
// left untouched — writePackageJSON only runs when no file block owns that
// path, enforced by the caller (Sandbox Manager).
type packageJSON struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

func writePackageJSON(path string, deps []markpact.DepSpec) error {
	pkg := packageJSON{Name: "markpact-service", Version: "0.0.0", Dependencies: map[string]string{}}
	for _, d := range deps {
		version := "*"
		if idx := strings.Index(d.Raw, "@"); idx > 0 {
			version = d.Raw[idx+1:]
		}
		pkg.Dependencies[d.Name] = version
	}
	data, err := json.MarshalIndent(pkg, "", "  ")
	if err != nil {
		return fmt.Errorf("runtimedriver: marshal package.json: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("runtimedriver: write package.json: %w", err)
	}
	return nil
}
