package sandboxmgr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pactown/pactown/internal/cache"
	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/fingerprint"
	"github.com/pactown/pactown/internal/manifest"
	"github.com/pactown/pactown/internal/markpact"
	"github.com/pactown/pactown/internal/runtimedriver"
	"github.com/pactown/pactown/internal/targets"
	"github.com/pactown/pactown/internal/telemetry"
)

const readmeHashFile = ".markpact-readme.sha256"

// Manager is the Sandbox Manager: it owns a sandbox root directory, the
// Dependency Cache, and the RuntimeDriver registry used to materialize and
// re-materialize service sandboxes.
type Manager struct {
	root    string
	cache   *cache.Cache
	drivers *runtimedriver.Registry
}

// NewManager constructs a Manager rooted at sandboxRoot, using c for
// dependency installs and the default runtime driver registry.
func NewManager(sandboxRoot string, c *cache.Cache) *Manager {
	return &Manager{root: sandboxRoot, cache: c, drivers: runtimedriver.Default()}
}

// CreateSandbox materializes svc's README into a sandbox directory under
// the manager's root, per spec §4.5's six-step contract: parse blocks,
// validate, resolve target/runtime, write file blocks, install
// dependencies (cache-consulted), write the manifest triple.
//
// readmePath always wins over svc.Readme when they disagree — the Open
// Question resolution recorded in SPEC_FULL.md §9.1, which lets
// ServiceRunner.FastRun hand in a temp file path without mutating the
// caller's ServiceConfig.
func (m *Manager) CreateSandbox(ctx context.Context, svc config.ServiceConfig, readmePath string, installDependencies bool, onLog runtimedriver.LogFunc, env map[string]string) (*Sandbox, error) {
	ctx, end := telemetry.StartSpan(ctx, "sandboxmgr.create_sandbox")
	defer end()

	content, err := os.ReadFile(readmePath)
	if err != nil {
		return nil, fmt.Errorf("sandboxmgr: read readme %s: %w", readmePath, err)
	}

	result := markpact.ValidateContent(string(content))
	for _, e := range result.Errors {
		slog.WarnContext(ctx, "sandboxmgr: validation", "service", svc.Name, "message", e)
	}
	if !result.Valid {
		return nil, fmt.Errorf("sandboxmgr: invalid document for service %s: %v", svc.Name, result.Errors)
	}

	blocks, err := markpact.ParseBlocks(string(content))
	if err != nil {
		return nil, fmt.Errorf("sandboxmgr: parse %s: %w", readmePath, err)
	}

	sandboxDir := filepath.Join(m.root, svc.Name)
	newHash := hashContent(content)

	if reused, err := m.tryReuse(ctx, sandboxDir, newHash); err != nil {
		slog.WarnContext(ctx, "sandboxmgr: reuse check failed", "service", svc.Name, "err", err)
	} else if reused {
		slog.InfoContext(ctx, "sandboxmgr: reusing unchanged sandbox", "service", svc.Name, "path", sandboxDir)
		return m.describeExisting(sandboxDir, svc)
	}

	if err := os.MkdirAll(sandboxDir, 0o755); err != nil {
		return nil, fmt.Errorf("sandboxmgr: mkdir %s: %w", sandboxDir, err)
	}

	var files []string
	for _, b := range blocks {
		if b.Kind != markpact.KindFile {
			continue
		}
		path := b.GetPath()
		if err := writeFileBlock(sandboxDir, path, b.Body); err != nil {
			return nil, err
		}
		files = append(files, path)
	}

	tc, runtimeKind := targets.Resolve(blocks)
	driver := m.drivers.Resolve(files, collectDeps(blocks))
	if driver == nil {
		return nil, fmt.Errorf("sandboxmgr: no runtime driver available for service %s", svc.Name)
	}

	deps := collectDeps(blocks)
	fp := fingerprint.Compute(runtimeKind, deps, config.DefaultCacheVersion)

	if err := driver.Scaffold(sandboxDir, deps); err != nil {
		return nil, fmt.Errorf("sandboxmgr: scaffold manifest for service %s: %w", svc.Name, err)
	}

	if installDependencies && len(deps) > 0 {
		if err := m.installDeps(ctx, fp, runtimeKind, deps, driver, sandboxDir, env, onLog); err != nil {
			return nil, err
		}
	}

	runCmd := findRunCommand(blocks)
	fm, ok := targets.Lookup(tc.Framework)
	if !ok {
		fm, _ = targets.Lookup("generic")
	}
	man := manifest.BuildManifest(svc.Name, runtimeKind, deps, runCmd, svc.Port, svc.HealthCheck, svc.Env)
	if err := manifest.Write(sandboxDir, man, fm); err != nil {
		return nil, err
	}

	if err := os.WriteFile(filepath.Join(sandboxDir, readmeHashFile), []byte(newHash), 0o644); err != nil {
		slog.WarnContext(ctx, "sandboxmgr: failed to persist readme hash", "service", svc.Name, "err", err)
	}

	return &Sandbox{
		Path:            sandboxDir,
		ServiceName:     svc.Name,
		RuntimeKind:     runtimeKind,
		Port:            svc.Port,
		DepsFingerprint: fp,
		RunCmd:          runCmd,
	}, nil
}

func (m *Manager) installDeps(ctx context.Context, fp fingerprint.Fingerprint, runtimeKind markpact.RuntimeKind, deps []markpact.DepSpec, driver runtimedriver.Driver, sandboxDir string, env map[string]string, onLog runtimedriver.LogFunc) error {
	_, err := m.cache.Ensure(ctx, fp, string(runtimeKind), func(ctx context.Context, stageDir string) error {
		return driver.Install(ctx, stageDir, deps, env, onLog)
	})
	if err != nil {
		return fmt.Errorf("sandboxmgr: install dependencies for fingerprint %s: %w", fp, err)
	}
	return m.cache.Rehydrate(ctx, fp, sandboxDir)
}

// tryReuse reports whether sandboxDir already holds a sandbox materialized
// from identical README content, per spec §4.5's incremental-reuse rule.
func (m *Manager) tryReuse(ctx context.Context, sandboxDir string, newHash string) (bool, error) {
	existing, err := os.ReadFile(filepath.Join(sandboxDir, readmeHashFile))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return string(existing) == newHash, nil
}

func (m *Manager) describeExisting(sandboxDir string, svc config.ServiceConfig) (*Sandbox, error) {
	data, err := os.ReadFile(filepath.Join(sandboxDir, "pactown.sandbox.yaml"))
	if err != nil {
		return nil, fmt.Errorf("sandboxmgr: read existing manifest: %w", err)
	}
	var man manifest.Manifest
	if err := yaml.Unmarshal(data, &man); err != nil {
		return nil, fmt.Errorf("sandboxmgr: unmarshal existing manifest: %w", err)
	}
	return &Sandbox{
		Path:        sandboxDir,
		ServiceName: svc.Name,
		RuntimeKind: markpact.RuntimeKind(man.Spec.Runtime.Type),
		Port:        svc.Port,
		RunCmd:      man.Spec.Run.Command,
	}, nil
}

func hashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

func writeFileBlock(sandboxDir, relPath, body string) error {
	if relPath == "" {
		return fmt.Errorf("sandboxmgr: file block has empty path")
	}
	dest := filepath.Join(sandboxDir, relPath)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("sandboxmgr: mkdir for %s: %w", relPath, err)
	}
	if err := os.WriteFile(dest, []byte(body), 0o644); err != nil {
		return fmt.Errorf("sandboxmgr: write %s: %w", relPath, err)
	}
	return nil
}

func collectDeps(blocks []markpact.Block) []markpact.DepSpec {
	var deps []markpact.DepSpec
	for _, b := range blocks {
		if b.Kind == markpact.KindDeps {
			deps = append(deps, markpact.ParseDeps(b.Body)...)
		}
	}
	return deps
}

func findRunCommand(blocks []markpact.Block) string {
	for _, b := range blocks {
		if b.Kind == markpact.KindRun {
			return b.Body
		}
	}
	return ""
}
