package runtimedriver

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pactown/pactown/internal/markpact"
	"github.com/pactown/pactown/internal/runtimedriver/cliflags"
)

// PythonDriver installs dependencies with pip into a requirements.txt and
// spawns the run command through a plain shell, the way the original
// fast-start demo's service_runner drives a python process.
type PythonDriver struct{}

func NewPythonDriver() *PythonDriver { return &PythonDriver{} }

func (d *PythonDriver) Name() string { return "python" }

func (d *PythonDriver) Detect(files []string, deps []markpact.DepSpec) bool {
	for _, f := range files {
		if strings.HasSuffix(f, ".py") {
			return true
		}
	}
	return false
}

// Scaffold writes requirements.txt without running pip, so a sandbox
// materialized with dependency installation skipped still carries the
// manifest file a later `pip install` would need.
func (d *PythonDriver) Scaffold(sandboxDir string, deps []markpact.DepSpec) error {
	return writeRequirements(filepath.Join(sandboxDir, "requirements.txt"), deps)
}

func (d *PythonDriver) Install(ctx context.Context, sandboxDir string, deps []markpact.DepSpec, env map[string]string, onLog LogFunc) error {
	if err := d.Scaffold(sandboxDir, deps); err != nil {
		return err
	}
	if len(deps) == 0 {
		return nil
	}

	opts := cliflags.PipInstallOptions{Requirement: "requirements.txt", NoCacheDir: true}
	if idx := env["PIP_INDEX_URL"]; idx != "" {
		opts.IndexURL = idx
	}
	args := append([]string{"install"}, cliflags.ToArgs(&opts)...)

	cmd := exec.CommandContext(ctx, "pip", args...)
	cmd.Dir = sandboxDir
	cmd.Env = mergeEnv(os.Environ(), env)
	return runStreamed(cmd, onLog)
}

func (d *PythonDriver) Spawn(ctx context.Context, sandboxDir, runCmd string, env map[string]string) (*exec.Cmd, error) {
	cmd := exec.CommandContext(ctx, "/bin/sh", "-c", runCmd)
	cmd.Dir = sandboxDir
	cmd.Env = mergeEnv(append(os.Environ(), "PYTHONUNBUFFERED=1"), env)
	return cmd, nil
}

func writeRequirements(path string, deps []markpact.DepSpec) error {
	var b strings.Builder
	for _, d := range deps {
		b.WriteString(d.Raw)
		b.WriteString("\n")
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("runtimedriver: write requirements.txt: %w", err)
	}
	return nil
}

// mergeEnv layers override on top of base, base entries first so override
// wins on key collision (os/exec.Cmd.Env honors last-write on duplicate
// keys the same way the process environment does).
func mergeEnv(base []string, override map[string]string) []string {
	env := append([]string{}, base...)
	for k, v := range override {
		env = append(env, k+"="+v)
	}
	return env
}

// runStreamed runs cmd to completion, calling onLog once per line of
// combined stdout/stderr output as it arrives.
func runStreamed(cmd *exec.Cmd, onLog LogFunc) error {
	if onLog == nil {
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("runtimedriver: %s: %w: %s", cmd.Path, err, out)
		}
		return nil
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return err
	}
	cmd.Stderr = cmd.Stdout
	if err := cmd.Start(); err != nil {
		return err
	}
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		onLog(scanner.Text())
	}
	return cmd.Wait()
}
