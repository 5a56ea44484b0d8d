// Package runner implements the Service Runner: FastRun, the single
// entrypoint that turns a ServiceConfig and README content into a running,
// health-checked process, per spec §4.7/§4.9's ordering guarantee.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/pactownerr"
	"github.com/pactown/pactown/internal/runtimedriver"
	"github.com/pactown/pactown/internal/sandboxmgr"
	"github.com/pactown/pactown/internal/security"
	"github.com/pactown/pactown/internal/supervisor"
	"github.com/pactown/pactown/internal/telemetry"
)

// Result is what FastRun returns on every path: a structured success/failure
// envelope plus, on success, the spawned process's handle and sandbox.
type Result struct {
	pactownerr.Result
	Sandbox *sandboxmgr.Sandbox
	Handle  *supervisor.ProcessHandle
}

// ServiceRunner ties the Security Policy, Sandbox Manager, and Process
// Supervisor together behind a single FastRun call.
type ServiceRunner struct {
	Policy     *security.Policy
	Sandboxes  *sandboxmgr.Manager
	Supervisor *supervisor.Supervisor

	// HealthTimeout bounds how long FastRun waits for the health check to
	// pass before giving up. Zero uses the supervisor's own default.
	HealthTimeout time.Duration
	// SkipHealthCheck lets callers (tests, services with no health
	// endpoint) opt out of polling entirely.
	SkipHealthCheck bool
}

// New builds a ServiceRunner with a default Security Policy.
func New(sandboxes *sandboxmgr.Manager, sup *supervisor.Supervisor) *ServiceRunner {
	return &ServiceRunner{Policy: security.DefaultPolicy(), Sandboxes: sandboxes, Supervisor: sup}
}

// FastRun implements the six-step contract from spec §4.7/§4.9:
//
//	(security check) -> (temp file write) -> (sandbox read/create) ->
//	(install) -> (spawn) -> (health check) -> (return)
//
// readmeContent is written to a temp file immediately so CreateSandbox can
// operate uniformly on a path; the temp file is removed via a defer placed
// right after os.CreateTemp succeeds, so it is cleaned up on every return path,
// including a panic the caller recovers from.
func (r *ServiceRunner) FastRun(ctx context.Context, svc config.ServiceConfig, readmeContent []byte, caller string, installDependencies bool, onLog runtimedriver.LogFunc) Result {
	ctx, end := telemetry.StartSpan(ctx, "runner.fast_run")
	defer end()

	decision := r.Policy.CheckCanStart(svc.Name, caller)
	if !decision.Allowed {
		err := pactownerr.New(pactownerr.KindPolicyDenied, decision.Reason, nil)
		slog.WarnContext(ctx, "runner: policy denied start", "service", svc.Name, "caller", caller, "delay_seconds", decision.DelaySeconds)
		return Result{Result: pactownerr.Result{Success: false, Message: err.Error(), Kind: pactownerr.KindPolicyDenied}}
	}

	tmp, err := os.CreateTemp("", "pactown-readme-*.md")
	if err != nil {
		return errResult(pactownerr.KindSpawn, fmt.Errorf("runner: create temp readme: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(readmeContent); err != nil {
		tmp.Close()
		return errResult(pactownerr.KindSpawn, fmt.Errorf("runner: write temp readme: %w", err))
	}
	if err := tmp.Close(); err != nil {
		return errResult(pactownerr.KindSpawn, fmt.Errorf("runner: close temp readme: %w", err))
	}

	sb, err := r.Sandboxes.CreateSandbox(ctx, svc, tmp.Name(), installDependencies, onLog, svc.Env)
	if err != nil {
		return errResult(pactownerr.KindDependencyInstall, err)
	}

	cmd, err := spawnCommand(sb, svc.Env)
	if err != nil {
		return errResult(pactownerr.KindSpawn, err)
	}

	healthPath := ""
	if !r.SkipHealthCheck {
		healthPath = svc.HealthCheck
	}

	handle, err := r.Supervisor.Start(ctx, supervisor.StartOptions{
		ServiceID:     svc.Name,
		Cmd:           cmd,
		Port:          svc.Port,
		HealthPath:    healthPath,
		HealthTimeout: r.HealthTimeout,
	})
	if err != nil {
		kind := pactownerr.KindSpawn
		if handle != nil {
			kind = pactownerr.KindHealthTimeout
		}
		return errResult(kind, err)
	}

	return Result{
		Result:  pactownerr.Result{Success: true},
		Sandbox: sb,
		Handle:  handle,
	}
}

func errResult(kind pactownerr.Kind, err error) Result {
	wrapped := pactownerr.New(kind, err.Error(), err)
	return Result{Result: pactownerr.Result{Success: false, Message: wrapped.Error(), Kind: kind}}
}

// spawnCommand builds the exec.Cmd for a materialized sandbox's run
// command. The run command is whatever shell line the markpact run block
// specified, executed from inside the sandbox directory so relative paths
// resolve against the files CreateSandbox wrote there.
//
// The child's environment always carries MARKPACT_PORT and PORT set to the
// sandbox's allocated port, per spec §6's process boundary contract — a run
// command like `uvicorn main:app --port ${MARKPACT_PORT:-8000}` or
// `process.env.MARKPACT_PORT` depends on the shell/runtime resolving these
// at spawn time, not on any textual rewriting of the run command itself.
func spawnCommand(sb *sandboxmgr.Sandbox, env map[string]string) (*exec.Cmd, error) {
	if sb.RunCmd == "" {
		return nil, fmt.Errorf("runner: sandbox %s has no run command", sb.ServiceName)
	}
	cmd := exec.Command("/bin/sh", "-c", sb.RunCmd)
	cmd.Dir = sb.Path

	merged := os.Environ()
	for k, v := range env {
		merged = append(merged, k+"="+v)
	}
	portStr := strconv.Itoa(sb.Port)
	merged = append(merged, "MARKPACT_PORT="+portStr, "PORT="+portStr)
	cmd.Env = merged

	return cmd, nil
}
