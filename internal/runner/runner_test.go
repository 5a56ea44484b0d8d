package runner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pactown/pactown/internal/cache"
	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/sandboxmgr"
	"github.com/pactown/pactown/internal/security"
	"github.com/pactown/pactown/internal/supervisor"
)

const pythonReadme = "```python markpact:file path=main.py\n" +
	"print('hi')\n" +
	"```\n" +
	"```bash markpact:run\n" +
	"echo started\n" +
	"```\n"

func newTestRunner(t *testing.T) *ServiceRunner {
	t.Helper()
	c, err := cache.Open(config.CacheConfig{CacheRoot: t.TempDir()}, 2)
	if err != nil {
		t.Fatalf("cache.Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })

	mgr := sandboxmgr.NewManager(t.TempDir(), c)
	sup := supervisor.New("")
	r := New(mgr, sup)
	r.SkipHealthCheck = true
	return r
}

func TestFastRunHappyPathReturnsRunningHandle(t *testing.T) {
	r := newTestRunner(t)
	svc := config.ServiceConfig{Name: "api", Port: 18080}

	result := r.FastRun(context.Background(), svc, []byte(pythonReadme), "caller-1", false, nil)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Result)
	}
	if result.Handle == nil {
		t.Fatal("expected a process handle on success")
	}
	if result.Sandbox == nil || result.Sandbox.Path == "" {
		t.Fatal("expected a materialized sandbox on success")
	}
}

func TestFastRunCleansUpTempReadmeOnSuccess(t *testing.T) {
	r := newTestRunner(t)
	svc := config.ServiceConfig{Name: "api", Port: 18081}

	before, _ := filepath.Glob(filepath.Join(os.TempDir(), "pactown-readme-*.md"))

	result := r.FastRun(context.Background(), svc, []byte(pythonReadme), "caller-1", false, nil)
	if !result.Success {
		t.Fatalf("expected success, got %+v", result.Result)
	}

	after, _ := filepath.Glob(filepath.Join(os.TempDir(), "pactown-readme-*.md"))
	if len(after) > len(before) {
		t.Errorf("expected temp readme to be cleaned up, before=%v after=%v", before, after)
	}
}

func TestFastRunCleansUpTempReadmeOnSandboxFailure(t *testing.T) {
	r := newTestRunner(t)
	svc := config.ServiceConfig{Name: "bad", Port: 18082}
	invalidDoc := "```bash markpact:run\na\n```\n```bash markpact:run\nb\n```\n"

	before, _ := filepath.Glob(filepath.Join(os.TempDir(), "pactown-readme-*.md"))

	result := r.FastRun(context.Background(), svc, []byte(invalidDoc), "caller-1", false, nil)
	if result.Success {
		t.Fatal("expected failure for invalid document")
	}

	after, _ := filepath.Glob(filepath.Join(os.TempDir(), "pactown-readme-*.md"))
	if len(after) > len(before) {
		t.Errorf("expected temp readme to be cleaned up even on failure, before=%v after=%v", before, after)
	}
}

func TestFastRunDeniesWhenPolicyRejects(t *testing.T) {
	r := newTestRunner(t)
	r.Policy = security.NewPolicy(0, 0, 0, 0)
	svc := config.ServiceConfig{Name: "api", Port: 18083}

	result := r.FastRun(context.Background(), svc, []byte(pythonReadme), "caller-1", false, nil)
	if result.Success {
		t.Fatal("expected policy denial")
	}
	if result.Kind != "policy_denied" {
		t.Errorf("kind = %v, want policy_denied", result.Kind)
	}
}

func TestFastRunOrderingSecurityCheckBeforeSandboxWork(t *testing.T) {
	r := newTestRunner(t)
	r.Policy = security.NewPolicy(0, 0, 0, 0)
	svc := config.ServiceConfig{Name: "unreachable-sandbox", Port: 18084}

	start := time.Now()
	result := r.FastRun(context.Background(), svc, []byte(pythonReadme), "caller-1", true, nil)
	elapsed := time.Since(start)

	if result.Success {
		t.Fatal("expected denial")
	}
	if elapsed > 500*time.Millisecond {
		t.Errorf("expected policy denial to short-circuit before any sandbox/install work, took %s", elapsed)
	}
}
