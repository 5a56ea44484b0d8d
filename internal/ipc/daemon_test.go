package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pactown/pactown/internal/runner"
	"github.com/pactown/pactown/internal/sandboxmgr"
	"github.com/pactown/pactown/internal/supervisor"
)

func startTestDaemon(t *testing.T) (*Daemon, string) {
	t.Helper()
	tmpDir := t.TempDir()

	sup := supervisor.New(filepath.Join(tmpDir, "logs"))
	mgr := sandboxmgr.NewManager(filepath.Join(tmpDir, "sandboxes"), nil)
	r := runner.New(mgr, sup)

	d := NewDaemon(tmpDir, r, sup)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	go func() {
		if err := d.ServeUnix(ctx); err != nil {
			t.Logf("ServeUnix: %v", err)
		}
	}()

	for i := 0; i < 20; i++ {
		if _, err := os.Stat(d.SocketPath); err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	return d, tmpDir
}

func TestDaemonPingAndVersion(t *testing.T) {
	_, base := startTestDaemon(t)
	ctx := context.Background()
	client := NewClient(base)

	if err := client.Ping(ctx); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	v, err := client.Version(ctx)
	if err != nil {
		t.Fatalf("Version: %v", err)
	}
	if v != Version {
		t.Errorf("Version = %q, want %q", v, Version)
	}
}

func TestDaemonListStartsEmpty(t *testing.T) {
	_, base := startTestDaemon(t)
	ctx := context.Background()
	client := NewClient(base)

	list, err := client.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 0 {
		t.Errorf("List = %v, want empty", list)
	}
}

func TestDaemonShutdownRemovesSocket(t *testing.T) {
	d, base := startTestDaemon(t)
	ctx := context.Background()
	client := NewClient(base)

	if err := client.Shutdown(ctx); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}
	if _, err := os.Stat(d.SocketPath); err == nil {
		t.Fatal("socket file still exists after shutdown")
	}
}

func TestClientPingFailsWithNoDaemon(t *testing.T) {
	base := t.TempDir()
	client := NewClient(base)
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected Ping to fail with no daemon listening")
	}
}

func TestClientStopUnknownServiceIsNoop(t *testing.T) {
	_, base := startTestDaemon(t)
	client := NewClient(base)
	if err := client.Stop(context.Background(), "does-not-exist"); err != nil {
		t.Fatalf("Stop on unknown service id: %v, want nil", err)
	}
}
