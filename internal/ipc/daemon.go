// Package ipc implements the long-lived supervisor daemon: a Unix-socket
// JSON-over-HTTP server in front of a ServiceRunner/Supervisor pair, and the
// client used to reach it. Per SPEC_FULL.md §4.10.
package ipc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/runner"
	"github.com/pactown/pactown/internal/supervisor"
	"github.com/pactown/pactown/internal/telemetry"
)

const (
	defaultSocketFile = "pactownd.sock"
	defaultLockFile   = "pactownd.lock"

	// Version is the daemon protocol version reported over /version; the
	// client uses it to detect a stale background daemon from a previous
	// build and restart it before talking to it further.
	Version = "1"
)

// ServiceStatus is what /list and /create report back to a client.
type ServiceStatus struct {
	ServiceID string `json:"service_id"`
	State     string `json:"state"`
	Pid       int    `json:"pid"`
	Port      int    `json:"port"`
}

// CreateRequest is the /create request body: a ServiceConfig plus the raw
// README bytes FastRun should materialize (the CLI reads the README file
// itself and ships its bytes, so the daemon never has to share a filesystem
// view with the caller).
type CreateRequest struct {
	Service             config.ServiceConfig `json:"service"`
	ReadmeContent       []byte               `json:"readme_content"`
	Caller              string               `json:"caller"`
	InstallDependencies bool                 `json:"install_dependencies"`
}

// Daemon owns the Unix socket listener and the runner it fronts.
type Daemon struct {
	AppBaseDir string
	SocketPath string

	runner     *runner.ServiceRunner
	supervisor *supervisor.Supervisor

	listener net.Listener
	lockFile *os.File
	shutdown chan struct{}
}

// NewDaemon builds a Daemon rooted at appBaseDir, fronting r and sup.
func NewDaemon(appBaseDir string, r *runner.ServiceRunner, sup *supervisor.Supervisor) *Daemon {
	return &Daemon{
		AppBaseDir: appBaseDir,
		SocketPath: filepath.Join(appBaseDir, defaultSocketFile),
		runner:     r,
		supervisor: sup,
	}
}

// NewClient builds a Client that dials this daemon's socket.
func (d *Daemon) NewClient() *Client {
	return &Client{
		socketPath: d.SocketPath,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					var dialer net.Dialer
					return dialer.DialContext(ctx, "unix", d.SocketPath)
				},
			},
		},
	}
}

// ServeUnix acquires the daemon lock, binds the Unix socket, and serves
// until Shutdown is called or the process receives SIGINT/SIGTERM.
func (d *Daemon) ServeUnix(ctx context.Context) error {
	lockFilePath := filepath.Join(d.AppBaseDir, defaultLockFile)
	slog.InfoContext(ctx, "ipc.Daemon.ServeUnix", "socket", d.SocketPath, "pid", os.Getpid())

	lockFile, err := acquireLock(lockFilePath)
	if err != nil {
		return err
	}
	d.lockFile = lockFile

	os.Remove(d.SocketPath)
	listener, err := net.Listen("unix", d.SocketPath)
	if err != nil {
		return fmt.Errorf("ipc: listen on %s: %w", d.SocketPath, err)
	}
	d.listener = listener
	d.shutdown = make(chan struct{})

	go d.waitForSignal(ctx)
	go d.serveHTTP(ctx)

	<-d.shutdown
	return nil
}

func (d *Daemon) waitForSignal(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-ctx.Done():
	case <-sigChan:
		d.Shutdown(ctx)
	case <-d.shutdown:
	}
}

// Shutdown stops accepting connections, removes the socket and lock files,
// and unblocks ServeUnix.
func (d *Daemon) Shutdown(ctx context.Context) {
	slog.InfoContext(ctx, "ipc.Daemon.Shutdown", "pid", os.Getpid())
	if d.listener != nil {
		d.listener.Close()
	}
	os.Remove(d.SocketPath)

	if d.lockFile != nil {
		syscall.Flock(int(d.lockFile.Fd()), syscall.LOCK_UN)
		d.lockFile.Close()
		lockFilePath := filepath.Join(d.AppBaseDir, defaultLockFile)
		if err := os.Remove(lockFilePath); err != nil && !os.IsNotExist(err) {
			slog.ErrorContext(ctx, "ipc.Daemon.Shutdown removing lockfile", "err", err)
		}
	}

	close(d.shutdown)
}

func (d *Daemon) serveHTTP(ctx context.Context) {
	mux := http.NewServeMux()
	mux.HandleFunc("/ping", d.handlePing)
	mux.HandleFunc("/version", d.handleVersion)
	mux.HandleFunc("/list", d.handleList)
	mux.HandleFunc("/create", d.handleCreate)
	mux.HandleFunc("/stop", d.handleStop)
	mux.HandleFunc("/remove", d.handleRemove)
	mux.HandleFunc("/shutdown", d.handleShutdown)

	server := &http.Server{Handler: tracedHandler(mux)}
	server.Serve(d.listener)
}

// tracedHandler wraps every handler in a span child of the telemetry
// tracer, so requests crossing the socket land in the same trace as the
// in-process pipeline (SPEC_FULL.md §4.10).
func tracedHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, end := telemetry.StartSpan(r.Context(), "ipc."+r.URL.Path)
		defer end()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, err error, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}

func (d *Daemon) handlePing(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "pong"})
}

func (d *Daemon) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"version": Version})
}

func (d *Daemon) handleList(w http.ResponseWriter, r *http.Request) {
	var out []ServiceStatus
	for _, id := range d.supervisor.List() {
		h, ok := d.supervisor.Get(id)
		if !ok {
			continue
		}
		out = append(out, ServiceStatus{ServiceID: id, State: string(h.State()), Pid: h.Pid, Port: h.Port})
	}
	writeJSON(w, out)
}

func (d *Daemon) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}

	result := d.runner.FastRun(r.Context(), req.Service, req.ReadmeContent, req.Caller, req.InstallDependencies, nil)
	if !result.Success {
		writeJSONError(w, fmt.Errorf("%s", result.Message), http.StatusInternalServerError)
		return
	}
	status := ServiceStatus{ServiceID: req.Service.Name, Port: req.Service.Port}
	if result.Handle != nil {
		status.State = string(result.Handle.State())
		status.Pid = result.Handle.Pid
	}
	writeJSON(w, status)
}

func (d *Daemon) handleStop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var args struct {
		ServiceID string `json:"service_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&args); err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	if err := d.supervisor.Stop(args.ServiceID); err != nil {
		writeJSONError(w, err, http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
}

func (d *Daemon) handleRemove(w http.ResponseWriter, r *http.Request) {
	// The daemon only tracks live process handles and never deletes a
	// sandbox directory, so /remove behaves exactly like /stop.
	d.handleStop(w, r)
}

func (d *Daemon) handleShutdown(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, map[string]string{"status": "ok"})
	go func() {
		time.Sleep(100 * time.Millisecond)
		d.Shutdown(r.Context())
	}()
}

func acquireLock(lockFile string) (*os.File, error) {
	file, err := os.OpenFile(lockFile, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		return nil, fmt.Errorf("ipc: daemon already running (lock held on %s)", lockFile)
	}
	file.Truncate(0)
	fmt.Fprintf(file, "%d", os.Getpid())
	return file, nil
}
