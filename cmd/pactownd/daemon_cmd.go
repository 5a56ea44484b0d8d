package main

import (
	"fmt"

	"github.com/pactown/pactown/internal/ipc"
)

// DaemonCmd controls the background pactownd daemon directly, mirroring
// the teacher's daemon_cmd.go start/stop/restart/status actions.
type DaemonCmd struct {
	Action string `arg:"" optional:"" default:"status" enum:"start,stop,restart,status" help:"start, stop, restart, or report the daemon's status (default)"`
}

func (c *DaemonCmd) Run(appCtx *Context) error {
	switch c.Action {
	case "start":
		return c.start(appCtx)
	case "stop":
		return c.stop(appCtx)
	case "restart":
		if err := c.stop(appCtx); err != nil {
			fmt.Printf("daemon stop failed: %v\n", err)
		}
		return c.start(appCtx)
	default:
		return c.status(appCtx)
	}
}

func (c *DaemonCmd) start(appCtx *Context) error {
	client := ipc.NewClient(appCtx.AppBaseDir)
	if client.Ping(appCtx.Context) == nil {
		fmt.Println("daemon is already running")
		return nil
	}

	d := ipc.NewDaemon(appCtx.AppBaseDir, appCtx.Runner, appCtx.Supervisor)
	fmt.Printf("daemon listening on %s\n", d.SocketPath)
	return d.ServeUnix(appCtx.Context)
}

func (c *DaemonCmd) stop(appCtx *Context) error {
	client := ipc.NewClient(appCtx.AppBaseDir)
	if err := client.Ping(appCtx.Context); err != nil {
		fmt.Println("daemon is not running")
		return nil
	}
	if err := client.Shutdown(appCtx.Context); err != nil {
		return fmt.Errorf("pactownd: stop daemon: %w", err)
	}
	fmt.Println("daemon stopped")
	return nil
}

func (c *DaemonCmd) status(appCtx *Context) error {
	client := ipc.NewClient(appCtx.AppBaseDir)
	if err := client.Ping(appCtx.Context); err != nil {
		fmt.Println("daemon is not running")
		return nil
	}
	v, err := client.Version(appCtx.Context)
	if err != nil {
		fmt.Println("daemon is running (version unknown)")
		return nil
	}
	fmt.Printf("daemon is running (protocol version %s)\n", v)
	return nil
}
