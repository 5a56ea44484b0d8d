package main

import (
	"fmt"

	"github.com/pactown/pactown/internal/ipc"
)

// StopCmd stops a supervised service, always routed through the daemon: the
// Supervisor's handle table only exists inside whichever process started
// it, so a bare in-process fallback here would find no handle to stop.
type StopCmd struct {
	ID string `arg:"" help:"service ID to stop"`
}

func (c *StopCmd) Run(appCtx *Context) error {
	client := ipc.NewClient(appCtx.AppBaseDir)
	if err := client.Ping(appCtx.Context); err != nil {
		return fmt.Errorf("pactownd: no daemon running, nothing to stop: %w", err)
	}
	if err := client.Stop(appCtx.Context, c.ID); err != nil {
		return fmt.Errorf("pactownd: stop %s: %w", c.ID, err)
	}
	fmt.Println(c.ID)
	return nil
}
