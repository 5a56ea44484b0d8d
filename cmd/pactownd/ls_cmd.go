package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pactown/pactown/internal/ipc"
)

// LsCmd lists every service the background daemon is currently
// supervising, in the teacher's tabwriter-formatted style.
type LsCmd struct{}

func (c *LsCmd) Run(appCtx *Context) error {
	client := ipc.NewClient(appCtx.AppBaseDir)
	if err := client.Ping(appCtx.Context); err != nil {
		fmt.Println("no daemon running")
		return nil
	}

	list, err := client.List(appCtx.Context)
	if err != nil {
		return fmt.Errorf("pactownd: list: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE ID\tSTATE\tPID\tPORT\t")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t\n", s.ServiceID, s.State, s.Pid, s.Port)
	}
	return w.Flush()
}
