package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"

	"golang.org/x/term"

	"github.com/pactown/pactown/internal/supervisor"
)

// ShellCmd attaches a pty-backed shell inside a previously materialized
// sandbox directory, for debugging a dependency tree or a run command
// without going through the Service Runner. Grounded in the teacher's
// ShellCmd/ExecCmd split (cmd/sand/shell_cmd.go, exec_cmd.go).
type ShellCmd struct {
	ServiceName string `arg:"" help:"name of a previously materialized sandbox to shell into"`
	Shell       string `short:"s" default:"/bin/sh" help:"shell command to exec inside the sandbox"`
}

func (c *ShellCmd) Run(appCtx *Context) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "warning: stdin is not a terminal, pty output may not render correctly")
	}

	sandboxDir := filepath.Join(appCtx.AppBaseDir, "sandboxes", c.ServiceName)
	if _, err := os.Stat(sandboxDir); err != nil {
		return fmt.Errorf("pactownd: no sandbox materialized for %q: %w", c.ServiceName, err)
	}

	cmd := exec.Command(c.Shell)
	cmd.Dir = sandboxDir

	handle, err := appCtx.Supervisor.Start(appCtx.Context, supervisor.StartOptions{
		ServiceID: c.ServiceName + "-shell",
		Cmd:       cmd,
		TTY:       true,
	})
	if err != nil {
		return fmt.Errorf("pactownd: start shell: %w", err)
	}

	fmt.Printf("shell attached, pid=%d\n", handle.Pid)
	for _, line := range handle.LogTail() {
		fmt.Println(line)
	}
	return nil
}
