package main

import (
	"fmt"
	"os"
	"time"

	"github.com/goombaio/namegenerator"

	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/ipc"
)

// RunCmd is the CLI surface over the Service Runner (spec §4.7): it reads a
// markpact README and turns it into a running, (optionally) health-checked
// process, talking to the background daemon when one is reachable and
// falling back to an in-process ServiceRunner otherwise.
type RunCmd struct {
	Readme      string            `arg:"" type:"existingfile" help:"path to the markpact README to materialize and run"`
	Name        string            `short:"n" help:"service name/id. A random one is generated if omitted"`
	Port        int               `short:"p" default:"8000" help:"port to run the service on"`
	HealthCheck string            `help:"HTTP path polled for a 2xx response before the service is declared ready"`
	Env         map[string]string `mapsep:"," help:"extra environment variables to inject, k=v,k2=v2"`
	NoInstall   bool              `help:"skip dependency installation, assuming the sandbox is already populated"`
	SkipHealth  bool              `help:"don't wait for the health check to pass before returning (in-process runs only; ignored when a daemon handles the run)"`
	Caller      string            `default:"cli" hidden:"" help:"identity reported to the security policy"`
}

func (c *RunCmd) Run(appCtx *Context) error {
	if c.Name == "" {
		c.Name = namegenerator.NewNameGenerator(time.Now().UTC().UnixNano()).Generate()
	}

	content, err := os.ReadFile(c.Readme)
	if err != nil {
		return fmt.Errorf("pactownd: read %s: %w", c.Readme, err)
	}

	svc := config.ServiceConfig{
		Name:        c.Name,
		Readme:      c.Readme,
		Port:        c.Port,
		HealthCheck: c.HealthCheck,
		Env:         c.Env,
	}

	client := ipc.NewClient(appCtx.AppBaseDir)
	if client.Ping(appCtx.Context) == nil {
		status, err := client.Create(appCtx.Context, ipc.CreateRequest{
			Service:             svc,
			ReadmeContent:       content,
			Caller:              c.Caller,
			InstallDependencies: !c.NoInstall,
		})
		if err != nil {
			return fmt.Errorf("pactownd: daemon create: %w", err)
		}
		printStatus(status.ServiceID, status.State, status.Pid, status.Port)
		return nil
	}

	appCtx.Runner.SkipHealthCheck = c.SkipHealth
	result := appCtx.Runner.FastRun(appCtx.Context, svc, content, c.Caller, !c.NoInstall, nil)
	if !result.Success {
		return fmt.Errorf("pactownd: %s", result.Message)
	}
	printStatus(svc.Name, string(result.Handle.State()), result.Handle.Pid, svc.Port)
	return nil
}

func printStatus(serviceID, state string, pid, port int) {
	fmt.Printf("%s\tstate=%s\tpid=%d\tport=%d\n", serviceID, state, pid, port)
}
