package main

import (
	"fmt"

	"github.com/pactown/pactown/internal/ipc"
	"github.com/pactown/pactown/version"
)

type VersionCmd struct{}

func (c *VersionCmd) Run(appCtx *Context) error {
	v := version.Get()
	fmt.Printf("Git Repository: %s\n", v.GitRepo)
	fmt.Printf("Git Branch: %s\n", v.GitBranch)
	fmt.Printf("Git Commit: %s\n", v.GitCommit)
	fmt.Printf("Build Time: %s\n", v.BuildTime)
	fmt.Printf("Daemon Protocol Version: %s\n", ipc.Version)
	return nil
}
