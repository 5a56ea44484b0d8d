// command pactownd materializes markpact-tagged README documents into
// running, supervised service sandboxes: parse -> sandbox -> install ->
// spawn -> health-check, fronted by an optional background daemon that
// keeps services alive across CLI invocations.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/alecthomas/kong"
	kongyaml "github.com/alecthomas/kong-yaml"
	kongcompletion "github.com/jotaen/kong-completion"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/pactown/pactown/internal/cache"
	"github.com/pactown/pactown/internal/config"
	"github.com/pactown/pactown/internal/ipc"
	"github.com/pactown/pactown/internal/runner"
	"github.com/pactown/pactown/internal/sandboxmgr"
	"github.com/pactown/pactown/internal/supervisor"
	"github.com/pactown/pactown/internal/telemetry"
	"github.com/pactown/pactown/version"
)

// Context is what every CLI subcommand's Run method receives: the resolved
// app directories plus the in-process pipeline the subcommand falls back to
// when no background daemon answers.
type Context struct {
	context.Context

	AppBaseDir string
	LogFile    string
	CacheRoot  string

	Runner     *runner.ServiceRunner
	Supervisor *supervisor.Supervisor
	Cache      *cache.Cache
}

// CLI is the root kong command tree. Global flags mirror the teacher's
// cmd/sand CLI struct (LogFile/LogLevel), generalized with a cache root and
// an optional OTLP endpoint.
type CLI struct {
	LogFile      string `default:"" placeholder:"<log-file-path>" help:"location of the JSON log file (leave empty to log to stderr)"`
	LogLevel     string `default:"info" enum:"debug,info,warn,error" help:"logging level: debug, info, warn, or error"`
	CacheRoot    string `default:"" placeholder:"<cache-root-dir>" help:"root directory for the dependency cache. Defaults to ~/.pactown/cache"`
	OtelEndpoint string `default:"" placeholder:"<host:port>" help:"OTLP/gRPC collector address for tracing. Leave unset to disable export"`

	Run      RunCmd      `cmd:"" help:"materialize a sandbox from a markpact README and start its service"`
	Stop     StopCmd     `cmd:"" help:"stop a supervised service"`
	Ls       LsCmd       `cmd:"" help:"list services the daemon is supervising"`
	Validate ValidateCmd `cmd:"" help:"validate a markpact README without materializing or starting anything"`
	Shell    ShellCmd    `cmd:"" help:"attach a pty-backed shell to a materialized sandbox, for debugging"`
	Daemon   DaemonCmd   `cmd:"" help:"start, stop, or check the status of the pactownd background daemon"`
	Version  VersionCmd  `cmd:"" help:"print version information about this command"`
}

func (c *CLI) initSlog() {
	var level slog.Level
	switch c.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var w io.Writer = os.Stderr
	if c.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o755); err != nil {
			panic(err)
		}
		w = &lumberjack.Logger{
			Filename:   c.LogFile,
			MaxSize:    50, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	slog.Info("pactownd: slog initialized", "level", c.LogLevel)
}

const description = `Transform a markpact-tagged README into a running, supervised service sandbox.`

func appBaseDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("pactownd: home directory: %w", err)
	}
	dir := filepath.Join(homeDir, ".pactown")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("pactownd: create app dir %s: %w", dir, err)
	}
	return dir, nil
}

func main() {
	var cli CLI

	parser, err := kong.New(&cli,
		kong.Name("pactownd"),
		kong.Description(description),
		kong.Configuration(kongyaml.Loader, "~/.pactown.yaml"),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintf(os.Stderr, "pactownd: build CLI parser: %v\n", err)
		os.Exit(1)
	}
	kongcompletion.Register(parser)

	kctx, err := parser.Parse(os.Args[1:])
	parser.FatalIfErrorf(err)

	cli.initSlog()

	base, err := appBaseDir()
	parser.FatalIfErrorf(err)

	if cli.CacheRoot == "" {
		cli.CacheRoot = filepath.Join(base, "cache")
	}

	c, err := cache.Open(config.CacheConfig{CacheRoot: cli.CacheRoot}, 4)
	parser.FatalIfErrorf(err)
	defer c.Close()

	sandboxRoot := filepath.Join(base, "sandboxes")
	mgr := sandboxmgr.NewManager(sandboxRoot, c)
	sup := supervisor.New(filepath.Join(base, "logs"))
	r := runner.New(mgr, sup)

	ctx := context.Background()
	if cli.OtelEndpoint != "" {
		provider, err := telemetry.Setup(ctx, telemetry.Config{
			ServiceName:    "pactownd",
			ServiceVersion: version.Get().GitCommit,
			Endpoint:       cli.OtelEndpoint,
			Insecure:       true,
		})
		if err != nil {
			slog.Warn("pactownd: telemetry setup failed, continuing without tracing", "err", err)
		} else {
			defer provider.Shutdown(ctx)
		}
	}

	cmdName := kctx.Command()
	if !strings.HasPrefix(cmdName, "daemon") && cmdName != "version" && cmdName != "completion" {
		if err := ipc.EnsureDaemon(ctx, base, cli.LogFile); err != nil {
			slog.WarnContext(ctx, "pactownd: daemon unreachable, falling back to in-process runner", "err", err)
		}
	}

	err = kctx.Run(&Context{
		Context:    ctx,
		AppBaseDir: base,
		LogFile:    cli.LogFile,
		CacheRoot:  cli.CacheRoot,
		Runner:     r,
		Supervisor: sup,
		Cache:      c,
	})
	kctx.FatalIfErrorf(err)
}
