package command

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	cliconfig "github.com/yndnr/boxstore-go/internal/cli/config"
	"github.com/yndnr/boxstore-go/internal/cli/connection"
	"github.com/yndnr/boxstore-go/internal/cli/output"
	"github.com/yndnr/boxstore-go/internal/infra/buildinfo"
	"github.com/yndnr/boxstore-go/internal/telemetry/logger"
)

const metaConnMgr = "connMgr"

// App creates the CLI application.
func App() *cli.App {
	return newApp(nil)
}

// newApp builds the app. A non-nil mgr replaces the manager created in
// Before, so tests can inject a backend.
func newApp(mgr *connection.Manager) *cli.App {
	app := &cli.App{
		Name:     "boxstore-cli",
		Usage:    "Inspect and operate a boxstore session store",
		Version:  buildinfo.String(),
		Flags:    globalFlags(),
		Metadata: map[string]any{},
		Commands: []*cli.Command{
			SessionCommand(),
			IdentityCommand(),
			PreKeyCommand(),
			PurgeCommand(),
			PingCommand(),
			VersionCommand(),
		},
		Before: func(c *cli.Context) error {
			if _, err := output.ParseFormat(c.String("output")); err != nil {
				return err
			}
			if mgr != nil {
				c.App.Metadata[metaConnMgr] = mgr
				return nil
			}
			c.App.Metadata[metaConnMgr] = connection.NewManager(cliLogger(c))
			return nil
		},
		After: func(c *cli.Context) error {
			if m := GetConnectionManager(c); m != nil {
				return m.Disconnect()
			}
			return nil
		},
	}

	return app
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "config",
			Aliases: []string{"c"},
			Usage:   "Config file (default ~/.boxstore/cli.yaml)",
			EnvVars: []string{"BOXSTORE_CLI_CONFIG"},
		},
		&cli.StringFlag{
			Name:  "backend",
			Usage: "Backend type: redis, memory, badger",
		},
		&cli.StringFlag{
			Name:  "redis-host",
			Usage: "Redis host",
		},
		&cli.IntFlag{
			Name:  "redis-port",
			Usage: "Redis port",
		},
		&cli.StringFlag{
			Name:  "redis-password",
			Usage: "Redis password",
		},
		&cli.BoolFlag{
			Name:  "redis-tls",
			Usage: "Connect to Redis over TLS",
		},
		&cli.StringFlag{
			Name:  "badger-dir",
			Usage: "Badger data directory",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Overall command timeout",
			Value: 30 * time.Second,
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Output format: table, json, yaml",
			Value:   "table",
		},
		&cli.BoolFlag{
			Name:    "verbose",
			Aliases: []string{"V"},
			Usage:   "Log debug output to stderr",
		},
	}
}

// flagOverrides maps explicitly set global flags to config keys.
func flagOverrides(c *cli.Context) map[string]any {
	m := map[string]any{}
	set := func(flag, key string, v any) {
		if c.IsSet(flag) {
			m[key] = v
		}
	}
	set("backend", "backend.type", c.String("backend"))
	set("redis-host", "backend.redis.host", c.String("redis-host"))
	set("redis-port", "backend.redis.port", c.Int("redis-port"))
	set("redis-password", "backend.redis.password", c.String("redis-password"))
	set("redis-tls", "backend.redis.tls", c.Bool("redis-tls"))
	set("badger-dir", "backend.badger.dir", c.String("badger-dir"))
	return m
}

func cliLogger(c *cli.Context) logger.Logger {
	if !c.Bool("verbose") {
		return logger.Discard()
	}
	l, err := logger.New(logger.Config{Level: "debug", Format: "text", Output: c.App.ErrWriter})
	if err != nil {
		return logger.Discard()
	}
	return l
}

// GetConnectionManager retrieves the connection manager from context.
func GetConnectionManager(c *cli.Context) *connection.Manager {
	if mgr, ok := c.App.Metadata[metaConnMgr].(*connection.Manager); ok {
		return mgr
	}
	return nil
}

// EnsureConnected loads configuration and opens the backend once.
func EnsureConnected(c *cli.Context) (*connection.Connection, error) {
	mgr := GetConnectionManager(c)
	if mgr == nil {
		return nil, fmt.Errorf("connection manager not initialized")
	}
	if conn := mgr.Current(); conn != nil {
		return conn, nil
	}

	cfg, err := cliconfig.Load(c.String("config"), flagOverrides(c))
	if err != nil {
		return nil, err
	}
	return mgr.Connect(cfg)
}

// commandContext bounds a command by --timeout.
func commandContext(c *cli.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Context, c.Duration("timeout"))
}

// printResult writes data in the selected output format.
func printResult(c *cli.Context, data any) error {
	format, err := output.ParseFormat(c.String("output"))
	if err != nil {
		return err
	}
	return output.NewFormatter(format).Format(stdout(c), data)
}

// notice writes a human hint to stderr. Hints never go to stdout so that
// JSON and YAML output stay parseable.
func notice(c *cli.Context, format string, args ...any) {
	fmt.Fprintf(stderr(c), format+"\n", args...)
}

func stdout(c *cli.Context) io.Writer {
	if c.App.Writer != nil {
		return c.App.Writer
	}
	return os.Stdout
}

func stderr(c *cli.Context) io.Writer {
	if c.App.ErrWriter != nil {
		return c.App.ErrWriter
	}
	return os.Stderr
}

// PrintError prints an error message to stderr.
func PrintError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
}
