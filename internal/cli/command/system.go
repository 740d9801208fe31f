package command

import (
	"errors"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/boxstore-go/internal/infra/buildinfo"
)

// PingView is the printed result of ping.
type PingView struct {
	Target  string `json:"target" yaml:"target"`
	Status  string `json:"status" yaml:"status"`
	Latency string `json:"latency" yaml:"latency"`
}

// PurgeView is the printed result of purge.
type PurgeView struct {
	Owner       string `json:"owner" yaml:"owner"`
	Identity    bool   `json:"identity" yaml:"identity"`
	OneTimeKeys int    `json:"one_time_keys" yaml:"one_time_keys"`
	Sessions    int    `json:"sessions" yaml:"sessions"`
	Skipped     int    `json:"skipped_sessions,omitempty" yaml:"skipped_sessions,omitempty"`
}

// PingCommand checks that the backend answers.
func PingCommand() *cli.Command {
	return &cli.Command{
		Name:  "ping",
		Usage: "Check that the backend is reachable",
		Action: func(c *cli.Context) error {
			conn, err := EnsureConnected(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()

			start := time.Now()
			if err := conn.Store.Ping(ctx); err != nil {
				return err
			}
			return printResult(c, PingView{
				Target:  conn.Target,
				Status:  "PONG",
				Latency: time.Since(start).Round(time.Microsecond).String(),
			})
		},
	}
}

// PurgeCommand deletes everything stored for an owner.
func PurgeCommand() *cli.Command {
	return &cli.Command{
		Name:      "purge",
		Usage:     "Delete the identity, one-time keys and sessions of an owner",
		ArgsUsage: "OWNER",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "force",
				Aliases: []string{"y"},
				Usage:   "Required; purging cannot be undone",
			},
		},
		Action: func(c *cli.Context) error {
			if err := requireArgs(c, 1, "OWNER"); err != nil {
				return err
			}
			if !c.Bool("force") {
				return errors.New("refusing to purge without --force")
			}
			conn, err := EnsureConnected(c)
			if err != nil {
				return err
			}
			ctx, cancel := commandContext(c)
			defer cancel()

			owner := c.Args().Get(0)
			res, err := conn.Store.PurgeOwner(ctx, owner)
			if err != nil {
				return err
			}
			return printResult(c, PurgeView{
				Owner:       owner,
				Identity:    res.Identity,
				OneTimeKeys: res.OneTimeKeys,
				Sessions:    res.Sessions,
				Skipped:     res.SkippedSessions,
			})
		},
	}
}

// VersionCommand prints build information.
func VersionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Show version information",
		Action: func(c *cli.Context) error {
			return printResult(c, buildinfo.Get())
		},
	}
}
