package command

import (
	"fmt"
	"strconv"

	"github.com/urfave/cli/v2"
)

// PreKeyView is the printed form of a one-time key.
type PreKeyView struct {
	Owner string `json:"owner" yaml:"owner"`
	Index int    `json:"index" yaml:"index"`
	Size  int    `json:"size" yaml:"size"`
	Data  []byte `json:"data,omitempty" yaml:"data,omitempty"`
}

// PreKeyCommand returns the prekey subcommand group.
func PreKeyCommand() *cli.Command {
	return &cli.Command{
		Name:    "prekey",
		Aliases: []string{"pk"},
		Usage:   "Legacy one-time key records (deprecated)",
		Subcommands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the one-time keys of an owner",
				ArgsUsage: "OWNER",
				Action:    preKeyList,
			},
			{
				Name:      "put",
				Usage:     "Store a one-time key",
				ArgsUsage: "OWNER INDEX",
				Flags:     dataFlags(),
				Action:    preKeyPut,
			},
		},
	}
}

func preKeyList(c *cli.Context) error {
	if err := requireArgs(c, 1, "OWNER"); err != nil {
		return err
	}
	conn, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	owner := c.Args().Get(0)
	keys, err := conn.Store.GetAllOneTimeKeys(ctx, owner)
	if err != nil {
		return err
	}

	views := make([]PreKeyView, 0, len(keys))
	for _, k := range keys {
		views = append(views, PreKeyView{Owner: owner, Index: k.Index, Size: len(k.Data), Data: k.Data})
	}
	return printResult(c, views)
}

func preKeyPut(c *cli.Context) error {
	if err := requireArgs(c, 2, "OWNER INDEX"); err != nil {
		return err
	}
	index, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("index %q is not a number", c.Args().Get(1))
	}
	data, err := readData(c)
	if err != nil {
		return err
	}
	conn, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	owner := c.Args().Get(0)
	if err := conn.Store.PutOneTimeKey(ctx, owner, index, data); err != nil {
		return err
	}
	return printResult(c, PreKeyView{Owner: owner, Index: index, Size: len(data)})
}
