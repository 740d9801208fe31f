package command

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

// IdentityView is the printed form of an identity record.
type IdentityView struct {
	Owner   string `json:"owner" yaml:"owner"`
	Present bool   `json:"present" yaml:"present"`
	Stored  bool   `json:"stored,omitempty" yaml:"stored,omitempty"`
	Size    int    `json:"size" yaml:"size"`
	Data    []byte `json:"data,omitempty" yaml:"data,omitempty"`
}

// IdentityCommand returns the identity subcommand group.
func IdentityCommand() *cli.Command {
	return &cli.Command{
		Name:    "identity",
		Aliases: []string{"id"},
		Usage:   "Read and write owner identity records",
		Subcommands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Show the identity record of an owner",
				ArgsUsage: "OWNER",
				Action:    identityGet,
			},
			{
				Name:      "put",
				Usage:     "Store an identity record unless one exists",
				ArgsUsage: "OWNER",
				Flags:     dataFlags(),
				Action:    identityPut,
			},
		},
	}
}

func identityGet(c *cli.Context) error {
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
	data, err := conn.Store.GetIdentity(ctx, owner)
	if err != nil {
		return err
	}
	return printResult(c, IdentityView{
		Owner:   owner,
		Present: data != nil,
		Size:    len(data),
		Data:    data,
	})
}

func identityPut(c *cli.Context) error {
	if err := requireArgs(c, 1, "OWNER"); err != nil {
		return err
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
	existing, err := conn.Store.GetIdentity(ctx, owner)
	if err != nil {
		return err
	}
	if existing != nil {
		notice(c, "identity for %s already exists; left unchanged", owner)
		return printResult(c, IdentityView{Owner: owner, Present: true, Size: len(existing)})
	}

	if err := conn.Store.PutIdentityIfAbsent(ctx, owner, data); err != nil {
		return fmt.Errorf("put identity: %w", err)
	}
	return printResult(c, IdentityView{Owner: owner, Present: true, Stored: true, Size: len(data)})
}
