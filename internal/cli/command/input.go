package command

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func dataFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "data",
			Aliases: []string{"d"},
			Usage:   "Payload as a literal string",
		},
		&cli.StringFlag{
			Name:  "data-base64",
			Usage: "Payload as standard base64",
		},
		&cli.StringFlag{
			Name:    "file",
			Aliases: []string{"f"},
			Usage:   "Read the payload from a file",
		},
	}
}

// readData returns the payload from exactly one of --data, --data-base64
// or --file.
func readData(c *cli.Context) ([]byte, error) {
	var set []string
	for _, name := range []string{"data", "data-base64", "file"} {
		if c.IsSet(name) {
			set = append(set, "--"+name)
		}
	}
	switch len(set) {
	case 0:
		return nil, fmt.Errorf("one of --data, --data-base64 or --file is required")
	case 1:
	default:
		return nil, fmt.Errorf("%s are mutually exclusive", joinFlags(set))
	}

	switch {
	case c.IsSet("data"):
		return []byte(c.String("data")), nil
	case c.IsSet("data-base64"):
		b, err := base64.StdEncoding.DecodeString(c.String("data-base64"))
		if err != nil {
			return nil, fmt.Errorf("--data-base64: %w", err)
		}
		return b, nil
	default:
		b, err := os.ReadFile(c.String("file"))
		if err != nil {
			return nil, fmt.Errorf("--file: %w", err)
		}
		return b, nil
	}
}

func joinFlags(flags []string) string {
	out := flags[0]
	for _, f := range flags[1:] {
		out += " and " + f
	}
	return out
}

// requireArgs checks the positional argument count.
func requireArgs(c *cli.Context, n int, usage string) error {
	if c.NArg() != n {
		return fmt.Errorf("usage: %s %s", c.Command.HelpName, usage)
	}
	return nil
}
