package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/boxstore-go/internal/core/domain"
	"github.com/yndnr/boxstore-go/internal/storage"
)

// Session states reported by show and list.
const (
	stateAbsent     = "absent"
	stateCheckedOut = "checked-out"
	statePresent    = "present"
)

// SessionView is the printed form of a session record.
type SessionView struct {
	Owner      string `json:"owner" yaml:"owner"`
	Peer       string `json:"peer" yaml:"peer"`
	State      string `json:"state" yaml:"state"`
	Size       int    `json:"size" yaml:"size"`
	CheckoutID string `json:"checkout_id,omitempty" yaml:"checkout_id,omitempty"`
	Data       []byte `json:"data,omitempty" yaml:"data,omitempty"`
}

// SessionCommand returns the session subcommand group.
func SessionCommand() *cli.Command {
	return &cli.Command{
		Name:    "session",
		Aliases: []string{"sess"},
		Usage:   "Check out, check in and inspect session records",
		Subcommands: []*cli.Command{
			{
				Name:      "checkout",
				Usage:     "Check out a session record, leaving it locked",
				ArgsUsage: "OWNER PEER",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "release",
						Usage: "Check the record back in unchanged after reading it",
					},
				},
				Action: sessionCheckout,
			},
			{
				Name:      "checkin",
				Usage:     "Store a session record, releasing its lock",
				ArgsUsage: "OWNER PEER",
				Flags: append(dataFlags(), &cli.BoolFlag{
					Name:  "delete",
					Usage: "Delete the record instead of storing a payload",
				}),
				Action: sessionCheckin,
			},
			{
				Name:      "show",
				Usage:     "Show a session record without locking it",
				ArgsUsage: "OWNER PEER",
				Action:    sessionShow,
			},
			{
				Name:      "list",
				Usage:     "List the session records of an owner",
				ArgsUsage: "OWNER",
				Action:    sessionList,
			},
		},
	}
}

func sessionCheckout(c *cli.Context) error {
	if err := requireArgs(c, 2, "OWNER PEER"); err != nil {
		return err
	}
	conn, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	owner, peer := c.Args().Get(0), c.Args().Get(1)
	rec, err := conn.Store.CheckoutRecord(ctx, owner, peer)
	if err != nil {
		return err
	}

	view := SessionView{
		Owner:      owner,
		Peer:       peer,
		State:      statePresent,
		Size:       len(rec.Data()),
		CheckoutID: rec.CheckoutID(),
		Data:       rec.Data(),
	}
	if rec.Data() == nil {
		view.State = stateAbsent
	}

	if c.Bool("release") {
		if err := rec.Persist(ctx, rec.Data()); err != nil {
			return fmt.Errorf("release: %w", err)
		}
	} else {
		notice(c, "session %s is checked out; release it with 'session checkin'", rec.ID())
	}

	return printResult(c, view)
}

func sessionCheckin(c *cli.Context) error {
	if err := requireArgs(c, 2, "OWNER PEER"); err != nil {
		return err
	}

	var data []byte
	if c.Bool("delete") {
		if c.IsSet("data") || c.IsSet("data-base64") || c.IsSet("file") {
			return errors.New("--delete cannot be combined with a payload")
		}
	} else {
		var err error
		if data, err = readData(c); err != nil {
			return err
		}
	}

	conn, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	owner, peer := c.Args().Get(0), c.Args().Get(1)
	if err := conn.Store.Checkin(ctx, owner, peer, data); err != nil {
		return err
	}

	view := SessionView{Owner: owner, Peer: peer, State: statePresent, Size: len(data)}
	if data == nil {
		view.State = stateAbsent
	}
	return printResult(c, view)
}

func sessionShow(c *cli.Context) error {
	if err := requireArgs(c, 2, "OWNER PEER"); err != nil {
		return err
	}
	id := domain.SessionID{OwnerID: c.Args().Get(0), PeerSessionID: c.Args().Get(1)}
	if err := id.Validate(); err != nil {
		return err
	}

	conn, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	data, err := conn.Backend.Get(ctx, id.Key())
	view := SessionView{Owner: id.OwnerID, Peer: id.PeerSessionID}
	switch {
	case errors.Is(err, storage.ErrKeyNotFound):
		view.State = stateAbsent
	case err != nil:
		return fmt.Errorf("read %s: %w", id, err)
	case len(data) == 0:
		view.State = stateCheckedOut
	default:
		view.State = statePresent
		view.Size = len(data)
		view.Data = data
	}
	return printResult(c, view)
}

func sessionList(c *cli.Context) error {
	if err := requireArgs(c, 1, "OWNER"); err != nil {
		return err
	}
	owner := c.Args().Get(0)
	if err := domain.ValidateOwnerID(owner); err != nil {
		return err
	}

	conn, err := EnsureConnected(c)
	if err != nil {
		return err
	}
	ctx, cancel := commandContext(c)
	defer cancel()

	prefix := domain.SessionKeyPrefixFor(owner)
	var keys []string
	err = conn.Backend.Scan(ctx, prefix, func(key string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return fmt.Errorf("scan %s: %w", prefix, err)
	}

	views := make([]SessionView, 0, len(keys))
	for _, key := range keys {
		data, err := conn.Backend.Get(ctx, key)
		if errors.Is(err, storage.ErrKeyNotFound) {
			continue
		}
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		view := SessionView{
			Owner: owner,
			Peer:  strings.TrimPrefix(key, prefix),
			State: statePresent,
			Size:  len(data),
		}
		if len(data) == 0 {
			view.State = stateCheckedOut
		}
		views = append(views, view)
	}
	return printResult(c, views)
}
