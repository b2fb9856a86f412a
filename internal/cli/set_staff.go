package cli

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/theledlead/bookshelf/internal/database"
	"github.com/theledlead/bookshelf/internal/database/users"
)

// SetStaffCommand grants or revokes the staff role.
type SetStaffCommand struct {
	Username string
	Revoke   bool
}

func setStaffCommand() *cli.Command {
	return &cli.Command{
		Name:      "set-staff",
		Usage:     "grant or revoke the staff role",
		ArgsUsage: "USERNAME",
		Flags: []cli.Flag{
			dbFlag,
			&cli.BoolFlag{Name: "revoke", Usage: "remove the staff role instead"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("set-staff takes exactly one USERNAME", 2)
			}
			db, _, err := openDatabase(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer db.Close()

			cmd := &SetStaffCommand{Username: c.Args().First(), Revoke: c.Bool("revoke")}
			if err := cmd.Run(db); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Run updates the role in db.
func (cmd *SetStaffCommand) Run(db *database.Database) error {
	user, err := users.NewRepository(db.DB).SetStaff(cmd.Username, !cmd.Revoke)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("no user named %s", cmd.Username)
	}
	if err != nil {
		return fmt.Errorf("set staff for %s: %w", cmd.Username, err)
	}

	if user.IsStaff {
		fmt.Printf("%s is now staff\n", user.Username)
	} else {
		fmt.Printf("%s is no longer staff\n", user.Username)
	}
	return nil
}
