package cli

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/theledlead/bookshelf/internal/auth"
	"github.com/theledlead/bookshelf/internal/config"
	"github.com/theledlead/bookshelf/internal/database"
)

// CreateUserCommand creates an account, optionally with the staff role.
type CreateUserCommand struct {
	Username  string
	Email     string
	Password  string
	Staff     bool
	Superuser bool
}

func createUserCommand() *cli.Command {
	return &cli.Command{
		Name:  "create-user",
		Usage: "create an account",
		Flags: []cli.Flag{
			dbFlag,
			&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Required: true},
			&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Required: true},
			&cli.StringFlag{
				Name:     "password",
				Aliases:  []string{"p"},
				Usage:    "account password",
				EnvVars:  []string{"BOOKSHELF_PASSWORD"},
				Required: true,
			},
			&cli.BoolFlag{Name: "staff", Usage: "grant the staff role"},
			&cli.BoolFlag{Name: "superuser", Usage: "mark the account as superuser, implies --staff"},
		},
		Action: func(c *cli.Context) error {
			db, cfg, err := openDatabase(c)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			defer db.Close()

			cmd := &CreateUserCommand{
				Username:  c.String("username"),
				Email:     c.String("email"),
				Password:  c.String("password"),
				Staff:     c.Bool("staff"),
				Superuser: c.Bool("superuser"),
			}
			if err := cmd.Run(db, cfg.Auth); err != nil {
				return cli.Exit(err.Error(), 1)
			}
			return nil
		},
	}
}

// Run creates the account in db.
func (cmd *CreateUserCommand) Run(db *database.Database, authCfg config.Auth) error {
	svc := auth.NewService(db.DB, authCfg)
	user, err := svc.CreateUser(auth.NewUser{
		Username:  cmd.Username,
		Email:     cmd.Email,
		Password:  cmd.Password,
		Staff:     cmd.Staff || cmd.Superuser,
		Superuser: cmd.Superuser,
	})
	if err != nil {
		return fmt.Errorf("create user %s: %w", cmd.Username, err)
	}

	role := "user"
	if user.IsStaff {
		role = "staff"
	}
	fmt.Printf("Created %s %s (id %d)\n", role, user.Username, user.ID)
	return nil
}
