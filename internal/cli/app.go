// Package cli defines the bookshelf command line: the HTTP server plus the
// account administration commands that have no HTTP route.
package cli

import (
	"github.com/urfave/cli/v2"

	"github.com/theledlead/bookshelf/internal/config"
	"github.com/theledlead/bookshelf/internal/database"
	"github.com/theledlead/bookshelf/internal/entrypoint"
)

// NewApp builds the command tree. serve runs when no command is given.
func NewApp(version string) *cli.App {
	app := cli.NewApp()
	app.Name = "bookshelf"
	app.Usage = "book sharing backend"
	app.Version = version
	app.Action = func(c *cli.Context) error {
		return entrypoint.Run(config.NewConfig(), version)
	}
	app.Commands = []*cli.Command{
		{
			Name:  "serve",
			Usage: "run the HTTP server",
			Action: func(c *cli.Context) error {
				return entrypoint.Run(config.NewConfig(), version)
			},
		},
		createUserCommand(),
		setStaffCommand(),
	}
	return app
}

// openDatabase connects with the server's configuration, honouring a
// --db override of the SQLite path.
func openDatabase(c *cli.Context) (*database.Database, *config.Config, error) {
	cfg := config.NewConfig()
	cfg.Database.LogLevel = "silent"
	if path := c.String("db"); path != "" {
		cfg.Database.Driver = config.DriverSQLite
		cfg.Database.Path = path
	}
	db, err := database.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	return db, cfg, nil
}

var dbFlag = &cli.StringFlag{
	Name:  "db",
	Usage: "SQLite database path, overrides DATABASE_PATH",
}
