package main

import (
	"database/sql"
	"fmt"
	"io"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"golang.org/x/term"

	"github.com/alumnet/alumnet/core/user"
	"github.com/alumnet/alumnet/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword      // mockable
	gooseRunFunc     = database.RunMigrations // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db      *sql.DB
	usrRepo user.Repository
	out     io.Writer
}

func (cmd *commandLine) app() *cli.App {
	return &cli.App{
		Name:            "admin",
		Usage:           "administer the alumnet database",
		Writer:          cmd.out,
		ErrWriter:       cmd.out,
		HideHelpCommand: true,
		Action: func(c *cli.Context) error {
			_ = cli.ShowAppHelp(c)
			return errHelp
		},
		Commands: []*cli.Command{
			{
				Name:      "migrate",
				Usage:     "run a migrations command: up, up-by-one, up-to, down, down-to, redo, reset, status, version, create, fix",
				ArgsUsage: "COMMAND [ARGS...]",
				Action: func(c *cli.Context) error {
					if c.NArg() == 0 {
						_ = cli.ShowCommandHelp(c, "migrate")
						return errHelp
					}
					return cmd.migrate(c.Args().First(), c.Args().Tail()...)
				},
			},
			{
				Name:  "adduser",
				Usage: "create a user, or update the password of an existing one",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "the user's username"},
					&cli.StringFlag{Name: "email", Aliases: []string{"e"}, Usage: "the user's email"},
					&cli.StringFlag{Name: "name", Aliases: []string{"n"}, Usage: "the user's first name (defaults to the username)"},
					&cli.BoolFlag{Name: "admin", Usage: "grant the admin role"},
				},
				Action: func(c *cli.Context) error {
					if c.String("username") == "" && c.String("email") == "" {
						_ = cli.ShowCommandHelp(c, "adduser")
						return errHelp
					}
					pwd, err := cmd.promptPassword(c, "adduser")
					if err != nil {
						return err
					}
					return cmd.addUser(c.String("name"), c.String("username"), c.String("email"), pwd, c.Bool("admin"))
				},
			},
			{
				Name:  "resetpassword",
				Usage: "reset a user's password",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "username", Aliases: []string{"u"}, Usage: "the user's username or email. The password will be prompted next."},
				},
				Action: func(c *cli.Context) error {
					if c.String("username") == "" {
						_ = cli.ShowCommandHelp(c, "resetpassword")
						return errHelp
					}
					pwd, err := cmd.promptPassword(c, "resetpassword")
					if err != nil {
						return err
					}
					return cmd.resetPassword(c.String("username"), pwd)
				},
			},
		},
	}
}

func (cmd *commandLine) run(args []string) error {
	return cmd.app().Run(args)
}

func (cmd *commandLine) promptPassword(c *cli.Context, command string) (string, error) {
	_, _ = fmt.Fprint(cmd.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cmd.out)
	if err != nil {
		return "", errors.Wrap(err, "reading password")
	}
	if len(pwd) == 0 {
		_ = cli.ShowCommandHelp(c, command)
		return "", errHelp
	}
	return string(pwd), nil
}

func (cmd *commandLine) migrate(command string, args ...string) error {
	return gooseRunFunc(cmd.db, command, args...)
}
