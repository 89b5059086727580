package command

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshkv/internal/cli/connection"
	"github.com/yndnr/meshkv/internal/cli/repl"
)

// REPLCommand starts interactive mode.
func REPLCommand() *cli.Command {
	return &cli.Command{
		Name:  "repl",
		Usage: "Interactive mode",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "no-history", Usage: "do not read or write the history file"},
		},
		Action: func(c *cli.Context) error {
			env := GetEnv(c)

			mgr := connection.NewManager(env.Options)
			defer mgr.Disconnect()
			if err := mgr.Connect(c.Context, env.Server); err != nil {
				fmt.Fprintf(env.Out, "warning: %v\n", err)
			}

			histFile := env.History
			if c.Bool("no-history") {
				histFile = ""
			}

			in := c.App.Reader
			if in == nil {
				in = os.Stdin
			}
			return repl.New(repl.Config{
				In:        in,
				Out:       env.Out,
				Manager:   mgr,
				Formatter: env.Formatter,
				History:   repl.NewHistory(histFile),
			}).Run(c.Context)
		},
	}
}
