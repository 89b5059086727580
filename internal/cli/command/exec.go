package command

import (
	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshkv/internal/cli/connection"
	"github.com/yndnr/meshkv/internal/cli/output"
)

// ExecCommand runs a single server command.
func ExecCommand() *cli.Command {
	return &cli.Command{
		Name:      "exec",
		Usage:     "Run one command, e.g. exec SET greeting hello",
		ArgsUsage: "COMMAND [ARG...]",
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("exec: command required", 2)
			}
			env := GetEnv(c)

			rdb, err := connection.Dial(c.Context, env.Server, env.Options)
			if err != nil {
				return err
			}
			defer rdb.Close()

			v, err := connection.Do(c.Context, rdb, c.Args().Slice())
			return env.printReply(output.NewReply(v, err))
		},
	}
}
