package command

import (
	"github.com/urfave/cli/v2"
)

// InfoCommand prints GET /v1/info.
func InfoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "Show server build, key and subscription counts (HTTP API)",
		Action: func(c *cli.Context) error {
			env := GetEnv(c)
			info, err := env.httpClient().Info(c.Context)
			if err != nil {
				return err
			}
			return env.print(info)
		},
	}
}
