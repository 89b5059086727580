package command

import (
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshkv/internal/cli/connection"
	"github.com/yndnr/meshkv/internal/cli/output"
	"github.com/yndnr/meshkv/internal/cli/walkthrough"
)

// WalkthroughCommand replays the client demo against the server.
func WalkthroughCommand() *cli.Command {
	return &cli.Command{
		Name:  "walkthrough",
		Usage: "Replay the client demo step by step and print each result",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "demo", Usage: "run only these demos (" + demoNames() + ")"},
		},
		Action: func(c *cli.Context) error {
			env := GetEnv(c)
			opts := env.Options
			opts.PoolSize = 4
			rdb, err := connection.Dial(c.Context, env.Server, opts)
			if err != nil {
				return err
			}
			defer rdb.Close()

			var (
				sections []walkthrough.Section
				runErr   error
			)
			if names := c.StringSlice("demo"); len(names) > 0 {
				for _, name := range names {
					d, ok := walkthrough.Find(name)
					if !ok {
						return cli.Exit(fmt.Sprintf("unknown demo %q (want %s)", name, demoNames()), 2)
					}
					s := walkthrough.Section{Name: d.Name}
					runErr = d.Run(c.Context, rdb, &s)
					sections = append(sections, s)
					if runErr != nil {
						runErr = fmt.Errorf("%s: %w", d.Name, runErr)
						break
					}
				}
			} else {
				sections, runErr = walkthrough.Run(c.Context, rdb)
			}

			if err := printSections(env, sections); err != nil {
				return err
			}
			return runErr
		},
	}
}

func printSections(env *Env, sections []walkthrough.Section) error {
	if env.Format != output.FormatPlain {
		return env.print(sections)
	}
	for i, s := range sections {
		if i > 0 {
			fmt.Fprintln(env.Out)
		}
		fmt.Fprintf(env.Out, "== %s ==\n", s.Name)
		for _, line := range s.Lines {
			fmt.Fprintln(env.Out, line)
		}
	}
	return nil
}

func demoNames() string {
	names := make([]string, len(walkthrough.Demos))
	for i, d := range walkthrough.Demos {
		names[i] = d.Name
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
