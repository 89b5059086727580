package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshkv/internal/cli/connection"
	"github.com/yndnr/meshkv/internal/cli/output"
)

// PublishCommand sends one message.
func PublishCommand() *cli.Command {
	return &cli.Command{
		Name:      "publish",
		Usage:     "Publish a message and print the number of receivers",
		ArgsUsage: "CHANNEL MESSAGE",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "via-http", Usage: "publish through the HTTP API instead of RESP"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 2 {
				return cli.Exit("publish: CHANNEL and MESSAGE required", 2)
			}
			env := GetEnv(c)
			channel, message := c.Args().Get(0), c.Args().Get(1)

			if c.Bool("via-http") {
				resp, err := env.httpClient().Publish(c.Context, channel, message)
				if err != nil {
					return err
				}
				return env.printReply(output.Reply{Value: int64(resp.Receivers)})
			}

			rdb, err := connection.Dial(c.Context, env.Server, env.Options)
			if err != nil {
				return err
			}
			defer rdb.Close()
			n, err := rdb.Publish(c.Context, channel, message).Result()
			return env.printReply(output.NewReply(n, err))
		},
	}
}

// Message is one received pub/sub message in json and yaml output.
type Message struct {
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
	Channel string `json:"channel" yaml:"channel"`
	Payload string `json:"message" yaml:"message"`
}

// SubscribeCommand prints messages until interrupted.
func SubscribeCommand() *cli.Command {
	return &cli.Command{
		Name:      "subscribe",
		Usage:     "Listen for messages on channels or glob patterns",
		ArgsUsage: "CHANNEL...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "pattern", Usage: "treat arguments as glob patterns (PSUBSCRIBE)"},
			&cli.IntFlag{Name: "count", Usage: "exit after this many messages (0 = unlimited)"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() == 0 {
				return cli.Exit("subscribe: at least one channel required", 2)
			}
			env := GetEnv(c)

			rdb, err := connection.Dial(c.Context, env.Server, env.Options)
			if err != nil {
				return err
			}
			defer rdb.Close()

			var ps *redis.PubSub
			if c.Bool("pattern") {
				ps = rdb.PSubscribe(c.Context, c.Args().Slice()...)
			} else {
				ps = rdb.Subscribe(c.Context, c.Args().Slice()...)
			}
			defer ps.Close()

			// Wait for every confirmation so publishers started after the
			// banner are not missed.
			for i := 0; i < c.NArg(); i++ {
				if _, err := ps.Receive(c.Context); err != nil {
					return fmt.Errorf("subscribe: %w", err)
				}
			}
			fmt.Fprintln(env.Out, "Reading messages... (press Ctrl-C to quit)")

			return receive(c.Context, env, ps, c.Int("count"))
		},
	}
}

func receive(ctx context.Context, env *Env, ps *redis.PubSub, limit int) error {
	for n := 0; limit == 0 || n < limit; n++ {
		msg, err := ps.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if err := env.print(formatMessage(env.Format, msg)); err != nil {
			return err
		}
	}
	return nil
}

func formatMessage(format output.Format, msg *redis.Message) any {
	if format != output.FormatPlain {
		return Message{Pattern: msg.Pattern, Channel: msg.Channel, Payload: msg.Payload}
	}
	if msg.Pattern != "" {
		return output.Reply{Value: []any{"pmessage", msg.Pattern, msg.Channel, msg.Payload}}
	}
	return output.Reply{Value: []any{"message", msg.Channel, msg.Payload}}
}
