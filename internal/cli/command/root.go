package command

import (
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/meshkv/internal/cli/config"
	"github.com/yndnr/meshkv/internal/cli/connection"
	"github.com/yndnr/meshkv/internal/cli/output"
	"github.com/yndnr/meshkv/internal/cli/repl"
	"github.com/yndnr/meshkv/internal/infra/buildinfo"
	"github.com/yndnr/meshkv/internal/infra/tlsroots"
)

// ErrReply marks a command whose reply was a server error. The reply has
// already been printed, so callers only need to set the exit status.
var ErrReply = errors.New("server replied with an error")

// Env is the resolved global state every command runs with.
type Env struct {
	Server    string
	HTTP      string
	Format    output.Format
	Formatter output.Formatter
	Options   connection.Options
	History   string
	Out       io.Writer
}

const envKey = "env"

// App creates the CLI application.
func App() *cli.App {
	info := buildinfo.Get()
	return &cli.App{
		Name:    "meshkv-cli",
		Usage:   "meshkv command-line client",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", info.Version, info.Commit, info.BuildTime),
		Flags:   globalFlags(),
		Commands: []*cli.Command{
			ExecCommand(),
			REPLCommand(),
			PublishCommand(),
			SubscribeCommand(),
			InfoCommand(),
			WalkthroughCommand(),
		},
		Before: setup,
	}
}

func globalFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "CLI preferences file",
			Value: config.DefaultConfigPath(),
		},
		&cli.StringFlag{
			Name:    "profile",
			Aliases: []string{"p"},
			Usage:   "named server profile from the preferences file",
			EnvVars: []string{"MESHKV_PROFILE"},
		},
		&cli.StringFlag{
			Name:    "server",
			Aliases: []string{"s"},
			Usage:   "RESP server address (host:port)",
			EnvVars: []string{"MESHKV_SERVER"},
		},
		&cli.StringFlag{
			Name:    "http",
			Usage:   "HTTP API address (host:port or URL)",
			EnvVars: []string{"MESHKV_HTTP"},
		},
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "output format: plain, json, yaml",
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "network timeout",
			Value: 5 * time.Second,
		},
		&cli.BoolFlag{
			Name:    "tls",
			Usage:   "connect over TLS",
			EnvVars: []string{"MESHKV_TLS"},
		},
		&cli.StringFlag{
			Name:    "tls-ca",
			Usage:   "PEM bundle of CAs to trust instead of the system roots (implies --tls)",
			EnvVars: []string{"MESHKV_TLS_CA"},
		},
		&cli.BoolFlag{
			Name:  "tls-skip-verify",
			Usage: "do not verify the server certificate (implies --tls)",
		},
	}
}

// clientTLS builds the TLS config selected by the flags, or nil.
func clientTLS(c *cli.Context) (*tls.Config, error) {
	if !c.Bool("tls") && c.String("tls-ca") == "" && !c.Bool("tls-skip-verify") {
		return nil, nil
	}
	var roots *x509.CertPool
	if path := c.String("tls-ca"); path != "" {
		var err error
		if roots, err = tlsroots.LoadCAFile(path); err != nil {
			return nil, err
		}
	}
	return tlsroots.ClientConfig(roots, c.Bool("tls-skip-verify")), nil
}

// setup loads the preferences file and overlays explicit flags.
func setup(c *cli.Context) error {
	prefs, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	server, httpAddr, err := prefs.Resolve(c.String("profile"))
	if err != nil {
		return err
	}
	if c.IsSet("server") {
		server = c.String("server")
	}
	if c.IsSet("http") {
		httpAddr = c.String("http")
	}

	formatName := prefs.Output
	if c.IsSet("output") {
		formatName = c.String("output")
	}
	format, err := output.ParseFormat(formatName)
	if err != nil {
		return err
	}

	opts := connection.DefaultOptions()
	if d := c.Duration("timeout"); d > 0 {
		opts.DialTimeout = d
		opts.WriteTimeout = d
	}
	if opts.TLS, err = clientTLS(c); err != nil {
		return err
	}

	history := prefs.History
	if history == "" {
		history = repl.DefaultHistoryFile()
	}

	out := c.App.Writer
	if out == nil {
		out = os.Stdout
	}

	if c.App.Metadata == nil {
		c.App.Metadata = make(map[string]any)
	}
	c.App.Metadata[envKey] = &Env{
		Server:    server,
		HTTP:      httpAddr,
		Format:    format,
		Formatter: output.NewFormatter(format),
		Options:   opts,
		History:   history,
		Out:       out,
	}
	return nil
}

// GetEnv returns the state prepared by setup.
func GetEnv(c *cli.Context) *Env {
	env, _ := c.App.Metadata[envKey].(*Env)
	return env
}

// httpClient returns a client for the HTTP API using the selected TLS
// settings.
func (e *Env) httpClient() *connection.HTTPClient {
	if e.Options.TLS != nil {
		return connection.NewHTTPClient(e.HTTP, connection.WithTLS(e.Options.TLS))
	}
	return connection.NewHTTPClient(e.HTTP)
}

// print formats data on the command's output.
func (e *Env) print(data any) error {
	return e.Formatter.Format(e.Out, data)
}

// printReply prints a reply and maps server errors to ErrReply.
func (e *Env) printReply(r output.Reply) error {
	if err := e.print(r); err != nil {
		return err
	}
	if r.Err != nil {
		return ErrReply
	}
	return nil
}
