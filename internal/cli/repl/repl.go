package repl

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/yndnr/meshkv/internal/cli/connection"
	"github.com/yndnr/meshkv/internal/cli/output"
)

// Config wires a REPL.
type Config struct {
	In        io.Reader
	Out       io.Writer
	Manager   *connection.Manager
	Formatter output.Formatter
	History   *History
}

// REPL represents the Read-Eval-Print Loop.
type REPL struct {
	in        io.Reader
	out       io.Writer
	mgr       *connection.Manager
	formatter output.Formatter
	completer *Completer
	history   *History
}

// New creates a new REPL instance.
func New(cfg Config) *REPL {
	r := &REPL{
		in:        cfg.In,
		out:       cfg.Out,
		mgr:       cfg.Manager,
		formatter: cfg.Formatter,
		completer: NewCompleter(),
		history:   cfg.History,
	}
	if r.formatter == nil {
		r.formatter = &output.PlainFormatter{}
	}
	if r.history == nil {
		r.history = NewHistory("")
	}
	return r
}

// Run reads lines until EOF, EXIT/QUIT or ctx is cancelled.
func (r *REPL) Run(ctx context.Context) error {
	if err := r.history.Load(); err != nil {
		fmt.Fprintf(r.out, "warning: load history: %v\n", err)
	}
	defer func() {
		if err := r.history.Save(); err != nil {
			fmt.Fprintf(r.out, "warning: save history: %v\n", err)
		}
	}()

	scanner := bufio.NewScanner(r.in)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for {
		if ctx.Err() != nil {
			return nil
		}
		fmt.Fprint(r.out, r.prompt())
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		r.history.Add(line)

		words, err := SplitArgs(line)
		if err != nil {
			fmt.Fprintf(r.out, "(error) %v\n", err)
			continue
		}
		if len(words) == 0 {
			continue
		}
		if done := r.execute(ctx, words); done {
			return nil
		}
	}
}

func (r *REPL) prompt() string {
	if conn := r.mgr.Current(); conn != nil {
		return conn.Addr + "> "
	}
	return "not connected> "
}

// execute handles one command and reports whether the loop should end.
func (r *REPL) execute(ctx context.Context, words []string) bool {
	switch name := strings.ToUpper(words[0]); name {
	case "EXIT", "QUIT":
		return true
	case "HELP":
		r.help(words[1:])
	case "HISTORY":
		for i, e := range r.history.Entries() {
			fmt.Fprintf(r.out, "%4d  %s\n", i+1, e)
		}
	case "CONNECT":
		if len(words) != 2 {
			fmt.Fprintln(r.out, "(error) usage: CONNECT host:port")
			break
		}
		if err := r.mgr.Connect(ctx, words[1]); err != nil {
			fmt.Fprintf(r.out, "(error) %v\n", err)
			break
		}
		fmt.Fprintln(r.out, "OK")
	case "DISCONNECT":
		if err := r.mgr.Disconnect(); err != nil {
			fmt.Fprintf(r.out, "(error) %v\n", err)
		}
	case "SUBSCRIBE", "PSUBSCRIBE":
		fmt.Fprintf(r.out, "(error) %s is not supported interactively, use meshkv-cli subscribe\n", name)
	default:
		v, err := r.mgr.Do(ctx, words)
		if err := r.formatter.Format(r.out, output.NewReply(v, err)); err != nil {
			fmt.Fprintf(r.out, "(error) %v\n", err)
		}
	}
	return false
}

func (r *REPL) help(args []string) {
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	matches := r.completer.Complete(prefix)
	if len(matches) == 0 {
		fmt.Fprintf(r.out, "no commands match %q\n", prefix)
		return
	}
	fmt.Fprintln(r.out, strings.Join(matches, " "))
}
