package engine

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/yndnr/meshkv/internal/core/domain"
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// Command is a textual command: a name and its arguments.
type Command struct {
	Name string
	Args []string
}

// NewCommand builds a Command from a name and arguments.
func NewCommand(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// String renders the command space-separated, for logs.
func (c Command) String() string {
	if len(c.Args) == 0 {
		return c.Name
	}
	return c.Name + " " + strings.Join(c.Args, " ")
}

// Result is the outcome of one command.
//
// Value is one of: nil (null bulk), Status, string, int64, []string,
// []any (nested replies, nil elements are null bulks) or NullArray.
type Result struct {
	Value any
	Err   error
}

// Status is a simple-string reply.
type Status string

// OK is the conventional success status.
const OK Status = "OK"

// NullArray is the null multi-bulk reply.
type NullArray struct{}

type cmdFlags uint8

const (
	flagWrite cmdFlags = 1 << iota
	flagAllKeys
)

type handlerFunc func(o *Ops, args []string) (any, error)

type keysFunc func(args []string) []string

type commandSpec struct {
	name  string
	arity int // Redis convention: counts the name; negative means at least -arity
	flags cmdFlags
	keys  keysFunc
	run   handlerFunc
}

func (s *commandSpec) write() bool   { return s.flags&flagWrite != 0 }
func (s *commandSpec) allKeys() bool { return s.flags&flagAllKeys != 0 }

func (s *commandSpec) checkArity(args []string) error {
	n := len(args) + 1
	if (s.arity > 0 && n != s.arity) || (s.arity < 0 && n < -s.arity) {
		return domain.WrongArity(strings.ToLower(s.name))
	}
	return nil
}

var commandTable = map[string]*commandSpec{}

func register(specs ...commandSpec) {
	for i := range specs {
		s := specs[i]
		commandTable[s.name] = &s
	}
}

// lookup resolves and validates cmd against the command table.
func lookup(cmd Command) (*commandSpec, error) {
	spec, ok := commandTable[strings.ToUpper(cmd.Name)]
	if !ok {
		return nil, domain.UnknownCommand(cmd.Name)
	}
	if err := spec.checkArity(cmd.Args); err != nil {
		return nil, err
	}
	return spec, nil
}

// Validate reports whether cmd names a known command with a valid arity.
func Validate(cmd Command) error {
	_, err := lookup(cmd)
	return err
}

// IsCommand reports whether name is in the command table.
func IsCommand(name string) bool {
	_, ok := commandTable[strings.ToUpper(name)]
	return ok
}

// CommandNames returns the names in the command table, sorted.
func CommandNames() []string {
	names := make([]string, 0, len(commandTable))
	for name := range commandTable {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Keys returns the keys cmd touches, or nil if cmd is invalid.
func Keys(cmd Command) []string {
	spec, err := lookup(cmd)
	if err != nil {
		return nil
	}
	return spec.keys(cmd.Args)
}

// Exec runs a single command atomically.
func (e *Engine) Exec(cmd Command) Result {
	spec, err := lookup(cmd)
	if err != nil {
		return Result{Err: err}
	}

	var res Result
	fn := func(txn *keyspace.Txn) error {
		res = e.apply(e.ops(txn), spec, cmd)
		return nil
	}
	switch {
	case spec.allKeys() && spec.write():
		_ = e.ks.UpdateAll(fn)
	case spec.allKeys():
		_ = e.ks.ViewAll(fn)
	case spec.write():
		_ = e.ks.Update(spec.keys(cmd.Args), fn)
	default:
		_ = e.ks.View(spec.keys(cmd.Args), fn)
	}
	return res
}

// apply runs a validated command against open locks.
func (e *Engine) apply(o *Ops, spec *commandSpec, cmd Command) Result {
	start := time.Now()
	v, err := spec.run(o, cmd.Args)
	if e.observer != nil {
		e.observer.CommandDone(spec.name, time.Since(start), err)
	}
	if err != nil {
		return Result{Err: err}
	}
	if spec.write() && e.journal != nil {
		if jerr := e.journal.Append(cmd); jerr != nil {
			e.logger.Error("journal append failed", "command", spec.name, "error", jerr)
		}
	}
	return Result{Value: v}
}

// Key extractors.

func noKeys([]string) []string { return nil }

func firstKey(args []string) []string { return args[:1] }

func firstTwoKeys(args []string) []string { return args[:2] }

func allArgs(args []string) []string { return args }

func everyOtherKey(args []string) []string {
	keys := make([]string, 0, (len(args)+1)/2)
	for i := 0; i < len(args); i += 2 {
		keys = append(keys, args[i])
	}
	return keys
}

// numKeysKeys handles "dst numkeys key [key ...] [options]". An invalid
// numkeys locks every argument; the handler reports the error.
func numKeysKeys(args []string) []string {
	if len(args) < 2 {
		return args
	}
	n, err := strconv.Atoi(args[1])
	if err != nil || n < 1 || n > len(args)-2 {
		return args
	}
	keys := make([]string, 0, n+1)
	keys = append(keys, args[0])
	return append(keys, args[2:2+n]...)
}
