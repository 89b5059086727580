package engine

import (
	"github.com/yndnr/meshkv/internal/storage/keyspace"
)

// lockPlan is the lock set needed to run a group of commands atomically.
type lockPlan struct {
	keys  []string
	all   bool
	write bool
}

func (p *lockPlan) addCommand(spec *commandSpec, cmd Command) {
	if spec.allKeys() {
		p.all = true
	} else {
		p.keys = append(p.keys, spec.keys(cmd.Args)...)
	}
	if spec.write() {
		p.write = true
	}
}

func (p *lockPlan) addKey(key string) {
	p.keys = append(p.keys, key)
}

// run executes fn under the plan's locks.
func (e *Engine) run(p lockPlan, fn func(*Ops) error) error {
	cb := func(txn *keyspace.Txn) error {
		return fn(e.ops(txn))
	}
	switch {
	case p.all && p.write:
		return e.ks.UpdateAll(cb)
	case p.all:
		return e.ks.ViewAll(cb)
	case p.write:
		return e.ks.Update(p.keys, cb)
	default:
		return e.ks.View(p.keys, cb)
	}
}
