package engine

import (
	"github.com/yndnr/meshkv/internal/core/domain"
)

// TxState is the state of a Transaction.
type TxState uint8

const (
	TxIdle TxState = iota
	TxQueuing
	TxCommitted
	TxAborted
)

func (s TxState) String() string {
	switch s {
	case TxIdle:
		return "idle"
	case TxQueuing:
		return "queuing"
	case TxCommitted:
		return "committed"
	case TxAborted:
		return "aborted"
	}
	return "unknown"
}

func (s TxState) terminal() bool {
	return s == TxCommitted || s == TxAborted
}

// Transaction buffers commands and applies them at Commit only if every
// watched condition still holds. Condition checks and execution form one
// atomic step.
//
// A Transaction is not safe for concurrent use. After Commit or Discard,
// the next Begin, Watch or Queue starts a fresh round.
type Transaction struct {
	e      *Engine
	state  TxState
	conds  []Condition
	cmds   []Command
	specs  []*commandSpec
	poison error
}

// NewTransaction creates an idle transaction.
func (e *Engine) NewTransaction() *Transaction {
	return &Transaction{e: e}
}

// State returns the current state.
func (t *Transaction) State() TxState {
	return t.state
}

// Len returns the number of queued commands.
func (t *Transaction) Len() int {
	return len(t.cmds)
}

// Reset drops conditions and queued commands and returns to TxIdle.
func (t *Transaction) Reset() {
	t.state = TxIdle
	t.conds = nil
	t.cmds = nil
	t.specs = nil
	t.poison = nil
}

func (t *Transaction) restart() {
	if t.state.terminal() {
		t.Reset()
	}
}

// Begin enters the queuing state.
func (t *Transaction) Begin() error {
	t.restart()
	if t.state == TxQueuing {
		return domain.ErrTxNested
	}
	t.state = TxQueuing
	return nil
}

// Watch registers a condition checked at commit.
func (t *Transaction) Watch(c Condition) {
	t.restart()
	t.conds = append(t.conds, c)
}

// Unwatch drops every registered condition.
func (t *Transaction) Unwatch() {
	t.conds = nil
}

// Queue buffers cmd without applying it. An invalid command is rejected
// and makes the next Commit fail with ErrExecAbort.
func (t *Transaction) Queue(cmd Command) error {
	t.restart()
	t.state = TxQueuing
	spec, err := lookup(cmd)
	if err != nil {
		if t.poison == nil {
			t.poison = err
		}
		return err
	}
	t.cmds = append(t.cmds, cmd)
	t.specs = append(t.specs, spec)
	return nil
}

func (t *Transaction) finish(state TxState, result string) {
	t.state = state
	t.cmds, t.specs = nil, nil
	if t.e.observer != nil {
		t.e.observer.TransactionDone(result)
	}
}

// Commit evaluates every condition and, if all hold, applies the queued
// commands in order. It returns ErrPreconditionFailed when a condition
// fails and ErrExecAbort when a command was rejected at queue time; in both
// cases nothing is applied. A command failing at run time reports its
// error in its result without undoing the others.
func (t *Transaction) Commit() ([]Result, error) {
	if t.state.terminal() {
		return nil, domain.ErrTxNotStarted
	}
	if t.poison != nil {
		t.finish(TxAborted, TxResultExecAbort)
		return nil, domain.ErrExecAbort
	}

	var plan lockPlan
	for _, c := range t.conds {
		plan.addKey(c.Key())
	}
	for i, spec := range t.specs {
		plan.addCommand(spec, t.cmds[i])
	}

	var (
		results []Result
		failed  Condition
	)
	_ = t.e.run(plan, func(o *Ops) error {
		for _, c := range t.conds {
			if !c.Holds(o.txn) {
				failed = c
				return nil
			}
		}
		results = make([]Result, len(t.cmds))
		for i, cmd := range t.cmds {
			results[i] = t.e.apply(o, t.specs[i], cmd)
		}
		return nil
	})

	if failed != nil {
		t.e.logger.Debug("transaction aborted", "condition", failed.String())
		t.finish(TxAborted, TxResultAborted)
		return nil, domain.ErrPreconditionFailed
	}
	t.finish(TxCommitted, TxResultCommitted)
	return results, nil
}

// Discard drops the queued commands and conditions.
func (t *Transaction) Discard() error {
	if t.state.terminal() {
		return domain.ErrTxNotStarted.WithMessage("DISCARD without MULTI")
	}
	t.conds = nil
	t.poison = nil
	t.finish(TxAborted, TxResultDiscarded)
	return nil
}
