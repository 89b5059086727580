package engine

// Batch collects commands and runs them as one atomic unit in submission
// order. There is no rollback: each command reports its own result.
type Batch struct {
	e     *Engine
	cmds  []Command
	specs []*commandSpec
	errs  []error
}

// NewBatch creates an empty batch.
func (e *Engine) NewBatch() *Batch {
	return &Batch{e: e}
}

// Queue appends cmd and returns its index in the result slice. A command
// that fails validation is kept and reports the error in its slot.
func (b *Batch) Queue(cmd Command) int {
	spec, err := lookup(cmd)
	b.cmds = append(b.cmds, cmd)
	b.specs = append(b.specs, spec)
	b.errs = append(b.errs, err)
	return len(b.cmds) - 1
}

// Len returns the number of queued commands.
func (b *Batch) Len() int {
	return len(b.cmds)
}

// Execute runs every queued command and empties the batch.
func (b *Batch) Execute() []Result {
	results := make([]Result, len(b.cmds))

	var plan lockPlan
	for i, spec := range b.specs {
		if b.errs[i] == nil {
			plan.addCommand(spec, b.cmds[i])
		}
	}

	_ = b.e.run(plan, func(o *Ops) error {
		for i, cmd := range b.cmds {
			if b.errs[i] != nil {
				results[i] = Result{Err: b.errs[i]}
				continue
			}
			results[i] = b.e.apply(o, b.specs[i], cmd)
		}
		return nil
	})

	b.cmds, b.specs, b.errs = nil, nil, nil
	return results
}
