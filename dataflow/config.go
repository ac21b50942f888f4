package dataflow

// Config carries the limits observed by every recursive component of the
// optimizer. It is constructed once per optimization run and passed
// explicitly; there is no ambient global state.
type Config struct {
	// MaxDepth bounds recursive plan traversal. Exceeding it aborts the
	// traversal with a RecursionLimitError instead of overflowing the stack.
	MaxDepth int

	// MaxFixpointIters bounds how many times a fixpoint group re-runs before
	// giving up on convergence. Hitting it is reported as a warning, not an
	// error; the best plan found so far is still returned.
	MaxFixpointIters int

	// FoldBudget caps the number of scalar evaluation steps constant folding
	// may spend in one optimization run.
	FoldBudget int

	// InlineSingleUseLets controls whether let normalization inlines
	// bindings referenced exactly once directly into their consumer.
	InlineSingleUseLets bool
}

// DefaultConfig returns the limits used by the standard pipeline.
func DefaultConfig() Config {
	return Config{
		MaxDepth:            2048,
		MaxFixpointIters:    100,
		FoldBudget:          10000,
		InlineSingleUseLets: true,
	}
}
