package transform

import (
	"fmt"
	"strings"

	"github.com/oxbowdb/oxbow/dataflow/annotations"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// Fixpoint repeatedly applies an ordered list of transforms until a full
// pass reports no change, or the iteration limit is reached. Convergence is
// judged structurally: a pass counts as a change only if the resulting
// plan's fingerprint differs, so a pass that claims change while rebuilding
// an identical tree cannot spin the driver.
//
// Hitting the limit is a warning, not a failure: the best plan found so far
// is returned and a fixpoint/limit event records that convergence was not
// proven.
type Fixpoint struct {
	Transforms []Transform
	Limit      int
}

// Name identifies the driver and its configuration in trace output.
func (f *Fixpoint) Name() string {
	names := make([]string, len(f.Transforms))
	for i, t := range f.Transforms {
		names[i] = t.Name()
	}
	return fmt.Sprintf("Fixpoint(%s, limit=%d)", strings.Join(names, ", "), f.Limit)
}

// Apply runs the group to convergence or to the iteration limit.
func (f *Fixpoint) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = ctx.Config.MaxFixpointIters
	}

	changedEver := false
	before := expr.Fingerprint(plan)
	for i := 0; i < limit; i++ {
		next := plan
		claimed := false
		for _, t := range f.Transforms {
			out, c, err := t.Apply(ctx, next)
			if err != nil {
				return nil, false, fmt.Errorf("%s: %w", t.Name(), err)
			}
			next = out
			claimed = claimed || c
		}
		after := expr.Fingerprint(next)
		if !claimed || after == before {
			return next, changedEver, nil
		}
		plan = next
		before = after
		changedEver = true
	}

	ctx.FixpointLimited = true
	ctx.Collector.Emit(annotations.FixpointLimit, map[string]interface{}{
		"transform":  f.Name(),
		"iterations": limit,
	})
	return plan, changedEver, nil
}
