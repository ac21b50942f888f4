package transform

import (
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// RedundantSubplanSharing finds structurally identical sub-plans reachable
// from more than one point and hoists one copy into a Let binding at the
// root, replacing each occurrence with a reference. Each application
// extracts the single largest candidate; the wrapping fixpoint re-runs the
// pass until nothing sharable remains.
//
// Candidates that reference a binding defined somewhere inside the plan are
// skipped: hoisting them above their binding would break scope.
type RedundantSubplanSharing struct{}

// Name implements Transform.
func (RedundantSubplanSharing) Name() string { return "RedundantSubplanSharing" }

// Apply implements Transform.
func (RedundantSubplanSharing) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	limit := ctx.Config.MaxDepth

	boundNames := make(map[string]bool)
	if err := expr.Visit(plan, limit, func(e expr.RelationExpr) error {
		if let, ok := e.(*expr.Let); ok {
			boundNames[let.Name] = true
		}
		return nil
	}); err != nil {
		return nil, false, err
	}

	// Count occurrences of each canonical sub-plan worth sharing.
	type candidate struct {
		node  expr.RelationExpr
		count int
	}
	seen := make(map[string]*candidate)
	if err := expr.Visit(plan, limit, func(e expr.RelationExpr) error {
		if !sharable(e, boundNames, limit) {
			return nil
		}
		key := expr.Canonical(e)
		if c, ok := seen[key]; ok {
			c.count++
		} else {
			seen[key] = &candidate{node: e, count: 1}
		}
		return nil
	}); err != nil {
		return nil, false, err
	}

	var bestKey string
	for key, c := range seen {
		if c.count < 2 {
			continue
		}
		// Largest encoding first; ties break lexicographically for
		// determinism.
		if len(key) > len(bestKey) || (len(key) == len(bestKey) && key > bestKey) {
			bestKey = key
		}
	}
	if bestKey == "" {
		return plan, false, nil
	}
	shared := seen[bestKey].node

	name := ctx.NextLetName()
	ref := &expr.Get{Name: name}
	body, _, err := expr.Rewrite(plan, limit, func(e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		if expr.Canonical(e) == bestKey {
			return ref, true, nil
		}
		return e, false, nil
	})
	if err != nil {
		return nil, false, err
	}
	return &expr.Let{Name: name, Value: shared, Body: body}, true, nil
}

// sharable filters out sub-plans not worth (or not safe) binding: leaves
// that are already references, and anything mentioning an inner binding.
func sharable(e expr.RelationExpr, boundNames map[string]bool, limit int) bool {
	switch e.(type) {
	case *expr.Get, *expr.Constant, *expr.Let:
		return false
	}
	safe := true
	_ = expr.Visit(e, limit, func(sub expr.RelationExpr) error {
		switch sub := sub.(type) {
		case *expr.Get:
			if boundNames[sub.Name] {
				safe = false
			}
		case *expr.Let:
			safe = false
		}
		return nil
	})
	return safe
}
