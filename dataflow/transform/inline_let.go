package transform

import (
	"github.com/oxbowdb/oxbow/dataflow"
	"github.com/oxbowdb/oxbow/dataflow/expr"
)

// InlineLets normalizes let bindings. Bindings that nothing references are
// dropped outright; when the configuration allows, a binding referenced
// exactly once is inlined into its single consumer. Bindings with several
// consumers stay shared, and so does a binding whose single consumer sits
// under a Let that rebinds a name the value refers to, since inlining
// there would capture the reference.
type InlineLets struct{}

// Name implements Transform.
func (InlineLets) Name() string { return "InlineLets" }

// Apply implements Transform.
func (InlineLets) Apply(ctx *Context, plan expr.RelationExpr) (expr.RelationExpr, bool, error) {
	return ctx.Env.RewriteScoped(plan, func(env *expr.Env, e expr.RelationExpr) (expr.RelationExpr, bool, error) {
		let, ok := e.(*expr.Let)
		if !ok {
			return e, false, nil
		}
		count, err := countReferences(let.Body, let.Name, ctx.Config.MaxDepth)
		if err != nil {
			return nil, false, err
		}
		switch {
		case count == 0:
			// Unreferenced bindings are garbage.
			return let.Body, true, nil
		case count == 1 && ctx.Config.InlineSingleUseLets:
			free, err := freeNames(let.Value, ctx.Config.MaxDepth)
			if err != nil {
				return nil, false, err
			}
			body, replaced, err := substitute(let.Body, let.Name, let.Value, free, 0, ctx.Config.MaxDepth)
			if err != nil {
				return nil, false, err
			}
			if !replaced {
				// The reference sits under a binding that shadows a name
				// the value refers to; inlining there would capture it.
				return e, false, nil
			}
			return body, true, nil
		default:
			return e, false, nil
		}
	})
}

// countReferences counts Get references to name within e, not descending
// into Let bodies that shadow the name.
func countReferences(e expr.RelationExpr, name string, limit int) (int, error) {
	count := 0
	var walk func(e expr.RelationExpr, depth int) error
	walk = func(e expr.RelationExpr, depth int) error {
		depth, err := dataflow.Descend(depth, limit)
		if err != nil {
			return err
		}
		switch e := e.(type) {
		case *expr.Get:
			if e.Name == name {
				count++
			}
			return nil
		case *expr.Let:
			if err := walk(e.Value, depth); err != nil {
				return err
			}
			if e.Name == name {
				// Inner binding shadows; the body cannot see ours.
				return nil
			}
			return walk(e.Body, depth)
		default:
			for _, child := range e.Children() {
				if err := walk(child, depth); err != nil {
					return err
				}
			}
			return nil
		}
	}
	if err := walk(e, 0); err != nil {
		return 0, err
	}
	return count, nil
}

// substitute replaces the Get reference to name with value. Shadowing of
// name is respected the same way countReferences does it, and substitution
// also refuses to cross a Let that rebinds any name value itself refers to:
// placing value under such a binding would capture the reference and change
// what it resolves to. The boolean reports whether the replacement actually
// happened; when it did not, the caller must keep the original binding.
func substitute(e expr.RelationExpr, name string, value expr.RelationExpr, free map[string]bool, depth, limit int) (expr.RelationExpr, bool, error) {
	depth, err := dataflow.Descend(depth, limit)
	if err != nil {
		return nil, false, err
	}
	switch node := e.(type) {
	case *expr.Get:
		if node.Name == name {
			return value, true, nil
		}
		return e, false, nil
	case *expr.Let:
		newValue, replaced, err := substitute(node.Value, name, value, free, depth, limit)
		if err != nil {
			return nil, false, err
		}
		newBody := node.Body
		if node.Name != name && !free[node.Name] {
			var bodyReplaced bool
			newBody, bodyReplaced, err = substitute(node.Body, name, value, free, depth, limit)
			if err != nil {
				return nil, false, err
			}
			replaced = replaced || bodyReplaced
		}
		if newValue == node.Value && newBody == node.Body {
			return e, replaced, nil
		}
		return &expr.Let{Name: node.Name, Value: newValue, Body: newBody}, replaced, nil
	default:
		children := e.Children()
		changed := false
		replaced := false
		for i, child := range children {
			next, childReplaced, err := substitute(child, name, value, free, depth, limit)
			if err != nil {
				return nil, false, err
			}
			replaced = replaced || childReplaced
			if next != child {
				children[i] = next
				changed = true
			}
		}
		if !changed {
			return e, replaced, nil
		}
		out, err := e.WithChildren(children)
		return out, replaced, err
	}
}

// freeNames collects the Get names e refers to that are not bound by a Let
// inside e itself. Source names and outer let bindings are indistinguishable
// here, which is fine: rebinding either one changes what a Get resolves to.
func freeNames(e expr.RelationExpr, limit int) (map[string]bool, error) {
	free := make(map[string]bool)
	bound := make(map[string]int)
	var walk func(e expr.RelationExpr, depth int) error
	walk = func(e expr.RelationExpr, depth int) error {
		depth, err := dataflow.Descend(depth, limit)
		if err != nil {
			return err
		}
		switch e := e.(type) {
		case *expr.Get:
			if bound[e.Name] == 0 {
				free[e.Name] = true
			}
			return nil
		case *expr.Let:
			if err := walk(e.Value, depth); err != nil {
				return err
			}
			bound[e.Name]++
			err := walk(e.Body, depth)
			bound[e.Name]--
			return err
		default:
			for _, child := range e.Children() {
				if err := walk(child, depth); err != nil {
					return err
				}
			}
			return nil
		}
	}
	if err := walk(e, 0); err != nil {
		return nil, err
	}
	return free, nil
}
