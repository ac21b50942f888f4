package expr

import (
	"github.com/oxbowdb/oxbow/dataflow"
)

// Visit applies f to the node and every descendant, top-down, guarded by
// the depth limit.
func Visit(e RelationExpr, limit int, f func(RelationExpr) error) error {
	return visit(e, 0, limit, f)
}

func visit(e RelationExpr, depth, limit int, f func(RelationExpr) error) error {
	depth, err := dataflow.Descend(depth, limit)
	if err != nil {
		return err
	}
	if err := f(e); err != nil {
		return err
	}
	for _, child := range e.Children() {
		if err := visit(child, depth, limit, f); err != nil {
			return err
		}
	}
	return nil
}

// Rewrite rebuilds the plan bottom-up: children are rewritten first, then f
// runs on the (possibly rebuilt) node. f returns the replacement node and
// whether it changed anything. Rewrite reports whether any node changed.
// Unchanged subtrees are returned as-is, preserving sharing of the original
// nodes; nodes are never mutated in place.
func Rewrite(e RelationExpr, limit int, f func(RelationExpr) (RelationExpr, bool, error)) (RelationExpr, bool, error) {
	return rewrite(e, 0, limit, f)
}

func rewrite(e RelationExpr, depth, limit int, f func(RelationExpr) (RelationExpr, bool, error)) (RelationExpr, bool, error) {
	depth, err := dataflow.Descend(depth, limit)
	if err != nil {
		return nil, false, err
	}

	children := e.Children()
	childChanged := false
	for i, child := range children {
		next, changed, err := rewrite(child, depth, limit, f)
		if err != nil {
			return nil, false, err
		}
		if changed {
			children[i] = next
			childChanged = true
		}
	}
	if childChanged {
		rebuilt, err := e.WithChildren(children)
		if err != nil {
			return nil, false, err
		}
		e = rebuilt
	}

	out, changed, err := f(e)
	if err != nil {
		return nil, false, err
	}
	return out, childChanged || changed, nil
}

// RewriteScoped rebuilds the plan bottom-up like Rewrite, but keeps the
// environment's let scope in sync with the traversal position: when f runs
// on a node, every enclosing Let binding is resolvable through env. Let
// values are rewritten before their bodies, and the body sees the type of
// the rewritten value.
func (env *Env) RewriteScoped(e RelationExpr, f func(*Env, RelationExpr) (RelationExpr, bool, error)) (RelationExpr, bool, error) {
	return env.rewriteScoped(e, 0, f)
}

func (env *Env) rewriteScoped(e RelationExpr, depth int, f func(*Env, RelationExpr) (RelationExpr, bool, error)) (RelationExpr, bool, error) {
	depth, err := dataflow.Descend(depth, env.MaxDepth)
	if err != nil {
		return nil, false, err
	}

	childChanged := false
	if let, ok := e.(*Let); ok {
		value, valueChanged, err := env.rewriteScoped(let.Value, depth, f)
		if err != nil {
			return nil, false, err
		}
		valueTyp, err := env.typeOf(value, depth)
		if err != nil {
			return nil, false, err
		}
		env.bind(let.Name, valueTyp)
		body, bodyChanged, err := env.rewriteScoped(let.Body, depth, f)
		env.unbind(let.Name)
		if err != nil {
			return nil, false, err
		}
		if valueChanged || bodyChanged {
			e = &Let{Name: let.Name, Value: value, Body: body}
			childChanged = true
		}
	} else {
		children := e.Children()
		for i, child := range children {
			next, changed, err := env.rewriteScoped(child, depth, f)
			if err != nil {
				return nil, false, err
			}
			if changed {
				children[i] = next
				childChanged = true
			}
		}
		if childChanged {
			rebuilt, err := e.WithChildren(children)
			if err != nil {
				return nil, false, err
			}
			e = rebuilt
		}
	}

	out, changed, err := f(env, e)
	if err != nil {
		return nil, false, err
	}
	return out, childChanged || changed, nil
}

// RewriteTopDown applies f to the node first, then recurses into the
// children of the result. Used by rewrites that must see enclosing
// structure before the nodes beneath it.
func RewriteTopDown(e RelationExpr, limit int, f func(RelationExpr) (RelationExpr, bool, error)) (RelationExpr, bool, error) {
	return rewriteTopDown(e, 0, limit, f)
}

func rewriteTopDown(e RelationExpr, depth, limit int, f func(RelationExpr) (RelationExpr, bool, error)) (RelationExpr, bool, error) {
	depth, err := dataflow.Descend(depth, limit)
	if err != nil {
		return nil, false, err
	}

	out, changed, err := f(e)
	if err != nil {
		return nil, false, err
	}

	children := out.Children()
	childChanged := false
	for i, child := range children {
		next, c, err := rewriteTopDown(child, depth, limit, f)
		if err != nil {
			return nil, false, err
		}
		if c {
			children[i] = next
			childChanged = true
		}
	}
	if childChanged {
		rebuilt, err := out.WithChildren(children)
		if err != nil {
			return nil, false, err
		}
		out = rebuilt
	}
	return out, changed || childChanged, nil
}
