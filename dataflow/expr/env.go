package expr

import (
	"github.com/oxbowdb/oxbow/dataflow"
)

// SchemaResolver resolves source names referenced by Get to their declared
// relation types. The catalog package provides implementations.
type SchemaResolver interface {
	SourceType(name string) (dataflow.RelationType, error)
}

// Env carries everything inference and rendering need while walking a plan:
// the catalog resolver, the recursion limit, and the let bindings currently
// in scope. Traversal is single-threaded, so the scope is a plain map
// maintained by bind/unbind around each Let body.
type Env struct {
	Resolver SchemaResolver
	MaxDepth int

	scope map[string][]dataflow.RelationType
}

// NewEnv creates an environment with an empty let scope.
func NewEnv(resolver SchemaResolver, cfg dataflow.Config) *Env {
	return &Env{
		Resolver: resolver,
		MaxDepth: cfg.MaxDepth,
		scope:    make(map[string][]dataflow.RelationType),
	}
}

// bind pushes a let binding. Bindings shadow: an inner Let with the same
// name hides the outer one until unbind.
func (env *Env) bind(name string, typ dataflow.RelationType) {
	env.scope[name] = append(env.scope[name], typ)
}

func (env *Env) unbind(name string) {
	stack := env.scope[name]
	if len(stack) <= 1 {
		delete(env.scope, name)
		return
	}
	env.scope[name] = stack[:len(stack)-1]
}

// lookup resolves a name against the let scope first, then the catalog.
func (env *Env) lookup(name string) (dataflow.RelationType, error) {
	if stack, ok := env.scope[name]; ok && len(stack) > 0 {
		return stack[len(stack)-1], nil
	}
	return env.Resolver.SourceType(name)
}
