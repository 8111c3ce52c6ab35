// Package rules implements compiled-and-cached CEL expression
// evaluation, used to back ScaleQuery's per-document scoring expression
// (spec §4.4 ScaleQuery; SPEC_FULL.md §4.11 DOMAIN STACK —
// github.com/google/cel-go).
//
// Adapted from the teacher's RulesEngine, originally an HTTP
// authorization-rule evaluator keyed on request/resource/auth context
// maps; that surface has no home here since authentication and the HTTP
// layer are explicit Non-goals (spec §1), so the variable surface is
// trimmed to the single `doc` binding a scaling expression evaluates
// against — the candidate document's decoded stored fields.
package rules

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/checker/decls"
)

// Engine compiles and caches CEL programs keyed by their source
// expression, evaluating each against a `doc` variable.
type Engine struct {
	env      *cel.Env
	prgCache sync.Map // map[string]cel.Program
}

// New builds an Engine with the standard `doc` environment.
func New() (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Declarations(
			decls.NewVar("doc", decls.Dyn),
		),
	)
	if err != nil {
		return nil, err
	}
	return &Engine{env: env}, nil
}

// EvalNumber compiles (or reuses a cached compilation of) expr and
// evaluates it against doc, returning its result as a float64. Non-numeric
// results evaluate to 0.
func (e *Engine) EvalNumber(expr string, doc map[string]interface{}) (float64, error) {
	prg, err := e.program(expr)
	if err != nil {
		return 0, err
	}

	out, _, err := prg.Eval(map[string]interface{}{"doc": doc})
	if err != nil {
		return 0, fmt.Errorf("rules: eval %q: %w", expr, err)
	}

	switch v := out.Value().(type) {
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, nil
	}
}

func (e *Engine) program(expr string) (cel.Program, error) {
	if v, ok := e.prgCache.Load(expr); ok {
		return v.(cel.Program), nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("rules: compile %q: %w", expr, issues.Err())
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("rules: build program for %q: %w", expr, err)
	}
	e.prgCache.Store(expr, prg)
	return prg, nil
}
