// Package eval provides the default evaluators for the expander: enough of
// the host language to compute macro transformers and the module-level
// values they may depend on.
package eval

import (
	"errors"
	"fmt"

	"hygienic/expander-go/pkg/expander"
	"hygienic/expander-go/pkg/term"
)

// UnsupportedError reports a term the evaluator does not compute.
type UnsupportedError struct {
	Kind   term.Kind
	Reason string
}

func (e *UnsupportedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("eval: unsupported %s", e.Kind)
	}
	return fmt.Sprintf("eval: %s: %s", e.Kind, e.Reason)
}

// UnboundError reports an identifier with no value in the store.
type UnboundError struct {
	Name  string
	Phase int
}

func (e *UnboundError) Error() string {
	return fmt.Sprintf("eval: %s has no value at phase %d", e.Name, e.Phase)
}

// Evaluator implements expander.CompiletimeEvaluator and
// expander.RuntimeEvaluator.
type Evaluator struct{}

func New() *Evaluator { return &Evaluator{} }

var (
	_ expander.CompiletimeEvaluator = (*Evaluator)(nil)
	_ expander.RuntimeEvaluator     = (*Evaluator)(nil)
)

// EvalCompiletime computes a syntax declaration's initializer.
func (e *Evaluator) EvalCompiletime(init *term.Term, ctx expander.EvalContext) (any, error) {
	if init == nil {
		return nil, &UnsupportedError{Kind: term.VariableDeclarator, Reason: "syntax declaration without initializer"}
	}
	return e.Eval(init, ctx)
}

// Eval computes the value of an expression term.
func (e *Evaluator) Eval(t *term.Term, ctx expander.EvalContext) (any, error) {
	switch t.Kind() {
	case term.LiteralNumericExpression:
		return t.Number("value"), nil
	case term.LiteralStringExpression:
		return t.Str("value"), nil
	case term.LiteralBooleanExpression:
		return t.Bool("value"), nil
	case term.LiteralNullExpression:
		return nil, nil
	case term.ParenthesizedExpression:
		return e.Eval(t.Term("inner"), ctx)
	case term.FunctionExpression, term.FunctionDeclaration, term.ArrowExpression:
		return NewFunction(t)
	case term.IdentifierExpression:
		id := t.Syntax("name")
		sym, err := ctx.Resolve(id)
		if err != nil {
			return nil, err
		}
		v, ok := ctx.Store.Get(ctx.Phase, sym)
		if !ok {
			return nil, &UnboundError{Name: id.Value, Phase: ctx.Phase}
		}
		if ct, ok := v.(expander.CompiletimeTransform); ok {
			return ct.Value, nil
		}
		return v, nil
	case term.ArrayExpression:
		var out []any
		for _, el := range t.Terms("elements") {
			v, err := e.Eval(el, ctx)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	return nil, &UnsupportedError{Kind: t.Kind()}
}

// EvalRuntime records the values of a module body's declarations in the
// store: variable initializers it can compute and function declarations.
// Statements it cannot compute are skipped.
func (e *Evaluator) EvalRuntime(body []*term.Term, ctx expander.EvalContext) error {
	for _, stmt := range body {
		if err := e.declare(declarationOf(stmt), ctx); err != nil {
			return err
		}
	}
	return nil
}

func declarationOf(stmt *term.Term) *term.Term {
	switch {
	case stmt.Is(term.VariableDeclarationStatement), stmt.Is(term.Export):
		return stmt.Term("declaration")
	case stmt.Is(term.ExportDefault):
		return stmt.Term("body")
	}
	return stmt
}

func (e *Evaluator) declare(decl *term.Term, ctx expander.EvalContext) error {
	switch decl.Kind() {
	case term.VariableDeclaration:
		if term.IsCompiletimeDeclaration(decl) {
			return nil
		}
		for _, d := range decl.Terms("declarators") {
			binding, init := d.Term("binding"), d.Term("init")
			if !binding.Is(term.BindingIdentifier) || init == nil {
				continue
			}
			v, err := e.Eval(init, ctx)
			var unsupported *UnsupportedError
			if errors.As(err, &unsupported) {
				continue
			}
			if err != nil {
				return err
			}
			if err := e.set(binding, v, ctx); err != nil {
				return err
			}
		}
	case term.FunctionDeclaration:
		fn, err := NewFunction(decl)
		var unsupported *UnsupportedError
		if errors.As(err, &unsupported) {
			return nil
		}
		if err != nil {
			return err
		}
		return e.set(decl.Term("name"), fn, ctx)
	}
	return nil
}

func (e *Evaluator) set(binding *term.Term, v any, ctx expander.EvalContext) error {
	sym, err := ctx.Resolve(binding.Syntax("name"))
	if err != nil {
		return err
	}
	ctx.Store.Set(ctx.Phase, sym, v)
	return nil
}
