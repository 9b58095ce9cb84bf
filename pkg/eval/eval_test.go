package eval

import (
	"errors"
	"testing"

	"hygienic/expander-go/pkg/expander"
	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

func ident(name string) *syntax.Syntax { return syntax.NewIdentifier(name) }

func params(names ...string) *term.Term {
	items := make([]*term.Term, len(names))
	for i, name := range names {
		items[i] = term.Must(term.BindingIdentifier, term.Values{"name": ident(name)})
	}
	return term.Must(term.FormalParameters, term.Values{"items": items, "rest": nil})
}

// hole is `${name}` as read inside a syntax template.
func hole(name string) []*syntax.Syntax {
	return []*syntax.Syntax{ident("$"), syntax.NewDelimiter("{", []*syntax.Syntax{ident(name)})}
}

func templateArrow(p *term.Term, tpl ...*syntax.Syntax) *term.Term {
	body := term.Must(term.SyntaxTemplate, term.Values{"template": tpl})
	return term.Must(term.ArrowExpression, term.Values{"params": p, "body": body})
}

func TestFunctionSubstitutesArguments(t *testing.T) {
	tpl := append(hole("a"), syntax.NewPunctuator("-"))
	tpl = append(tpl, syntax.NewDelimiter("(", hole("b")))
	fn, err := NewFunction(templateArrow(params("a", "b"), tpl...))
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	out, err := fn.Transform([]*syntax.Syntax{
		syntax.NewNumeric("1"), syntax.NewPunctuator(","), ident("y"), syntax.NewPunctuator("+"), syntax.NewNumeric("2"),
	})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := syntax.Join(out); got != "1 - (y + 2)" {
		t.Fatalf("Transform = %q", got)
	}
	if _, err := fn.Transform([]*syntax.Syntax{ident("a"), syntax.NewPunctuator(","), ident("b"), syntax.NewPunctuator(","), ident("c")}); err == nil {
		t.Fatalf("expected arity error")
	}
}

func TestSingleParameterTakesAllArguments(t *testing.T) {
	fn, err := NewFunction(templateArrow(params("all"), syntax.NewDelimiter("[", hole("all"))))
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	out, err := fn.Transform([]*syntax.Syntax{ident("a"), syntax.NewPunctuator(","), ident("b")})
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := syntax.Join(out); got != "[a , b]" {
		t.Fatalf("Transform = %q", got)
	}
}

func TestUnboundHoleIsKept(t *testing.T) {
	fn, err := NewFunction(templateArrow(params(), hole("other")...))
	if err != nil {
		t.Fatalf("NewFunction: %v", err)
	}
	out, err := fn.Transform(nil)
	if err != nil {
		t.Fatalf("Transform: %v", err)
	}
	if got := syntax.Join(out); got != "$ {other}" {
		t.Fatalf("Transform = %q", got)
	}
}

func TestNewFunctionRejectsNonTemplateBody(t *testing.T) {
	body := term.Must(term.LiteralNumericExpression, term.Values{"value": 1})
	arrow := term.Must(term.ArrowExpression, term.Values{"params": params(), "body": body})
	_, err := NewFunction(arrow)
	var unsupported *UnsupportedError
	if !errors.As(err, &unsupported) {
		t.Fatalf("expected UnsupportedError, got %v", err)
	}
}

func TestEvalLiteralsAndStore(t *testing.T) {
	s := expander.NewSession(expander.Options{})
	ctx := expander.EvalContext{Phase: 1, BindingPhase: 1, Store: s.Store, Session: s}
	ev := New()

	v, err := ev.Eval(term.Must(term.LiteralStringExpression, term.Values{"value": "hi"}), ctx)
	if err != nil || v != "hi" {
		t.Fatalf("string literal = %v, %v", v, err)
	}

	id := ident("helper")
	sym := s.Alloc.Gensym("helper")
	if _, err := s.Bindings.AddIdentifier(id, 1, sym, false); err != nil {
		t.Fatalf("AddIdentifier: %v", err)
	}
	ref := term.Must(term.IdentifierExpression, term.Values{"name": id})
	if _, err := ev.Eval(ref, ctx); err == nil {
		t.Fatalf("expected unbound error before the value is stored")
	}
	s.Store.Set(1, sym, 7.0)
	v, err = ev.Eval(ref, ctx)
	if err != nil || v != 7.0 {
		t.Fatalf("identifier = %v, %v", v, err)
	}
}

func TestEvalRuntimeStoresDeclarations(t *testing.T) {
	s := expander.NewSession(expander.Options{})
	ctx := expander.EvalContext{Phase: 0, BindingPhase: 0, Store: s.Store, Session: s}

	name := ident("n")
	sym := s.Alloc.Gensym("n")
	if _, err := s.Bindings.AddIdentifier(name, 0, sym, false); err != nil {
		t.Fatalf("AddIdentifier: %v", err)
	}
	decl := term.Must(term.VariableDeclaration, term.Values{
		"kind": "const",
		"declarators": []*term.Term{term.Must(term.VariableDeclarator, term.Values{
			"binding": term.Must(term.BindingIdentifier, term.Values{"name": name}),
			"init":    term.Must(term.LiteralNumericExpression, term.Values{"value": 3}),
		})},
	})
	call := term.Must(term.CallExpression, term.Values{
		"callee":    term.Must(term.IdentifierExpression, term.Values{"name": ident("f")}),
		"arguments": []*term.Term(nil),
	})
	body := []*term.Term{
		term.Must(term.VariableDeclarationStatement, term.Values{"declaration": decl}),
		term.Must(term.ExpressionStatement, term.Values{"expression": call}),
	}
	if err := New().EvalRuntime(body, ctx); err != nil {
		t.Fatalf("EvalRuntime: %v", err)
	}
	if v, ok := s.Store.Get(0, sym); !ok || v != 3.0 {
		t.Fatalf("store[n] = %v, %v", v, ok)
	}
}
