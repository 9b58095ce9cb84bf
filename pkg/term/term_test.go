package term

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"hygienic/expander-go/pkg/syntax"
)

func ident(name string) *Term {
	return Must(IdentifierExpression, Values{"name": syntax.NewIdentifier(name)})
}

func TestEveryKindHasFields(t *testing.T) {
	for _, kind := range Kinds() {
		specs, err := Fields(kind)
		if err != nil {
			t.Fatalf("Fields(%s) returned error: %v", kind, err)
		}
		if specs == nil {
			t.Fatalf("Fields(%s) = nil", kind)
		}
		seen := map[string]bool{}
		for _, spec := range specs {
			if seen[spec.Name] {
				t.Fatalf("%s declares %s twice", kind, spec.Name)
			}
			seen[spec.Name] = true
		}
		if got, ok := ParseKind(kind.String()); !ok || got != kind {
			t.Fatalf("ParseKind(%q) = %v, %v", kind.String(), got, ok)
		}
	}
}

func TestUnknownKind(t *testing.T) {
	_, err := Fields(Kind(200))
	var structural *StructuralError
	if !errors.As(err, &structural) {
		t.Fatalf("expected StructuralError, got %v", err)
	}
	if _, err := New(Kind(200), Values{}); !errors.As(err, &structural) {
		t.Fatalf("New with unknown kind: expected StructuralError, got %v", err)
	}
}

func TestNewChecksFieldSet(t *testing.T) {
	var structural *StructuralError
	_, err := New(BinaryExpression, Values{"operator": "+", "left": ident("a")})
	if !errors.As(err, &structural) || structural.Field != "right" {
		t.Fatalf("missing field: got %v", err)
	}
	_, err = New(EmptyStatement, Values{"extra": nil})
	if !errors.As(err, &structural) || structural.Field != "extra" {
		t.Fatalf("extra field: got %v", err)
	}
	_, err = New(ExpressionStatement, Values{"expression": "not a term"})
	if !errors.As(err, &structural) {
		t.Fatalf("shape mismatch: got %v", err)
	}
}

func TestAccessors(t *testing.T) {
	bin := Must(BinaryExpression, Values{"operator": "+", "left": ident("a"), "right": ident("b")})
	if bin.Kind() != BinaryExpression {
		t.Fatalf("Kind = %s", bin.Kind())
	}
	if bin.Str("operator") != "+" {
		t.Fatalf("operator = %q", bin.Str("operator"))
	}
	if got := bin.Term("left").Syntax("name").Value; got != "a" {
		t.Fatalf("left name = %q, want a", got)
	}
	num := Must(LiteralNumericExpression, Values{"value": 3})
	if num.Number("value") != 3 {
		t.Fatalf("value = %v, want 3", num.Number("value"))
	}
}

func TestWithScopeKeepsKindAndInput(t *testing.T) {
	alloc := syntax.NewAllocator()
	bindings := syntax.NewBindingMap()
	top := alloc.FreshScope("top")
	x := syntax.NewIdentifier("x").AddScope(top, 0, syntax.ModeAdd)
	sym := alloc.Gensym("x")
	if _, err := bindings.AddIdentifier(x, 0, sym, false); err != nil {
		t.Fatalf("AddIdentifier: %v", err)
	}

	call := Must(CallExpression, Values{
		"callee":    Must(IdentifierExpression, Values{"name": x}),
		"arguments": []*Term{Must(LiteralStringExpression, Values{"value": "hi"})},
	})
	inner := alloc.FreshScope("inner")
	scoped := call.WithScope(inner, ScopeOptions{Phase: 0, Mode: syntax.ModeAdd})

	if scoped.Kind() != call.Kind() {
		t.Fatalf("kind changed: %s -> %s", call.Kind(), scoped.Kind())
	}
	if !scoped.Term("callee").Syntax("name").ScopesAt(0).Contains(inner) {
		t.Fatalf("scope not applied: %s", spew.Sdump(scoped))
	}
	if call.Term("callee").Syntax("name").ScopesAt(0).Contains(inner) {
		t.Fatalf("input term was mutated")
	}
	got, err := call.Term("callee").Syntax("name").Resolve(bindings, 0)
	if err != nil || got != sym {
		t.Fatalf("input resolves to %s (%v), want %s", got, err, sym)
	}
	if scoped.Terms("arguments")[0].Str("value") != "hi" {
		t.Fatalf("leaf not copied")
	}
}

func TestWalk(t *testing.T) {
	stmt := Must(ExpressionStatement, Values{
		"expression": Must(BinaryExpression, Values{"operator": "*", "left": ident("a"), "right": ident("b")}),
	})
	var kinds []Kind
	Walk(stmt, func(n *Term) bool {
		kinds = append(kinds, n.Kind())
		return true
	})
	if len(kinds) != 4 || kinds[0] != ExpressionStatement || kinds[1] != BinaryExpression {
		t.Fatalf("walk order = %v", kinds)
	}
}

func TestPredicates(t *testing.T) {
	decl := Must(VariableDeclaration, Values{"kind": "syntax", "declarators": []*Term{}})
	stmt := Must(VariableDeclarationStatement, Values{"declaration": decl})
	if !IsSyntaxDeclaration(decl) || IsSyntaxrecDeclaration(decl) {
		t.Fatalf("syntax declaration predicates wrong")
	}
	if !IsSyntaxDeclarationStatement(stmt) || !IsCompiletimeStatement(stmt) {
		t.Fatalf("statement predicate wrong")
	}
	exp := Must(Export, Values{"declaration": decl})
	if !IsExportSyntax(exp) || !IsExport(exp) {
		t.Fatalf("export predicates wrong")
	}
	if IsFunctionTerm(nil) || Is(EOF)(nil) {
		t.Fatalf("predicates must be false for nil")
	}
	fn := Must(FunctionExpression, Values{"name": nil, "isGenerator": false, "params": nil, "body": nil})
	if !IsFunctionTerm(fn) || IsFunctionWithName(fn) {
		t.Fatalf("function predicates wrong")
	}
}

func TestSerializeRoundTripPreservesResolution(t *testing.T) {
	alloc := syntax.NewAllocator()
	bindings := syntax.NewBindingMap()
	top := alloc.FreshScope("top")
	x := syntax.NewIdentifier("x").AddScope(top, syntax.AllPhases, syntax.ModeAdd)
	sym := alloc.Gensym("x")
	if _, err := bindings.AddIdentifier(x, 0, sym, false); err != nil {
		t.Fatalf("AddIdentifier: %v", err)
	}
	terms := []*Term{
		Must(ExpressionStatement, Values{"expression": Must(IdentifierExpression, Values{"name": x})}),
		Must(SyntaxTemplate, Values{"template": []*syntax.Syntax{x, syntax.NewPunctuator(";")}}),
		Must(LiteralBooleanExpression, Values{"value": true}),
	}

	data, err := Marshal(terms, alloc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	back, err := Unmarshal(data, alloc)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(back) != len(terms) {
		t.Fatalf("Unmarshal returned %d terms: %s", len(back), spew.Sdump(back))
	}
	name := back[0].Term("expression").Syntax("name")
	got, err := name.Resolve(bindings, 0)
	if err != nil || got != sym {
		t.Fatalf("resolved %s (%v), want %s", got, err, sym)
	}
	if tpl := back[1].SyntaxList("template"); len(tpl) != 2 || tpl[1].Value != ";" {
		t.Fatalf("template = %v", tpl)
	}
	if !back[2].Bool("value") {
		t.Fatalf("boolean leaf lost")
	}
}
