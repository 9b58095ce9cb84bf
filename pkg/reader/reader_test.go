package reader

import (
	"errors"
	"testing"

	"hygienic/expander-go/pkg/syntax"
)

func readSource(t *testing.T, source string) []*syntax.Syntax {
	t.Helper()
	r, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	t.Cleanup(r.Close)
	tokens, err := r.Read([]byte(source))
	if err != nil {
		t.Fatalf("Read(%q) returned error: %v", source, err)
	}
	return tokens
}

func TestReadPlainStatement(t *testing.T) {
	tokens := readSource(t, "var x = 1 + 2; // trailing\n")
	want := []struct {
		kind  syntax.TokenKind
		value string
	}{
		{syntax.Keyword, "var"},
		{syntax.Identifier, "x"},
		{syntax.Punctuator, "="},
		{syntax.Numeric, "1"},
		{syntax.Punctuator, "+"},
		{syntax.Numeric, "2"},
		{syntax.Punctuator, ";"},
	}
	if len(tokens) != len(want) {
		t.Fatalf("Read produced %d tokens (%s), want %d", len(tokens), syntax.Join(tokens), len(want))
	}
	for i, w := range want {
		if tokens[i].Kind != w.kind || tokens[i].Value != w.value {
			t.Fatalf("token %d = %s %q, want %s %q", i, tokens[i].Kind, tokens[i].Value, w.kind, w.value)
		}
	}
	if tokens[1].Pos != (syntax.Position{Line: 1, Column: 5}) {
		t.Fatalf("x position = %+v", tokens[1].Pos)
	}
}

func TestReadGroupsDelimiters(t *testing.T) {
	tokens := readSource(t, "foo(a, [b], {c: 'd\\n'})")
	if len(tokens) != 2 {
		t.Fatalf("got %d top-level tokens: %s", len(tokens), syntax.Join(tokens))
	}
	call := tokens[1]
	if !call.IsParens() || len(call.Inner) != 5 {
		t.Fatalf("call group = %s", call)
	}
	if !call.Inner[2].IsBrackets() || !call.Inner[4].IsBraces() {
		t.Fatalf("nested groups = %s", call)
	}
	str := call.Inner[4].Inner[2]
	if str.Kind != syntax.String || str.Value != "d\n" {
		t.Fatalf("string token = %s %q", str.Kind, str.Value)
	}
}

func TestReadSyntaxTemplate(t *testing.T) {
	tokens := readSource(t, "syntax m = function (x) { return #`${x} + 1`; }")
	if len(tokens) != 6 {
		t.Fatalf("got %d tokens: %s", len(tokens), syntax.Join(tokens))
	}
	if !tokens[0].IsIdentifier() || tokens[0].Value != "syntax" {
		t.Fatalf("first token = %s %q", tokens[0].Kind, tokens[0].Value)
	}
	body := tokens[5]
	if !body.IsBraces() || len(body.Inner) != 3 {
		t.Fatalf("body = %s", body)
	}
	tpl := body.Inner[1]
	if tpl.Kind != syntax.SyntaxTemplate {
		t.Fatalf("expected syntax template, got %s %q", tpl.Kind, tpl.Value)
	}
	if len(tpl.Inner) != 4 || tpl.Inner[0].Value != "$" || !tpl.Inner[1].IsBraces() {
		t.Fatalf("template contents = %s", syntax.Join(tpl.Inner))
	}
}

func TestReadPragma(t *testing.T) {
	tokens := readSource(t, "#lang \"sweet.js\";\nvar a;")
	if len(tokens) < 4 || !tokens[0].IsPunctuator("#") || tokens[1].Value != "lang" {
		t.Fatalf("pragma tokens = %s", syntax.Join(tokens))
	}
}

func TestReadMismatchedDelimiter(t *testing.T) {
	r, err := New()
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	defer r.Close()
	_, err = r.Read([]byte("foo(\n  bar]"))
	var parseErr *ParseError
	if !errors.As(err, &parseErr) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if parseErr.Line != 2 {
		t.Fatalf("error line = %d, want 2", parseErr.Line)
	}
}

func TestUnquote(t *testing.T) {
	cases := map[string]string{
		`"plain"`:     "plain",
		`'it\'s'`:     "it's",
		`"tab\there"`: "tab\there",
		`"A\x42"`:     "AB",
	}
	for in, want := range cases {
		if got := unquote(in); got != want {
			t.Fatalf("unquote(%s) = %q, want %q", in, got, want)
		}
	}
}
