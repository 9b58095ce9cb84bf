package eval

import (
	"fmt"

	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

// Function is a function value whose body returns a syntax template. Called
// as a transformer, its parameters are bound to the comma-separated macro
// arguments and each `${param}` in the template is replaced by the tokens
// bound to param.
type Function struct {
	Name     string
	params   []string
	rest     string
	template []*syntax.Syntax
}

// NewFunction builds a Function from a FunctionExpression,
// FunctionDeclaration or ArrowExpression.
func NewFunction(fn *term.Term) (*Function, error) {
	f := &Function{}
	switch fn.Kind() {
	case term.FunctionExpression, term.FunctionDeclaration:
		if name := fn.Term("name"); name != nil {
			f.Name = name.Syntax("name").Value
		}
	case term.ArrowExpression:
	default:
		return nil, &UnsupportedError{Kind: fn.Kind(), Reason: "not a function"}
	}

	params := fn.Term("params")
	for _, item := range params.Terms("items") {
		if !item.Is(term.BindingIdentifier) {
			return nil, &UnsupportedError{Kind: item.Kind(), Reason: "transformer parameters must be plain identifiers"}
		}
		f.params = append(f.params, item.Syntax("name").Value)
	}
	if rest := params.Term("rest"); rest != nil {
		if !rest.Is(term.BindingIdentifier) {
			return nil, &UnsupportedError{Kind: rest.Kind(), Reason: "transformer rest parameter must be an identifier"}
		}
		f.rest = rest.Syntax("name").Value
	}

	var tpl *term.Term
	switch body := fn.Term("body"); {
	case body.Is(term.SyntaxTemplate):
		tpl = body
	case body.Is(term.FunctionBody):
		for _, stmt := range body.Terms("statements") {
			if stmt.Is(term.ReturnStatement) && stmt.Term("expression").Is(term.SyntaxTemplate) {
				tpl = stmt.Term("expression")
				break
			}
		}
	}
	if tpl == nil {
		return nil, &UnsupportedError{Kind: fn.Kind(), Reason: "body does not return a syntax template"}
	}
	f.template = tpl.SyntaxList("template")
	return f, nil
}

func (f *Function) String() string {
	if f.Name == "" {
		return "function"
	}
	return "function " + f.Name
}

// Transform implements expander.Transformer.
func (f *Function) Transform(args []*syntax.Syntax) ([]*syntax.Syntax, error) {
	env := make(map[string][]*syntax.Syntax, len(f.params)+1)
	parts := splitArgs(args)
	switch {
	case len(f.params) == 1 && f.rest == "":
		env[f.params[0]] = args
	case f.rest == "" && len(parts) > len(f.params):
		return nil, fmt.Errorf("%s takes %d arguments, got %d", f, len(f.params), len(parts))
	default:
		for i, name := range f.params {
			if i < len(parts) {
				env[name] = parts[i]
			} else {
				env[name] = nil
			}
		}
		if f.rest != "" {
			env[f.rest] = nil
			if len(parts) > len(f.params) {
				env[f.rest] = joinArgs(parts[len(f.params):])
			}
		}
	}
	return substitute(f.template, env), nil
}

// splitArgs splits macro arguments on top-level commas.
func splitArgs(args []*syntax.Syntax) [][]*syntax.Syntax {
	if len(args) == 0 {
		return nil
	}
	var parts [][]*syntax.Syntax
	start := 0
	for i, tok := range args {
		if tok.IsPunctuator(",") {
			parts = append(parts, args[start:i])
			start = i + 1
		}
	}
	return append(parts, args[start:])
}

func joinArgs(parts [][]*syntax.Syntax) []*syntax.Syntax {
	var out []*syntax.Syntax
	for i, part := range parts {
		if i > 0 {
			out = append(out, syntax.NewPunctuator(","))
		}
		out = append(out, part...)
	}
	return out
}

// substitute replaces `$ {name}` pairs bound in env, descending into
// delimiters but not into nested syntax templates.
func substitute(toks []*syntax.Syntax, env map[string][]*syntax.Syntax) []*syntax.Syntax {
	out := make([]*syntax.Syntax, 0, len(toks))
	for i := 0; i < len(toks); i++ {
		tok := toks[i]
		if tok.IsIdentifier() && tok.Value == "$" && i+1 < len(toks) && toks[i+1].IsBraces() {
			inner := toks[i+1].Inner
			if len(inner) == 1 && inner[0].IsIdentifier() {
				if repl, ok := env[inner[0].Value]; ok {
					out = append(out, repl...)
					i++
					continue
				}
			}
		}
		if tok.Kind == syntax.Delimiter {
			cp := *tok
			cp.Inner = substitute(tok.Inner, env)
			tok = &cp
		}
		out = append(out, tok)
	}
	return out
}
