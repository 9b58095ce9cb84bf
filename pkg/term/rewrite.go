package term

import "hygienic/expander-go/pkg/syntax"

// ScopeOptions selects the phase and mode WithScope applies a scope with.
type ScopeOptions struct {
	Phase int
	Mode  syntax.Mode
}

// Rewrite rebuilds the term, passing every syntax object it contains
// through fn. Nested terms are rebuilt recursively; leaves are copied. The
// receiver is not modified.
func (t *Term) Rewrite(fn func(*syntax.Syntax) *syntax.Syntax) *Term {
	if t == nil {
		return nil
	}
	values := make([]any, len(t.values))
	for i, spec := range fieldTable[t.kind] {
		switch spec.Shape {
		case ShapeTerm:
			if sub, _ := t.values[i].(*Term); sub != nil {
				values[i] = sub.Rewrite(fn)
			}
		case ShapeTerms:
			if list, _ := t.values[i].([]*Term); list != nil {
				out := make([]*Term, len(list))
				for j, sub := range list {
					out[j] = sub.Rewrite(fn)
				}
				values[i] = out
			} else {
				values[i] = []*Term(nil)
			}
		case ShapeSyntax:
			if stx, _ := t.values[i].(*syntax.Syntax); stx != nil {
				values[i] = fn(stx)
			}
		case ShapeSyntaxList:
			if list, _ := t.values[i].([]*syntax.Syntax); list != nil {
				out := make([]*syntax.Syntax, len(list))
				for j, stx := range list {
					out[j] = fn(stx)
				}
				values[i] = out
			} else {
				values[i] = []*syntax.Syntax(nil)
			}
		default:
			values[i] = t.values[i]
		}
	}
	return &Term{kind: t.kind, values: values, loc: t.loc}
}

// WithScope returns a copy of the term with scope applied to every syntax
// object inside it.
func (t *Term) WithScope(scope *syntax.Scope, opts ScopeOptions) *Term {
	return t.Rewrite(func(stx *syntax.Syntax) *syntax.Syntax {
		return stx.AddScope(scope, opts.Phase, opts.Mode)
	})
}

// WithScopeAll applies WithScope to each term.
func WithScopeAll(terms []*Term, scope *syntax.Scope, opts ScopeOptions) []*Term {
	out := make([]*Term, len(terms))
	for i, item := range terms {
		out[i] = item.WithScope(scope, opts)
	}
	return out
}

// Walk visits t and its descendants in preorder. Children are skipped when
// fn returns false.
func Walk(t *Term, fn func(*Term) bool) {
	if t == nil || !fn(t) {
		return
	}
	for i, spec := range fieldTable[t.kind] {
		switch spec.Shape {
		case ShapeTerm:
			if sub, _ := t.values[i].(*Term); sub != nil {
				Walk(sub, fn)
			}
		case ShapeTerms:
			list, _ := t.values[i].([]*Term)
			for _, sub := range list {
				Walk(sub, fn)
			}
		}
	}
}
