package expander

import (
	"fmt"

	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

// budget counts macro expansions across every compiler spawned for one
// top-level pass, including phase+1 compilers for syntax declarations.
type budget struct {
	used int
}

// Compiler enforests token sequences into terms at one phase, expanding
// macro invocations until none remain.
type Compiler struct {
	session   *Session
	phase     int
	env       *Env
	store     *Store
	budget    *budget
	depth     int
	generator bool
}

// NewCompiler returns a compiler over the session's bindings.
func NewCompiler(session *Session, phase int, env *Env, store *Store) *Compiler {
	return &Compiler{session: session, phase: phase, env: env, store: store, budget: &budget{}}
}

// Phase returns the phase identifiers are bound and resolved at.
func (c *Compiler) Phase() int { return c.phase }

// Expand enforests stxl into terms free of macro invocations.
func (c *Compiler) Expand(stxl []*syntax.Syntax) ([]*term.Term, error) {
	return c.statementList(newCursor(stxl), nil)
}

// nested returns a compiler for a body one level deeper.
func (c *Compiler) nested(at *syntax.Syntax) (*Compiler, error) {
	limit := c.session.opts.MaxDepth
	if c.depth+1 > limit {
		err := &NonTerminationError{Limit: limit, Reason: "nesting depth"}
		if at != nil {
			err.Macro, err.Site = at.Value, at.Pos
		}
		return nil, err
	}
	sub := *c
	sub.depth++
	return &sub, nil
}

// shifted returns a compiler one phase up sharing the store and budget but
// with its own environment.
func (c *Compiler) shifted() *Compiler {
	return &Compiler{
		session: c.session,
		phase:   c.phase + 1,
		env:     NewEnv(),
		store:   c.store,
		budget:  c.budget,
		depth:   c.depth,
	}
}

func (c *Compiler) freshScope(name string) *syntax.Scope {
	return c.session.Alloc.FreshScope(name)
}

func (c *Compiler) scopeTokens(stxl []*syntax.Syntax, scope *syntax.Scope) []*syntax.Syntax {
	return syntax.AddScopeAll(stxl, scope, c.phase, syntax.ModeAdd)
}

func (c *Compiler) scopeTerm(t *term.Term, scope *syntax.Scope) *term.Term {
	return t.WithScope(scope, term.ScopeOptions{Phase: c.phase, Mode: syntax.ModeAdd})
}

// cursor walks a token sequence. Macro output is spliced in at the current
// position; fresh counts how many leading tokens came from the most recent
// splice so chains of expansions can be detected.
type cursor struct {
	toks  []*syntax.Syntax
	pos   int
	fresh int
	chain int
	owned bool
}

func newCursor(toks []*syntax.Syntax) *cursor { return &cursor{toks: toks} }

func (c *cursor) done() bool { return c.pos >= len(c.toks) }

func (c *cursor) peek() *syntax.Syntax { return c.peekAt(0) }

func (c *cursor) peekAt(n int) *syntax.Syntax {
	if c.pos+n < len(c.toks) {
		return c.toks[c.pos+n]
	}
	return nil
}

func (c *cursor) next() *syntax.Syntax {
	tok := c.peek()
	if tok != nil {
		c.pos++
	}
	return tok
}

func (c *cursor) last() *syntax.Syntax {
	if c.pos > 0 && c.pos <= len(c.toks) {
		return c.toks[c.pos-1]
	}
	return nil
}

// replace swaps the token at the cursor. The caller's slice is copied on
// the first write.
func (c *cursor) replace(tok *syntax.Syntax) {
	if !c.owned {
		c.toks = append([]*syntax.Syntax(nil), c.toks...)
		c.owned = true
	}
	c.toks[c.pos] = tok
}

func (c *cursor) splice(out []*syntax.Syntax) {
	rest := c.toks[c.pos:]
	toks := make([]*syntax.Syntax, 0, len(out)+len(rest))
	toks = append(toks, out...)
	toks = append(toks, rest...)
	c.toks = toks
	c.owned = true
	c.pos = 0
	c.fresh = len(out)
}

// sameLine reports whether tok starts on the line the previous token ended on.
// Tokens without positions (macro output) count as the same line.
func (c *cursor) sameLine(tok *syntax.Syntax) bool {
	prev := c.last()
	if tok == nil || prev == nil || tok.Pos.Line == 0 || prev.Pos.Line == 0 {
		return true
	}
	return tok.Pos.Line == prev.Pos.Line
}

func (c *Compiler) expect(cur *cursor, want string) (*syntax.Syntax, error) {
	tok := cur.peek()
	if tok == nil {
		return nil, syntaxErrorf(cur.last(), "expected %q, got end of input", want)
	}
	if !tok.IsPunctuator(want) && !tok.IsWord(want) {
		return nil, syntaxErrorf(tok, "expected %q, got %s", want, tok)
	}
	return cur.next(), nil
}

func (c *Compiler) consumeSemicolon(cur *cursor) {
	if cur.peek().IsPunctuator(";") {
		cur.next()
	}
}

// lookupMacro returns the transformer value for id when id is bound as
// syntax at the compiler's phase.
func (c *Compiler) lookupMacro(id *syntax.Syntax) (any, bool, error) {
	if !id.IsIdentifier() {
		return nil, false, nil
	}
	b, err := id.Binding(c.session.Bindings, c.phase)
	if err != nil {
		return nil, false, err
	}
	if b == nil || !b.Syntax {
		return nil, false, nil
	}
	if ct, ok := c.env.Get(b.Symbol); ok {
		return ct.Value, true, nil
	}
	if v, ok := c.store.Get(c.phase, b.Symbol); ok {
		if ct, ok := v.(CompiletimeTransform); ok {
			return ct.Value, true, nil
		}
	}
	return nil, false, &UnboundSyntaxError{Name: id.Value, Phase: c.phase, Pos: id.Pos}
}

// expandMacros expands invocations at the cursor head until the head is no
// longer a macro.
func (c *Compiler) expandMacros(cur *cursor) error {
	for {
		expanded, err := c.expandOne(cur)
		if err != nil || !expanded {
			return err
		}
	}
}

func (c *Compiler) expandOne(cur *cursor) (bool, error) {
	head := cur.peek()
	value, ok, err := c.lookupMacro(head)
	if err != nil || !ok {
		return false, err
	}
	start := cur.pos
	cur.next()
	var args []*syntax.Syntax
	if p := cur.peek(); p.IsParens() {
		cur.next()
		args = p.Inner
	}
	tr, ok := value.(Transformer)
	if !ok {
		return false, &TransformerEvaluationError{
			Macro: head.Value,
			Site:  head.Pos,
			Err:   fmt.Errorf("compile-time value %T is not a transformer", value),
		}
	}

	opts := c.session.opts
	c.budget.used++
	if c.budget.used > opts.MaxExpansions {
		return false, &NonTerminationError{Macro: head.Value, Site: head.Pos, Limit: opts.MaxExpansions, Reason: "expansion count"}
	}
	if start < cur.fresh {
		cur.chain++
	} else {
		cur.chain = 1
	}
	if cur.chain > opts.MaxDepth {
		return false, &NonTerminationError{Macro: head.Value, Site: head.Pos, Limit: opts.MaxDepth, Reason: "nesting depth"}
	}

	intro := c.freshScope("macro")
	out, err := tr.Transform(syntax.AddScopeAll(args, intro, syntax.AllPhases, syntax.ModeFlip))
	if err != nil {
		return false, &TransformerEvaluationError{Macro: head.Value, Site: head.Pos, Err: err}
	}
	if reason := checkOutput(out); reason != "" {
		return false, &MalformedOutputError{Macro: head.Value, Site: head.Pos, Reason: reason}
	}
	c.session.trace(Event{Kind: "expand", Name: head.Value, Phase: c.phase, Pos: head.Pos})
	cur.splice(syntax.AddScopeAll(out, intro, syntax.AllPhases, syntax.ModeFlip))
	return true, nil
}

func checkOutput(out []*syntax.Syntax) string {
	for i, tok := range out {
		if tok == nil {
			return fmt.Sprintf("nil token at %d", i)
		}
		switch tok.Kind {
		case syntax.Delimiter:
			if _, ok := closers[tok.Value]; !ok {
				return fmt.Sprintf("delimiter %q at %d", tok.Value, i)
			}
			if reason := checkOutput(tok.Inner); reason != "" {
				return reason
			}
		case syntax.SyntaxTemplate:
			if reason := checkOutput(tok.Inner); reason != "" {
				return reason
			}
		case syntax.Identifier, syntax.Keyword, syntax.Punctuator, syntax.Numeric,
			syntax.String, syntax.Template, syntax.RegExp:
		default:
			return fmt.Sprintf("token kind %s at %d", tok.Kind, i)
		}
	}
	return ""
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

// bindIdentifier declares tok at the compiler's phase and returns the
// BindingIdentifier term. var and function declarations reuse an existing
// binding with the same scopes.
func (c *Compiler) bindIdentifier(tok *syntax.Syntax, kind string) (*term.Term, error) {
	if !tok.IsIdentifier() {
		return nil, syntaxErrorf(tok, "expected identifier, got %s", tok)
	}
	bindings := c.session.Bindings
	if kind == "var" || kind == "function" {
		if b := bindings.Exact(tok.Value, tok.ScopesAt(c.phase), c.phase); b != nil && !b.Syntax {
			return term.Must(term.BindingIdentifier, term.Values{"name": tok}), nil
		}
	}
	if _, err := bindings.AddIdentifier(tok, c.phase, c.session.Alloc.Gensym(tok.Value), false); err != nil {
		return nil, err
	}
	return term.Must(term.BindingIdentifier, term.Values{"name": tok}), nil
}

// statementList enforests statements until the cursor is exhausted or stop
// matches the head token.
func (c *Compiler) statementList(cur *cursor, stop func(*syntax.Syntax) bool) ([]*term.Term, error) {
	var out []*term.Term
	for !cur.done() {
		if err := c.expandMacros(cur); err != nil {
			return nil, err
		}
		if cur.done() || stop != nil && stop(cur.peek()) {
			break
		}
		stmt, err := c.statement(cur)
		if err != nil {
			return nil, err
		}
		if stmt != nil {
			out = append(out, stmt)
		}
	}
	return out, nil
}

// subExpression enforests a delimiter's contents as one expression.
func (c *Compiler) subExpression(open *syntax.Syntax) (*term.Term, error) {
	cur := newCursor(open.Inner)
	if cur.done() {
		return nil, syntaxErrorf(open, "expected expression inside %s", open)
	}
	expr, err := c.expression(cur)
	if err != nil {
		return nil, err
	}
	if !cur.done() {
		return nil, syntaxErrorf(cur.peek(), "unexpected %s", cur.peek())
	}
	return expr, nil
}
