package expander

import (
	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

func isBindingStart(tok *syntax.Syntax) bool {
	return tok.IsIdentifier() || tok.IsBrackets() || tok.IsBraces()
}

func isDeclarationKeyword(cur *cursor) bool {
	tok := cur.peek()
	switch {
	case tok.IsKeyword("var"), tok.IsKeyword("const"):
		return true
	case tok.IsWord("let"):
		return isBindingStart(cur.peekAt(1))
	case tok.IsWord("syntax"), tok.IsWord("syntaxrec"):
		return cur.peekAt(1).IsIdentifier() && cur.peekAt(2).IsPunctuator("=")
	}
	return false
}

// statement enforests one statement or module item. It returns nil when
// macro expansion left nothing at the cursor.
func (c *Compiler) statement(cur *cursor) (*term.Term, error) {
	if err := c.expandMacros(cur); err != nil {
		return nil, err
	}
	if cur.done() {
		return nil, nil
	}
	tok := cur.peek()
	next := cur.peekAt(1)
	switch {
	case tok.IsPunctuator("#") && next.IsIdentifier():
		return c.pragma(cur)
	case tok.IsPunctuator(";"):
		cur.next()
		return term.Must(term.EmptyStatement, nil).WithLoc(tok.Pos), nil
	case tok.IsBraces():
		cur.next()
		block, err := c.block(tok)
		if err != nil {
			return nil, err
		}
		return term.Must(term.BlockStatement, term.Values{"block": block}).WithLoc(tok.Pos), nil
	case isDeclarationKeyword(cur):
		decl, err := c.variableDeclaration(cur)
		if err != nil {
			return nil, err
		}
		c.consumeSemicolon(cur)
		return term.Must(term.VariableDeclarationStatement, term.Values{"declaration": decl}).WithLoc(tok.Pos), nil
	case tok.IsKeyword("function"):
		return c.function(cur, term.FunctionDeclaration)
	case tok.IsKeyword("class"):
		return c.class(cur, term.ClassDeclaration)
	case tok.IsKeyword("if"):
		return c.ifStatement(cur)
	case tok.IsKeyword("while"):
		return c.whileStatement(cur)
	case tok.IsKeyword("do"):
		return c.doWhileStatement(cur)
	case tok.IsKeyword("for"):
		return c.forStatement(cur)
	case tok.IsKeyword("switch"):
		return c.switchStatement(cur)
	case tok.IsKeyword("try"):
		return c.tryStatement(cur)
	case tok.IsKeyword("with"):
		return c.withStatement(cur)
	case tok.IsKeyword("throw"):
		cur.next()
		expr, err := c.expression(cur)
		if err != nil {
			return nil, err
		}
		c.consumeSemicolon(cur)
		return term.Must(term.ThrowStatement, term.Values{"expression": expr}).WithLoc(tok.Pos), nil
	case tok.IsKeyword("return"):
		return c.returnStatement(cur)
	case tok.IsKeyword("break"), tok.IsKeyword("continue"):
		return c.jumpStatement(cur)
	case tok.IsKeyword("debugger"):
		cur.next()
		c.consumeSemicolon(cur)
		return term.Must(term.DebuggerStatement, nil).WithLoc(tok.Pos), nil
	case tok.IsKeyword("import") && !next.IsParens() && !next.IsPunctuator("."):
		return c.importDeclaration(cur)
	case tok.IsKeyword("export"):
		return c.exportDeclaration(cur)
	case tok.IsIdentifier() && next.IsPunctuator(":"):
		cur.next()
		cur.next()
		body, err := c.subStatement(cur)
		if err != nil {
			return nil, err
		}
		return term.Must(term.LabeledStatement, term.Values{"label": tok, "body": body}).WithLoc(tok.Pos), nil
	}

	expr, err := c.expression(cur)
	if err != nil {
		return nil, err
	}
	if !cur.done() && !cur.peek().IsPunctuator(";") && cur.sameLine(cur.peek()) {
		return nil, syntaxErrorf(cur.peek(), "unexpected %s", cur.peek())
	}
	c.consumeSemicolon(cur)
	return term.Must(term.ExpressionStatement, term.Values{"expression": expr}).WithLoc(tok.Pos), nil
}

// subStatement is statement for positions that need a statement, such as a
// loop body, substituting an empty statement when a macro expanded to nothing.
func (c *Compiler) subStatement(cur *cursor) (*term.Term, error) {
	at := cur.peek()
	if at == nil {
		return nil, syntaxErrorf(cur.last(), "expected statement, got end of input")
	}
	stmt, err := c.statement(cur)
	if err != nil || stmt != nil {
		return stmt, err
	}
	return term.Must(term.EmptyStatement, nil).WithLoc(at.Pos), nil
}

// scopedStatement enforests the next statement inside scope. A braced body
// is scoped token-wise so declarations in it see the scope; anything else
// is scoped after enforestation.
func (c *Compiler) scopedStatement(cur *cursor, scope *syntax.Scope) (*term.Term, error) {
	if tok := cur.peek(); tok.IsBraces() {
		cur.replace(tok.AddScope(scope, c.phase, syntax.ModeAdd))
		return c.subStatement(cur)
	}
	stmt, err := c.subStatement(cur)
	if err != nil {
		return nil, err
	}
	return c.scopeTerm(stmt, scope), nil
}

// block enforests a braced token in a fresh block scope.
func (c *Compiler) block(braces *syntax.Syntax) (*term.Term, error) {
	sub, err := c.nested(braces)
	if err != nil {
		return nil, err
	}
	scope := c.freshScope("block")
	stmts, err := sub.statementList(newCursor(c.scopeTokens(braces.Inner, scope)), nil)
	if err != nil {
		return nil, err
	}
	return term.Must(term.Block, term.Values{"statements": stmts}).WithLoc(braces.Pos), nil
}

func (c *Compiler) parens(cur *cursor, after string) (*syntax.Syntax, error) {
	tok := cur.next()
	if !tok.IsParens() {
		if tok == nil {
			tok = cur.last()
		}
		return nil, syntaxErrorf(tok, "expected ( after %s", after)
	}
	return tok, nil
}

func (c *Compiler) braces(cur *cursor, after string) (*syntax.Syntax, error) {
	tok := cur.next()
	if !tok.IsBraces() {
		if tok == nil {
			tok = cur.last()
		}
		return nil, syntaxErrorf(tok, "expected { after %s", after)
	}
	return tok, nil
}

func (c *Compiler) ifStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	head, err := c.parens(cur, "if")
	if err != nil {
		return nil, err
	}
	test, err := c.subExpression(head)
	if err != nil {
		return nil, err
	}
	cons, err := c.subStatement(cur)
	if err != nil {
		return nil, err
	}
	var alt *term.Term
	if cur.peek().IsKeyword("else") {
		cur.next()
		if alt, err = c.subStatement(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(term.IfStatement, term.Values{"test": test, "consequent": cons, "alternate": alt}).WithLoc(kw.Pos), nil
}

func (c *Compiler) whileStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	head, err := c.parens(cur, "while")
	if err != nil {
		return nil, err
	}
	test, err := c.subExpression(head)
	if err != nil {
		return nil, err
	}
	body, err := c.subStatement(cur)
	if err != nil {
		return nil, err
	}
	return term.Must(term.WhileStatement, term.Values{"test": test, "body": body}).WithLoc(kw.Pos), nil
}

func (c *Compiler) doWhileStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	body, err := c.subStatement(cur)
	if err != nil {
		return nil, err
	}
	if _, err := c.expect(cur, "while"); err != nil {
		return nil, err
	}
	head, err := c.parens(cur, "while")
	if err != nil {
		return nil, err
	}
	test, err := c.subExpression(head)
	if err != nil {
		return nil, err
	}
	c.consumeSemicolon(cur)
	return term.Must(term.DoWhileStatement, term.Values{"body": body, "test": test}).WithLoc(kw.Pos), nil
}

func (c *Compiler) withStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	head, err := c.parens(cur, "with")
	if err != nil {
		return nil, err
	}
	object, err := c.subExpression(head)
	if err != nil {
		return nil, err
	}
	body, err := c.subStatement(cur)
	if err != nil {
		return nil, err
	}
	return term.Must(term.WithStatement, term.Values{"object": object, "body": body}).WithLoc(kw.Pos), nil
}

func (c *Compiler) returnStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	var expr *term.Term
	if next := cur.peek(); next != nil && !next.IsPunctuator(";") && cur.sameLine(next) {
		var err error
		if expr, err = c.expression(cur); err != nil {
			return nil, err
		}
	}
	c.consumeSemicolon(cur)
	return term.Must(term.ReturnStatement, term.Values{"expression": expr}).WithLoc(kw.Pos), nil
}

func (c *Compiler) jumpStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	var label *syntax.Syntax
	if next := cur.peek(); next.IsIdentifier() && cur.sameLine(next) {
		label = cur.next()
	}
	c.consumeSemicolon(cur)
	kind := term.BreakStatement
	if kw.Value == "continue" {
		kind = term.ContinueStatement
	}
	return term.Must(kind, term.Values{"label": label}).WithLoc(kw.Pos), nil
}

// splitTop splits tokens on a top-level punctuator.
func splitTop(toks []*syntax.Syntax, punct string) [][]*syntax.Syntax {
	var parts [][]*syntax.Syntax
	start := 0
	for i, tok := range toks {
		if tok.IsPunctuator(punct) {
			parts = append(parts, toks[start:i])
			start = i + 1
		}
	}
	return append(parts, toks[start:])
}

func (c *Compiler) forStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	head, err := c.parens(cur, "for")
	if err != nil {
		return nil, err
	}
	scope := c.freshScope("for")
	headToks := c.scopeTokens(head.Inner, scope)

	if parts := splitTop(headToks, ";"); len(parts) == 3 {
		var init, test, update *term.Term
		if len(parts[0]) > 0 {
			pc := newCursor(parts[0])
			if isDeclarationKeyword(pc) {
				init, err = c.variableDeclaration(pc)
			} else {
				init, err = c.expression(pc)
			}
			if err != nil {
				return nil, err
			}
			if !pc.done() {
				return nil, syntaxErrorf(pc.peek(), "unexpected %s in for initializer", pc.peek())
			}
		}
		if test, err = c.optionalExpression(parts[1]); err != nil {
			return nil, err
		}
		if update, err = c.optionalExpression(parts[2]); err != nil {
			return nil, err
		}
		body, err := c.scopedStatement(cur, scope)
		if err != nil {
			return nil, err
		}
		return term.Must(term.ForStatement, term.Values{
			"init": init, "test": test, "update": update, "body": body,
		}).WithLoc(kw.Pos), nil
	}

	split := -1
	kind := term.ForInStatement
	for i, tok := range headToks {
		if i == 0 {
			continue
		}
		if tok.IsKeyword("in") {
			split = i
			break
		}
		if tok.IsWord("of") {
			split, kind = i, term.ForOfStatement
			break
		}
	}
	if split < 0 {
		return nil, syntaxErrorf(head, "malformed for head %s", head)
	}
	left, err := c.forBinding(headToks[:split])
	if err != nil {
		return nil, err
	}
	right, err := c.optionalExpression(headToks[split+1:])
	if err != nil {
		return nil, err
	}
	if right == nil {
		return nil, syntaxErrorf(headToks[split], "expected expression after %s", headToks[split].Value)
	}
	body, err := c.scopedStatement(cur, scope)
	if err != nil {
		return nil, err
	}
	return term.Must(kind, term.Values{"left": left, "right": right, "body": body}).WithLoc(kw.Pos), nil
}

// forBinding enforests the left side of a for-in or for-of head.
func (c *Compiler) forBinding(toks []*syntax.Syntax) (*term.Term, error) {
	cur := newCursor(toks)
	if isDeclarationKeyword(cur) {
		kw := cur.next()
		target, err := c.bindingTarget(cur, kw.Value)
		if err != nil {
			return nil, err
		}
		if !cur.done() {
			return nil, syntaxErrorf(cur.peek(), "unexpected %s in for head", cur.peek())
		}
		decl := term.Must(term.VariableDeclarator, term.Values{"binding": target, "init": nil})
		return term.Must(term.VariableDeclaration, term.Values{
			"kind": kw.Value, "declarators": []*term.Term{decl},
		}).WithLoc(kw.Pos), nil
	}
	expr, err := c.optionalExpression(toks)
	if err != nil {
		return nil, err
	}
	if expr == nil {
		return nil, syntaxErrorf(cur.last(), "expected binding in for head")
	}
	return toBinding(expr)
}

func (c *Compiler) optionalExpression(toks []*syntax.Syntax) (*term.Term, error) {
	if len(toks) == 0 {
		return nil, nil
	}
	cur := newCursor(toks)
	expr, err := c.expression(cur)
	if err != nil {
		return nil, err
	}
	if !cur.done() {
		return nil, syntaxErrorf(cur.peek(), "unexpected %s", cur.peek())
	}
	return expr, nil
}

func (c *Compiler) switchStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	head, err := c.parens(cur, "switch")
	if err != nil {
		return nil, err
	}
	discriminant, err := c.subExpression(head)
	if err != nil {
		return nil, err
	}
	body, err := c.braces(cur, "switch head")
	if err != nil {
		return nil, err
	}
	sub, err := c.nested(body)
	if err != nil {
		return nil, err
	}
	bc := newCursor(c.scopeTokens(body.Inner, c.freshScope("switch")))
	isLabel := func(tok *syntax.Syntax) bool { return tok.IsKeyword("case") || tok.IsKeyword("default") }

	var pre, post []*term.Term
	var def *term.Term
	for !bc.done() {
		label := bc.next()
		switch {
		case label.IsKeyword("case"):
			test, err := sub.expression(bc)
			if err != nil {
				return nil, err
			}
			if _, err := sub.expect(bc, ":"); err != nil {
				return nil, err
			}
			cons, err := sub.statementList(bc, isLabel)
			if err != nil {
				return nil, err
			}
			sc := term.Must(term.SwitchCase, term.Values{"test": test, "consequent": cons}).WithLoc(label.Pos)
			if def == nil {
				pre = append(pre, sc)
			} else {
				post = append(post, sc)
			}
		case label.IsKeyword("default"):
			if def != nil {
				return nil, syntaxErrorf(label, "more than one default clause in switch")
			}
			if _, err := sub.expect(bc, ":"); err != nil {
				return nil, err
			}
			cons, err := sub.statementList(bc, isLabel)
			if err != nil {
				return nil, err
			}
			def = term.Must(term.SwitchDefault, term.Values{"consequent": cons}).WithLoc(label.Pos)
		default:
			return nil, syntaxErrorf(label, "expected case or default, got %s", label)
		}
	}
	if def == nil {
		return term.Must(term.SwitchStatement, term.Values{"discriminant": discriminant, "cases": pre}).WithLoc(kw.Pos), nil
	}
	return term.Must(term.SwitchStatementWithDefault, term.Values{
		"discriminant":     discriminant,
		"preDefaultCases":  pre,
		"defaultCase":      def,
		"postDefaultCases": post,
	}).WithLoc(kw.Pos), nil
}

func (c *Compiler) tryStatement(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	bodyTok, err := c.braces(cur, "try")
	if err != nil {
		return nil, err
	}
	body, err := c.block(bodyTok)
	if err != nil {
		return nil, err
	}

	var handler, finalizer *term.Term
	if at := cur.peek(); at.IsKeyword("catch") {
		cur.next()
		scope := c.freshScope("catch")
		var binding *term.Term
		if cur.peek().IsParens() {
			param := cur.next()
			pc := newCursor(c.scopeTokens(param.Inner, scope))
			if binding, err = c.bindingTarget(pc, "let"); err != nil {
				return nil, err
			}
			if !pc.done() {
				return nil, syntaxErrorf(pc.peek(), "unexpected %s in catch parameter", pc.peek())
			}
		}
		blockTok, err := c.braces(cur, "catch")
		if err != nil {
			return nil, err
		}
		block, err := c.block(blockTok.AddScope(scope, c.phase, syntax.ModeAdd))
		if err != nil {
			return nil, err
		}
		handler = term.Must(term.CatchClause, term.Values{"binding": binding, "body": block}).WithLoc(at.Pos)
	}
	if cur.peek().IsKeyword("finally") {
		cur.next()
		finTok, err := c.braces(cur, "finally")
		if err != nil {
			return nil, err
		}
		if finalizer, err = c.block(finTok); err != nil {
			return nil, err
		}
	}
	switch {
	case finalizer != nil:
		return term.Must(term.TryFinallyStatement, term.Values{
			"body": body, "catchClause": handler, "finalizer": finalizer,
		}).WithLoc(kw.Pos), nil
	case handler != nil:
		return term.Must(term.TryCatchStatement, term.Values{"body": body, "catchClause": handler}).WithLoc(kw.Pos), nil
	}
	return nil, syntaxErrorf(kw, "try without catch or finally")
}

// pragma enforests `#kind items...` up to a semicolon or the end of the line.
func (c *Compiler) pragma(cur *cursor) (*term.Term, error) {
	hash := cur.next()
	kind := cur.next()
	var items []*syntax.Syntax
	for !cur.done() {
		tok := cur.peek()
		if tok.IsPunctuator(";") {
			cur.next()
			break
		}
		if !cur.sameLine(tok) {
			break
		}
		items = append(items, cur.next())
	}
	return term.Must(term.Pragma, term.Values{"kind": kind, "items": items}).WithLoc(hash.Pos), nil
}

// variableDeclaration enforests var, let, const, syntax and syntaxrec
// declarations without the trailing semicolon.
func (c *Compiler) variableDeclaration(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	kind := kw.Value
	var decls []*term.Term
	for {
		var decl *term.Term
		var err error
		if kind == "syntax" || kind == "syntaxrec" {
			decl, err = c.syntaxDeclarator(cur, kind)
		} else {
			decl, err = c.variableDeclarator(cur, kind)
		}
		if err != nil {
			return nil, err
		}
		decls = append(decls, decl)
		if !cur.peek().IsPunctuator(",") {
			break
		}
		cur.next()
	}
	return term.Must(term.VariableDeclaration, term.Values{"kind": kind, "declarators": decls}).WithLoc(kw.Pos), nil
}

func (c *Compiler) variableDeclarator(cur *cursor, kind string) (*term.Term, error) {
	at := cur.peek()
	target, err := c.bindingTarget(cur, kind)
	if err != nil {
		return nil, err
	}
	var init *term.Term
	if cur.peek().IsPunctuator("=") {
		cur.next()
		if init, err = c.assignment(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(term.VariableDeclarator, term.Values{"binding": target, "init": init}).WithLoc(at.Pos), nil
}

// syntaxDeclarator enforests `name = init` one phase up, evaluates the
// initializer and records the resulting transformer. A syntaxrec name is
// bound before its initializer is expanded so the body can refer to it.
func (c *Compiler) syntaxDeclarator(cur *cursor, kind string) (*term.Term, error) {
	name := cur.next()
	if !name.IsIdentifier() {
		return nil, syntaxErrorf(name, "expected macro name after %s", kind)
	}
	if _, err := c.expect(cur, "="); err != nil {
		return nil, err
	}
	sym := c.session.Alloc.Gensym(name.Value)
	if kind == "syntaxrec" {
		if _, err := c.session.Bindings.AddIdentifier(name, c.phase, sym, true); err != nil {
			return nil, err
		}
	}

	up := c.shifted()
	init, err := up.assignment(cur)
	if err != nil {
		return nil, err
	}
	value, err := c.session.evalCompiletime(init, EvalContext{
		Phase:        up.phase,
		BindingPhase: up.phase,
		Store:        c.store,
		Session:      c.session,
	})
	if err != nil {
		return nil, &TransformerEvaluationError{Macro: name.Value, Site: name.Pos, Err: err}
	}
	c.env.Set(sym, CompiletimeTransform{Value: value})
	if kind == "syntax" {
		if _, err := c.session.Bindings.AddIdentifier(name, c.phase, sym, true); err != nil {
			return nil, err
		}
	}

	binding := term.Must(term.BindingIdentifier, term.Values{"name": name}).WithLoc(name.Pos)
	return term.Must(term.VariableDeclarator, term.Values{"binding": binding, "init": init}).WithLoc(name.Pos), nil
}
