package expander

import (
	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

// function enforests a function declaration or expression. A declaration's
// name is bound in the enclosing scope; an expression's name is visible only
// inside the function.
func (c *Compiler) function(cur *cursor, kind term.Kind) (*term.Term, error) {
	kw := cur.next()
	generator := false
	if cur.peek().IsPunctuator("*") {
		cur.next()
		generator = true
	}
	var name *syntax.Syntax
	if cur.peek().IsIdentifier() {
		name = cur.next()
	}
	if name == nil && kind == term.FunctionDeclaration {
		return nil, syntaxErrorf(kw, "function declaration requires a name")
	}
	params, err := c.parens(cur, "function")
	if err != nil {
		return nil, err
	}
	body, err := c.braces(cur, "function parameters")
	if err != nil {
		return nil, err
	}

	scope := c.freshScope("function")
	var nameTerm *term.Term
	if name != nil {
		if kind == term.FunctionDeclaration {
			nameTerm, err = c.bindIdentifier(name, "function")
		} else {
			nameTerm, err = c.bindIdentifier(name.AddScope(scope, c.phase, syntax.ModeAdd), "let")
		}
		if err != nil {
			return nil, err
		}
	}
	paramsTerm, bodyTerm, err := c.functionParts(kw, scope, params, body, generator)
	if err != nil {
		return nil, err
	}
	return term.Must(kind, term.Values{
		"name": nameTerm, "isGenerator": generator, "params": paramsTerm, "body": bodyTerm,
	}).WithLoc(kw.Pos), nil
}

// functionParts enforests parameters and body inside scope.
func (c *Compiler) functionParts(at *syntax.Syntax, scope *syntax.Scope, params, body *syntax.Syntax, generator bool) (*term.Term, *term.Term, error) {
	sub, err := c.nested(at)
	if err != nil {
		return nil, nil, err
	}
	sub.generator = generator
	paramsTerm, err := sub.formalParameters(params, scope)
	if err != nil {
		return nil, nil, err
	}
	bodyTerm, err := sub.functionBody(body, scope)
	if err != nil {
		return nil, nil, err
	}
	return paramsTerm, bodyTerm, nil
}

func (c *Compiler) formalParameters(params *syntax.Syntax, scope *syntax.Scope) (*term.Term, error) {
	cur := newCursor(c.scopeTokens(params.Inner, scope))
	var items []*term.Term
	var rest *term.Term
	for !cur.done() {
		if tok := cur.peek(); tok.IsPunctuator("...") {
			cur.next()
			r, err := c.bindingTarget(cur, "let")
			if err != nil {
				return nil, err
			}
			rest = r
			if !cur.done() {
				return nil, syntaxErrorf(cur.peek(), "rest parameter must be last")
			}
			break
		}
		item, err := c.bindingElement(cur, "let")
		if err != nil {
			return nil, err
		}
		items = append(items, item)
		if err := c.listSeparator(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(term.FormalParameters, term.Values{"items": items, "rest": rest}).WithLoc(params.Pos), nil
}

// functionBody enforests a braced body, lifting its leading string
// statements into directives.
func (c *Compiler) functionBody(body *syntax.Syntax, scope *syntax.Scope) (*term.Term, error) {
	stmts, err := c.statementList(newCursor(c.scopeTokens(body.Inner, scope)), nil)
	if err != nil {
		return nil, err
	}
	directives, stmts := splitDirectives(stmts)
	return term.Must(term.FunctionBody, term.Values{"directives": directives, "statements": stmts}).WithLoc(body.Pos), nil
}

func splitDirectives(stmts []*term.Term) ([]*term.Term, []*term.Term) {
	var directives []*term.Term
	for len(stmts) > 0 {
		s := stmts[0]
		if !s.Is(term.ExpressionStatement) || !s.Term("expression").Is(term.LiteralStringExpression) {
			break
		}
		raw := s.Term("expression").Str("value")
		directives = append(directives, term.Must(term.Directive, term.Values{"rawValue": raw}).WithLoc(s.Loc()))
		stmts = stmts[1:]
	}
	return directives, stmts
}

// arrow enforests `x => ...` or `(params) => ...`. An expression body is
// enforested first and scoped afterwards since its extent is unknown until
// it has been read.
func (c *Compiler) arrow(cur *cursor) (*term.Term, error) {
	head := cur.next()
	arrowTok := cur.next()
	params := head
	if !head.IsParens() {
		params = syntax.NewDelimiter("(", []*syntax.Syntax{head}).At(head.Pos)
	}
	scope := c.freshScope("arrow")
	sub, err := c.nested(arrowTok)
	if err != nil {
		return nil, err
	}
	sub.generator = false
	paramsTerm, err := sub.formalParameters(params, scope)
	if err != nil {
		return nil, err
	}
	var body *term.Term
	if tok := cur.peek(); tok.IsBraces() {
		cur.next()
		body, err = sub.functionBody(tok, scope)
	} else {
		body, err = sub.assignment(cur)
		if err == nil {
			body = c.scopeTerm(body, scope)
		}
	}
	if err != nil {
		return nil, err
	}
	return term.Must(term.ArrowExpression, term.Values{"params": paramsTerm, "body": body}).WithLoc(head.Pos), nil
}

// bindingElement is a binding target with an optional default.
func (c *Compiler) bindingElement(cur *cursor, kind string) (*term.Term, error) {
	target, err := c.bindingTarget(cur, kind)
	if err != nil {
		return nil, err
	}
	if !cur.peek().IsPunctuator("=") {
		return target, nil
	}
	cur.next()
	init, err := c.assignment(cur)
	if err != nil {
		return nil, err
	}
	return term.Must(term.BindingWithDefault, term.Values{"binding": target, "init": init}).WithLoc(target.Loc()), nil
}

// bindingTarget declares an identifier or destructuring pattern.
func (c *Compiler) bindingTarget(cur *cursor, kind string) (*term.Term, error) {
	tok := cur.next()
	switch {
	case tok.IsIdentifier():
		id, err := c.bindIdentifier(tok, kind)
		if err != nil {
			return nil, err
		}
		return id.WithLoc(tok.Pos), nil
	case tok.IsBrackets():
		return c.arrayBinding(tok, kind)
	case tok.IsBraces():
		return c.objectBinding(tok, kind)
	}
	if tok == nil {
		return nil, syntaxErrorf(cur.last(), "expected binding, got end of input")
	}
	return nil, syntaxErrorf(tok, "expected binding, got %s", tok)
}

func (c *Compiler) arrayBinding(brackets *syntax.Syntax, kind string) (*term.Term, error) {
	cur := newCursor(brackets.Inner)
	var elems []*term.Term
	var rest *term.Term
	for !cur.done() {
		tok := cur.peek()
		if tok.IsPunctuator(",") {
			return nil, syntaxErrorf(tok, "array holes are not supported")
		}
		if tok.IsPunctuator("...") {
			cur.next()
			r, err := c.bindingTarget(cur, kind)
			if err != nil {
				return nil, err
			}
			rest = r
			if !cur.done() {
				return nil, syntaxErrorf(cur.peek(), "rest element must be last")
			}
			break
		}
		elem, err := c.bindingElement(cur, kind)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if err := c.listSeparator(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(term.ArrayBinding, term.Values{"elements": elems, "restElement": rest}).WithLoc(brackets.Pos), nil
}

func (c *Compiler) objectBinding(braces *syntax.Syntax, kind string) (*term.Term, error) {
	cur := newCursor(braces.Inner)
	var props []*term.Term
	for !cur.done() {
		tok := cur.peek()
		var prop *term.Term
		if cur.peekAt(1).IsPunctuator(":") {
			name, err := c.propertyName(cur)
			if err != nil {
				return nil, err
			}
			cur.next()
			binding, err := c.bindingElement(cur, kind)
			if err != nil {
				return nil, err
			}
			prop = term.Must(term.BindingPropertyProperty, term.Values{"name": name, "binding": binding}).WithLoc(tok.Pos)
		} else {
			cur.next()
			id, err := c.bindIdentifier(tok, kind)
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
			prop = term.Must(term.BindingPropertyIdentifier, term.Values{"binding": id.WithLoc(tok.Pos), "init": init}).WithLoc(tok.Pos)
		}
		props = append(props, prop)
		if err := c.listSeparator(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(term.ObjectBinding, term.Values{"properties": props}).WithLoc(braces.Pos), nil
}

// class enforests a class declaration or expression.
func (c *Compiler) class(cur *cursor, kind term.Kind) (*term.Term, error) {
	kw := cur.next()
	scope := c.freshScope("class")
	var nameTerm *term.Term
	var err error
	if tok := cur.peek(); tok.IsIdentifier() {
		cur.next()
		if kind == term.ClassDeclaration {
			nameTerm, err = c.bindIdentifier(tok, "let")
		} else {
			nameTerm, err = c.bindIdentifier(tok.AddScope(scope, c.phase, syntax.ModeAdd), "let")
		}
		if err != nil {
			return nil, err
		}
	} else if kind == term.ClassDeclaration {
		return nil, syntaxErrorf(kw, "class declaration requires a name")
	}
	var super *term.Term
	if cur.peek().IsKeyword("extends") {
		cur.next()
		if super, err = c.leftHandSide(cur, true); err != nil {
			return nil, err
		}
	}
	body, err := c.braces(cur, "class heading")
	if err != nil {
		return nil, err
	}
	sub, err := c.nested(body)
	if err != nil {
		return nil, err
	}
	bc := newCursor(c.scopeTokens(body.Inner, scope))
	var elems []*term.Term
	for !bc.done() {
		tok := bc.peek()
		if tok.IsPunctuator(";") {
			bc.next()
			continue
		}
		static := false
		if tok.IsWord("static") && !bc.peekAt(1).IsParens() {
			bc.next()
			static = true
		}
		method, err := sub.methodDefinition(bc)
		if err != nil {
			return nil, err
		}
		elems = append(elems, term.Must(term.ClassElement, term.Values{"isStatic": static, "method": method}).WithLoc(tok.Pos))
	}
	return term.Must(kind, term.Values{"name": nameTerm, "super": super, "elements": elems}).WithLoc(kw.Pos), nil
}

// methodDefinition enforests a method, getter, setter or generator method
// in a class body or object literal.
func (c *Compiler) methodDefinition(cur *cursor) (*term.Term, error) {
	at := cur.peek()
	accessor := ""
	if (at.IsWord("get") || at.IsWord("set")) && isPropertyKey(cur.peekAt(1)) {
		accessor = cur.next().Value
	}
	generator := false
	if accessor == "" && cur.peek().IsPunctuator("*") {
		cur.next()
		generator = true
	}
	name, err := c.propertyName(cur)
	if err != nil {
		return nil, err
	}
	params, err := c.parens(cur, "method name")
	if err != nil {
		return nil, err
	}
	bodyTok, err := c.braces(cur, "method parameters")
	if err != nil {
		return nil, err
	}
	scope := c.freshScope("method")
	paramsTerm, body, err := c.functionParts(at, scope, params, bodyTok, generator)
	if err != nil {
		return nil, err
	}

	switch accessor {
	case "get":
		if len(paramsTerm.Terms("items")) != 0 || paramsTerm.Term("rest") != nil {
			return nil, syntaxErrorf(params, "getter takes no parameters")
		}
		return term.Must(term.Getter, term.Values{"name": name, "body": body}).WithLoc(at.Pos), nil
	case "set":
		items := paramsTerm.Terms("items")
		if len(items) != 1 || paramsTerm.Term("rest") != nil {
			return nil, syntaxErrorf(params, "setter takes exactly one parameter")
		}
		return term.Must(term.Setter, term.Values{"name": name, "body": body, "param": items[0]}).WithLoc(at.Pos), nil
	}
	return term.Must(term.Method, term.Values{
		"name": name, "body": body, "isGenerator": generator, "params": paramsTerm,
	}).WithLoc(at.Pos), nil
}
