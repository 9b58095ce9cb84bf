package expander

import (
	"strings"

	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"**=": true, "<<=": true, ">>=": true, ">>>=": true, "&=": true, "|=": true,
	"^=": true, "&&=": true, "||=": true, "??=": true,
}

var binaryPrec = map[string]int{
	"??": 1,
	"||": 2,
	"&&": 3,
	"|":  4,
	"^":  5,
	"&":  6,
	"==": 7, "!=": 7, "===": 7, "!==": 7,
	"<": 8, ">": 8, "<=": 8, ">=": 8, "instanceof": 8, "in": 8,
	"<<": 9, ">>": 9, ">>>": 9,
	"+": 10, "-": 10,
	"*": 11, "/": 11, "%": 11,
	"**": 12,
}

func binaryOperator(tok *syntax.Syntax) (string, int) {
	if tok == nil {
		return "", 0
	}
	switch tok.Kind {
	case syntax.Punctuator:
		return tok.Value, binaryPrec[tok.Value]
	case syntax.Keyword:
		if tok.Value == "instanceof" || tok.Value == "in" {
			return tok.Value, binaryPrec[tok.Value]
		}
	}
	return "", 0
}

// expression enforests a comma-separated sequence.
func (c *Compiler) expression(cur *cursor) (*term.Term, error) {
	left, err := c.assignment(cur)
	if err != nil {
		return nil, err
	}
	for cur.peek().IsPunctuator(",") {
		cur.next()
		right, err := c.assignment(cur)
		if err != nil {
			return nil, err
		}
		left = term.Must(term.BinaryExpression, term.Values{"operator": ",", "left": left, "right": right}).WithLoc(left.Loc())
	}
	return left, nil
}

func (c *Compiler) assignment(cur *cursor) (*term.Term, error) {
	if err := c.expandMacros(cur); err != nil {
		return nil, err
	}
	tok := cur.peek()
	if tok == nil {
		return nil, syntaxErrorf(cur.last(), "expected expression, got end of input")
	}
	if tok.IsWord("yield") && c.generator {
		return c.yield(cur)
	}
	if (tok.IsIdentifier() || tok.IsParens()) && cur.peekAt(1).IsPunctuator("=>") {
		return c.arrow(cur)
	}

	left, err := c.conditional(cur)
	if err != nil {
		return nil, err
	}
	op := cur.peek()
	if !op.IsPunctuator("") || !assignOps[op.Value] {
		return left, nil
	}
	cur.next()
	target, err := toBinding(left)
	if err != nil {
		return nil, err
	}
	right, err := c.assignment(cur)
	if err != nil {
		return nil, err
	}
	if op.Value == "=" {
		return term.Must(term.AssignmentExpression, term.Values{"binding": target, "expression": right}).WithLoc(left.Loc()), nil
	}
	if !target.Is(term.BindingIdentifier) && !isMember(target) {
		return nil, syntaxErrorf(op, "invalid target for %s", op.Value)
	}
	return term.Must(term.ComputedAssignmentExpression, term.Values{
		"operator": op.Value, "binding": target, "expression": right,
	}).WithLoc(left.Loc()), nil
}

func isMember(t *term.Term) bool {
	return t.Is(term.StaticMemberExpression) || t.Is(term.ComputedMemberExpression)
}

func (c *Compiler) yield(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	kind := term.YieldExpression
	if cur.peek().IsPunctuator("*") {
		cur.next()
		kind = term.YieldGeneratorExpression
	}
	var expr *term.Term
	if next := cur.peek(); next != nil && cur.sameLine(next) && !endsExpression(next) {
		var err error
		if expr, err = c.assignment(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(kind, term.Values{"expression": expr}).WithLoc(kw.Pos), nil
}

func endsExpression(tok *syntax.Syntax) bool {
	return tok.IsPunctuator(";") || tok.IsPunctuator(",") || tok.IsPunctuator(")") || tok.IsPunctuator(":")
}

func (c *Compiler) conditional(cur *cursor) (*term.Term, error) {
	test, err := c.binary(cur, 1)
	if err != nil {
		return nil, err
	}
	if !cur.peek().IsPunctuator("?") {
		return test, nil
	}
	cur.next()
	cons, err := c.assignment(cur)
	if err != nil {
		return nil, err
	}
	if _, err := c.expect(cur, ":"); err != nil {
		return nil, err
	}
	alt, err := c.assignment(cur)
	if err != nil {
		return nil, err
	}
	return term.Must(term.ConditionalExpression, term.Values{
		"test": test, "consequent": cons, "alternate": alt,
	}).WithLoc(test.Loc()), nil
}

// binary is precedence climbing over binaryPrec; ** associates right.
func (c *Compiler) binary(cur *cursor, minPrec int) (*term.Term, error) {
	left, err := c.unary(cur)
	if err != nil {
		return nil, err
	}
	for {
		op, prec := binaryOperator(cur.peek())
		if prec == 0 || prec < minPrec {
			return left, nil
		}
		cur.next()
		next := prec + 1
		if op == "**" {
			next = prec
		}
		right, err := c.binary(cur, next)
		if err != nil {
			return nil, err
		}
		left = term.Must(term.BinaryExpression, term.Values{"operator": op, "left": left, "right": right}).WithLoc(left.Loc())
	}
}

func (c *Compiler) unary(cur *cursor) (*term.Term, error) {
	if err := c.expandMacros(cur); err != nil {
		return nil, err
	}
	tok := cur.peek()
	switch {
	case tok.IsPunctuator("++"), tok.IsPunctuator("--"):
		cur.next()
		operand, err := c.unary(cur)
		if err != nil {
			return nil, err
		}
		target, err := toBinding(operand)
		if err != nil {
			return nil, err
		}
		return term.Must(term.UpdateExpression, term.Values{
			"isPrefix": true, "operator": tok.Value, "operand": target,
		}).WithLoc(tok.Pos), nil
	case tok.IsPunctuator("!"), tok.IsPunctuator("~"), tok.IsPunctuator("+"), tok.IsPunctuator("-"),
		tok.IsKeyword("typeof"), tok.IsKeyword("void"), tok.IsKeyword("delete"):
		cur.next()
		operand, err := c.unary(cur)
		if err != nil {
			return nil, err
		}
		return term.Must(term.UnaryExpression, term.Values{"operator": tok.Value, "operand": operand}).WithLoc(tok.Pos), nil
	}

	expr, err := c.leftHandSide(cur, true)
	if err != nil {
		return nil, err
	}
	if op := cur.peek(); (op.IsPunctuator("++") || op.IsPunctuator("--")) && cur.sameLine(op) {
		cur.next()
		target, err := toBinding(expr)
		if err != nil {
			return nil, err
		}
		return term.Must(term.UpdateExpression, term.Values{
			"isPrefix": false, "operator": op.Value, "operand": target,
		}).WithLoc(expr.Loc()), nil
	}
	return expr, nil
}

// leftHandSide enforests member, call and new expressions. allowCall is
// false while reading the callee of new.
func (c *Compiler) leftHandSide(cur *cursor, allowCall bool) (*term.Term, error) {
	var expr *term.Term
	var err error
	if tok := cur.peek(); tok.IsKeyword("new") {
		expr, err = c.newExpression(cur)
	} else {
		expr, err = c.primary(cur)
	}
	if err != nil {
		return nil, err
	}
	for {
		tok := cur.peek()
		switch {
		case tok.IsPunctuator(".") || tok.IsPunctuator("?."):
			cur.next()
			if tok.Value == "?." && (cur.peek().IsParens() || cur.peek().IsBrackets()) {
				continue
			}
			prop := cur.next()
			if prop == nil || prop.Kind != syntax.Identifier && prop.Kind != syntax.Keyword {
				return nil, syntaxErrorf(tok, "expected property name after %s", tok.Value)
			}
			expr = term.Must(term.StaticMemberExpression, term.Values{"object": expr, "property": prop}).WithLoc(expr.Loc())
		case tok.IsBrackets():
			cur.next()
			index, err := c.subExpression(tok)
			if err != nil {
				return nil, err
			}
			expr = term.Must(term.ComputedMemberExpression, term.Values{"object": expr, "expression": index}).WithLoc(expr.Loc())
		case tok.IsParens() && allowCall:
			cur.next()
			args, err := c.arguments(tok)
			if err != nil {
				return nil, err
			}
			expr = term.Must(term.CallExpression, term.Values{"callee": expr, "arguments": args}).WithLoc(expr.Loc())
		case tok != nil && tok.Kind == syntax.Template:
			cur.next()
			expr = term.Must(term.TemplateExpression, term.Values{
				"tag": expr, "elements": []*term.Term{templateElement(tok)},
			}).WithLoc(expr.Loc())
		default:
			return expr, nil
		}
	}
}

func templateElement(tok *syntax.Syntax) *term.Term {
	return term.Must(term.TemplateElement, term.Values{"rawValue": tok}).WithLoc(tok.Pos)
}

func (c *Compiler) newExpression(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	if cur.peek().IsPunctuator(".") && cur.peekAt(1).IsWord("target") {
		cur.next()
		cur.next()
		return term.Must(term.NewTargetExpression, nil).WithLoc(kw.Pos), nil
	}
	callee, err := c.leftHandSide(cur, false)
	if err != nil {
		return nil, err
	}
	var args []*term.Term
	if tok := cur.peek(); tok.IsParens() {
		cur.next()
		if args, err = c.arguments(tok); err != nil {
			return nil, err
		}
	}
	return term.Must(term.NewExpression, term.Values{"callee": callee, "arguments": args}).WithLoc(kw.Pos), nil
}

// arguments enforests a parenthesized argument list.
func (c *Compiler) arguments(parens *syntax.Syntax) ([]*term.Term, error) {
	cur := newCursor(parens.Inner)
	var args []*term.Term
	for !cur.done() {
		arg, err := c.spreadOrAssignment(cur)
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		if err := c.listSeparator(cur); err != nil {
			return nil, err
		}
	}
	return args, nil
}

func (c *Compiler) spreadOrAssignment(cur *cursor) (*term.Term, error) {
	if tok := cur.peek(); tok.IsPunctuator("...") {
		cur.next()
		expr, err := c.assignment(cur)
		if err != nil {
			return nil, err
		}
		return term.Must(term.SpreadElement, term.Values{"expression": expr}).WithLoc(tok.Pos), nil
	}
	return c.assignment(cur)
}

// listSeparator consumes the comma between list items.
func (c *Compiler) listSeparator(cur *cursor) error {
	if cur.done() {
		return nil
	}
	if tok := cur.peek(); !tok.IsPunctuator(",") {
		return syntaxErrorf(tok, "expected , got %s", tok)
	}
	cur.next()
	return nil
}

func (c *Compiler) primary(cur *cursor) (*term.Term, error) {
	if err := c.expandMacros(cur); err != nil {
		return nil, err
	}
	tok := cur.peek()
	if tok == nil {
		return nil, syntaxErrorf(cur.last(), "expected expression, got end of input")
	}
	switch {
	case tok.IsKeyword("function"):
		return c.function(cur, term.FunctionExpression)
	case tok.IsKeyword("class"):
		return c.class(cur, term.ClassExpression)
	}

	cur.next()
	switch tok.Kind {
	case syntax.Identifier:
		return term.Must(term.IdentifierExpression, term.Values{"name": tok}).WithLoc(tok.Pos), nil
	case syntax.Numeric:
		n, err := tok.Number()
		if err != nil {
			return nil, syntaxErrorf(tok, "invalid number %s", tok.Value)
		}
		return term.Must(term.LiteralNumericExpression, term.Values{"value": n}).WithLoc(tok.Pos), nil
	case syntax.String:
		return term.Must(term.LiteralStringExpression, term.Values{"value": tok.Value}).WithLoc(tok.Pos), nil
	case syntax.RegExp:
		slash := strings.LastIndexByte(tok.Value, '/')
		if slash <= 0 {
			return nil, syntaxErrorf(tok, "invalid regular expression %s", tok.Value)
		}
		return term.Must(term.LiteralRegExpExpression, term.Values{
			"pattern": tok.Value[1:slash], "flags": tok.Value[slash+1:],
		}).WithLoc(tok.Pos), nil
	case syntax.Template:
		return term.Must(term.TemplateExpression, term.Values{
			"tag": nil, "elements": []*term.Term{templateElement(tok)},
		}).WithLoc(tok.Pos), nil
	case syntax.SyntaxTemplate:
		return term.Must(term.SyntaxTemplate, term.Values{"template": tok.Inner}).WithLoc(tok.Pos), nil
	case syntax.Keyword:
		switch tok.Value {
		case "this":
			return term.Must(term.ThisExpression, term.Values{"stx": tok}).WithLoc(tok.Pos), nil
		case "true", "false":
			return term.Must(term.LiteralBooleanExpression, term.Values{"value": tok.Value == "true"}).WithLoc(tok.Pos), nil
		case "null":
			return term.Must(term.LiteralNullExpression, nil).WithLoc(tok.Pos), nil
		case "super":
			return term.Must(term.Super, nil).WithLoc(tok.Pos), nil
		}
	case syntax.Delimiter:
		switch tok.Value {
		case "(":
			inner, err := c.subExpression(tok)
			if err != nil {
				return nil, err
			}
			return term.Must(term.ParenthesizedExpression, term.Values{"inner": inner}).WithLoc(tok.Pos), nil
		case "[":
			return c.arrayLiteral(tok)
		case "{":
			return c.objectLiteral(tok)
		}
	}
	return nil, syntaxErrorf(tok, "unexpected %s", tok)
}

func (c *Compiler) arrayLiteral(brackets *syntax.Syntax) (*term.Term, error) {
	cur := newCursor(brackets.Inner)
	var elems []*term.Term
	for !cur.done() {
		if tok := cur.peek(); tok.IsPunctuator(",") {
			return nil, syntaxErrorf(tok, "array holes are not supported")
		}
		elem, err := c.spreadOrAssignment(cur)
		if err != nil {
			return nil, err
		}
		elems = append(elems, elem)
		if err := c.listSeparator(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(term.ArrayExpression, term.Values{"elements": elems}).WithLoc(brackets.Pos), nil
}

func isPropertyKey(tok *syntax.Syntax) bool {
	if tok == nil {
		return false
	}
	switch tok.Kind {
	case syntax.Identifier, syntax.Keyword, syntax.String, syntax.Numeric:
		return true
	}
	return tok.IsBrackets()
}

// isMethodStart reports whether the property at the cursor is a method,
// getter, setter or generator method rather than a data property.
func isMethodStart(cur *cursor) bool {
	tok, next := cur.peek(), cur.peekAt(1)
	switch {
	case tok.IsPunctuator("*"):
		return true
	case next.IsParens():
		return true
	case (tok.IsWord("get") || tok.IsWord("set")) && isPropertyKey(next):
		return true
	}
	return false
}

func (c *Compiler) objectLiteral(braces *syntax.Syntax) (*term.Term, error) {
	cur := newCursor(braces.Inner)
	var props []*term.Term
	for !cur.done() {
		tok := cur.peek()
		var prop *term.Term
		var err error
		switch {
		case tok.IsPunctuator("..."):
			prop, err = c.spreadOrAssignment(cur)
		case isMethodStart(cur):
			prop, err = c.methodDefinition(cur)
		case cur.peekAt(1).IsPunctuator(":"):
			var name *term.Term
			if name, err = c.propertyName(cur); err != nil {
				return nil, err
			}
			cur.next()
			var value *term.Term
			if value, err = c.assignment(cur); err != nil {
				return nil, err
			}
			prop = term.Must(term.DataProperty, term.Values{"name": name, "expression": value}).WithLoc(tok.Pos)
		case tok.IsIdentifier():
			cur.next()
			id := term.Must(term.IdentifierExpression, term.Values{"name": tok}).WithLoc(tok.Pos)
			prop = term.Must(term.ShorthandProperty, term.Values{"expression": id}).WithLoc(tok.Pos)
		default:
			return nil, syntaxErrorf(tok, "unexpected %s in object literal", tok)
		}
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
		if err := c.listSeparator(cur); err != nil {
			return nil, err
		}
	}
	return term.Must(term.ObjectExpression, term.Values{"properties": props}).WithLoc(braces.Pos), nil
}

func (c *Compiler) propertyName(cur *cursor) (*term.Term, error) {
	tok := cur.next()
	if tok.IsBrackets() {
		expr, err := c.subExpression(tok)
		if err != nil {
			return nil, err
		}
		return term.Must(term.ComputedPropertyName, term.Values{"expression": expr}).WithLoc(tok.Pos), nil
	}
	if !isPropertyKey(tok) {
		if tok == nil {
			tok = cur.last()
		}
		return nil, syntaxErrorf(tok, "expected property name, got %s", tok)
	}
	return term.Must(term.StaticPropertyName, term.Values{"value": tok}).WithLoc(tok.Pos), nil
}

// toBinding reinterprets an expression as an assignment target.
func toBinding(expr *term.Term) (*term.Term, error) {
	switch expr.Kind() {
	case term.IdentifierExpression:
		return term.Must(term.BindingIdentifier, term.Values{"name": expr.Syntax("name")}).WithLoc(expr.Loc()), nil
	case term.StaticMemberExpression, term.ComputedMemberExpression, term.BindingIdentifier,
		term.ArrayBinding, term.ObjectBinding:
		return expr, nil
	case term.ParenthesizedExpression:
		return toBinding(expr.Term("inner"))
	case term.AssignmentExpression:
		return term.Must(term.BindingWithDefault, term.Values{
			"binding": expr.Term("binding"), "init": expr.Term("expression"),
		}).WithLoc(expr.Loc()), nil
	case term.ArrayExpression:
		var elems []*term.Term
		var rest *term.Term
		items := expr.Terms("elements")
		for i, item := range items {
			if item.Is(term.SpreadElement) {
				if i != len(items)-1 {
					return nil, &SyntaxError{Message: "rest element must be last", Pos: item.Loc()}
				}
				r, err := toBinding(item.Term("expression"))
				if err != nil {
					return nil, err
				}
				rest = r
				continue
			}
			b, err := toBinding(item)
			if err != nil {
				return nil, err
			}
			elems = append(elems, b)
		}
		return term.Must(term.ArrayBinding, term.Values{"elements": elems, "restElement": rest}).WithLoc(expr.Loc()), nil
	case term.ObjectExpression:
		var props []*term.Term
		for _, p := range expr.Terms("properties") {
			switch p.Kind() {
			case term.ShorthandProperty:
				id, err := toBinding(p.Term("expression"))
				if err != nil {
					return nil, err
				}
				props = append(props, term.Must(term.BindingPropertyIdentifier, term.Values{"binding": id, "init": nil}).WithLoc(p.Loc()))
			case term.DataProperty:
				b, err := toBinding(p.Term("expression"))
				if err != nil {
					return nil, err
				}
				props = append(props, term.Must(term.BindingPropertyProperty, term.Values{"name": p.Term("name"), "binding": b}).WithLoc(p.Loc()))
			default:
				return nil, &SyntaxError{Message: "invalid destructuring property " + p.Kind().String(), Pos: p.Loc()}
			}
		}
		return term.Must(term.ObjectBinding, term.Values{"properties": props}).WithLoc(expr.Loc()), nil
	}
	return nil, &SyntaxError{Message: "invalid assignment target " + expr.Kind().String(), Pos: expr.Loc()}
}
