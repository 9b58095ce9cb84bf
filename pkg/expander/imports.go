package expander

import (
	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

type importName struct {
	name  *syntax.Syntax
	local *syntax.Syntax
}

// importDeclaration enforests an import, loads the imported module and binds
// the imported names. `for syntax` imports are instantiated and bound one
// phase up.
func (c *Compiler) importDeclaration(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	var defTok, nsTok *syntax.Syntax
	var specTerms []*term.Term
	var names []importName

	if tok := cur.peek(); tok == nil || tok.Kind != syntax.String {
		if tok.IsIdentifier() {
			defTok = cur.next()
			if cur.peek().IsPunctuator(",") {
				cur.next()
			}
		}
		switch tok := cur.peek(); {
		case tok.IsPunctuator("*"):
			cur.next()
			if _, err := c.expect(cur, "as"); err != nil {
				return nil, err
			}
			nsTok = cur.next()
			if !nsTok.IsIdentifier() {
				return nil, syntaxErrorf(tok, "expected namespace name after * as")
			}
		case tok.IsBraces():
			cur.next()
			sc := newCursor(tok.Inner)
			for !sc.done() {
				name := sc.next()
				if name.Kind != syntax.Identifier && name.Kind != syntax.Keyword && name.Kind != syntax.String {
					return nil, syntaxErrorf(name, "expected import name, got %s", name)
				}
				local := name
				if sc.peek().IsWord("as") {
					sc.next()
					local = sc.next()
				}
				if !local.IsIdentifier() {
					return nil, syntaxErrorf(name, "import %s needs a local name", name.Value)
				}
				names = append(names, importName{name: name, local: local})
				if err := c.listSeparator(sc); err != nil {
					return nil, err
				}
			}
		}
		if defTok == nil && nsTok == nil && names == nil && !cur.peek().IsWord("from") {
			return nil, syntaxErrorf(kw, "malformed import")
		}
		if _, err := c.expect(cur, "from"); err != nil {
			return nil, err
		}
	}
	spec := cur.next()
	if spec == nil || spec.Kind != syntax.String {
		return nil, syntaxErrorf(kw, "expected module specifier string")
	}
	forSyntax := false
	if cur.peek().IsWord("for") && cur.peekAt(1).IsWord("syntax") {
		cur.next()
		cur.next()
		forSyntax = true
	}
	c.consumeSemicolon(cur)

	modules := c.session.Modules
	mod, err := modules.LoadAndCompile(spec.Value)
	if err != nil {
		return nil, err
	}
	phase := c.phase
	if forSyntax {
		phase++
	}
	if _, err := modules.Visit(mod, phase, c.store); err != nil {
		return nil, err
	}
	if forSyntax {
		if _, err := modules.Invoke(mod, phase, c.store); err != nil {
			return nil, err
		}
	}

	var defTerm *term.Term
	if defTok != nil {
		if defTerm, err = c.bindImported(mod, "default", defTok, phase); err != nil {
			return nil, err
		}
	}
	for _, n := range names {
		b, err := c.bindImported(mod, n.name.Value, n.local, phase)
		if err != nil {
			return nil, err
		}
		var nameTok *syntax.Syntax
		if n.local != n.name {
			nameTok = n.name
		}
		specTerms = append(specTerms, term.Must(term.ImportSpecifier, term.Values{"name": nameTok, "binding": b}).WithLoc(n.local.Pos))
	}
	if nsTok != nil {
		if _, err := c.session.Bindings.AddIdentifier(nsTok, phase, c.session.Alloc.Gensym(nsTok.Value), false); err != nil {
			return nil, err
		}
		ns := term.Must(term.BindingIdentifier, term.Values{"name": nsTok}).WithLoc(nsTok.Pos)
		return term.Must(term.ImportNamespace, term.Values{
			"moduleSpecifier": spec, "defaultBinding": defTerm, "namespaceBinding": ns, "forSyntax": forSyntax,
		}).WithLoc(kw.Pos), nil
	}
	return term.Must(term.Import, term.Values{
		"moduleSpecifier": spec, "defaultBinding": defTerm, "namedImports": specTerms, "forSyntax": forSyntax,
	}).WithLoc(kw.Pos), nil
}

// bindImported binds local to the symbol mod exports under name, keeping
// whether it is a macro.
func (c *Compiler) bindImported(mod *Module, name string, local *syntax.Syntax, phase int) (*term.Term, error) {
	exported, err := c.session.Modules.ExportedBinding(mod, name)
	if err != nil {
		return nil, err
	}
	scopes := local.ScopesAt(phase)
	bindings := c.session.Bindings
	if b := bindings.Exact(local.Value, scopes, phase); b == nil || b.Symbol != exported.Symbol {
		err := bindings.Add(&syntax.Binding{
			Name:   local.Value,
			Scopes: scopes,
			Symbol: exported.Symbol,
			Phase:  phase,
			Syntax: exported.Syntax,
		})
		if err != nil {
			return nil, err
		}
	}
	return term.Must(term.BindingIdentifier, term.Values{"name": local}).WithLoc(local.Pos), nil
}

// exportDeclaration enforests every export form.
func (c *Compiler) exportDeclaration(cur *cursor) (*term.Term, error) {
	kw := cur.next()
	tok := cur.peek()
	switch {
	case tok.IsPunctuator("*"):
		cur.next()
		if _, err := c.expect(cur, "from"); err != nil {
			return nil, err
		}
		spec := cur.next()
		if spec == nil || spec.Kind != syntax.String {
			return nil, syntaxErrorf(kw, "expected module specifier string")
		}
		c.consumeSemicolon(cur)
		return term.Must(term.ExportAllFrom, term.Values{"moduleSpecifier": spec}).WithLoc(kw.Pos), nil

	case tok.IsBraces():
		cur.next()
		var specs []*term.Term
		sc := newCursor(tok.Inner)
		for !sc.done() {
			name := sc.next()
			if name.Kind != syntax.Identifier && name.Kind != syntax.Keyword {
				return nil, syntaxErrorf(name, "expected export name, got %s", name)
			}
			var local, exported *syntax.Syntax = nil, name
			if sc.peek().IsWord("as") {
				sc.next()
				local, exported = name, sc.next()
				if exported == nil {
					return nil, syntaxErrorf(name, "expected name after as")
				}
			}
			specs = append(specs, term.Must(term.ExportSpecifier, term.Values{"name": local, "exportedName": exported}).WithLoc(name.Pos))
			if err := c.listSeparator(sc); err != nil {
				return nil, err
			}
		}
		var spec *syntax.Syntax
		if cur.peek().IsWord("from") {
			cur.next()
			spec = cur.next()
			if spec == nil || spec.Kind != syntax.String {
				return nil, syntaxErrorf(kw, "expected module specifier string")
			}
		}
		c.consumeSemicolon(cur)
		return term.Must(term.ExportFrom, term.Values{"namedExports": specs, "moduleSpecifier": spec}).WithLoc(kw.Pos), nil

	case tok.IsKeyword("default"):
		cur.next()
		var body *term.Term
		var err error
		switch next := cur.peek(); {
		case next.IsKeyword("function") && (cur.peekAt(1).IsIdentifier() || cur.peekAt(1).IsPunctuator("*") && cur.peekAt(2).IsIdentifier()):
			body, err = c.function(cur, term.FunctionDeclaration)
		case next.IsKeyword("class") && cur.peekAt(1).IsIdentifier():
			body, err = c.class(cur, term.ClassDeclaration)
		default:
			body, err = c.assignment(cur)
			c.consumeSemicolon(cur)
		}
		if err != nil {
			return nil, err
		}
		return term.Must(term.ExportDefault, term.Values{"body": body}).WithLoc(kw.Pos), nil

	case isDeclarationKeyword(cur):
		decl, err := c.variableDeclaration(cur)
		if err != nil {
			return nil, err
		}
		c.consumeSemicolon(cur)
		return term.Must(term.Export, term.Values{"declaration": decl}).WithLoc(kw.Pos), nil

	case tok.IsKeyword("function"):
		decl, err := c.function(cur, term.FunctionDeclaration)
		if err != nil {
			return nil, err
		}
		return term.Must(term.Export, term.Values{"declaration": decl}).WithLoc(kw.Pos), nil

	case tok.IsKeyword("class"):
		decl, err := c.class(cur, term.ClassDeclaration)
		if err != nil {
			return nil, err
		}
		return term.Must(term.Export, term.Values{"declaration": decl}).WithLoc(kw.Pos), nil
	}
	return nil, syntaxErrorf(kw, "malformed export")
}

// ConvertExport rewrites an Export of a declaration into the equivalent
// ExportFrom naming each declared binding.
func ConvertExport(t *term.Term) (*term.Term, error) {
	if !t.Is(term.Export) {
		return nil, &term.StructuralError{Kind: t.Kind(), Reason: "not an Export"}
	}
	decl := t.Term("declaration")
	var names []*syntax.Syntax
	switch decl.Kind() {
	case term.VariableDeclaration:
		for _, d := range decl.Terms("declarators") {
			b := d.Term("binding")
			if !b.Is(term.BindingIdentifier) {
				return nil, &SyntaxError{Message: "destructuring exports are not supported", Pos: b.Loc()}
			}
			names = append(names, b.Syntax("name"))
		}
	case term.FunctionDeclaration, term.ClassDeclaration:
		names = append(names, decl.Term("name").Syntax("name"))
	default:
		return nil, &term.StructuralError{Kind: decl.Kind(), Field: "declaration", Reason: "cannot be exported"}
	}
	specs := make([]*term.Term, len(names))
	for i, name := range names {
		specs[i] = term.Must(term.ExportSpecifier, term.Values{"name": nil, "exportedName": name}).WithLoc(name.Pos)
	}
	return term.Must(term.ExportFrom, term.Values{"namedExports": specs, "moduleSpecifier": nil}).WithLoc(t.Loc()), nil
}
