package term

// Predicate tests a term. Predicates are false for nil terms.
type Predicate func(*Term) bool

// Is returns the predicate matching exactly kind.
func Is(kind Kind) Predicate {
	return func(t *Term) bool { return t.Is(kind) }
}

// Any matches when one of the predicates does.
func Any(preds ...Predicate) Predicate {
	return func(t *Term) bool {
		for _, p := range preds {
			if p(t) {
				return true
			}
		}
		return false
	}
}

func IsFunctionTerm(t *Term) bool {
	return t.Is(FunctionDeclaration) || t.Is(FunctionExpression)
}

func IsFunctionWithName(t *Term) bool {
	return IsFunctionTerm(t) && t.Term("name") != nil
}

func IsSyntaxDeclaration(t *Term) bool {
	return t.Is(VariableDeclaration) && t.Str("kind") == "syntax"
}

func IsSyntaxrecDeclaration(t *Term) bool {
	return t.Is(VariableDeclaration) && t.Str("kind") == "syntaxrec"
}

// IsCompiletimeDeclaration matches declarations whose initializers run at
// expansion time.
func IsCompiletimeDeclaration(t *Term) bool {
	return IsSyntaxDeclaration(t) || IsSyntaxrecDeclaration(t)
}

func IsVariableDeclarationStatement(t *Term) bool {
	return t.Is(VariableDeclarationStatement)
}

func IsSyntaxDeclarationStatement(t *Term) bool {
	return t.Is(VariableDeclarationStatement) && IsCompiletimeDeclaration(t.Term("declaration"))
}

// IsExportSyntax matches `export syntax m = ...`.
func IsExportSyntax(t *Term) bool {
	return t.Is(Export) && IsCompiletimeDeclaration(t.Term("declaration"))
}

func IsImport(t *Term) bool {
	return t.Is(Import) || t.Is(ImportNamespace)
}

func IsExport(t *Term) bool {
	return t.Is(Export) || t.Is(ExportFrom) || t.Is(ExportAllFrom) || t.Is(ExportDefault)
}

func IsPragma(t *Term) bool { return t.Is(Pragma) }

func IsEOF(t *Term) bool { return t.Is(EOF) }

// IsCompiletimeStatement matches body items that Invoke skips.
func IsCompiletimeStatement(t *Term) bool {
	return IsSyntaxDeclarationStatement(t) || IsExportSyntax(t)
}
