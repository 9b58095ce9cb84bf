package expander

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"

	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

// pragmaPattern marks source that opts in to expansion. Source without a
// leading pragma loads as an empty module.
var pragmaPattern = regexp.MustCompile(`^\s*#\w*`)

// Module is the compiled form of one source file.
type Module struct {
	Specifier     string
	ImportEntries []*term.Term
	ExportEntries []*term.Term
	Pragmas       []*term.Term
	Body          []*term.Term
}

// Imports returns the module specifiers the module imports from.
func (m *Module) Imports() []string {
	out := make([]string, 0, len(m.ImportEntries))
	for _, imp := range m.ImportEntries {
		out = append(out, imp.Syntax("moduleSpecifier").Value)
	}
	return out
}

type instanceKey struct {
	store *Store
	path  string
	phase int
}

// Modules loads, compiles and instantiates modules for a session. Compiled
// modules are cached by canonical path; visits and invocations are
// memoized per store, path and phase.
type Modules struct {
	session    *Session
	compiled   map[string]*Module
	inProgress map[string]bool
	chain      []string
	visited    map[instanceKey]bool
	invoked    map[instanceKey]bool
	// instances currently being visited or invoked; re-entering one through
	// a cycle of re-exports is a no-op.
	visiting   map[instanceKey]bool
	invoking   map[instanceKey]bool
}

func newModules(s *Session) *Modules {
	return &Modules{
		session:    s,
		compiled:   make(map[string]*Module),
		inProgress: make(map[string]bool),
		visited:    make(map[instanceKey]bool),
		invoked:    make(map[instanceKey]bool),
		visiting:   make(map[instanceKey]bool),
		invoking:   make(map[instanceKey]bool),
	}
}

// Get returns the cached module compiled from path.
func (m *Modules) Get(path string) (*Module, bool) {
	mod, ok := m.compiled[path]
	return mod, ok
}

// Load reads and tokenizes the module at path.
func (m *Modules) Load(path string) ([]*syntax.Syntax, error) {
	opts := m.session.opts
	if opts.Loader == nil {
		return nil, &ModuleError{Path: path, Op: "load", Err: errors.New("no module loader configured")}
	}
	text, err := opts.Loader(path)
	if err != nil {
		return nil, &ModuleError{Path: path, Op: "load", Err: err}
	}
	if !pragmaPattern.MatchString(text) {
		return nil, nil
	}
	if opts.Reader == nil {
		return nil, &ModuleError{Path: path, Op: "read", Err: errors.New("no reader configured")}
	}
	stxl, err := opts.Reader.Read([]byte(text))
	if err != nil {
		return nil, &ModuleError{Path: path, Op: "read", Err: err}
	}
	return stxl, nil
}

// Compile expands stxl as the body of the module at path. Every token gets
// the module's top scope at all phases before expansion at phase 0.
func (m *Modules) Compile(stxl []*syntax.Syntax, path string) (*Module, error) {
	top := m.session.Alloc.FreshScope("top")
	terms, err := m.session.Compiler(0).Expand(syntax.AddScopeAll(stxl, top, syntax.AllPhases, syntax.ModeAdd))
	if err != nil {
		return nil, err
	}
	mod := &Module{Specifier: path}
	for _, t := range terms {
		switch {
		case term.IsPragma(t):
			mod.Pragmas = append(mod.Pragmas, t)
			continue
		case term.IsImport(t):
			mod.ImportEntries = append(mod.ImportEntries, t)
		case term.IsExport(t):
			mod.ExportEntries = append(mod.ExportEntries, t)
		}
		mod.Body = append(mod.Body, t)
	}
	m.session.trace(Event{Kind: "compile", Name: path})
	return mod, nil
}

// LoadAndCompile resolves specifier against the session's current directory
// and returns the compiled module, compiling it on first use. A module
// imported while it is still compiling is a CyclicModuleError. Failed
// compilations are not cached.
func (m *Modules) LoadAndCompile(specifier string) (*Module, error) {
	path, err := m.resolve(specifier)
	if err != nil {
		return nil, err
	}
	if mod, ok := m.compiled[path]; ok {
		return mod, nil
	}
	if m.inProgress[path] {
		chain := append(append([]string(nil), m.chain...), path)
		return nil, &CyclicModuleError{Path: path, Chain: chain}
	}
	m.inProgress[path] = true
	m.chain = append(m.chain, path)
	defer func() {
		delete(m.inProgress, path)
		m.chain = m.chain[:len(m.chain)-1]
	}()
	defer m.chdir(filepath.Dir(path))()

	stxl, err := m.Load(path)
	if err != nil {
		return nil, err
	}
	mod, err := m.Compile(stxl, path)
	if err != nil {
		var cyc *CyclicModuleError
		if errors.As(err, &cyc) {
			return nil, err
		}
		return nil, &ModuleError{Path: path, Op: "compile", Err: err}
	}
	m.compiled[path] = mod
	return mod, nil
}

func (m *Modules) resolve(specifier string) (string, error) {
	if m.session.opts.Resolver == nil {
		return specifier, nil
	}
	path, err := m.session.opts.Resolver(specifier, m.session.cwd)
	if err != nil {
		return "", &ModuleError{Path: specifier, Op: "resolve", Err: err}
	}
	return path, nil
}

func (m *Modules) chdir(dir string) func() {
	prev := m.session.cwd
	m.session.cwd = dir
	return func() { m.session.cwd = prev }
}

// dependency loads a module named by spec relative to mod.
func (m *Modules) dependency(mod *Module, spec string) (*Module, error) {
	defer m.chdir(filepath.Dir(mod.Specifier))()
	return m.LoadAndCompile(spec)
}

// Visit evaluates mod's syntax declarations, storing their transformers in
// store at phase. Modules mod imports from or re-exports are visited first;
// a module reached again while its own visit is under way is skipped.
func (m *Modules) Visit(mod *Module, phase int, store *Store) (*Store, error) {
	key := instanceKey{store: store, path: mod.Specifier, phase: phase}
	if m.visited[key] || m.visiting[key] {
		return store, nil
	}
	m.visiting[key] = true
	defer delete(m.visiting, key)
	for _, spec := range m.dependencies(mod, false) {
		dep, err := m.dependency(mod, spec)
		if err != nil {
			return nil, err
		}
		if _, err := m.Visit(dep, phase, store); err != nil {
			return nil, err
		}
	}

	ctx := EvalContext{Phase: phase + 1, BindingPhase: 1, Store: store, Session: m.session}
	for _, t := range mod.Body {
		decl := compiletimeDeclaration(t)
		if decl == nil {
			continue
		}
		for _, d := range decl.Terms("declarators") {
			name := d.Term("binding").Syntax("name")
			sym, err := name.Resolve(m.session.Bindings, 0)
			if err != nil {
				return nil, &ModuleError{Path: mod.Specifier, Op: "visit", Err: err}
			}
			value, err := m.session.evalCompiletime(d.Term("init"), ctx)
			if err != nil {
				return nil, &ModuleError{Path: mod.Specifier, Op: "visit", Err: &TransformerEvaluationError{Macro: name.Value, Site: name.Pos, Err: err}}
			}
			store.Set(phase, sym, CompiletimeTransform{Value: value})
		}
	}
	m.visited[key] = true
	m.session.trace(Event{Kind: "visit", Name: mod.Specifier, Phase: phase})
	return store, nil
}

// Invoke runs mod's runtime body at phase after invoking the modules it
// imports at runtime. Syntax declarations are skipped.
func (m *Modules) Invoke(mod *Module, phase int, store *Store) (*Store, error) {
	key := instanceKey{store: store, path: mod.Specifier, phase: phase}
	if m.invoked[key] || m.invoking[key] {
		return store, nil
	}
	m.invoking[key] = true
	defer delete(m.invoking, key)
	for _, spec := range m.dependencies(mod, true) {
		dep, err := m.dependency(mod, spec)
		if err != nil {
			return nil, err
		}
		if _, err := m.Invoke(dep, phase, store); err != nil {
			return nil, err
		}
	}
	var body []*term.Term
	for _, t := range mod.Body {
		if !term.IsCompiletimeStatement(t) {
			body = append(body, t)
		}
	}
	err := m.session.evalRuntime(body, EvalContext{Phase: phase, BindingPhase: 0, Store: store, Session: m.session})
	if err != nil {
		return nil, &ModuleError{Path: mod.Specifier, Op: "invoke", Err: err}
	}
	m.invoked[key] = true
	m.session.trace(Event{Kind: "invoke", Name: mod.Specifier, Phase: phase})
	return store, nil
}

// dependencies lists the specifiers mod needs at its own phase: runtime
// imports and re-export sources. for-syntax imports are excluded; with
// runtimeOnly, re-export sources are too.
func (m *Modules) dependencies(mod *Module, runtimeOnly bool) []string {
	var out []string
	for _, imp := range mod.ImportEntries {
		if !imp.Bool("forSyntax") {
			out = append(out, imp.Syntax("moduleSpecifier").Value)
		}
	}
	if runtimeOnly {
		return out
	}
	for _, exp := range mod.ExportEntries {
		if exp.Has("moduleSpecifier") {
			if spec := exp.Syntax("moduleSpecifier"); spec != nil {
				out = append(out, spec.Value)
			}
		}
	}
	return out
}

func compiletimeDeclaration(t *term.Term) *term.Term {
	switch {
	case term.IsSyntaxDeclarationStatement(t), term.IsExportSyntax(t):
		return t.Term("declaration")
	}
	return nil
}

// ExportNotFoundError reports an imported name the module does not export.
type ExportNotFoundError struct {
	Path string
	Name string
}

func (e *ExportNotFoundError) Error() string {
	return fmt.Sprintf("expander: %s does not export %s", e.Path, e.Name)
}

type exportKey struct {
	path string
	name string
}

// ExportedBinding returns the binding mod exports under name, following
// re-exports into other modules. A re-export chain that leads back to a
// name already being looked up does not export it.
func (m *Modules) ExportedBinding(mod *Module, name string) (*syntax.Binding, error) {
	return m.exportedBinding(mod, name, make(map[exportKey]bool))
}

func (m *Modules) exportedBinding(mod *Module, name string, seen map[exportKey]bool) (*syntax.Binding, error) {
	key := exportKey{path: mod.Specifier, name: name}
	if seen[key] {
		return nil, &ExportNotFoundError{Path: mod.Specifier, Name: name}
	}
	seen[key] = true
	for _, entry := range mod.ExportEntries {
		switch {
		case entry.Is(term.Export):
			conv, err := ConvertExport(entry)
			if err != nil {
				return nil, err
			}
			for _, spec := range conv.Terms("namedExports") {
				if tok := spec.Syntax("exportedName"); tok.Value == name {
					return m.localBinding(mod, tok)
				}
			}
		case entry.Is(term.ExportFrom):
			for _, spec := range entry.Terms("namedExports") {
				exported := spec.Syntax("exportedName")
				if exported.Value != name {
					continue
				}
				local := spec.Syntax("name")
				if local == nil {
					local = exported
				}
				if from := entry.Syntax("moduleSpecifier"); from != nil {
					dep, err := m.dependency(mod, from.Value)
					if err != nil {
						return nil, err
					}
					return m.exportedBinding(dep, local.Value, seen)
				}
				return m.localBinding(mod, local)
			}
		case entry.Is(term.ExportDefault):
			if name != "default" {
				continue
			}
			body := entry.Term("body")
			if (body.Is(term.FunctionDeclaration) || body.Is(term.ClassDeclaration)) && body.Term("name") != nil {
				return m.localBinding(mod, body.Term("name").Syntax("name"))
			}
			return nil, &ExportNotFoundError{Path: mod.Specifier, Name: "default (anonymous default exports have no binding)"}
		case entry.Is(term.ExportAllFrom):
			if name == "default" {
				continue
			}
			dep, err := m.dependency(mod, entry.Syntax("moduleSpecifier").Value)
			if err != nil {
				return nil, err
			}
			b, err := m.exportedBinding(dep, name, seen)
			var missing *ExportNotFoundError
			if errors.As(err, &missing) {
				continue
			}
			return b, err
		}
	}
	return nil, &ExportNotFoundError{Path: mod.Specifier, Name: name}
}

// ExportedSymbol is ExportedBinding's symbol.
func (m *Modules) ExportedSymbol(mod *Module, name string) (syntax.Symbol, error) {
	b, err := m.ExportedBinding(mod, name)
	if err != nil {
		return syntax.Symbol{}, err
	}
	return b.Symbol, nil
}

func (m *Modules) localBinding(mod *Module, tok *syntax.Syntax) (*syntax.Binding, error) {
	b, err := tok.Binding(m.session.Bindings, 0)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, &ExportNotFoundError{Path: mod.Specifier, Name: tok.Value + " (not bound in module)"}
	}
	return b, nil
}
