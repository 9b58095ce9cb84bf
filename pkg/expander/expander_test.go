package expander_test

import (
	"errors"
	"fmt"
	"path"
	"testing"

	"github.com/davecgh/go-spew/spew"

	"hygienic/expander-go/pkg/eval"
	"hygienic/expander-go/pkg/expander"
	"hygienic/expander-go/pkg/reader"
	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

func newSession(t *testing.T, files map[string]string, opts expander.Options) *expander.Session {
	t.Helper()
	r, err := reader.New()
	if err != nil {
		t.Fatalf("reader.New: %v", err)
	}
	t.Cleanup(r.Close)
	ev := eval.New()
	opts.Reader = r
	opts.Loader = func(p string) (string, error) {
		src, ok := files[p]
		if !ok {
			return "", fmt.Errorf("no module %s", p)
		}
		return src, nil
	}
	opts.Resolver = func(spec, cwd string) (string, error) {
		return path.Join(cwd, spec), nil
	}
	if opts.Compiletime == nil {
		opts.Compiletime = ev
	}
	if opts.Runtime == nil {
		opts.Runtime = ev
	}
	return expander.NewSession(opts)
}

func readTokens(t *testing.T, source string) []*syntax.Syntax {
	t.Helper()
	r, err := reader.New()
	if err != nil {
		t.Fatalf("reader.New: %v", err)
	}
	defer r.Close()
	toks, err := r.Read([]byte(source))
	if err != nil {
		t.Fatalf("Read(%q): %v", source, err)
	}
	return toks
}

func resolve(t *testing.T, s *expander.Session, id *syntax.Syntax) syntax.Symbol {
	t.Helper()
	sym, err := id.Resolve(s.Bindings, 0)
	if err != nil {
		t.Fatalf("resolve %s: %v", id.Value, err)
	}
	return sym
}

func declaredName(t *testing.T, stmt *term.Term) *syntax.Syntax {
	t.Helper()
	if !stmt.Is(term.VariableDeclarationStatement) {
		t.Fatalf("expected variable declaration, got %s", spew.Sdump(stmt))
	}
	return stmt.Term("declaration").Terms("declarators")[0].Term("binding").Syntax("name")
}

type countingEvaluator struct {
	*eval.Evaluator
	compiletime int
}

func (c *countingEvaluator) EvalCompiletime(init *term.Term, ctx expander.EvalContext) (any, error) {
	c.compiletime++
	return c.Evaluator.EvalCompiletime(init, ctx)
}

type recordingRuntime struct {
	*eval.Evaluator
	bodies [][]*term.Term
}

func (r *recordingRuntime) EvalRuntime(body []*term.Term, ctx expander.EvalContext) error {
	r.bodies = append(r.bodies, body)
	return r.Evaluator.EvalRuntime(body, ctx)
}

func TestDefinitionSiteHygiene(t *testing.T) {
	s := newSession(t, map[string]string{
		"main.js": "#lang \"sweet\";\n" +
			"var x = 1;\n" +
			"syntax m = function (a) { return #`x + ${a}`; };\n" +
			"function f(x) { return m(2); }\n",
	}, expander.Options{})

	mod, err := s.Modules.LoadAndCompile("main.js")
	if err != nil {
		t.Fatalf("LoadAndCompile: %v", err)
	}
	if len(mod.Pragmas) != 1 || len(mod.Body) != 3 {
		t.Fatalf("pragmas=%d body=%d: %s", len(mod.Pragmas), len(mod.Body), spew.Sdump(mod.Body))
	}
	moduleX := resolve(t, s, declaredName(t, mod.Body[0]))

	fn := mod.Body[2]
	if !fn.Is(term.FunctionDeclaration) {
		t.Fatalf("body[2] = %s", fn.Kind())
	}
	paramX := resolve(t, s, fn.Term("params").Terms("items")[0].Syntax("name"))
	ret := fn.Term("body").Terms("statements")[0]
	sum := ret.Term("expression")
	if !sum.Is(term.BinaryExpression) || sum.Str("operator") != "+" {
		t.Fatalf("macro output = %s", spew.Sdump(sum))
	}
	got := resolve(t, s, sum.Term("left").Syntax("name"))
	if got != moduleX {
		t.Fatalf("introduced x resolved to %s, want module x %s", got, moduleX)
	}
	if got == paramX {
		t.Fatalf("introduced x captured by parameter %s", paramX)
	}
	if n := sum.Term("right").Number("value"); n != 2 {
		t.Fatalf("argument = %v, want 2", n)
	}
}

func TestIntroducedBindingDoesNotCaptureArguments(t *testing.T) {
	s := newSession(t, nil, expander.Options{})
	env := expander.NewEnv()
	swapSym := s.Alloc.Gensym("swap")
	if _, err := s.Bindings.AddIdentifier(syntax.NewIdentifier("swap"), 0, swapSym, true); err != nil {
		t.Fatalf("AddIdentifier: %v", err)
	}
	env.Set(swapSym, expander.CompiletimeTransform{Value: expander.TransformerFunc(func(args []*syntax.Syntax) ([]*syntax.Syntax, error) {
		if len(args) != 3 {
			return nil, fmt.Errorf("swap wants two arguments, got %s", syntax.Join(args))
		}
		a, b := args[0], args[2]
		tmp := func() *syntax.Syntax { return syntax.NewIdentifier("tmp") }
		eq := func() *syntax.Syntax { return syntax.NewPunctuator("=") }
		semi := func() *syntax.Syntax { return syntax.NewPunctuator(";") }
		return []*syntax.Syntax{
			syntax.NewKeyword("var"), tmp(), eq(), a, semi(),
			a, eq(), b, semi(),
			b, eq(), tmp(), semi(),
		}, nil
	})})

	terms, err := expander.NewCompiler(s, 0, env, s.Store).Expand(readTokens(t, "var tmp = 1; var y = 2; swap(tmp, y);"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	if len(terms) < 5 {
		t.Fatalf("expanded to %d terms: %s", len(terms), spew.Sdump(terms))
	}
	userTmp := resolve(t, s, declaredName(t, terms[0]))
	introduced := resolve(t, s, declaredName(t, terms[2]))
	if userTmp == introduced {
		t.Fatalf("introduced tmp shares symbol %s with the user's tmp", userTmp)
	}
	init := terms[2].Term("declaration").Terms("declarators")[0].Term("init")
	if got := resolve(t, s, init.Syntax("name")); got != userTmp {
		t.Fatalf("argument tmp resolved to %s, want %s", got, userTmp)
	}
	last := terms[4].Term("expression").Term("expression")
	if got := resolve(t, s, last.Syntax("name")); got != introduced {
		t.Fatalf("introduced reference resolved to %s, want %s", got, introduced)
	}
}

func TestLoadAndCompileMemoizes(t *testing.T) {
	counter := &countingEvaluator{Evaluator: eval.New()}
	s := newSession(t, map[string]string{
		"lib.js":  "#lang \"sweet\";\nexport syntax inc = function (a) { return #`${a} + 1`; };\n",
		"main.js": "#lang \"sweet\";\nimport { inc } from \"./lib.js\";\nvar y = inc(2);\n",
	}, expander.Options{Compiletime: counter})

	main, err := s.Modules.LoadAndCompile("main.js")
	if err != nil {
		t.Fatalf("LoadAndCompile(main): %v", err)
	}
	init := main.Body[1].Term("declaration").Terms("declarators")[0].Term("init")
	if !init.Is(term.BinaryExpression) {
		t.Fatalf("inc(2) expanded to %s", spew.Sdump(init))
	}
	afterFirst := counter.compiletime
	if afterFirst == 0 {
		t.Fatalf("compile-time evaluator never ran")
	}

	lib, err := s.Modules.LoadAndCompile("lib.js")
	if err != nil {
		t.Fatalf("LoadAndCompile(lib): %v", err)
	}
	again, err := s.Modules.LoadAndCompile("lib.js")
	if err != nil {
		t.Fatalf("LoadAndCompile(lib) again: %v", err)
	}
	if lib != again {
		t.Fatalf("second LoadAndCompile returned a different module")
	}
	if _, err := s.Modules.Visit(lib, 0, s.Store); err != nil {
		t.Fatalf("Visit: %v", err)
	}
	if counter.compiletime != afterFirst {
		t.Fatalf("compile-time side effect fired %d times, want %d", counter.compiletime, afterFirst)
	}
	if got := lib.Imports(); len(got) != 0 {
		t.Fatalf("lib imports %v", got)
	}
	if got := main.Imports(); len(got) != 1 || got[0] != "./lib.js" {
		t.Fatalf("main imports %v", got)
	}
}

func TestImportCycle(t *testing.T) {
	s := newSession(t, map[string]string{
		"a.js": "#lang \"sweet\";\nimport { b } from \"./b.js\";\nexport var a = 1;\n",
		"b.js": "#lang \"sweet\";\nimport { a } from \"./a.js\";\nexport var b = 2;\n",
	}, expander.Options{})

	_, err := s.Modules.LoadAndCompile("a.js")
	var cycle *expander.CyclicModuleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CyclicModuleError, got %v", err)
	}
	if cycle.Path != "a.js" || len(cycle.Chain) != 3 {
		t.Fatalf("cycle = %v", cycle)
	}
	if _, ok := s.Modules.Get("a.js"); ok {
		t.Fatalf("failed module was cached")
	}
}

func TestFailedModuleIsRetried(t *testing.T) {
	files := map[string]string{"m.js": "#lang \"sweet\";\nvar = ;\n"}
	s := newSession(t, files, expander.Options{})
	if _, err := s.Modules.LoadAndCompile("m.js"); err == nil {
		t.Fatalf("expected compile error")
	}
	files["m.js"] = "#lang \"sweet\";\nvar ok = 1;\n"
	mod, err := s.Modules.LoadAndCompile("m.js")
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if len(mod.Body) != 1 {
		t.Fatalf("body = %s", spew.Sdump(mod.Body))
	}
}

func TestSourceWithoutPragmaIsEmpty(t *testing.T) {
	s := newSession(t, map[string]string{"plain.js": "var x = ;"}, expander.Options{})
	mod, err := s.Modules.LoadAndCompile("plain.js")
	if err != nil {
		t.Fatalf("LoadAndCompile: %v", err)
	}
	if len(mod.Body) != 0 || len(mod.Pragmas) != 0 {
		t.Fatalf("module without pragma has body %s", spew.Sdump(mod.Body))
	}
}

func TestNonTerminatingExpansion(t *testing.T) {
	s := newSession(t, map[string]string{
		"loop.js": "#lang \"sweet\";\nsyntaxrec m = function () { return #`m()`; };\nm();\n",
	}, expander.Options{MaxDepth: 16})
	_, err := s.Modules.LoadAndCompile("loop.js")
	var nt *expander.NonTerminationError
	if !errors.As(err, &nt) {
		t.Fatalf("expected NonTerminationError, got %v", err)
	}
	if nt.Macro != "m" {
		t.Fatalf("error names macro %q", nt.Macro)
	}
}

func TestExpansionBudget(t *testing.T) {
	s := newSession(t, map[string]string{
		"many.js": "#lang \"sweet\";\nsyntax one = function () { return #`1;`; };\none(); one(); one(); one();\n",
	}, expander.Options{MaxExpansions: 3})
	_, err := s.Modules.LoadAndCompile("many.js")
	var nt *expander.NonTerminationError
	if !errors.As(err, &nt) || nt.Reason != "expansion count" {
		t.Fatalf("expected expansion count error, got %v", err)
	}
}

func TestUnboundSyntax(t *testing.T) {
	s := newSession(t, nil, expander.Options{})
	if _, err := s.Bindings.AddIdentifier(syntax.NewIdentifier("ghost"), 0, s.Alloc.Gensym("ghost"), true); err != nil {
		t.Fatalf("AddIdentifier: %v", err)
	}
	_, err := s.Compiler(0).Expand(readTokens(t, "ghost();"))
	var unbound *expander.UnboundSyntaxError
	if !errors.As(err, &unbound) || unbound.Name != "ghost" {
		t.Fatalf("expected UnboundSyntaxError for ghost, got %v", err)
	}
}

func TestAmbiguousReference(t *testing.T) {
	s := newSession(t, nil, expander.Options{})
	a := s.Alloc.FreshScope("a")
	b := s.Alloc.FreshScope("b")
	for _, scope := range []*syntax.Scope{a, b} {
		id := syntax.NewIdentifier("x").AddScope(scope, 0, syntax.ModeAdd)
		if _, err := s.Bindings.AddIdentifier(id, 0, s.Alloc.Gensym("x"), false); err != nil {
			t.Fatalf("AddIdentifier: %v", err)
		}
	}
	toks := readTokens(t, "x;")
	toks = syntax.AddScopeAll(toks, a, 0, syntax.ModeAdd)
	toks = syntax.AddScopeAll(toks, b, 0, syntax.ModeAdd)
	_, err := s.Compiler(0).Expand(toks)
	var ambiguous *syntax.AmbiguousBindingError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousBindingError, got %v", err)
	}
}

func TestMalformedTransformerOutput(t *testing.T) {
	s := newSession(t, nil, expander.Options{})
	env := expander.NewEnv()
	add := func(name string, value any) {
		sym := s.Alloc.Gensym(name)
		if _, err := s.Bindings.AddIdentifier(syntax.NewIdentifier(name), 0, sym, true); err != nil {
			t.Fatalf("AddIdentifier: %v", err)
		}
		env.Set(sym, expander.CompiletimeTransform{Value: value})
	}
	add("broken", expander.TransformerFunc(func([]*syntax.Syntax) ([]*syntax.Syntax, error) {
		return []*syntax.Syntax{nil}, nil
	}))
	add("notfn", 42.0)
	add("fails", expander.TransformerFunc(func([]*syntax.Syntax) ([]*syntax.Syntax, error) {
		return nil, errors.New("boom")
	}))

	_, err := expander.NewCompiler(s, 0, env, s.Store).Expand(readTokens(t, "broken();"))
	var malformed *expander.MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatalf("expected MalformedOutputError, got %v", err)
	}

	_, err = expander.NewCompiler(s, 0, env, s.Store).Expand(readTokens(t, "notfn();"))
	var evalErr *expander.TransformerEvaluationError
	if !errors.As(err, &evalErr) || evalErr.Macro != "notfn" {
		t.Fatalf("expected TransformerEvaluationError for notfn, got %v", err)
	}

	_, err = expander.NewCompiler(s, 0, env, s.Store).Expand(readTokens(t, "fails();"))
	if !errors.As(err, &evalErr) || evalErr.Err.Error() != "boom" {
		t.Fatalf("expected wrapped transformer failure, got %v", err)
	}
}

func TestForSyntaxImport(t *testing.T) {
	s := newSession(t, map[string]string{
		"helpers.js": "#lang \"sweet\";\nexport function wrap(a) { return #`(${a})`; }\n",
		"main.js": "#lang \"sweet\";\n" +
			"import { wrap } from \"./helpers.js\" for syntax;\n" +
			"syntax paren = wrap;\n" +
			"var z = paren(1);\n",
	}, expander.Options{})
	mod, err := s.Modules.LoadAndCompile("main.js")
	if err != nil {
		t.Fatalf("LoadAndCompile: %v", err)
	}
	imp := mod.ImportEntries[0]
	if !imp.Bool("forSyntax") {
		t.Fatalf("import not marked for syntax: %s", spew.Sdump(imp))
	}
	init := mod.Body[2].Term("declaration").Terms("declarators")[0].Term("init")
	if !init.Is(term.ParenthesizedExpression) {
		t.Fatalf("paren(1) expanded to %s", spew.Sdump(init))
	}
}

func TestPhaseSeparation(t *testing.T) {
	s := newSession(t, map[string]string{
		"main.js": "#lang \"sweet\";\nvar helper = 1;\nsyntax m = helper;\n",
	}, expander.Options{})
	_, err := s.Modules.LoadAndCompile("main.js")
	var unbound *eval.UnboundError
	if !errors.As(err, &unbound) || unbound.Name != "helper" || unbound.Phase != 1 {
		t.Fatalf("phase 1 initializer saw phase 0 variable: %v", err)
	}
}

func TestExportForms(t *testing.T) {
	s := newSession(t, map[string]string{
		"lib.js": "#lang \"sweet\";\n" +
			"var a = 1, b = 2;\n" +
			"export { a, b as bee };\n" +
			"export function f() {}\n" +
			"export default function g() {}\n",
		"re.js":   "#lang \"sweet\";\nexport * from \"./lib.js\";\nexport { f as eff } from \"./lib.js\";\n",
		"main.js": "#lang \"sweet\";\nimport g from \"./lib.js\";\nimport { a, bee, eff } from \"./re.js\";\n",
	}, expander.Options{})
	lib, err := s.Modules.LoadAndCompile("lib.js")
	if err != nil {
		t.Fatalf("LoadAndCompile(lib): %v", err)
	}
	bSym := resolve(t, s, lib.Body[0].Term("declaration").Terms("declarators")[1].Term("binding").Syntax("name"))
	got, err := s.Modules.ExportedSymbol(lib, "bee")
	if err != nil || got != bSym {
		t.Fatalf("ExportedSymbol(bee) = %s, %v; want %s", got, err, bSym)
	}
	if _, err := s.Modules.ExportedSymbol(lib, "b"); err == nil {
		t.Fatalf("b is exported only as bee")
	}

	main, err := s.Modules.LoadAndCompile("main.js")
	if err != nil {
		t.Fatalf("LoadAndCompile(main): %v", err)
	}
	if def := main.ImportEntries[0].Term("defaultBinding"); def == nil {
		t.Fatalf("default import = %s", spew.Sdump(main.ImportEntries[0]))
	}
	imp := main.ImportEntries[1]
	names := imp.Terms("namedImports")
	if len(names) != 3 {
		t.Fatalf("import = %s", spew.Sdump(imp))
	}
	re, _ := s.Modules.Get("re.js")
	eff, err := s.Modules.ExportedSymbol(re, "eff")
	if err != nil {
		t.Fatalf("ExportedSymbol(eff): %v", err)
	}
	if got := resolve(t, s, names[2].Term("binding").Syntax("name")); got != eff {
		t.Fatalf("imported eff = %s, want %s", got, eff)
	}
}

func TestConvertExport(t *testing.T) {
	s := newSession(t, nil, expander.Options{})
	terms, err := s.Compiler(0).Expand(readTokens(t, "export var a = 1, b;"))
	if err != nil {
		t.Fatalf("Expand: %v", err)
	}
	conv, err := expander.ConvertExport(terms[0])
	if err != nil {
		t.Fatalf("ConvertExport: %v", err)
	}
	specs := conv.Terms("namedExports")
	if !conv.Is(term.ExportFrom) || len(specs) != 2 || conv.Syntax("moduleSpecifier") != nil {
		t.Fatalf("converted = %s", spew.Sdump(conv))
	}
	if specs[0].Syntax("name") != nil || specs[1].Syntax("exportedName").Value != "b" {
		t.Fatalf("specifiers = %s", spew.Sdump(specs))
	}
}

func TestTraceEvents(t *testing.T) {
	var events []expander.Event
	s := newSession(t, map[string]string{
		"t.js": "#lang \"sweet\";\nsyntax id = function (a) { return #`${a}`; };\nid(1);\n",
	}, expander.Options{Trace: func(ev expander.Event) { events = append(events, ev) }})
	if _, err := s.Modules.LoadAndCompile("t.js"); err != nil {
		t.Fatalf("LoadAndCompile: %v", err)
	}
	if len(events) != 2 || events[0].Kind != "expand" || events[0].Name != "id" || events[1].Kind != "compile" {
		t.Fatalf("events = %+v", events)
	}
}

func TestExpandLeavesInputUntouched(t *testing.T) {
	s := newSession(t, nil, expander.Options{})
	toks := readTokens(t, "for (var i = 0; i < 1; i++) { i; }")
	before := append([]*syntax.Syntax(nil), toks...)
	if _, err := s.Compiler(0).Expand(toks); err != nil {
		t.Fatalf("Expand: %v", err)
	}
	for i := range before {
		if toks[i] != before[i] {
			t.Fatalf("token %d (%s) was replaced in the caller's slice by %s", i, before[i], toks[i])
		}
	}
}

func TestMutualExportAll(t *testing.T) {
	s := newSession(t, map[string]string{
		"a.js":    "#lang \"sweet\";\nexport * from \"./b.js\";\nexport var x = 1;\n",
		"b.js":    "#lang \"sweet\";\nexport * from \"./a.js\";\nexport var y = 2;\n",
		"main.js": "#lang \"sweet\";\nimport { x, y } from \"./a.js\";\n",
	}, expander.Options{})
	main, err := s.Modules.LoadAndCompile("main.js")
	if err != nil {
		t.Fatalf("LoadAndCompile(main): %v", err)
	}
	a, _ := s.Modules.Get("a.js")
	b, ok := s.Modules.Get("b.js")
	if !ok {
		t.Fatalf("b.js was not loaded through a.js")
	}
	names := main.ImportEntries[0].Terms("namedImports")
	for i, want := range []struct {
		mod  *expander.Module
		name string
	}{{a, "x"}, {b, "y"}} {
		sym, err := s.Modules.ExportedSymbol(want.mod, want.name)
		if err != nil {
			t.Fatalf("ExportedSymbol(%s): %v", want.name, err)
		}
		if got := resolve(t, s, names[i].Term("binding").Syntax("name")); got != sym {
			t.Fatalf("imported %s = %s, want %s", want.name, got, sym)
		}
	}

	_, err = s.Modules.ExportedBinding(a, "missing")
	var missing *expander.ExportNotFoundError
	if !errors.As(err, &missing) || missing.Path != "a.js" {
		t.Fatalf("expected ExportNotFoundError from a.js, got %v", err)
	}
	if _, err := s.Modules.Invoke(b, 0, s.Store); err != nil {
		t.Fatalf("Invoke(b): %v", err)
	}
}

func TestInvokeSkipsSyntaxAndMemoizes(t *testing.T) {
	runtime := &recordingRuntime{Evaluator: eval.New()}
	s := newSession(t, map[string]string{
		"lib.js": "#lang \"sweet\";\n" +
			"export syntax inc = function (a) { return #`${a} + 1`; };\n" +
			"syntax dbl = function (a) { return #`${a} * 2`; };\n" +
			"var n = 3;\n" +
			"export var m = 4;\n",
	}, expander.Options{Runtime: runtime})
	lib, err := s.Modules.LoadAndCompile("lib.js")
	if err != nil {
		t.Fatalf("LoadAndCompile: %v", err)
	}
	if len(lib.Body) != 4 {
		t.Fatalf("body = %s", spew.Sdump(lib.Body))
	}

	for i := 0; i < 2; i++ {
		if _, err := s.Modules.Invoke(lib, 0, s.Store); err != nil {
			t.Fatalf("Invoke #%d: %v", i+1, err)
		}
	}
	if len(runtime.bodies) != 1 {
		t.Fatalf("runtime evaluator ran %d times, want 1", len(runtime.bodies))
	}
	body := runtime.bodies[0]
	if len(body) != 2 || !body[0].Is(term.VariableDeclarationStatement) || !body[1].Is(term.Export) {
		t.Fatalf("invoked body = %s", spew.Sdump(body))
	}
	for _, stmt := range body {
		if term.IsCompiletimeStatement(stmt) {
			t.Fatalf("syntax declaration reached the runtime evaluator: %s", spew.Sdump(stmt))
		}
	}

	// A different store or phase is a separate instance.
	if _, err := s.Modules.Invoke(lib, 1, s.Store); err != nil {
		t.Fatalf("Invoke at phase 1: %v", err)
	}
	if len(runtime.bodies) != 2 {
		t.Fatalf("invoke at phase 1 was memoized with phase 0")
	}
}
