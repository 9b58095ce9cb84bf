package expander

import (
	"fmt"

	"hygienic/expander-go/pkg/syntax"
	"hygienic/expander-go/pkg/term"
)

const (
	DefaultMaxExpansions = 1024
	DefaultMaxDepth      = 256
)

// Reader tokenizes module source.
type Reader interface {
	Read(source []byte) ([]*syntax.Syntax, error)
}

// ModuleLoader returns the source text stored at a canonical path.
type ModuleLoader func(path string) (string, error)

// ModuleResolver maps an import specifier, relative to cwd, to a canonical path.
type ModuleResolver func(specifier, cwd string) (string, error)

// EvalContext is handed to evaluators. Phase selects the store level values
// are read from and written to; BindingPhase is the phase the terms'
// identifiers were bound at when they were expanded, which differs from
// Phase when a module is instantiated at a shifted phase.
type EvalContext struct {
	Phase        int
	BindingPhase int
	Store        *Store
	Session      *Session
}

// Resolve returns the symbol an identifier in the evaluated terms denotes.
func (ctx EvalContext) Resolve(id *syntax.Syntax) (syntax.Symbol, error) {
	return id.Resolve(ctx.Session.Bindings, ctx.BindingPhase)
}

// CompiletimeEvaluator computes the value of a syntax declaration's initializer.
type CompiletimeEvaluator interface {
	EvalCompiletime(init *term.Term, ctx EvalContext) (any, error)
}

// RuntimeEvaluator executes a module body for its side effects on the store.
type RuntimeEvaluator interface {
	EvalRuntime(body []*term.Term, ctx EvalContext) error
}

// Event describes one step of expansion for Options.Trace.
type Event struct {
	Kind  string // "expand", "compile", "visit" or "invoke"
	Name  string // macro name or module path
	Phase int
	Pos   syntax.Position
}

// Options configures a Session. Zero limits take their defaults.
type Options struct {
	MaxExpansions int
	MaxDepth      int
	Cwd           string
	Trace         func(Event)

	Reader      Reader
	Loader      ModuleLoader
	Resolver    ModuleResolver
	Compiletime CompiletimeEvaluator
	Runtime     RuntimeEvaluator
}

// Session owns all state of one compilation: scope and symbol allocation,
// the binding map, the shared store and the module cache. A Session is not
// safe for concurrent use.
type Session struct {
	Alloc    *syntax.Allocator
	Bindings *syntax.BindingMap
	Store    *Store
	Modules  *Modules

	opts Options
	cwd  string
}

// NewSession returns a session with defaulted options.
func NewSession(opts Options) *Session {
	if opts.MaxExpansions <= 0 {
		opts.MaxExpansions = DefaultMaxExpansions
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	s := &Session{
		Alloc:    syntax.NewAllocator(),
		Bindings: syntax.NewBindingMap(),
		Store:    NewStore(),
		opts:     opts,
		cwd:      opts.Cwd,
	}
	s.Modules = newModules(s)
	return s
}

// Options returns the session's effective options.
func (s *Session) Options() Options { return s.opts }

// Cwd is the directory imports are currently resolved against.
func (s *Session) Cwd() string { return s.cwd }

// Compiler returns a compiler at phase with a fresh environment over the
// session store.
func (s *Session) Compiler(phase int) *Compiler {
	return NewCompiler(s, phase, NewEnv(), s.Store)
}

func (s *Session) trace(ev Event) {
	if s.opts.Trace != nil {
		s.opts.Trace(ev)
	}
}

func (s *Session) evalCompiletime(init *term.Term, ctx EvalContext) (any, error) {
	if s.opts.Compiletime == nil {
		return nil, fmt.Errorf("expander: no compile-time evaluator configured")
	}
	return s.opts.Compiletime.EvalCompiletime(init, ctx)
}

func (s *Session) evalRuntime(body []*term.Term, ctx EvalContext) error {
	if s.opts.Runtime == nil {
		return nil
	}
	return s.opts.Runtime.EvalRuntime(body, ctx)
}
