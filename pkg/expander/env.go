package expander

import "hygienic/expander-go/pkg/syntax"

// Transformer rewrites the argument tokens of a macro invocation into
// replacement tokens.
type Transformer interface {
	Transform(args []*syntax.Syntax) ([]*syntax.Syntax, error)
}

// TransformerFunc adapts a function to Transformer.
type TransformerFunc func(args []*syntax.Syntax) ([]*syntax.Syntax, error)

func (f TransformerFunc) Transform(args []*syntax.Syntax) ([]*syntax.Syntax, error) {
	return f(args)
}

// CompiletimeTransform marks a store or environment entry as a macro. Value
// is whatever the compile-time evaluator produced for the declaration's
// initializer; the expander expects a Transformer.
type CompiletimeTransform struct {
	Value any
}

// Env holds the transformers declared by one compiler pass.
type Env struct {
	entries map[syntax.Symbol]CompiletimeTransform
}

func NewEnv() *Env {
	return &Env{entries: make(map[syntax.Symbol]CompiletimeTransform)}
}

func (e *Env) Get(sym syntax.Symbol) (CompiletimeTransform, bool) {
	ct, ok := e.entries[sym]
	return ct, ok
}

func (e *Env) Set(sym syntax.Symbol, ct CompiletimeTransform) {
	e.entries[sym] = ct
}

// Store maps phase and symbol to compile-time transforms and runtime
// values.
type Store struct {
	phases map[int]map[syntax.Symbol]any
}

func NewStore() *Store {
	return &Store{phases: make(map[int]map[syntax.Symbol]any)}
}

func (s *Store) Get(phase int, sym syntax.Symbol) (any, bool) {
	v, ok := s.phases[phase][sym]
	return v, ok
}

func (s *Store) Set(phase int, sym syntax.Symbol, value any) {
	table := s.phases[phase]
	if table == nil {
		table = make(map[syntax.Symbol]any)
		s.phases[phase] = table
	}
	table[sym] = value
}

// Len reports how many symbols have values at phase.
func (s *Store) Len(phase int) int { return len(s.phases[phase]) }

// Symbols lists the symbols with values at phase.
func (s *Store) Symbols(phase int) []syntax.Symbol {
	out := make([]syntax.Symbol, 0, len(s.phases[phase]))
	for sym := range s.phases[phase] {
		out = append(out, sym)
	}
	return out
}
