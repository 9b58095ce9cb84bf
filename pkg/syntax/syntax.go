package syntax

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenKind classifies a syntax object.
type TokenKind uint8

const (
	Identifier TokenKind = iota
	Keyword
	Punctuator
	Numeric
	String
	Template
	RegExp
	Delimiter
	SyntaxTemplate
)

var tokenKindNames = [...]string{
	Identifier:     "identifier",
	Keyword:        "keyword",
	Punctuator:     "punctuator",
	Numeric:        "numeric",
	String:         "string",
	Template:       "template",
	RegExp:         "regexp",
	Delimiter:      "delimiter",
	SyntaxTemplate: "syntax-template",
}

func (k TokenKind) String() string {
	if int(k) < len(tokenKindNames) {
		return tokenKindNames[k]
	}
	return fmt.Sprintf("TokenKind(%d)", uint8(k))
}

// ParseTokenKind is the inverse of TokenKind.String.
func ParseTokenKind(name string) (TokenKind, bool) {
	for i, candidate := range tokenKindNames {
		if candidate == name {
			return TokenKind(i), true
		}
	}
	return 0, false
}

// AllPhases addresses the phase-independent part of a scope table.
const AllPhases = -1

// Mode selects how AddScope treats a scope already present.
type Mode uint8

const (
	ModeAdd Mode = iota
	ModeFlip
	ModeRemove
)

// Position is a 1-based source location.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

type scopeTable struct {
	all    ScopeSet
	phases map[int]ScopeSet
}

func (t scopeTable) at(phase int) ScopeSet {
	if phase == AllPhases {
		return t.all
	}
	return t.all.Union(t.phases[phase])
}

func (t scopeTable) with(scope *Scope, phase int, mode Mode) scopeTable {
	apply := func(set ScopeSet) ScopeSet {
		switch mode {
		case ModeFlip:
			return set.Flip(scope)
		case ModeRemove:
			return set.Remove(scope)
		default:
			return set.Add(scope)
		}
	}
	if phase == AllPhases {
		return scopeTable{all: apply(t.all), phases: t.phases}
	}
	phases := make(map[int]ScopeSet, len(t.phases)+1)
	for p, set := range t.phases {
		phases[p] = set
	}
	phases[phase] = apply(phases[phase])
	return scopeTable{all: t.all, phases: phases}
}

// Syntax is a lexeme, atom or delimiter group carrying accumulated scopes.
// Syntax objects are immutable; every scope operation returns a new object.
type Syntax struct {
	Kind  TokenKind
	Value string
	// Inner holds the tokens of a delimiter group or syntax template.
	Inner []*Syntax
	Pos   Position

	scopes scopeTable
}

// New constructs a syntax object with no scopes.
func New(kind TokenKind, value string) *Syntax {
	return &Syntax{Kind: kind, Value: value}
}

func NewIdentifier(name string) *Syntax  { return New(Identifier, name) }
func NewKeyword(word string) *Syntax     { return New(Keyword, word) }
func NewPunctuator(punct string) *Syntax { return New(Punctuator, punct) }
func NewNumeric(text string) *Syntax     { return New(Numeric, text) }
func NewString(value string) *Syntax     { return New(String, value) }

// NewDelimiter builds a delimiter group; open is one of "(", "[" or "{".
func NewDelimiter(open string, inner []*Syntax) *Syntax {
	return &Syntax{Kind: Delimiter, Value: open, Inner: inner}
}

// NewSyntaxTemplate builds a quoted token sequence.
func NewSyntaxTemplate(inner []*Syntax) *Syntax {
	return &Syntax{Kind: SyntaxTemplate, Value: "#`", Inner: inner}
}

// At returns a copy positioned at pos.
func (s *Syntax) At(pos Position) *Syntax {
	out := *s
	out.Pos = pos
	return &out
}

// ScopesAt returns the scope set used to resolve the object at phase.
func (s *Syntax) ScopesAt(phase int) ScopeSet {
	return s.scopes.at(phase)
}

// AddScope returns a copy with scope applied at phase (AllPhases for the
// phase-independent set), descending into inner tokens.
func (s *Syntax) AddScope(scope *Scope, phase int, mode Mode) *Syntax {
	out := *s
	out.scopes = s.scopes.with(scope, phase, mode)
	if len(s.Inner) > 0 {
		out.Inner = AddScopeAll(s.Inner, scope, phase, mode)
	}
	return &out
}

// AddScopeAll applies AddScope to each element.
func AddScopeAll(stxl []*Syntax, scope *Scope, phase int, mode Mode) []*Syntax {
	out := make([]*Syntax, len(stxl))
	for i, stx := range stxl {
		out[i] = stx.AddScope(scope, phase, mode)
	}
	return out
}

// Resolve returns the symbol the identifier denotes at phase.
func (s *Syntax) Resolve(bindings *BindingMap, phase int) (Symbol, error) {
	binding, err := s.Binding(bindings, phase)
	if err != nil {
		return Symbol{}, err
	}
	if binding == nil {
		return Free(s.Value), nil
	}
	return binding.Symbol, nil
}

// Binding returns the binding the identifier denotes at phase, or nil when
// it is free.
func (s *Syntax) Binding(bindings *BindingMap, phase int) (*Binding, error) {
	return bindings.ResolveAt(s.Value, s.ScopesAt(phase), phase)
}

func (s *Syntax) IsIdentifier() bool { return s != nil && s.Kind == Identifier }

// IsKeyword reports whether s is the given keyword; an empty word matches any.
func (s *Syntax) IsKeyword(word string) bool {
	return s != nil && s.Kind == Keyword && (word == "" || s.Value == word)
}

// IsPunctuator reports whether s is the given punctuator; an empty value matches any.
func (s *Syntax) IsPunctuator(punct string) bool {
	return s != nil && s.Kind == Punctuator && (punct == "" || s.Value == punct)
}

// IsWord reports whether s is an identifier or keyword spelled word.
func (s *Syntax) IsWord(word string) bool {
	return s != nil && (s.Kind == Identifier || s.Kind == Keyword) && s.Value == word
}

func (s *Syntax) IsParens() bool   { return s != nil && s.Kind == Delimiter && s.Value == "(" }
func (s *Syntax) IsBrackets() bool { return s != nil && s.Kind == Delimiter && s.Value == "[" }
func (s *Syntax) IsBraces() bool   { return s != nil && s.Kind == Delimiter && s.Value == "{" }

// Number parses a numeric literal's text.
func (s *Syntax) Number() (float64, error) {
	text := strings.ReplaceAll(s.Value, "_", "")
	if len(text) > 2 && text[0] == '0' {
		switch text[1] {
		case 'x', 'X', 'o', 'O', 'b', 'B':
			n, err := strconv.ParseInt(text, 0, 64)
			return float64(n), err
		}
	}
	return strconv.ParseFloat(text, 64)
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

func (s *Syntax) String() string {
	if s == nil {
		return ""
	}
	switch s.Kind {
	case Delimiter:
		return s.Value + Join(s.Inner) + closers[s.Value]
	case SyntaxTemplate:
		return "#`" + Join(s.Inner) + "`"
	case String:
		return strconv.Quote(s.Value)
	default:
		return s.Value
	}
}

// Join renders tokens separated by single spaces.
func Join(stxl []*Syntax) string {
	parts := make([]string, len(stxl))
	for i, stx := range stxl {
		parts[i] = stx.String()
	}
	return strings.Join(parts, " ")
}
