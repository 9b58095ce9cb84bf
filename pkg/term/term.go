package term

import (
	"fmt"
	"strings"

	"hygienic/expander-go/pkg/syntax"
)

// Values supplies field values by name to New.
type Values map[string]any

// Term is an immutable node of the structured syntax tree.
type Term struct {
	kind   Kind
	values []any
	loc    syntax.Position
}

// New builds a term, checking that fields match the kind's field list
// exactly and that every value fits its field's shape.
func New(kind Kind, fields Values) (*Term, error) {
	specs, err := Fields(kind)
	if err != nil {
		return nil, err
	}
	for name := range fields {
		if fieldIndex(kind, name) < 0 {
			return nil, &StructuralError{Kind: kind, Field: name, Reason: "unexpected field"}
		}
	}
	values := make([]any, len(specs))
	for i, spec := range specs {
		value, ok := fields[spec.Name]
		if !ok {
			return nil, &StructuralError{Kind: kind, Field: spec.Name, Reason: "missing field"}
		}
		normalized, err := fit(spec.Shape, value)
		if err != nil {
			return nil, &StructuralError{Kind: kind, Field: spec.Name, Reason: err.Error()}
		}
		values[i] = normalized
	}
	return &Term{kind: kind, values: values}, nil
}

// Must is New for terms built from statically known parts.
func Must(kind Kind, fields Values) *Term {
	out, err := New(kind, fields)
	if err != nil {
		panic(err)
	}
	return out
}

func fit(shape Shape, value any) (any, error) {
	switch shape {
	case ShapeTerm:
		switch v := value.(type) {
		case nil:
			return nil, nil
		case *Term:
			if v == nil {
				return nil, nil
			}
			return v, nil
		}
	case ShapeTerms:
		switch v := value.(type) {
		case nil:
			return []*Term(nil), nil
		case []*Term:
			for _, item := range v {
				if item == nil {
					return nil, fmt.Errorf("nil element")
				}
			}
			return v, nil
		}
	case ShapeSyntax:
		switch v := value.(type) {
		case nil:
			return nil, nil
		case *syntax.Syntax:
			if v == nil {
				return nil, nil
			}
			return v, nil
		}
	case ShapeSyntaxList:
		switch v := value.(type) {
		case nil:
			return []*syntax.Syntax(nil), nil
		case []*syntax.Syntax:
			return v, nil
		}
	case ShapeLeaf:
		switch v := value.(type) {
		case nil, string, float64, bool:
			return v, nil
		case int:
			return float64(v), nil
		}
	}
	return nil, fmt.Errorf("%T does not fit %s", value, shape)
}

// Kind returns the term's kind.
func (t *Term) Kind() Kind { return t.kind }

// Loc returns the source position the term was read from, if any.
func (t *Term) Loc() syntax.Position { return t.loc }

// WithLoc returns a copy positioned at pos.
func (t *Term) WithLoc(pos syntax.Position) *Term {
	out := *t
	out.loc = pos
	return &out
}

// Is reports whether the term has the given kind. A nil term has no kind.
func (t *Term) Is(kind Kind) bool { return t != nil && t.kind == kind }

// Has reports whether name is a field of the term's kind.
func (t *Term) Has(name string) bool { return fieldIndex(t.kind, name) >= 0 }

// Get returns the raw value of a field; it panics on a name the kind does not have.
func (t *Term) Get(name string) any {
	i := fieldIndex(t.kind, name)
	if i < 0 {
		panic(&StructuralError{Kind: t.kind, Field: name, Reason: "no such field"})
	}
	return t.values[i]
}

func (t *Term) Term(name string) *Term {
	v, _ := t.Get(name).(*Term)
	return v
}

func (t *Term) Terms(name string) []*Term {
	v, _ := t.Get(name).([]*Term)
	return v
}

func (t *Term) Syntax(name string) *syntax.Syntax {
	v, _ := t.Get(name).(*syntax.Syntax)
	return v
}

func (t *Term) SyntaxList(name string) []*syntax.Syntax {
	v, _ := t.Get(name).([]*syntax.Syntax)
	return v
}

func (t *Term) Str(name string) string {
	v, _ := t.Get(name).(string)
	return v
}

func (t *Term) Bool(name string) bool {
	v, _ := t.Get(name).(bool)
	return v
}

func (t *Term) Number(name string) float64 {
	v, _ := t.Get(name).(float64)
	return v
}

// Values returns a copy of the term's fields keyed by name, suitable for
// building a modified term with New.
func (t *Term) Values() Values {
	out := make(Values, len(t.values))
	for i, spec := range fieldTable[t.kind] {
		out[spec.Name] = t.values[i]
	}
	return out
}

func (t *Term) String() string {
	if t == nil {
		return "<nil>"
	}
	var b strings.Builder
	b.WriteString(t.kind.String())
	b.WriteByte('(')
	for i, spec := range fieldTable[t.kind] {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(spec.Name)
		b.WriteByte('=')
		switch v := t.values[i].(type) {
		case *Term:
			b.WriteString(v.String())
		case []*Term:
			parts := make([]string, len(v))
			for j, item := range v {
				parts[j] = item.String()
			}
			b.WriteString("[" + strings.Join(parts, ", ") + "]")
		case *syntax.Syntax:
			b.WriteString(v.String())
		case []*syntax.Syntax:
			b.WriteString("[" + syntax.Join(v) + "]")
		case nil:
			b.WriteString("nil")
		default:
			fmt.Fprintf(&b, "%v", v)
		}
	}
	b.WriteByte(')')
	return b.String()
}
