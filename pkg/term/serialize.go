package term

import (
	"encoding/json"
	"fmt"

	"hygienic/expander-go/pkg/syntax"
)

type node struct {
	Kind   string                     `json:"kind"`
	Loc    *syntax.Position           `json:"loc,omitempty"`
	Fields map[string]json.RawMessage `json:"fields,omitempty"`
}

type encoder struct {
	stx *syntax.Encoder
}

func (e *encoder) term(t *Term) (*node, error) {
	if t == nil {
		return nil, nil
	}
	out := &node{Kind: t.kind.String()}
	if t.loc != (syntax.Position{}) {
		loc := t.loc
		out.Loc = &loc
	}
	specs := fieldTable[t.kind]
	if len(specs) > 0 {
		out.Fields = make(map[string]json.RawMessage, len(specs))
	}
	for i, spec := range specs {
		var payload any
		switch spec.Shape {
		case ShapeTerm:
			sub, err := e.term(t.Term(spec.Name))
			if err != nil {
				return nil, err
			}
			payload = sub
		case ShapeTerms:
			list, err := e.terms(t.Terms(spec.Name))
			if err != nil {
				return nil, err
			}
			payload = list
		case ShapeSyntax:
			payload = e.stx.Syntax(t.Syntax(spec.Name))
		case ShapeSyntaxList:
			payload = e.stx.SyntaxList(t.SyntaxList(spec.Name))
		default:
			payload = t.values[i]
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("term: encode %s.%s: %w", t.kind, spec.Name, err)
		}
		out.Fields[spec.Name] = raw
	}
	return out, nil
}

func (e *encoder) terms(list []*Term) ([]*node, error) {
	out := make([]*node, len(list))
	for i, t := range list {
		n, err := e.term(t)
		if err != nil {
			return nil, err
		}
		out[i] = n
	}
	return out, nil
}

type decoder struct {
	stx *syntax.Decoder
}

func (d *decoder) term(n *node) (*Term, error) {
	if n == nil {
		return nil, nil
	}
	kind, ok := ParseKind(n.Kind)
	if !ok {
		return nil, fmt.Errorf("term: unknown kind %q", n.Kind)
	}
	values := make(Values, len(fieldTable[kind]))
	for _, spec := range fieldTable[kind] {
		raw, ok := n.Fields[spec.Name]
		if !ok {
			return nil, &StructuralError{Kind: kind, Field: spec.Name, Reason: "missing field"}
		}
		value, err := d.field(spec, raw)
		if err != nil {
			return nil, fmt.Errorf("term: decode %s.%s: %w", kind, spec.Name, err)
		}
		values[spec.Name] = value
	}
	out, err := New(kind, values)
	if err != nil {
		return nil, err
	}
	if n.Loc != nil {
		out.loc = *n.Loc
	}
	return out, nil
}

func (d *decoder) field(spec FieldSpec, raw json.RawMessage) (any, error) {
	switch spec.Shape {
	case ShapeTerm:
		var sub *node
		if err := json.Unmarshal(raw, &sub); err != nil {
			return nil, err
		}
		return d.term(sub)
	case ShapeTerms:
		var list []*node
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return d.terms(list)
	case ShapeSyntax:
		var stx *syntax.Node
		if err := json.Unmarshal(raw, &stx); err != nil {
			return nil, err
		}
		return d.stx.Syntax(stx)
	case ShapeSyntaxList:
		var list []*syntax.Node
		if err := json.Unmarshal(raw, &list); err != nil {
			return nil, err
		}
		return d.stx.SyntaxList(list)
	default:
		var leaf any
		if err := json.Unmarshal(raw, &leaf); err != nil {
			return nil, err
		}
		return leaf, nil
	}
}

func (d *decoder) terms(list []*node) ([]*Term, error) {
	if list == nil {
		return nil, nil
	}
	out := make([]*Term, len(list))
	for i, n := range list {
		t, err := d.term(n)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// Marshal serializes terms together with the scopes of the syntax objects
// they hold.
func Marshal(terms []*Term, alloc *syntax.Allocator) ([]byte, error) {
	enc := &encoder{stx: syntax.NewEncoder(alloc)}
	nodes, err := enc.terms(terms)
	if err != nil {
		return nil, err
	}
	return syntax.WriteEnvelope(enc.stx, nodes)
}

// Unmarshal reads terms written by Marshal, mapping scopes onto alloc.
func Unmarshal(data []byte, alloc *syntax.Allocator) ([]*Term, error) {
	stx, raw, err := syntax.ReadEnvelope(data, alloc)
	if err != nil {
		return nil, err
	}
	var nodes []*node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("term: decode terms: %w", err)
	}
	dec := &decoder{stx: stx}
	return dec.terms(nodes)
}
