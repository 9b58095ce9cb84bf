package syntax

import (
	"encoding/json"
	"fmt"
)

// ScopeRef is one row of the scope reference table written alongside
// serialized syntax.
type ScopeRef struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// Node is the serialized form of a syntax object. Scopes are recorded by
// their id in the envelope's reference table.
type Node struct {
	Kind   string           `json:"kind"`
	Value  string           `json:"value,omitempty"`
	Inner  []*Node          `json:"inner,omitempty"`
	Pos    *Position        `json:"pos,omitempty"`
	All    []uint64         `json:"all,omitempty"`
	Phases map[int][]uint64 `json:"phases,omitempty"`
}

type envelope struct {
	Session string          `json:"session"`
	Scopes  []ScopeRef      `json:"scopes"`
	Syntax  json.RawMessage `json:"syntax"`
}

// Encoder converts syntax objects to nodes and accumulates the scopes they
// reference.
type Encoder struct {
	session string
	seen    map[*Scope]bool
	table   []ScopeRef
}

func NewEncoder(alloc *Allocator) *Encoder {
	return &Encoder{session: alloc.Session(), seen: make(map[*Scope]bool)}
}

func (e *Encoder) Session() string { return e.session }

// Table returns the scope rows referenced so far.
func (e *Encoder) Table() []ScopeRef {
	out := make([]ScopeRef, len(e.table))
	copy(out, e.table)
	return out
}

func (e *Encoder) ref(scope *Scope) uint64 {
	if !e.seen[scope] {
		e.seen[scope] = true
		e.table = append(e.table, ScopeRef{ID: scope.id, Name: scope.name})
	}
	return scope.id
}

func (e *Encoder) refs(set ScopeSet) []uint64 {
	if set.Len() == 0 {
		return nil
	}
	ids := make([]uint64, 0, set.Len())
	for _, scope := range set.scopes {
		ids = append(ids, e.ref(scope))
	}
	return ids
}

// Syntax encodes one syntax object.
func (e *Encoder) Syntax(s *Syntax) *Node {
	if s == nil {
		return nil
	}
	node := &Node{Kind: s.Kind.String(), Value: s.Value, All: e.refs(s.scopes.all)}
	if s.Pos != (Position{}) {
		pos := s.Pos
		node.Pos = &pos
	}
	for phase, set := range s.scopes.phases {
		if set.Len() == 0 {
			continue
		}
		if node.Phases == nil {
			node.Phases = make(map[int][]uint64)
		}
		node.Phases[phase] = e.refs(set)
	}
	if len(s.Inner) > 0 {
		node.Inner = e.SyntaxList(s.Inner)
	}
	return node
}

// SyntaxList encodes a token sequence.
func (e *Encoder) SyntaxList(stxl []*Syntax) []*Node {
	out := make([]*Node, len(stxl))
	for i, s := range stxl {
		out[i] = e.Syntax(s)
	}
	return out
}

// Decoder rebuilds syntax objects from nodes against an allocator. Scopes
// from the allocator's own session map back onto the original objects;
// scopes from another session are replaced by fresh scopes, one per
// original id.
type Decoder struct {
	alloc   *Allocator
	session string
	names   map[uint64]string
	cache   map[uint64]*Scope
}

func NewDecoder(alloc *Allocator, session string, table []ScopeRef) *Decoder {
	names := make(map[uint64]string, len(table))
	for _, row := range table {
		names[row.ID] = row.Name
	}
	return &Decoder{alloc: alloc, session: session, names: names, cache: make(map[uint64]*Scope)}
}

func (d *Decoder) scope(id uint64) (*Scope, error) {
	if scope, ok := d.cache[id]; ok {
		return scope, nil
	}
	name, ok := d.names[id]
	if !ok {
		return nil, fmt.Errorf("syntax: scope %d missing from reference table", id)
	}
	var scope *Scope
	if d.session == d.alloc.Session() {
		scope, ok = d.alloc.lookup(id)
		if !ok {
			return nil, fmt.Errorf("syntax: scope %s_%d not allocated in session %s", name, id, d.session)
		}
	} else {
		scope = d.alloc.adopt(d.session, id, name)
	}
	d.cache[id] = scope
	return scope, nil
}

func (d *Decoder) set(ids []uint64) (ScopeSet, error) {
	var set ScopeSet
	for _, id := range ids {
		scope, err := d.scope(id)
		if err != nil {
			return ScopeSet{}, err
		}
		set = set.Add(scope)
	}
	return set, nil
}

// Syntax decodes one node.
func (d *Decoder) Syntax(node *Node) (*Syntax, error) {
	if node == nil {
		return nil, nil
	}
	kind, ok := ParseTokenKind(node.Kind)
	if !ok {
		return nil, fmt.Errorf("syntax: unknown token kind %q", node.Kind)
	}
	out := &Syntax{Kind: kind, Value: node.Value}
	if node.Pos != nil {
		out.Pos = *node.Pos
	}
	all, err := d.set(node.All)
	if err != nil {
		return nil, err
	}
	out.scopes.all = all
	if len(node.Phases) > 0 {
		out.scopes.phases = make(map[int]ScopeSet, len(node.Phases))
		for phase, ids := range node.Phases {
			set, err := d.set(ids)
			if err != nil {
				return nil, err
			}
			out.scopes.phases[phase] = set
		}
	}
	if len(node.Inner) > 0 {
		inner, err := d.SyntaxList(node.Inner)
		if err != nil {
			return nil, err
		}
		out.Inner = inner
	}
	return out, nil
}

// SyntaxList decodes a token sequence.
func (d *Decoder) SyntaxList(nodes []*Node) ([]*Syntax, error) {
	out := make([]*Syntax, len(nodes))
	for i, node := range nodes {
		s, err := d.Syntax(node)
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// WriteEnvelope wraps an encoded payload with the encoder's session and
// scope table.
func WriteEnvelope(enc *Encoder, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("syntax: encode payload: %w", err)
	}
	table := enc.Table()
	if table == nil {
		table = []ScopeRef{}
	}
	return json.Marshal(envelope{Session: enc.Session(), Scopes: table, Syntax: body})
}

// ReadEnvelope splits serialized data into a decoder and the raw payload.
func ReadEnvelope(data []byte, alloc *Allocator) (*Decoder, json.RawMessage, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, nil, fmt.Errorf("syntax: decode envelope: %w", err)
	}
	if env.Session == "" {
		return nil, nil, fmt.Errorf("syntax: envelope has no session")
	}
	return NewDecoder(alloc, env.Session, env.Scopes), env.Syntax, nil
}

// Marshal serializes a token sequence with its scopes.
func Marshal(stxl []*Syntax, alloc *Allocator) ([]byte, error) {
	enc := NewEncoder(alloc)
	return WriteEnvelope(enc, enc.SyntaxList(stxl))
}

// Unmarshal reads a token sequence written by Marshal.
func Unmarshal(data []byte, alloc *Allocator) ([]*Syntax, error) {
	dec, raw, err := ReadEnvelope(data, alloc)
	if err != nil {
		return nil, err
	}
	var nodes []*Node
	if err := json.Unmarshal(raw, &nodes); err != nil {
		return nil, fmt.Errorf("syntax: decode tokens: %w", err)
	}
	return dec.SyntaxList(nodes)
}

// MarshalScope serializes a single scope reference.
func MarshalScope(scope *Scope, alloc *Allocator) ([]byte, error) {
	enc := NewEncoder(alloc)
	return WriteEnvelope(enc, enc.ref(scope))
}

// UnmarshalScope reads a scope written by MarshalScope.
func UnmarshalScope(data []byte, alloc *Allocator) (*Scope, error) {
	dec, raw, err := ReadEnvelope(data, alloc)
	if err != nil {
		return nil, err
	}
	var id uint64
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, fmt.Errorf("syntax: decode scope: %w", err)
	}
	return dec.scope(id)
}
