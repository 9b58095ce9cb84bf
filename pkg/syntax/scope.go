package syntax

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// Scope is an opaque token for one lexical or expansion boundary. Two scopes
// are the same scope only if they are the same pointer; the name is for
// debugging.
type Scope struct {
	id   uint64
	name string
}

// ID returns the allocation number of the scope within its session.
func (s *Scope) ID() uint64 {
	if s == nil {
		return 0
	}
	return s.id
}

// Name returns the debug label.
func (s *Scope) Name() string {
	if s == nil {
		return ""
	}
	return s.name
}

func (s *Scope) String() string {
	if s == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s_%d", s.name, s.id)
}

// Allocator mints scopes and symbols for one compilation session. It also
// remembers every scope it handed out so serialized syntax can be read back
// onto the original scope objects.
type Allocator struct {
	session string
	next    uint64
	scopes  map[uint64]*Scope
	foreign map[string]map[uint64]*Scope
}

// NewAllocator returns an allocator with a random session identifier.
func NewAllocator() *Allocator {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		panic(fmt.Sprintf("syntax: session id: %v", err))
	}
	return &Allocator{
		session: hex.EncodeToString(buf[:]),
		scopes:  make(map[uint64]*Scope),
		foreign: make(map[string]map[uint64]*Scope),
	}
}

// Session identifies the allocator in serialized output.
func (a *Allocator) Session() string { return a.session }

// FreshScope allocates a scope distinct from every other scope.
func (a *Allocator) FreshScope(name string) *Scope {
	a.next++
	scope := &Scope{id: a.next, name: name}
	a.scopes[scope.id] = scope
	return scope
}

// Gensym returns a symbol that no other call to Gensym will return.
func (a *Allocator) Gensym(name string) Symbol {
	a.next++
	return Symbol{Name: name, ID: a.next}
}

func (a *Allocator) lookup(id uint64) (*Scope, bool) {
	scope, ok := a.scopes[id]
	return scope, ok
}

// adopt maps a scope allocated by another session onto a local scope, once
// per (session, id) pair.
func (a *Allocator) adopt(session string, id uint64, name string) *Scope {
	table := a.foreign[session]
	if table == nil {
		table = make(map[uint64]*Scope)
		a.foreign[session] = table
	}
	if scope, ok := table[id]; ok {
		return scope
	}
	scope := a.FreshScope(name)
	table[id] = scope
	return scope
}

// Symbol is the resolved identity of a binding. The zero ID denotes a free
// name that resolved to no binding.
type Symbol struct {
	Name string
	ID   uint64
}

// Free returns the symbol for an unresolved reference.
func Free(name string) Symbol { return Symbol{Name: name} }

// IsFree reports whether the symbol names no binding.
func (s Symbol) IsFree() bool { return s.ID == 0 }

func (s Symbol) String() string {
	if s.ID == 0 {
		return s.Name
	}
	return fmt.Sprintf("%s_%d", s.Name, s.ID)
}

// ScopeSet is an immutable set of scopes ordered by allocation id.
type ScopeSet struct {
	scopes []*Scope
}

// NewScopeSet builds a set from the given scopes, dropping duplicates.
func NewScopeSet(scopes ...*Scope) ScopeSet {
	var set ScopeSet
	for _, scope := range scopes {
		set = set.Add(scope)
	}
	return set
}

// Len returns the number of scopes in the set.
func (s ScopeSet) Len() int { return len(s.scopes) }

// Scopes returns a copy of the members in id order.
func (s ScopeSet) Scopes() []*Scope {
	out := make([]*Scope, len(s.scopes))
	copy(out, s.scopes)
	return out
}

// Contains reports membership by identity.
func (s ScopeSet) Contains(scope *Scope) bool {
	for _, member := range s.scopes {
		if member == scope {
			return true
		}
	}
	return false
}

// Add returns the set with scope included.
func (s ScopeSet) Add(scope *Scope) ScopeSet {
	if scope == nil || s.Contains(scope) {
		return s
	}
	out := make([]*Scope, 0, len(s.scopes)+1)
	inserted := false
	for _, member := range s.scopes {
		if !inserted && scope.id < member.id {
			out = append(out, scope)
			inserted = true
		}
		out = append(out, member)
	}
	if !inserted {
		out = append(out, scope)
	}
	return ScopeSet{scopes: out}
}

// Remove returns the set without scope.
func (s ScopeSet) Remove(scope *Scope) ScopeSet {
	if !s.Contains(scope) {
		return s
	}
	out := make([]*Scope, 0, len(s.scopes)-1)
	for _, member := range s.scopes {
		if member != scope {
			out = append(out, member)
		}
	}
	return ScopeSet{scopes: out}
}

// Flip removes scope if present and adds it otherwise.
func (s ScopeSet) Flip(scope *Scope) ScopeSet {
	if s.Contains(scope) {
		return s.Remove(scope)
	}
	return s.Add(scope)
}

// Union returns the scopes present in either set.
func (s ScopeSet) Union(other ScopeSet) ScopeSet {
	if len(other.scopes) == 0 {
		return s
	}
	if len(s.scopes) == 0 {
		return other
	}
	out := s
	for _, scope := range other.scopes {
		out = out.Add(scope)
	}
	return out
}

// SubsetOf reports whether every scope of s is in other.
func (s ScopeSet) SubsetOf(other ScopeSet) bool {
	if len(s.scopes) > len(other.scopes) {
		return false
	}
	for _, scope := range s.scopes {
		if !other.Contains(scope) {
			return false
		}
	}
	return true
}

// Equal reports whether both sets hold the same scopes.
func (s ScopeSet) Equal(other ScopeSet) bool {
	return len(s.scopes) == len(other.scopes) && s.SubsetOf(other)
}

func (s ScopeSet) String() string {
	parts := make([]string, len(s.scopes))
	for i, scope := range s.scopes {
		parts[i] = scope.String()
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
