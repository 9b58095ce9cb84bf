package syntax

// Binding associates a name and exact scope set with a resolved symbol.
// Syntax marks macro bindings; their transformer is stored under Symbol in
// the environment of the phase the binding was made at.
type Binding struct {
	Name   string
	Scopes ScopeSet
	Symbol Symbol
	Phase  int
	Syntax bool
}

// BindingMap is the append-only registry of bindings for a session.
type BindingMap struct {
	byName map[string][]*Binding
	count  int
}

func NewBindingMap() *BindingMap {
	return &BindingMap{byName: make(map[string][]*Binding)}
}

// Add registers b. A second binding with the same name and exact scope set
// at an overlapping phase is rejected.
func (m *BindingMap) Add(b *Binding) error {
	if existing := m.Exact(b.Name, b.Scopes, b.Phase); existing != nil {
		return &DuplicateBindingError{Name: b.Name, Scopes: b.Scopes, Existing: existing.Symbol}
	}
	m.byName[b.Name] = append(m.byName[b.Name], b)
	m.count++
	return nil
}

// AddIdentifier binds id, as scoped at phase, to symbol.
func (m *BindingMap) AddIdentifier(id *Syntax, phase int, symbol Symbol, isSyntax bool) (*Binding, error) {
	b := &Binding{
		Name:   id.Value,
		Scopes: id.ScopesAt(phase),
		Symbol: symbol,
		Phase:  phase,
		Syntax: isSyntax,
	}
	if err := m.Add(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Exact returns the binding registered under exactly (name, scopes) that is
// visible at phase.
func (m *BindingMap) Exact(name string, scopes ScopeSet, phase int) *Binding {
	for _, b := range m.byName[name] {
		if visibleAt(b, phase) && b.Scopes.Equal(scopes) {
			return b
		}
	}
	return nil
}

func visibleAt(b *Binding, phase int) bool {
	return phase == AllPhases || b.Phase == AllPhases || b.Phase == phase
}

// Lookup returns every binding for name in insertion order.
func (m *BindingMap) Lookup(name string) []*Binding {
	list := m.byName[name]
	out := make([]*Binding, len(list))
	copy(out, list)
	return out
}

// Len returns the number of bindings.
func (m *BindingMap) Len() int { return m.count }

// Resolve finds the binding a reference with the given scopes denotes,
// considering bindings of every phase.
func (m *BindingMap) Resolve(name string, scopes ScopeSet) (*Binding, error) {
	return m.ResolveAt(name, scopes, AllPhases)
}

// ResolveAt finds the binding a reference with the given scopes denotes at
// phase. Candidates are bindings whose scope set is a subset of the
// reference's; the answer is the unique inclusion-maximal candidate. A nil
// binding means the name is free. Incomparable maximal candidates are an
// error.
func (m *BindingMap) ResolveAt(name string, scopes ScopeSet, phase int) (*Binding, error) {
	var candidates []*Binding
	for _, b := range m.byName[name] {
		if visibleAt(b, phase) && b.Scopes.SubsetOf(scopes) {
			candidates = append(candidates, b)
		}
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	var maximal []*Binding
	for _, c := range candidates {
		dominated := false
		for _, other := range candidates {
			if other != c && c.Scopes.Len() < other.Scopes.Len() && c.Scopes.SubsetOf(other.Scopes) {
				dominated = true
				break
			}
		}
		if !dominated {
			maximal = append(maximal, c)
		}
	}
	if len(maximal) != 1 {
		sets := make([]ScopeSet, len(maximal))
		for i, b := range maximal {
			sets[i] = b.Scopes
		}
		return nil, &AmbiguousBindingError{Name: name, Reference: scopes, Candidates: sets}
	}
	return maximal[0], nil
}
