package syntax

import (
	"fmt"
	"strings"
)

// AmbiguousBindingError reports a reference whose scope set contains more
// than one inclusion-maximal binding.
type AmbiguousBindingError struct {
	Name       string
	Reference  ScopeSet
	Candidates []ScopeSet
}

func (e *AmbiguousBindingError) Error() string {
	sets := make([]string, len(e.Candidates))
	for i, set := range e.Candidates {
		sets[i] = set.String()
	}
	return fmt.Sprintf("syntax: ambiguous binding for %s: reference scopes %s match %s",
		e.Name, e.Reference, strings.Join(sets, " and "))
}

// DuplicateBindingError reports an attempt to bind an existing (name, scope set) key.
type DuplicateBindingError struct {
	Name     string
	Scopes   ScopeSet
	Existing Symbol
}

func (e *DuplicateBindingError) Error() string {
	return fmt.Sprintf("syntax: duplicate binding for %s with scopes %s (already bound to %s)",
		e.Name, e.Scopes, e.Existing)
}
