package term

import "fmt"

// StructuralError reports a term built with the wrong fields or an unknown kind.
type StructuralError struct {
	Kind   Kind
	Field  string
	Reason string
}

func (e *StructuralError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("term: %s: %s", e.Kind, e.Reason)
	}
	return fmt.Sprintf("term: %s.%s: %s", e.Kind, e.Field, e.Reason)
}
