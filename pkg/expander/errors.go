package expander

import (
	"fmt"
	"strings"

	"hygienic/expander-go/pkg/syntax"
)

// SyntaxError reports source the enforester cannot turn into a term.
type SyntaxError struct {
	Message string
	Pos     syntax.Position
}

func (e *SyntaxError) Error() string {
	if e.Pos.Line == 0 {
		return fmt.Sprintf("expander: %s", e.Message)
	}
	return fmt.Sprintf("expander: %d:%d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

func syntaxErrorf(at *syntax.Syntax, format string, args ...any) error {
	err := &SyntaxError{Message: fmt.Sprintf(format, args...)}
	if at != nil {
		err.Pos = at.Pos
	}
	return err
}

// UnboundSyntaxError reports a macro binding with no transformer at the
// phase it is used.
type UnboundSyntaxError struct {
	Name  string
	Phase int
	Pos   syntax.Position
}

func (e *UnboundSyntaxError) Error() string {
	return fmt.Sprintf("expander: %d:%d: %s is bound as syntax but has no transformer at phase %d",
		e.Pos.Line, e.Pos.Column, e.Name, e.Phase)
}

// CyclicModuleError reports a module imported while it is still compiling.
type CyclicModuleError struct {
	Path  string
	Chain []string
}

func (e *CyclicModuleError) Error() string {
	return fmt.Sprintf("expander: import cycle: %s", strings.Join(e.Chain, " -> "))
}

// TransformerEvaluationError wraps a failure raised by a macro's transformer
// with the macro name and invocation site.
type TransformerEvaluationError struct {
	Macro string
	Site  syntax.Position
	Err   error
}

func (e *TransformerEvaluationError) Error() string {
	return fmt.Sprintf("expander: %d:%d: macro %s: %v", e.Site.Line, e.Site.Column, e.Macro, e.Err)
}

func (e *TransformerEvaluationError) Unwrap() error { return e.Err }

// NonTerminationError reports expansion that exceeded the configured budget.
type NonTerminationError struct {
	Macro  string
	Site   syntax.Position
	Limit  int
	Reason string
}

func (e *NonTerminationError) Error() string {
	return fmt.Sprintf("expander: %d:%d: expansion of %s did not terminate (%s limit %d)",
		e.Site.Line, e.Site.Column, e.Macro, e.Reason, e.Limit)
}

// MalformedOutputError reports transformer output that cannot be spliced back.
type MalformedOutputError struct {
	Macro  string
	Site   syntax.Position
	Reason string
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("expander: %d:%d: macro %s produced malformed output: %s",
		e.Site.Line, e.Site.Column, e.Macro, e.Reason)
}

// ModuleError attaches the module path to an error raised while processing it.
type ModuleError struct {
	Path string
	Op   string
	Err  error
}

func (e *ModuleError) Error() string {
	return fmt.Sprintf("expander: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *ModuleError) Unwrap() error { return e.Err }
