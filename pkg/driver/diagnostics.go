package driver

import (
	"errors"
	"fmt"
	"strings"

	"hygienic/expander-go/pkg/expander"
	"hygienic/expander-go/pkg/reader"
	"hygienic/expander-go/pkg/syntax"
)

// DiagnosticLocation references a source position for diagnostics.
type DiagnosticLocation struct {
	Path   string
	Line   int
	Column int
}

// Diagnostic is an expansion failure reduced to the module it happened in,
// the position within that module and a message.
type Diagnostic struct {
	Stage    string
	Message  string
	Location DiagnosticLocation
}

// Diagnose walks err's wrap chain. The innermost module path wins, since a
// failing import is reported through every module that imported it.
func Diagnose(err error) Diagnostic {
	diag := Diagnostic{Stage: "expander"}
walk:
	for cur := err; cur != nil; cur = errors.Unwrap(cur) {
		switch e := cur.(type) {
		case *expander.ModuleError:
			diag.Location.Path = e.Path
			diag.Stage = e.Op
			continue
		case *reader.ParseError:
			diag.Stage = "read"
			diag.Message = e.Message
			diag.Location.Line, diag.Location.Column = e.Line, e.Column
		case *expander.SyntaxError:
			diag.Message = e.Message
			diag.at(e.Pos)
		case *expander.UnboundSyntaxError:
			diag.Message = fmt.Sprintf("%s has no transformer at phase %d", e.Name, e.Phase)
			diag.at(e.Pos)
		case *expander.TransformerEvaluationError:
			diag.Message = fmt.Sprintf("macro %s: %v", e.Macro, e.Err)
			diag.at(e.Site)
		case *expander.NonTerminationError:
			diag.Message = fmt.Sprintf("expansion of %s did not terminate (%s limit %d)", e.Macro, e.Reason, e.Limit)
			diag.at(e.Site)
		case *expander.MalformedOutputError:
			diag.Message = fmt.Sprintf("macro %s produced malformed output: %s", e.Macro, e.Reason)
			diag.at(e.Site)
		case *expander.CyclicModuleError:
			diag.Message = "import cycle: " + strings.Join(e.Chain, " -> ")
		default:
			if errors.Unwrap(cur) != nil {
				continue
			}
			diag.Message = cur.Error()
		}
		break walk
	}
	return diag
}

func (d *Diagnostic) at(pos syntax.Position) {
	d.Location.Line, d.Location.Column = pos.Line, pos.Column
}

// DescribeError formats err for CLI output as `stage: path:line:col message`.
func DescribeError(err error) string {
	if err == nil {
		return ""
	}
	diag := Diagnose(err)
	location := formatDiagnosticLocation(diag.Location)
	if location == "" {
		return fmt.Sprintf("%s: %s", diag.Stage, diag.Message)
	}
	return fmt.Sprintf("%s: %s %s", diag.Stage, location, diag.Message)
}

func formatDiagnosticLocation(loc DiagnosticLocation) string {
	path := strings.TrimSpace(loc.Path)
	switch {
	case path != "" && loc.Line > 0 && loc.Column > 0:
		return fmt.Sprintf("%s:%d:%d", path, loc.Line, loc.Column)
	case path != "" && loc.Line > 0:
		return fmt.Sprintf("%s:%d", path, loc.Line)
	case path != "":
		return path
	case loc.Line > 0 && loc.Column > 0:
		return fmt.Sprintf("line %d, column %d", loc.Line, loc.Column)
	case loc.Line > 0:
		return fmt.Sprintf("line %d", loc.Line)
	default:
		return ""
	}
}
