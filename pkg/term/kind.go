package term

import "fmt"

// Kind identifies the grammar production a term represents.
type Kind uint8

const (
	// bindings
	BindingWithDefault Kind = iota
	BindingIdentifier
	ArrayBinding
	ObjectBinding
	BindingPropertyIdentifier
	BindingPropertyProperty

	// classes
	ClassExpression
	ClassDeclaration
	ClassElement

	// modules
	Module
	Import
	ImportNamespace
	ImportSpecifier
	ExportAllFrom
	ExportFrom
	Export
	ExportDefault
	ExportSpecifier

	// property definitions
	Method
	Getter
	Setter
	DataProperty
	ShorthandProperty
	ComputedPropertyName
	StaticPropertyName

	// literals
	LiteralBooleanExpression
	LiteralInfinityExpression
	LiteralNullExpression
	LiteralNumericExpression
	LiteralRegExpExpression
	LiteralStringExpression

	// expressions
	ArrayExpression
	ArrowExpression
	AssignmentExpression
	BinaryExpression
	CallExpression
	ComputedAssignmentExpression
	ComputedMemberExpression
	ConditionalExpression
	FunctionExpression
	IdentifierExpression
	NewExpression
	NewTargetExpression
	ObjectExpression
	UnaryExpression
	StaticMemberExpression
	TemplateExpression
	ThisExpression
	UpdateExpression
	YieldExpression
	YieldGeneratorExpression
	ParenthesizedExpression

	// statements
	BlockStatement
	BreakStatement
	ContinueStatement
	DebuggerStatement
	DoWhileStatement
	EmptyStatement
	ExpressionStatement
	ForInStatement
	ForOfStatement
	ForStatement
	IfStatement
	LabeledStatement
	ReturnStatement
	SwitchStatement
	SwitchStatementWithDefault
	ThrowStatement
	TryCatchStatement
	TryFinallyStatement
	VariableDeclarationStatement
	WhileStatement
	WithStatement

	// other
	Block
	CatchClause
	Directive
	FormalParameters
	FunctionBody
	FunctionDeclaration
	Script
	SpreadElement
	Super
	SwitchCase
	SwitchDefault
	TemplateElement
	SyntaxTemplate
	VariableDeclaration
	VariableDeclarator
	Pragma
	EOF

	kindCount
)

var kindNames = [...]string{
	BindingWithDefault:        "BindingWithDefault",
	BindingIdentifier:         "BindingIdentifier",
	ArrayBinding:              "ArrayBinding",
	ObjectBinding:             "ObjectBinding",
	BindingPropertyIdentifier: "BindingPropertyIdentifier",
	BindingPropertyProperty:   "BindingPropertyProperty",

	ClassExpression:  "ClassExpression",
	ClassDeclaration: "ClassDeclaration",
	ClassElement:     "ClassElement",

	Module:          "Module",
	Import:          "Import",
	ImportNamespace: "ImportNamespace",
	ImportSpecifier: "ImportSpecifier",
	ExportAllFrom:   "ExportAllFrom",
	ExportFrom:      "ExportFrom",
	Export:          "Export",
	ExportDefault:   "ExportDefault",
	ExportSpecifier: "ExportSpecifier",

	Method:               "Method",
	Getter:               "Getter",
	Setter:               "Setter",
	DataProperty:         "DataProperty",
	ShorthandProperty:    "ShorthandProperty",
	ComputedPropertyName: "ComputedPropertyName",
	StaticPropertyName:   "StaticPropertyName",

	LiteralBooleanExpression:  "LiteralBooleanExpression",
	LiteralInfinityExpression: "LiteralInfinityExpression",
	LiteralNullExpression:     "LiteralNullExpression",
	LiteralNumericExpression:  "LiteralNumericExpression",
	LiteralRegExpExpression:   "LiteralRegExpExpression",
	LiteralStringExpression:   "LiteralStringExpression",

	ArrayExpression:              "ArrayExpression",
	ArrowExpression:              "ArrowExpression",
	AssignmentExpression:         "AssignmentExpression",
	BinaryExpression:             "BinaryExpression",
	CallExpression:               "CallExpression",
	ComputedAssignmentExpression: "ComputedAssignmentExpression",
	ComputedMemberExpression:     "ComputedMemberExpression",
	ConditionalExpression:        "ConditionalExpression",
	FunctionExpression:           "FunctionExpression",
	IdentifierExpression:         "IdentifierExpression",
	NewExpression:                "NewExpression",
	NewTargetExpression:          "NewTargetExpression",
	ObjectExpression:             "ObjectExpression",
	UnaryExpression:              "UnaryExpression",
	StaticMemberExpression:       "StaticMemberExpression",
	TemplateExpression:           "TemplateExpression",
	ThisExpression:               "ThisExpression",
	UpdateExpression:             "UpdateExpression",
	YieldExpression:              "YieldExpression",
	YieldGeneratorExpression:     "YieldGeneratorExpression",
	ParenthesizedExpression:      "ParenthesizedExpression",

	BlockStatement:               "BlockStatement",
	BreakStatement:               "BreakStatement",
	ContinueStatement:            "ContinueStatement",
	DebuggerStatement:            "DebuggerStatement",
	DoWhileStatement:             "DoWhileStatement",
	EmptyStatement:               "EmptyStatement",
	ExpressionStatement:          "ExpressionStatement",
	ForInStatement:               "ForInStatement",
	ForOfStatement:               "ForOfStatement",
	ForStatement:                 "ForStatement",
	IfStatement:                  "IfStatement",
	LabeledStatement:             "LabeledStatement",
	ReturnStatement:              "ReturnStatement",
	SwitchStatement:              "SwitchStatement",
	SwitchStatementWithDefault:   "SwitchStatementWithDefault",
	ThrowStatement:               "ThrowStatement",
	TryCatchStatement:            "TryCatchStatement",
	TryFinallyStatement:          "TryFinallyStatement",
	VariableDeclarationStatement: "VariableDeclarationStatement",
	WhileStatement:               "WhileStatement",
	WithStatement:                "WithStatement",

	Block:               "Block",
	CatchClause:         "CatchClause",
	Directive:           "Directive",
	FormalParameters:    "FormalParameters",
	FunctionBody:        "FunctionBody",
	FunctionDeclaration: "FunctionDeclaration",
	Script:              "Script",
	SpreadElement:       "SpreadElement",
	Super:               "Super",
	SwitchCase:          "SwitchCase",
	SwitchDefault:       "SwitchDefault",
	TemplateElement:     "TemplateElement",
	SyntaxTemplate:      "SyntaxTemplate",
	VariableDeclaration: "VariableDeclaration",
	VariableDeclarator:  "VariableDeclarator",
	Pragma:              "Pragma",
	EOF:                 "EOF",
}

var _ = [1]struct{}{}[len(kindNames)-int(kindCount)]

func (k Kind) String() string {
	if k < kindCount {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// Valid reports whether k is a constructible kind.
func (k Kind) Valid() bool { return k < kindCount }

// Kinds returns every constructible kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, kindCount)
	for i := range out {
		out[i] = Kind(i)
	}
	return out
}

// ParseKind is the inverse of Kind.String.
func ParseKind(name string) (Kind, bool) {
	for i, candidate := range kindNames {
		if candidate == name {
			return Kind(i), true
		}
	}
	return 0, false
}
