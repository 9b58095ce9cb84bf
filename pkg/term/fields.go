package term

// Shape describes what a field may hold.
type Shape uint8

const (
	ShapeTerm       Shape = iota // *Term or nil
	ShapeTerms                   // []*Term
	ShapeSyntax                  // *syntax.Syntax or nil
	ShapeSyntaxList              // []*syntax.Syntax
	ShapeLeaf                    // string, float64, bool or nil
)

var shapeNames = [...]string{
	ShapeTerm:       "term",
	ShapeTerms:      "terms",
	ShapeSyntax:     "syntax",
	ShapeSyntaxList: "syntax list",
	ShapeLeaf:       "leaf",
}

func (s Shape) String() string {
	if int(s) < len(shapeNames) {
		return shapeNames[s]
	}
	return "unknown"
}

// FieldSpec names one field of a kind.
type FieldSpec struct {
	Name  string
	Shape Shape
}

func one(name string) FieldSpec  { return FieldSpec{name, ShapeTerm} }
func many(name string) FieldSpec { return FieldSpec{name, ShapeTerms} }
func tok(name string) FieldSpec  { return FieldSpec{name, ShapeSyntax} }
func toks(name string) FieldSpec { return FieldSpec{name, ShapeSyntaxList} }
func leaf(name string) FieldSpec { return FieldSpec{name, ShapeLeaf} }

var none = []FieldSpec{}

// fieldTable lists the ordered fields of every kind. Kinds without fields
// map to an empty, non-nil slice.
var fieldTable = [...][]FieldSpec{
	BindingWithDefault:        {one("binding"), one("init")},
	BindingIdentifier:         {tok("name")},
	ArrayBinding:              {many("elements"), one("restElement")},
	ObjectBinding:             {many("properties")},
	BindingPropertyIdentifier: {one("binding"), one("init")},
	BindingPropertyProperty:   {one("name"), one("binding")},

	ClassExpression:  {one("name"), one("super"), many("elements")},
	ClassDeclaration: {one("name"), one("super"), many("elements")},
	ClassElement:     {leaf("isStatic"), one("method")},

	Module:          {many("directives"), many("items")},
	Import:          {tok("moduleSpecifier"), one("defaultBinding"), many("namedImports"), leaf("forSyntax")},
	ImportNamespace: {tok("moduleSpecifier"), one("defaultBinding"), one("namespaceBinding"), leaf("forSyntax")},
	ImportSpecifier: {tok("name"), one("binding")},
	ExportAllFrom:   {tok("moduleSpecifier")},
	ExportFrom:      {many("namedExports"), tok("moduleSpecifier")},
	Export:          {one("declaration")},
	ExportDefault:   {one("body")},
	ExportSpecifier: {tok("name"), tok("exportedName")},

	Method:               {one("name"), one("body"), leaf("isGenerator"), one("params")},
	Getter:               {one("name"), one("body")},
	Setter:               {one("name"), one("body"), one("param")},
	DataProperty:         {one("name"), one("expression")},
	ShorthandProperty:    {one("expression")},
	ComputedPropertyName: {one("expression")},
	StaticPropertyName:   {tok("value")},

	LiteralBooleanExpression:  {leaf("value")},
	LiteralInfinityExpression: none,
	LiteralNullExpression:     none,
	LiteralNumericExpression:  {leaf("value")},
	LiteralRegExpExpression:   {leaf("pattern"), leaf("flags")},
	LiteralStringExpression:   {leaf("value")},

	ArrayExpression:              {many("elements")},
	ArrowExpression:              {one("params"), one("body")},
	AssignmentExpression:         {one("binding"), one("expression")},
	BinaryExpression:             {leaf("operator"), one("left"), one("right")},
	CallExpression:               {one("callee"), many("arguments")},
	ComputedAssignmentExpression: {leaf("operator"), one("binding"), one("expression")},
	ComputedMemberExpression:     {one("object"), one("expression")},
	ConditionalExpression:        {one("test"), one("consequent"), one("alternate")},
	FunctionExpression:           {one("name"), leaf("isGenerator"), one("params"), one("body")},
	IdentifierExpression:         {tok("name")},
	NewExpression:                {one("callee"), many("arguments")},
	NewTargetExpression:          none,
	ObjectExpression:             {many("properties")},
	UnaryExpression:              {leaf("operator"), one("operand")},
	StaticMemberExpression:       {one("object"), tok("property")},
	TemplateExpression:           {one("tag"), many("elements")},
	ThisExpression:               {tok("stx")},
	UpdateExpression:             {leaf("isPrefix"), leaf("operator"), one("operand")},
	YieldExpression:              {one("expression")},
	YieldGeneratorExpression:     {one("expression")},
	ParenthesizedExpression:      {one("inner")},

	BlockStatement:               {one("block")},
	BreakStatement:               {tok("label")},
	ContinueStatement:            {tok("label")},
	DebuggerStatement:            none,
	DoWhileStatement:             {one("body"), one("test")},
	EmptyStatement:               none,
	ExpressionStatement:          {one("expression")},
	ForInStatement:               {one("left"), one("right"), one("body")},
	ForOfStatement:               {one("left"), one("right"), one("body")},
	ForStatement:                 {one("init"), one("test"), one("update"), one("body")},
	IfStatement:                  {one("test"), one("consequent"), one("alternate")},
	LabeledStatement:             {tok("label"), one("body")},
	ReturnStatement:              {one("expression")},
	SwitchStatement:              {one("discriminant"), many("cases")},
	SwitchStatementWithDefault:   {one("discriminant"), many("preDefaultCases"), one("defaultCase"), many("postDefaultCases")},
	ThrowStatement:               {one("expression")},
	TryCatchStatement:            {one("body"), one("catchClause")},
	TryFinallyStatement:          {one("body"), one("catchClause"), one("finalizer")},
	VariableDeclarationStatement: {one("declaration")},
	WhileStatement:               {one("test"), one("body")},
	WithStatement:                {one("object"), one("body")},

	Block:               {many("statements")},
	CatchClause:         {one("binding"), one("body")},
	Directive:           {leaf("rawValue")},
	FormalParameters:    {many("items"), one("rest")},
	FunctionBody:        {many("directives"), many("statements")},
	FunctionDeclaration: {one("name"), leaf("isGenerator"), one("params"), one("body")},
	Script:              {many("directives"), many("statements")},
	SpreadElement:       {one("expression")},
	Super:               none,
	SwitchCase:          {one("test"), many("consequent")},
	SwitchDefault:       {many("consequent")},
	TemplateElement:     {tok("rawValue")},
	SyntaxTemplate:      {toks("template")},
	VariableDeclaration: {leaf("kind"), many("declarators")},
	VariableDeclarator:  {one("binding"), one("init")},
	Pragma:              {tok("kind"), toks("items")},
	EOF:                 none,
}

var _ = [1]struct{}{}[len(fieldTable)-int(kindCount)]

// Fields returns the ordered field specs of kind.
func Fields(kind Kind) ([]FieldSpec, error) {
	if !kind.Valid() || fieldTable[kind] == nil {
		return nil, &StructuralError{Kind: kind, Reason: "unknown kind"}
	}
	out := make([]FieldSpec, len(fieldTable[kind]))
	copy(out, fieldTable[kind])
	return out, nil
}

// FieldNames returns just the names from Fields.
func FieldNames(kind Kind) ([]string, error) {
	specs, err := Fields(kind)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(specs))
	for i, spec := range specs {
		names[i] = spec.Name
	}
	return names, nil
}

func fieldIndex(kind Kind, name string) int {
	if !kind.Valid() {
		return -1
	}
	for i, spec := range fieldTable[kind] {
		if spec.Name == name {
			return i
		}
	}
	return -1
}
