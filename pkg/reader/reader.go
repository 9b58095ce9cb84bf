package reader

import (
	"errors"
	"fmt"
	"sort"
	"unicode/utf8"

	sitter "github.com/tree-sitter/go-tree-sitter"
	javascript "github.com/tree-sitter/tree-sitter-javascript/bindings/go"

	"hygienic/expander-go/pkg/syntax"
)

// Reader turns source text into syntax objects: identifiers, keywords,
// punctuators, literals, delimiter groups and `#`-quoted syntax templates.
// Token boundaries come from the tree-sitter JavaScript grammar; text the
// grammar cannot place (macro-only syntax such as `#` templates) is lexed
// by a fallback scanner.
type Reader struct {
	parser *sitter.Parser
}

// New constructs a reader with the JavaScript grammar loaded.
func New() (*Reader, error) {
	lang := sitter.NewLanguage(javascript.Language())
	if lang == nil {
		return nil, fmt.Errorf("reader: javascript language not available")
	}
	p := sitter.NewParser()
	if err := p.SetLanguage(lang); err != nil {
		return nil, fmt.Errorf("reader: %w", err)
	}
	return &Reader{parser: p}, nil
}

// Close releases parser resources.
func (r *Reader) Close() {
	if r == nil || r.parser == nil {
		return
	}
	r.parser.Close()
}

// Read tokenizes source and groups delimiters.
func (r *Reader) Read(source []byte) ([]*syntax.Syntax, error) {
	if r == nil || r.parser == nil {
		return nil, fmt.Errorf("reader: nil reader")
	}
	return r.read(string(source), syntax.Position{Line: 1, Column: 1})
}

func (r *Reader) read(src string, base syntax.Position) ([]*syntax.Syntax, error) {
	lines := newLineIndex(src, base)
	lexemes, err := r.lex(src)
	if err != nil {
		return nil, lines.wrap(err)
	}
	g := &grouper{reader: r, lines: lines, lexemes: lexemes}
	return g.sequence("", 0)
}

type span struct {
	start  int
	end    int
	kind   syntax.TokenKind
	atomic bool
	skip   bool
}

func (r *Reader) leaves(src string) []span {
	tree := r.parser.Parse([]byte(src), nil)
	if tree == nil {
		return nil
	}
	defer tree.Close()
	var out []span
	collectLeaves(tree.RootNode(), &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].start < out[j].start })
	return out
}

func collectLeaves(node *sitter.Node, out *[]span) {
	if node == nil || node.IsMissing() {
		return
	}
	start, end := int(node.StartByte()), int(node.EndByte())
	if start == end {
		return
	}
	switch node.Kind() {
	case "comment", "hash_bang_line", "html_comment":
		*out = append(*out, span{start: start, end: end, skip: true})
		return
	case "string":
		*out = append(*out, span{start: start, end: end, kind: syntax.String, atomic: true})
		return
	case "template_string":
		*out = append(*out, span{start: start, end: end, kind: syntax.Template, atomic: true})
		return
	case "number":
		*out = append(*out, span{start: start, end: end, kind: syntax.Numeric, atomic: true})
		return
	case "regex":
		*out = append(*out, span{start: start, end: end, kind: syntax.RegExp, atomic: true})
		return
	case "jsx_text":
		return
	}
	if node.ChildCount() == 0 {
		if !node.IsError() {
			*out = append(*out, span{start: start, end: end})
		}
		return
	}
	for i := uint(0); i < node.ChildCount(); i++ {
		collectLeaves(node.Child(i), out)
	}
}

// lex walks the source, preferring grammar leaves and scanning wherever no
// usable leaf starts.
func (r *Reader) lex(src string) ([]lexeme, error) {
	leaves := r.leaves(src)
	var (
		out  []lexeme
		prev *lexeme
		pos  int
		next int
	)
	for {
		var err error
		pos, err = skipTrivia(src, pos)
		if err != nil {
			return nil, err
		}
		if pos >= len(src) {
			return out, nil
		}
		for next < len(leaves) && leaves[next].start < pos {
			next++
		}
		var (
			lx lexeme
			ok bool
		)
		if next < len(leaves) && leaves[next].start == pos {
			leaf := leaves[next]
			if leaf.skip {
				pos = leaf.end
				continue
			}
			lx, ok = leafLexeme(src, leaf)
		}
		if !ok {
			lx, err = scanOne(src, pos, prev)
			if err != nil {
				return nil, err
			}
		}
		out = append(out, lx)
		last := lx
		prev = &last
		pos = lx.end
	}
}

func leafLexeme(src string, leaf span) (lexeme, bool) {
	text := src[leaf.start:leaf.end]
	if leaf.atomic {
		return lexeme{kind: leaf.kind, text: text, start: leaf.start, end: leaf.end}, true
	}
	// private names and pragmas (`#lang`) split into `#` and the name
	if len(text) > 1 && text[0] == '#' {
		return lexeme{kind: syntax.Punctuator, text: "#", start: leaf.start, end: leaf.start + 1}, true
	}
	if isWord(text) {
		return lexeme{kind: classifyWord(text), text: text, start: leaf.start, end: leaf.end}, true
	}
	for _, p := range punctuators {
		if p == text {
			return lexeme{kind: syntax.Punctuator, text: text, start: leaf.start, end: leaf.end}, true
		}
	}
	return lexeme{}, false
}

func isWord(text string) bool {
	for i, r := range text {
		if i == 0 && !isIdentStart(r) || !isIdentPart(r) {
			return false
		}
	}
	return text != ""
}

var closers = map[string]string{"(": ")", "[": "]", "{": "}"}

type grouper struct {
	reader  *Reader
	lines   *lineIndex
	lexemes []lexeme
	pos     int
}

func (g *grouper) sequence(open string, openAt int) ([]*syntax.Syntax, error) {
	var out []*syntax.Syntax
	for g.pos < len(g.lexemes) {
		lx := g.lexemes[g.pos]
		if lx.kind == syntax.Punctuator {
			switch lx.text {
			case "(", "[", "{":
				g.pos++
				inner, err := g.sequence(lx.text, lx.start)
				if err != nil {
					return nil, err
				}
				out = append(out, syntax.NewDelimiter(lx.text, inner).At(g.lines.at(lx.start)))
				continue
			case ")", "]", "}":
				if open == "" || closers[open] != lx.text {
					return nil, g.errorf(lx.start, "unexpected %q", lx.text)
				}
				g.pos++
				return out, nil
			case "#":
				if g.pos+1 < len(g.lexemes) {
					next := g.lexemes[g.pos+1]
					if next.kind == syntax.Template && next.start == lx.end {
						body := next.text[1 : len(next.text)-1]
						inner, err := g.reader.read(body, g.lines.at(next.start+1))
						if err != nil {
							return nil, err
						}
						out = append(out, syntax.NewSyntaxTemplate(inner).At(g.lines.at(lx.start)))
						g.pos += 2
						continue
					}
				}
			}
		}
		out = append(out, g.token(lx))
		g.pos++
	}
	if open != "" {
		return nil, g.errorf(openAt, "unclosed %q", open)
	}
	return out, nil
}

func (g *grouper) token(lx lexeme) *syntax.Syntax {
	value := lx.text
	if lx.kind == syntax.String {
		value = unquote(lx.text)
	}
	return syntax.New(lx.kind, value).At(g.lines.at(lx.start))
}

func (g *grouper) errorf(offset int, format string, args ...any) error {
	pos := g.lines.at(offset)
	return &ParseError{Message: fmt.Sprintf(format, args...), Line: pos.Line, Column: pos.Column}
}

type lineIndex struct {
	starts []int
	base   syntax.Position
	src    string
}

func newLineIndex(src string, base syntax.Position) *lineIndex {
	starts := []int{0}
	for i := 0; i < len(src); i++ {
		if src[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{starts: starts, base: base, src: src}
}

func (l *lineIndex) at(offset int) syntax.Position {
	line := sort.Search(len(l.starts), func(i int) bool { return l.starts[i] > offset }) - 1
	if line < 0 {
		line = 0
	}
	start := l.starts[line]
	if offset > len(l.src) {
		offset = len(l.src)
	}
	col := utf8.RuneCountInString(l.src[start:offset]) + 1
	if line == 0 {
		col += l.base.Column - 1
	}
	return syntax.Position{Line: line + l.base.Line, Column: col}
}

func (l *lineIndex) wrap(err error) error {
	var oe *offsetError
	if errors.As(err, &oe) {
		pos := l.at(oe.offset)
		return &ParseError{Message: oe.message, Line: pos.Line, Column: pos.Column}
	}
	return err
}
