package reader

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"hygienic/expander-go/pkg/syntax"
)

// lexeme is one token before delimiter grouping.
type lexeme struct {
	kind  syntax.TokenKind
	text  string
	start int
	end   int
}

var keywords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true,
	"do": true, "else": true, "export": true, "extends": true, "finally": true,
	"for": true, "function": true, "if": true, "import": true, "in": true,
	"instanceof": true, "new": true, "return": true, "super": true,
	"switch": true, "this": true, "throw": true, "try": true, "typeof": true,
	"var": true, "void": true, "while": true, "with": true,
	"null": true, "true": true, "false": true,
}

// punctuators ordered longest first so the scanner can take the first match.
var punctuators = []string{
	">>>=",
	"...", "===", "!==", "**=", "<<=", ">>=", ">>>", "&&=", "||=", "??=",
	"=>", "==", "!=", "<=", ">=", "&&", "||", "??", "?.", "++", "--",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "<<", ">>", "**",
	"{", "}", "(", ")", "[", "]", ";", ",", "<", ">", "+", "-", "*", "/",
	"%", "&", "|", "^", "!", "~", "?", ":", "=", ".", "@", "#",
}

func isIdentStart(r rune) bool {
	return r == '_' || r == '$' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r > utf8.RuneSelf
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || r >= '0' && r <= '9'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// classifyWord picks identifier or keyword for an identifier-shaped lexeme.
func classifyWord(text string) syntax.TokenKind {
	if keywords[text] {
		return syntax.Keyword
	}
	return syntax.Identifier
}

// regexAllowed reports whether a '/' after prev starts a regular expression.
func regexAllowed(prev *lexeme) bool {
	if prev == nil {
		return true
	}
	switch prev.kind {
	case syntax.Punctuator:
		return prev.text != ")" && prev.text != "]" && prev.text != "}"
	case syntax.Keyword:
		switch prev.text {
		case "this", "super", "null", "true", "false":
			return false
		}
		return true
	}
	return false
}

// skipTrivia advances past whitespace and comments.
func skipTrivia(src string, pos int) (int, error) {
	for pos < len(src) {
		switch {
		case src[pos] == ' ' || src[pos] == '\t' || src[pos] == '\n' || src[pos] == '\r' || src[pos] == '\f' || src[pos] == '\v':
			pos++
		case strings.HasPrefix(src[pos:], "//"):
			end := strings.IndexByte(src[pos:], '\n')
			if end < 0 {
				return len(src), nil
			}
			pos += end + 1
		case strings.HasPrefix(src[pos:], "/*"):
			end := strings.Index(src[pos+2:], "*/")
			if end < 0 {
				return pos, errAt(pos, "unterminated comment")
			}
			pos += end + 4
		default:
			r, size := utf8.DecodeRuneInString(src[pos:])
			if r == 0xFEFF || r == 0x00A0 || r == 0x2028 || r == 0x2029 {
				pos += size
				continue
			}
			return pos, nil
		}
	}
	return pos, nil
}

// scanOne lexes the token starting at pos, which must not be trivia.
func scanOne(src string, pos int, prev *lexeme) (lexeme, error) {
	c := src[pos]
	switch {
	case c == '"' || c == '\'':
		end, err := scanString(src, pos)
		if err != nil {
			return lexeme{}, err
		}
		return lexeme{kind: syntax.String, text: src[pos:end], start: pos, end: end}, nil
	case c == '`':
		end, err := scanTemplate(src, pos)
		if err != nil {
			return lexeme{}, err
		}
		return lexeme{kind: syntax.Template, text: src[pos:end], start: pos, end: end}, nil
	case isDigit(c) || c == '.' && pos+1 < len(src) && isDigit(src[pos+1]):
		end := scanNumber(src, pos)
		return lexeme{kind: syntax.Numeric, text: src[pos:end], start: pos, end: end}, nil
	case c == '/' && regexAllowed(prev):
		if end, ok := scanRegExp(src, pos); ok {
			return lexeme{kind: syntax.RegExp, text: src[pos:end], start: pos, end: end}, nil
		}
	}
	r, size := utf8.DecodeRuneInString(src[pos:])
	if isIdentStart(r) {
		end := pos + size
		for end < len(src) {
			r, size = utf8.DecodeRuneInString(src[end:])
			if !isIdentPart(r) {
				break
			}
			end += size
		}
		text := src[pos:end]
		return lexeme{kind: classifyWord(text), text: text, start: pos, end: end}, nil
	}
	for _, p := range punctuators {
		if strings.HasPrefix(src[pos:], p) {
			return lexeme{kind: syntax.Punctuator, text: p, start: pos, end: pos + len(p)}, nil
		}
	}
	return lexeme{}, errAt(pos, "unexpected character %q", r)
}

func scanString(src string, pos int) (int, error) {
	quote := src[pos]
	for i := pos + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i + 1, nil
		case '\n':
			return 0, errAt(pos, "unterminated string literal")
		}
	}
	return 0, errAt(pos, "unterminated string literal")
}

// scanTemplate returns the offset just past the closing backtick, skipping
// over substitutions and templates nested inside them.
func scanTemplate(src string, pos int) (int, error) {
	for i := pos + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '`':
			return i + 1, nil
		case '$':
			if i+1 < len(src) && src[i+1] == '{' {
				end, err := scanBalanced(src, i+1)
				if err != nil {
					return 0, err
				}
				i = end - 1
			}
		}
	}
	return 0, errAt(pos, "unterminated template literal")
}

// scanBalanced skips a brace group starting at pos.
func scanBalanced(src string, pos int) (int, error) {
	depth := 0
	for i := pos; i < len(src); i++ {
		switch src[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i + 1, nil
			}
		case '"', '\'':
			end, err := scanString(src, i)
			if err != nil {
				return 0, err
			}
			i = end - 1
		case '`':
			end, err := scanTemplate(src, i)
			if err != nil {
				return 0, err
			}
			i = end - 1
		}
	}
	return 0, errAt(pos, "unterminated template substitution")
}

func scanNumber(src string, pos int) int {
	hex := strings.HasPrefix(src[pos:], "0x") || strings.HasPrefix(src[pos:], "0X")
	i := pos
	for i < len(src) {
		c := src[i]
		switch {
		case isDigit(c) || c == '_' || c == '.' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			i++
		case (c == '+' || c == '-') && !hex && i > pos && (src[i-1] == 'e' || src[i-1] == 'E'):
			i++
		default:
			return i
		}
	}
	return i
}

func scanRegExp(src string, pos int) (int, bool) {
	inClass := false
	for i := pos + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case '\n':
			return 0, false
		case '[':
			inClass = true
		case ']':
			inClass = false
		case '/':
			if inClass {
				continue
			}
			end := i + 1
			for end < len(src) && (src[end] >= 'a' && src[end] <= 'z') {
				end++
			}
			return end, true
		}
	}
	return 0, false
}

// unquote decodes a string literal's contents.
func unquote(text string) string {
	if len(text) < 2 {
		return text
	}
	body := text[1 : len(text)-1]
	if !strings.Contains(body, `\`) {
		return body
	}
	var b strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' || i+1 == len(body) {
			b.WriteByte(c)
			continue
		}
		i++
		switch body[i] {
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'v':
			b.WriteByte('\v')
		case '0':
			b.WriteByte(0)
		case '\n':
		case 'x':
			if i+2 < len(body) {
				if n, err := strconv.ParseUint(body[i+1:i+3], 16, 8); err == nil {
					b.WriteRune(rune(n))
					i += 2
					continue
				}
			}
			b.WriteByte('x')
		case 'u':
			if i+4 < len(body) {
				if n, err := strconv.ParseUint(body[i+1:i+5], 16, 16); err == nil {
					b.WriteRune(rune(n))
					i += 4
					continue
				}
			}
			b.WriteByte('u')
		default:
			b.WriteByte(body[i])
		}
	}
	return b.String()
}
