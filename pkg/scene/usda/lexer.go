package usda

import (
	"fmt"
	"strings"

	"github.com/chazu/usdassemble/pkg/asset"
)

// SyntaxError reports text the reader does not understand.
type SyntaxError struct {
	Line int
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("usda: line %d: %s", e.Line, e.Msg)
}

func (e *SyntaxError) Kind() asset.ErrorKind { return asset.KindStructural }

type tokKind int

const (
	tokEOF tokKind = iota
	tokIdent
	tokString
	tokAsset
	tokPath
	tokNumber
	tokPunct
)

func (k tokKind) String() string {
	switch k {
	case tokEOF:
		return "end of file"
	case tokIdent:
		return "identifier"
	case tokString:
		return "string"
	case tokAsset:
		return "asset path"
	case tokPath:
		return "prim path"
	case tokNumber:
		return "number"
	case tokPunct:
		return "punctuation"
	default:
		return fmt.Sprintf("tokKind(%d)", int(k))
	}
}

// token is one lexeme. text is the exact source slice; val is the decoded
// content of strings, asset paths and prim paths.
type token struct {
	kind  tokKind
	text  string
	val   string
	start int
	end   int
	line  int
}

func (t token) is(kind tokKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) String() string {
	if t.kind == tokEOF {
		return t.kind.String()
	}
	return fmt.Sprintf("%s %q", t.kind, t.text)
}

type lexer struct {
	src  string
	pos  int
	line int
	toks []token
}

func lex(src string) ([]token, error) {
	l := &lexer{src: src, line: 1}
	for {
		l.skipSpace()
		if l.pos >= len(l.src) {
			l.toks = append(l.toks, token{kind: tokEOF, start: l.pos, end: l.pos, line: l.line})
			return l.toks, nil
		}
		if err := l.next(); err != nil {
			return nil, err
		}
	}
}

func (l *lexer) errorf(format string, args ...any) error {
	return &SyntaxError{Line: l.line, Msg: fmt.Sprintf(format, args...)}
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		switch c := l.src[l.pos]; {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#':
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func (l *lexer) emit(kind tokKind, start int, val string, line int) {
	l.toks = append(l.toks, token{kind: kind, text: l.src[start:l.pos], val: val, start: start, end: l.pos, line: line})
}

func (l *lexer) next() error {
	start, line := l.pos, l.line
	c := l.src[l.pos]
	switch {
	case c == '"' || c == '\'':
		val, err := l.readString(c)
		if err != nil {
			return err
		}
		l.emit(tokString, start, val, line)
	case c == '@':
		open := "@"
		if strings.HasPrefix(l.src[l.pos:], "@@@") {
			open = "@@@"
		}
		val, err := l.readDelimited(open, open)
		if err != nil {
			return err
		}
		l.emit(tokAsset, start, val, line)
	case c == '<':
		val, err := l.readDelimited("<", ">")
		if err != nil {
			return err
		}
		l.emit(tokPath, start, val, line)
	case isDigit(c) || ((c == '-' || c == '+' || c == '.') && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || strings.IndexByte(".eE+-", l.src[l.pos]) >= 0) {
			l.pos++
		}
		l.emit(tokNumber, start, "", line)
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		l.emit(tokIdent, start, "", line)
	case strings.IndexByte("()[]{}=,;", c) >= 0:
		l.pos++
		l.emit(tokPunct, start, "", line)
	default:
		return l.errorf("unexpected character %q", c)
	}
	return nil
}

func (l *lexer) readDelimited(open, close string) (string, error) {
	l.pos += len(open)
	end := strings.Index(l.src[l.pos:], close)
	if end < 0 {
		return "", l.errorf("unterminated %s", open)
	}
	val := l.src[l.pos : l.pos+end]
	if strings.Contains(val, "\n") && len(open) == 1 {
		return "", l.errorf("newline inside %s...%s", open, close)
	}
	l.line += strings.Count(val, "\n")
	l.pos += end + len(close)
	return val, nil
}

func (l *lexer) readString(q byte) (string, error) {
	triple := strings.Repeat(string(q), 3)
	if strings.HasPrefix(l.src[l.pos:], triple) {
		return l.readDelimited(triple, triple)
	}
	l.pos++
	var b strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == q:
			l.pos++
			return b.String(), nil
		case c == '\n':
			return "", l.errorf("newline in string")
		case c == '\\' && l.pos+1 < len(l.src):
			l.pos++
			switch e := l.src[l.pos]; e {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				b.WriteByte(e)
			}
		default:
			b.WriteByte(c)
		}
		l.pos++
	}
	return "", l.errorf("unterminated string")
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == ':' || c == '.'
}
