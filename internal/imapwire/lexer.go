package imapwire

import (
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// TokenKind identifies the rule which produced a Token.
type TokenKind int

const (
	TokenLeftParen TokenKind = 1 + iota
	TokenRightParen
	TokenString
	TokenNIL
	TokenDataItem
	TokenNumber
	TokenLiteralMarker
	TokenFlag
)

var tokenKindNames = map[TokenKind]string{
	TokenLeftParen:     "left_paren",
	TokenRightParen:    "right_paren",
	TokenString:        "string",
	TokenNIL:           "nil",
	TokenDataItem:      "data_item",
	TokenNumber:        "number",
	TokenLiteralMarker: "literal_marker",
	TokenFlag:          "flag",
}

func (kind TokenKind) String() string {
	if name, ok := tokenKindNames[kind]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(kind))
}

// Token is a lexical unit of a FETCH response.
//
// For strings, Value holds the unescaped contents without the surrounding
// quotes. For literal markers, Value holds the announced byte count. For all
// other kinds, Value is the matched text.
type Token struct {
	Kind   TokenKind
	Value  string
	Offset int
}

func (tok Token) String() string {
	return fmt.Sprintf("%v %q", tok.Kind, tok.Value)
}

// LiteralSize returns the size announced by a literal marker.
func (tok Token) LiteralSize() (int64, error) {
	if tok.Kind != TokenLiteralMarker {
		return 0, fmt.Errorf("imapwire: %v is not a literal marker", tok.Kind)
	}
	return strconv.ParseInt(tok.Value, 10, 64)
}

// LexError is returned when no rule matches at the current position.
type LexError struct {
	Offset    int
	Remainder string
}

func (err *LexError) Error() string {
	rem := err.Remainder
	if len(rem) > 32 {
		rem = rem[:32] + "..."
	}
	return fmt.Sprintf("imapwire: unexpected input at offset %v: %q", err.Offset, rem)
}

type rule struct {
	kind TokenKind
	re   *regexp.Regexp
	// The match must not be directly followed by an ATOM-CHAR.
	atom bool
	// The token may be continued by more input.
	extendable bool
	// Matches a prefix of this token cut by the end of the input.
	incomplete *regexp.Regexp
}

// Order matters: the first matching rule wins, flag is the catch-all.
var rules = []rule{
	{kind: TokenLeftParen, re: regexp.MustCompile(`^\(`)},
	{kind: TokenRightParen, re: regexp.MustCompile(`^\)`)},
	{
		kind:       TokenLiteralMarker,
		re:         regexp.MustCompile(`^\{([0-9]+)\}`),
		incomplete: regexp.MustCompile(`^\{[0-9]*$`),
	},
	{
		kind:       TokenString,
		re:         regexp.MustCompile(`^"((?:[^"\\\r\n]|\\[^\r\n])*)"`),
		incomplete: regexp.MustCompile(`^"(?:[^"\\\r\n]|\\[^\r\n])*\\?$`),
	},
	{kind: TokenNIL, re: regexp.MustCompile(`^NIL`), atom: true, extendable: true},
	{kind: TokenNumber, re: regexp.MustCompile(`^[0-9]+`), atom: true, extendable: true},
	{
		kind:       TokenDataItem,
		re:         regexp.MustCompile(`^[A-Z][A-Z0-9.\-]*(?:\[[^\]\r\n]*\])?(?:<[0-9]+>)?`),
		atom:       true,
		extendable: true,
		incomplete: regexp.MustCompile(`^[A-Z][A-Z0-9.\-]*(?:\[[^\]\r\n]*|\[[^\]\r\n]*\]<[0-9]*)$`),
	},
	{
		kind:       TokenFlag,
		re:         regexp.MustCompile(`^(?:\\\*|\\?[^\x00-\x20()"{}%*\\\]\x7f]+)`),
		extendable: true,
		incomplete: regexp.MustCompile(`^\\$`),
	},
}

// Lexer splits text into tokens.
//
// In partial mode, the lexer stops before a token which may continue past
// the end of text: Next returns io.EOF and Remainder returns the bytes which
// need to be prepended to the next piece of input.
type Lexer struct {
	text    []byte
	pos     int
	partial bool
}

// NewLexer creates a new lexer reading text.
func NewLexer(text []byte, partial bool) *Lexer {
	return &Lexer{text: text, partial: partial}
}

// Next returns the next token. io.EOF is returned once the input is
// exhausted.
func (l *Lexer) Next() (Token, error) {
	for l.pos < len(l.text) && isSpace(l.text[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.text) {
		return Token{}, io.EOF
	}

	rest := l.text[l.pos:]
	if l.partial {
		for _, r := range rules {
			if r.incomplete != nil && r.incomplete.Match(rest) {
				return Token{}, io.EOF
			}
		}
	}

	for _, r := range rules {
		m := r.re.FindSubmatchIndex(rest)
		if m == nil {
			continue
		}
		end := m[1]
		if r.atom && end < len(rest) && IsAtomChar(rest[end]) {
			continue
		}
		if l.partial && r.extendable && end == len(rest) {
			return Token{}, io.EOF
		}

		tok := Token{Kind: r.kind, Offset: l.pos}
		switch r.kind {
		case TokenString:
			tok.Value = unquote(rest[m[2]:m[3]])
		case TokenLiteralMarker:
			tok.Value = string(rest[m[2]:m[3]])
		default:
			tok.Value = string(rest[:end])
		}
		l.pos += end
		return tok, nil
	}

	return Token{}, &LexError{Offset: l.pos, Remainder: string(rest)}
}

// Offset returns the current position in the text.
func (l *Lexer) Offset() int {
	return l.pos
}

// Remainder returns the text which hasn't been consumed yet.
func (l *Lexer) Remainder() []byte {
	return l.text[l.pos:]
}

// Scan returns all tokens in text.
func Scan(text []byte) ([]Token, error) {
	l := NewLexer(text, false)
	var tokens []Token
	for {
		tok, err := l.Next()
		if err == io.EOF {
			return tokens, nil
		} else if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
	}
}

func unquote(b []byte) string {
	if !strings.ContainsRune(string(b), '\\') {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b))
	for i := 0; i < len(b); i++ {
		if b[i] == '\\' && i+1 < len(b) {
			i++
		}
		sb.WriteByte(b[i])
	}
	return sb.String()
}
