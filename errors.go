package imapfetch

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind describes the class of a ParseError.
type ErrorKind int

const (
	// ErrorKindLex is reported when no token matches the input.
	ErrorKindLex ErrorKind = 1 + iota
	// ErrorKindUnexpectedToken is reported when a valid token violates the
	// grammar at its position.
	ErrorKindUnexpectedToken
	// ErrorKindEncoding is reported when a string cannot be decoded.
	ErrorKindEncoding
)

func (kind ErrorKind) String() string {
	switch kind {
	case ErrorKindLex:
		return "lex error"
	case ErrorKindUnexpectedToken:
		return "unexpected token"
	case ErrorKindEncoding:
		return "encoding error"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(kind))
	}
}

var (
	ErrLex             = errors.New("imapfetch: lex error")
	ErrUnexpectedToken = errors.New("imapfetch: unexpected token")
	ErrEncoding        = errors.New("imapfetch: encoding error")
)

// ParseError is returned by Parser.Parse when a FETCH response cannot be
// decoded. The input bytes are fixed, so retrying yields the same error.
type ParseError struct {
	Kind ErrorKind
	// Offset is the position in the logical byte stream, across chunks.
	Offset int64
	// TokenKind and Token describe the offending token, if any.
	TokenKind string
	Token     string
	// Expected describes what the parser was waiting for.
	Expected string
	// Remainder holds the unmatched input for lex errors.
	Remainder string
	// Err is the underlying error, if any.
	Err error
}

func (err *ParseError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "imapfetch: %v at offset %v", err.Kind, err.Offset)
	if err.TokenKind != "" {
		fmt.Fprintf(&sb, ": got %v %q", err.TokenKind, err.Token)
	}
	if err.Expected != "" {
		fmt.Fprintf(&sb, ", expected %v", err.Expected)
	}
	if err.Remainder != "" {
		rem := err.Remainder
		if len(rem) > 32 {
			rem = rem[:32] + "..."
		}
		fmt.Fprintf(&sb, ": %q", rem)
	}
	if err.Err != nil {
		fmt.Fprintf(&sb, ": %v", err.Err)
	}
	return sb.String()
}

func (err *ParseError) Unwrap() error {
	return err.Err
}

// Is makes errors.Is match the sentinel error of the kind.
func (err *ParseError) Is(target error) bool {
	switch target {
	case ErrLex:
		return err.Kind == ErrorKindLex
	case ErrUnexpectedToken:
		return err.Kind == ErrorKindUnexpectedToken
	case ErrEncoding:
		return err.Kind == ErrorKindEncoding
	default:
		return false
	}
}

// IsParseError returns true if the provided error is a parse error produced by
// Parser.
func IsParseError(err error) bool {
	var parseErr *ParseError
	return errors.As(err, &parseErr)
}
