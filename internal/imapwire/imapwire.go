// Package imapwire implements the IMAP wire protocol.
//
// The IMAP wire protocol is defined in RFC 3501 section 4 and RFC 9051
// section 4. This package only contains the pieces needed to decode FETCH
// responses and to encode the requests and fixtures around them.
package imapwire

import (
	"unicode"
)

// IsAtomChar returns true if ch is an ATOM-CHAR.
func IsAtomChar(ch byte) bool {
	switch ch {
	case '(', ')', '{', ' ', '%', '*', '"', '\\', ']':
		return false
	default:
		return !unicode.IsControl(rune(ch))
	}
}

func isSpace(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}
