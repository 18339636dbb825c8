package imapfetch

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseStatusResponse(t *testing.T) {
	tests := []struct {
		in   string
		want StatusResponse
	}{
		{"OK FETCH completed", StatusResponse{Type: StatusResponseTypeOK, Text: "FETCH completed"}},
		{"no [UNAVAILABLE] Try again", StatusResponse{Type: StatusResponseTypeNo, Code: ResponseCodeUnavailable, Text: "Try again"}},
		{"BAD [PARSE foo] Bad syntax", StatusResponse{Type: StatusResponseTypeBad, Code: ResponseCodeParse, Text: "Bad syntax"}},
		{"BYE", StatusResponse{Type: StatusResponseTypeBye}},
		{"NO [unterminated", StatusResponse{Type: StatusResponseTypeNo, Text: "[unterminated"}},
	}
	for _, tc := range tests {
		assert.Equal(t, &tc.want, parseStatusResponse(tc.in), tc.in)
	}
}

func TestError_Error(t *testing.T) {
	err := &Error{Type: StatusResponseTypeBad}
	assert.Equal(t, "imap: BAD <unknown>", err.Error())

	err = &Error{Type: StatusResponseTypeNo, Code: ResponseCodeLimit, Text: "Too many"}
	assert.Equal(t, "imap: NO [LIMIT] Too many", err.Error())
}
