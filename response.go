package imapfetch

import (
	"fmt"
	"strings"
)

// StatusResponseType is a generic status response type.
type StatusResponseType string

const (
	StatusResponseTypeOK  StatusResponseType = "OK"
	StatusResponseTypeNo  StatusResponseType = "NO"
	StatusResponseTypeBad StatusResponseType = "BAD"
	StatusResponseTypeBye StatusResponseType = "BYE"
)

// ResponseCode is a response code.
type ResponseCode string

const (
	ResponseCodeAlert       ResponseCode = "ALERT"
	ResponseCodeCannot      ResponseCode = "CANNOT"
	ResponseCodeClientBug   ResponseCode = "CLIENTBUG"
	ResponseCodeExpired     ResponseCode = "EXPIRED"
	ResponseCodeLimit       ResponseCode = "LIMIT"
	ResponseCodeNonExistent ResponseCode = "NONEXISTENT"
	ResponseCodeParse       ResponseCode = "PARSE"
	ResponseCodeServerBug   ResponseCode = "SERVERBUG"
	ResponseCodeUnavailable ResponseCode = "UNAVAILABLE"
	ResponseCodeUnknownCTE  ResponseCode = "UNKNOWN-CTE"
)

// StatusResponse is a generic status response.
//
// See RFC 9051 section 7.1.
type StatusResponse struct {
	Type StatusResponseType
	Code ResponseCode
	Text string
}

// Error is an IMAP error caused by a status response.
type Error StatusResponse

var _ error = (*Error)(nil)

// Error implements the error interface.
func (err *Error) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "imap: %v", err.Type)
	if err.Code != "" {
		fmt.Fprintf(&sb, " [%v]", err.Code)
	}
	text := err.Text
	if text == "" {
		text = "<unknown>"
	}
	fmt.Fprintf(&sb, " %v", text)
	return sb.String()
}

// parseStatusResponse parses the part of a status response line following
// the tag, e.g. "NO [UNAVAILABLE] Try again later".
func parseStatusResponse(s string) *StatusResponse {
	typ, text, _ := strings.Cut(s, " ")
	resp := &StatusResponse{Type: StatusResponseType(strings.ToUpper(typ))}
	if strings.HasPrefix(text, "[") {
		if i := strings.IndexByte(text, ']'); i > 0 {
			code, _, _ := strings.Cut(text[1:i], " ")
			resp.Code = ResponseCode(strings.ToUpper(code))
			text = strings.TrimLeft(text[i+1:], " ")
		}
	}
	resp.Text = text
	return resp
}
