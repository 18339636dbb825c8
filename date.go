package imapfetch

import (
	"fmt"
	"net/mail"
	"strconv"
	"strings"
	"time"
)

// DateTimeLayout is the layout of INTERNALDATE values.
//
// Described in RFC 9051 section 9 (date-time).
const DateTimeLayout = "_2-Jan-2006 15:04:05 -0700"

// Layouts seen in the wild which net/mail rejects: a trailing zone comment
// and two-digit years.
var envelopeDateLayouts = [...]string{
	"Mon, 2 Jan 2006 15:04:05 -0700 (MST)",
	"2 Jan 2006 15:04:05 -0700 (MST)",
	"Mon, 2 Jan 06 15:04:05 -0700",
	"Mon, 2 Jan 06 15:04:05 MST",
	"2 Jan 06 15:04:05 -0700",
	"2 Jan 06 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04 -0700",
}

// InternalDate parses the INTERNALDATE data item.
func (msg Message) InternalDate() (time.Time, error) {
	s, ok := msg.String("INTERNALDATE")
	if !ok {
		return time.Time{}, fmt.Errorf("imapfetch: missing INTERNALDATE")
	}
	t, err := time.Parse(DateTimeLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("imapfetch: invalid INTERNALDATE %q: %v", s, err)
	}
	return t, nil
}

// RFC822Size returns the RFC822.SIZE data item.
func (msg Message) RFC822Size() (int64, bool) {
	s, ok := msg.String("RFC822.SIZE")
	if !ok {
		return 0, false
	}
	size, err := strconv.ParseInt(s, 10, 64)
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

// ParseDate parses the envelope's Date field.
func (env *Envelope) ParseDate() (time.Time, error) {
	s := strings.TrimSpace(env.Date)
	if t, err := mail.ParseDate(s); err == nil {
		return t, nil
	}
	for _, layout := range envelopeDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("imapfetch: date %q could not be parsed", s)
}
