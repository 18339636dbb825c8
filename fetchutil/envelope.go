package fetchutil

import (
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"

	"github.com/emersion/go-imapfetch"
)

func headerAddressList(h mail.Header, key string) []imapfetch.Address {
	addrs, _ := h.AddressList(key)
	if len(addrs) == 0 {
		return nil
	}

	list := make([]imapfetch.Address, len(addrs))
	for i, a := range addrs {
		mailbox, host, _ := strings.Cut(a.Address, "@")
		list[i] = imapfetch.Address{
			Name:    a.Name,
			Mailbox: mailbox,
			Host:    host,
		}
	}
	return list
}

// Envelope returns a message's envelope from its header.
//
// Date and Subject are copied verbatim, as an IMAP server would.
func Envelope(h message.Header) *imapfetch.Envelope {
	mh := mail.Header{Header: h}

	return &imapfetch.Envelope{
		Date:      mh.Get("Date"),
		Subject:   mh.Get("Subject"),
		From:      headerAddressList(mh, "From"),
		Sender:    headerAddressList(mh, "Sender"),
		ReplyTo:   headerAddressList(mh, "Reply-To"),
		To:        headerAddressList(mh, "To"),
		Cc:        headerAddressList(mh, "Cc"),
		Bcc:       headerAddressList(mh, "Bcc"),
		InReplyTo: mh.Get("In-Reply-To"),
		MessageID: mh.Get("Message-Id"),
	}
}
