package imapfetch

// Envelope is the envelope structure of a message.
type Envelope struct {
	Date      string // see net/mail.ParseDate
	Subject   string
	From      []Address
	Sender    []Address
	ReplyTo   []Address
	To        []Address
	Cc        []Address
	Bcc       []Address
	InReplyTo string
	MessageID string
}

func (*Envelope) fetchValue() {}

// Address represents a sender or recipient of a message.
type Address struct {
	Name    string
	Mailbox string
	Host    string
}

// Addr returns the e-mail address in the form "foo@example.org".
//
// If the address is a start or end of group, the empty string is returned.
func (addr *Address) Addr() string {
	if addr.Mailbox == "" || addr.Host == "" {
		return ""
	}
	return addr.Mailbox + "@" + addr.Host
}

// IsGroupStart returns true if this address is a start of group marker.
//
// In that case, Mailbox contains the group name phrase.
func (addr *Address) IsGroupStart() bool {
	return addr.Host == "" && addr.Mailbox != ""
}

// IsGroupEnd returns true if this address is a end of group marker.
func (addr *Address) IsGroupEnd() bool {
	return addr.Host == "" && addr.Mailbox == ""
}

func buildEnvelope(fields rawList, options *Options) *Envelope {
	var env Envelope
	env.Date = fields.str(0)
	env.Subject = options.decodeText(fields.str(1))

	addrLists := []*[]Address{
		&env.From,
		&env.Sender,
		&env.ReplyTo,
		&env.To,
		&env.Cc,
		&env.Bcc,
	}
	for i, out := range addrLists {
		*out = buildAddressList(fields.at(2+i), options)
	}

	env.InReplyTo = fields.str(8)
	env.MessageID = fields.str(9)
	return &env
}

// buildAddressList accepts both plain lists and part descriptors: inside
// BODYSTRUCTURE, addresses of a message/rfc822 envelope end up wrapped like
// MIME parts.
func buildAddressList(item rawItem, options *Options) []Address {
	items := fieldsOf(item)
	if len(items) == 0 {
		return nil
	}
	l := make([]Address, 0, len(items))
	for _, addrItem := range items {
		fields := fieldsOf(addrItem)
		if fields == nil {
			continue
		}
		addr := Address{
			Mailbox: fields.str(2),
			Host:    fields.str(3),
		}
		addr.Name = options.decodeText(fields.str(0))
		l = append(l, addr)
	}
	return l
}
