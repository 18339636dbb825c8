// Package imapfetch decodes IMAP4 FETCH responses.
//
// The FETCH response syntax is defined in RFC 3501 section 7.4.2 and RFC 9051
// section 7.5.2. A Parser consumes the response as a sequence of chunks, as
// handed over by an IMAP client, and produces a FetchResult keyed by message
// UID. BODYSTRUCTURE data items are decoded into a BodyStructure tree which
// can be sorted into displayable contents, inline images and attachments with
// Classify.
package imapfetch

// Flag is a message flag.
//
// Message flags are defined in RFC 9051 section 2.3.2.
type Flag string

const (
	// System flags
	FlagSeen     Flag = "\\Seen"
	FlagAnswered Flag = "\\Answered"
	FlagFlagged  Flag = "\\Flagged"
	FlagDeleted  Flag = "\\Deleted"
	FlagDraft    Flag = "\\Draft"
	FlagRecent   Flag = "\\Recent" // IMAP4rev1 only

	// Widely used flags
	FlagForwarded Flag = "$Forwarded"
	FlagMDNSent   Flag = "$MDNSent" // Message Disposition Notification sent
	FlagJunk      Flag = "$Junk"
	FlagNotJunk   Flag = "$NotJunk"
	FlagPhishing  Flag = "$Phishing"
	FlagImportant Flag = "$Important" // RFC 8457

	// Permanent flags
	FlagWildcard Flag = "\\*"
)
