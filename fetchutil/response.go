package fetchutil

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"

	"github.com/emersion/go-imapfetch"
	"github.com/emersion/go-imapfetch/internal/imapwire"
)

// ResponseWriter writes a single untagged FETCH response for a message.
//
// ResponseWriter.Close must be called.
type ResponseWriter struct {
	enc     *imapwire.Encoder
	hasItem bool
}

// NewResponseWriter starts a FETCH response for the message with the provided
// sequence number.
func NewResponseWriter(w io.Writer, seqNum uint32) *ResponseWriter {
	enc := imapwire.NewEncoder(bufio.NewWriter(w))
	enc.Atom("*").SP().Number(seqNum).SP().Atom("FETCH").SP().Special('(')
	return &ResponseWriter{enc: enc}
}

// EnableUTF8 allows non-ASCII strings to be sent as quoted strings instead of
// literals. It must only be used once the client has enabled UTF8=ACCEPT
// (RFC 9051 section 6.3.1).
func (w *ResponseWriter) EnableUTF8() {
	w.enc.QuotedUTF8 = true
}

func (w *ResponseWriter) writeItemSep() {
	if w.hasItem {
		w.enc.SP()
	}
	w.hasItem = true
}

// WriteUID writes the message's UID.
func (w *ResponseWriter) WriteUID(uid uint32) {
	w.writeItemSep()
	w.enc.Atom("UID").SP().Number(uid)
}

// WriteFlags writes the message's flags.
func (w *ResponseWriter) WriteFlags(flags []imapfetch.Flag) {
	w.writeItemSep()
	w.enc.Atom("FLAGS").SP().List(len(flags), func(i int) {
		w.enc.Flag(string(flags[i]))
	})
}

// WriteRFC822Size writes the message's full size.
func (w *ResponseWriter) WriteRFC822Size(size int64) {
	w.writeItemSep()
	w.enc.Atom("RFC822.SIZE").SP().Number64(size)
}

// WriteInternalDate writes the message's internal date.
func (w *ResponseWriter) WriteInternalDate(t time.Time) {
	w.writeItemSep()
	w.enc.Atom("INTERNALDATE").SP().String(t.Format(imapfetch.DateTimeLayout))
}

// WriteBodySection writes a body section.
//
// The returned io.WriteCloser must be closed before writing any more message
// data items.
func (w *ResponseWriter) WriteBodySection(section *imapfetch.FetchItemBodySection, size int64) io.WriteCloser {
	w.writeItemSep()
	w.enc.Atom(section.ResponseName()).SP()
	return w.enc.Literal(size)
}

// WriteEnvelope writes the message's envelope.
func (w *ResponseWriter) WriteEnvelope(envelope *imapfetch.Envelope) {
	w.writeItemSep()
	w.enc.Atom("ENVELOPE").SP()
	writeEnvelope(w.enc, envelope)
}

// WriteBodyStructure writes the message's body structure (either BODYSTRUCTURE
// or BODY).
func (w *ResponseWriter) WriteBodyStructure(bs imapfetch.BodyStructure) {
	var extended bool
	switch bs := bs.(type) {
	case *imapfetch.BodyStructureSinglePart:
		extended = bs.Extended != nil
	case *imapfetch.BodyStructureMultiPart:
		extended = bs.Extended != nil
	}

	item := "BODY"
	if extended {
		item = "BODYSTRUCTURE"
	}

	w.writeItemSep()
	w.enc.Atom(item).SP()
	writeBodyStructure(w.enc, bs)
}

// Close closes the FETCH response writer.
func (w *ResponseWriter) Close() error {
	if w.enc == nil {
		return fmt.Errorf("fetchutil: ResponseWriter already closed")
	}
	err := w.enc.Special(')').CRLF()
	w.enc = nil
	return err
}

// WriteMessage writes a FETCH response with the UID, flags, size, envelope and
// body structure of a raw message. If utf8Accept is set, non-ASCII strings
// are quoted instead of being sent as literals.
func WriteMessage(w io.Writer, seqNum, uid uint32, flags []imapfetch.Flag, raw []byte, utf8Accept bool) error {
	bs, err := BodyStructure(bytes.NewReader(raw), true)
	if err != nil {
		return fmt.Errorf("fetchutil: failed to compute body structure: %v", err)
	}

	h, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(raw)))
	if err != nil {
		return fmt.Errorf("fetchutil: failed to read header: %v", err)
	}

	rw := NewResponseWriter(w, seqNum)
	if utf8Accept {
		rw.EnableUTF8()
	}
	rw.WriteUID(uid)
	rw.WriteFlags(flags)
	rw.WriteRFC822Size(int64(len(raw)))
	rw.WriteEnvelope(Envelope(message.Header{Header: h}))
	rw.WriteBodyStructure(bs)
	return rw.Close()
}

// WriteStatus writes a tagged status response.
func WriteStatus(w io.Writer, tag string, resp *imapfetch.StatusResponse) error {
	enc := imapwire.NewEncoder(bufio.NewWriter(w))
	enc.Atom(tag).SP().Atom(string(resp.Type))
	if resp.Code != "" {
		enc.SP().Special('[').Atom(string(resp.Code)).Special(']')
	}
	if resp.Text != "" {
		enc.SP().Atom(resp.Text)
	}
	return enc.CRLF()
}

func writeEnvelope(enc *imapwire.Encoder, envelope *imapfetch.Envelope) {
	enc.Special('(')
	enc.NString(envelope.Date)
	enc.SP()
	enc.NString(envelope.Subject)
	addrs := [][]imapfetch.Address{
		envelope.From,
		envelope.Sender,
		envelope.ReplyTo,
		envelope.To,
		envelope.Cc,
		envelope.Bcc,
	}
	for _, l := range addrs {
		enc.SP()
		writeAddressList(enc, l)
	}
	enc.SP()
	enc.NString(envelope.InReplyTo)
	enc.SP()
	enc.NString(envelope.MessageID)
	enc.Special(')')
}

func writeAddressList(enc *imapwire.Encoder, l []imapfetch.Address) {
	if l == nil {
		enc.NIL()
		return
	}

	enc.List(len(l), func(i int) {
		addr := l[i]
		enc.Special('(')
		enc.NString(addr.Name)
		enc.SP().NIL().SP()
		enc.NString(addr.Mailbox)
		enc.SP()
		enc.NString(addr.Host)
		enc.Special(')')
	})
}

func writeBodyStructure(enc *imapwire.Encoder, bs imapfetch.BodyStructure) {
	enc.Special('(')
	switch bs := bs.(type) {
	case *imapfetch.BodyStructureSinglePart:
		writeBodyType1part(enc, bs)
	case *imapfetch.BodyStructureMultiPart:
		writeBodyTypeMpart(enc, bs)
	default:
		panic(fmt.Errorf("fetchutil: unknown body structure type %T", bs))
	}
	enc.Special(')')
}

func writeBodyType1part(enc *imapwire.Encoder, bs *imapfetch.BodyStructureSinglePart) {
	enc.String(bs.Type).SP().String(bs.Subtype).SP()
	writeBodyFldParam(enc, bs.Params)
	enc.SP()
	enc.NString(bs.ID)
	enc.SP()
	enc.NString(bs.Description)
	enc.SP()
	if bs.Encoding == "" {
		enc.String("7BIT")
	} else {
		enc.String(strings.ToUpper(bs.Encoding))
	}
	enc.SP().Number(bs.Size)

	if msg := bs.MessageRFC822; msg != nil {
		enc.SP()
		writeEnvelope(enc, msg.Envelope)
		enc.SP()
		writeBodyStructure(enc, msg.BodyStructure)
		enc.SP().Number64(msg.NumLines)
	} else if text := bs.Text; text != nil {
		enc.SP().Number64(text.NumLines)
	}

	ext := bs.Extended
	if ext == nil {
		return
	}

	enc.SP()
	enc.NString(ext.MD5)
	enc.SP()
	writeBodyFldDsp(enc, ext.Disposition)
	enc.SP()
	writeBodyFldLang(enc, ext.Language)
	enc.SP()
	enc.NString(ext.Location)
}

func writeBodyTypeMpart(enc *imapwire.Encoder, bs *imapfetch.BodyStructureMultiPart) {
	if len(bs.Children) == 0 {
		panic("fetchutil: BodyStructureMultiPart must have at least one child")
	}
	for _, child := range bs.Children {
		writeBodyStructure(enc, child)
	}

	enc.SP().String(bs.Subtype)

	ext := bs.Extended
	if ext == nil {
		return
	}

	enc.SP()
	writeBodyFldParam(enc, ext.Params)
	enc.SP()
	writeBodyFldDsp(enc, ext.Disposition)
	enc.SP()
	writeBodyFldLang(enc, ext.Language)
	enc.SP()
	enc.NString(ext.Location)
}

func writeBodyFldParam(enc *imapwire.Encoder, params map[string]string) {
	if len(params) == 0 {
		enc.NIL()
		return
	}

	var l []string
	for k := range params {
		l = append(l, k)
	}
	sort.Strings(l)

	le := enc.BeginList()
	for _, k := range l {
		le.Item().String(k)
		le.Item().String(params[k])
	}
	le.End()
}

func writeBodyFldDsp(enc *imapwire.Encoder, disp *imapfetch.BodyStructureDisposition) {
	if disp == nil {
		enc.NIL()
		return
	}

	enc.Special('(').String(disp.Value).SP()
	writeBodyFldParam(enc, disp.Params)
	enc.Special(')')
}

func writeBodyFldLang(enc *imapwire.Encoder, l []string) {
	if l == nil {
		enc.NIL()
	} else {
		enc.List(len(l), func(i int) {
			enc.String(l[i])
		})
	}
}
