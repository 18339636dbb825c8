// Package fetchutil computes FETCH data from raw messages and writes FETCH
// responses.
//
// It is useful to build test fixtures and to serve messages from a local
// store.
package fetchutil

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/textproto"

	"github.com/emersion/go-imapfetch"
)

// BodyStructure computes a message's body structure from its raw content.
//
// Sizes and line counts are those of the encoded parts.
func BodyStructure(r io.Reader, extended bool) (imapfetch.BodyStructure, error) {
	br := bufio.NewReader(r)
	h, err := textproto.ReadHeader(br)
	if err != nil {
		return nil, err
	}
	return bodyStructure(message.Header{Header: h}, br, extended)
}

func bodyStructure(h message.Header, body io.Reader, extended bool) (imapfetch.BodyStructure, error) {
	mediaType, mediaParams, _ := h.ContentType()
	if mediaType == "" {
		mediaType = "text/plain"
	}
	typ, subtype, _ := strings.Cut(mediaType, "/")

	if typ == "multipart" {
		bs := &imapfetch.BodyStructureMultiPart{Subtype: subtype}

		mr := textproto.NewMultipartReader(body, mediaParams["boundary"])
		for {
			p, err := mr.NextPart()
			if err == io.EOF {
				break
			} else if err != nil {
				return nil, err
			}

			child, err := bodyStructure(message.Header{Header: p.Header}, p, extended)
			if err != nil {
				return nil, err
			}
			bs.Children = append(bs.Children, child)
		}

		if extended {
			bs.Extended = &imapfetch.BodyStructureMultiPartExt{
				Params:      mediaParams,
				Disposition: disposition(h),
				Language:    language(h),
				Location:    h.Get("Content-Location"),
			}
		}
		return bs, nil
	}

	b, err := io.ReadAll(body)
	if err != nil {
		return nil, err
	}

	bs := &imapfetch.BodyStructureSinglePart{
		Type:        typ,
		Subtype:     subtype,
		Params:      mediaParams,
		ID:          h.Get("Content-Id"),
		Description: h.Get("Content-Description"),
		Encoding:    strings.ToUpper(h.Get("Content-Transfer-Encoding")),
		Size:        uint32(len(b)),
	}
	if bs.Encoding == "" {
		bs.Encoding = "7BIT"
	}

	switch {
	case typ == "text":
		bs.Text = &imapfetch.BodyStructureText{NumLines: countLines(b)}
	case mediaType == "message/rfc822":
		br := bufio.NewReader(bytes.NewReader(b))
		innerHeader, err := textproto.ReadHeader(br)
		if err != nil {
			return nil, err
		}
		inner, err := bodyStructure(message.Header{Header: innerHeader}, br, extended)
		if err != nil {
			return nil, err
		}
		bs.MessageRFC822 = &imapfetch.BodyStructureMessageRFC822{
			Envelope:      Envelope(message.Header{Header: innerHeader}),
			BodyStructure: inner,
			NumLines:      countLines(b),
		}
	}

	if extended {
		bs.Extended = &imapfetch.BodyStructureSinglePartExt{
			MD5:         h.Get("Content-Md5"),
			Disposition: disposition(h),
			Language:    language(h),
			Location:    h.Get("Content-Location"),
		}
	}

	return bs, nil
}

func disposition(h message.Header) *imapfetch.BodyStructureDisposition {
	value, params, err := h.ContentDisposition()
	if err != nil || value == "" {
		return nil
	}
	return &imapfetch.BodyStructureDisposition{Value: value, Params: params}
}

func language(h message.Header) []string {
	v := h.Get("Content-Language")
	if v == "" {
		return nil
	}
	var l []string
	for _, tag := range strings.Split(v, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			l = append(l, tag)
		}
	}
	return l
}

func countLines(b []byte) int64 {
	n := int64(bytes.Count(b, []byte("\n")))
	if len(b) > 0 && b[len(b)-1] != '\n' {
		n++
	}
	return n
}
