package imapfetch

import (
	"strings"
)

// ClassifiedBody sorts the leaves of a body structure by the way a mail
// client displays them.
type ClassifiedBody struct {
	// Contents maps a text subtype ("plain" or "html") to the parts
	// displayed as the message body.
	Contents map[string][]*BodyStructureSinglePart
	// Inlines maps a Content-ID, without angle brackets, to a part of a
	// multipart/related body, e.g. an image referenced by the HTML body.
	Inlines map[string]*BodyStructureSinglePart
	// Attachments lists all other parts in document order.
	Attachments []*BodyStructureSinglePart
}

// Classify sorts the parts of bs into contents, inline parts and
// attachments.
//
// The first text/plain and the first text/html parts are contents. Any other
// part of a multipart/related body is an inline part, provided it has a
// Content-ID not used by a previous part. Everything else, including repeated
// text parts, is an attachment.
func Classify(bs BodyStructure) *ClassifiedBody {
	cb := &ClassifiedBody{
		Contents: make(map[string][]*BodyStructureSinglePart),
		Inlines:  make(map[string]*BodyStructureSinglePart),
	}
	if bs != nil {
		cb.classify(bs, "")
	}
	return cb
}

func (cb *ClassifiedBody) classify(bs BodyStructure, multipartSubtype string) {
	switch bs := bs.(type) {
	case *BodyStructureMultiPart:
		subtype := strings.ToLower(bs.Subtype)
		for _, child := range bs.Children {
			cb.classify(child, subtype)
		}
	case *BodyStructureSinglePart:
		cb.store(bs, multipartSubtype)
	}
}

func (cb *ClassifiedBody) store(part *BodyStructureSinglePart, multipartSubtype string) {
	switch part.MediaType() {
	case "text/plain", "text/html":
		subtype := strings.ToLower(part.Subtype)
		if _, ok := cb.Contents[subtype]; !ok {
			cb.Contents[subtype] = []*BodyStructureSinglePart{part}
			return
		}
	default:
		// Inline parts without a unique Content-ID can't be referenced
		if cid := part.ContentID(); multipartSubtype == "related" && cid != "" {
			if _, dup := cb.Inlines[cid]; !dup {
				cb.Inlines[cid] = part
				return
			}
		}
	}
	cb.Attachments = append(cb.Attachments, part)
}

// Content returns the first content part with the provided subtype, or nil.
func (cb *ClassifiedBody) Content(subtype string) *BodyStructureSinglePart {
	l := cb.Contents[strings.ToLower(subtype)]
	if len(l) == 0 {
		return nil
	}
	return l[0]
}
