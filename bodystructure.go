package imapfetch

import (
	"fmt"
	"strconv"
	"strings"
)

// BodyStructure describes the body structure of a message.
//
// A BodyStructure value is either a *BodyStructureSinglePart or a
// *BodyStructureMultiPart.
type BodyStructure interface {
	Value

	// MediaType returns the MIME type of this body structure, e.g. "text/plain".
	MediaType() string
	// Walk walks the body structure tree, calling f for each part in the tree,
	// including bs itself. The parts are visited in DFS pre-order.
	Walk(f BodyStructureWalkFunc)
	// Disposition returns the body structure disposition, if available.
	Disposition() *BodyStructureDisposition

	bodyStructure()
}

var (
	_ BodyStructure = (*BodyStructureSinglePart)(nil)
	_ BodyStructure = (*BodyStructureMultiPart)(nil)
)

// BodyStructureSinglePart is a body structure with a single part.
type BodyStructureSinglePart struct {
	Type, Subtype string
	Params        map[string]string
	ID            string
	Description   string
	Encoding      string
	Size          uint32

	// PartNum is the dotted part number, e.g. "1.2", to be used in
	// BODY[<part>] requests.
	PartNum string

	MessageRFC822 *BodyStructureMessageRFC822 // only for "message/rfc822"
	Text          *BodyStructureText          // only for "text/*"
	Extended      *BodyStructureSinglePartExt
}

func (*BodyStructureSinglePart) fetchValue() {}

func (bs *BodyStructureSinglePart) MediaType() string {
	return strings.ToLower(bs.Type) + "/" + strings.ToLower(bs.Subtype)
}

func (bs *BodyStructureSinglePart) Walk(f BodyStructureWalkFunc) {
	f([]int{1}, bs)
}

func (bs *BodyStructureSinglePart) Disposition() *BodyStructureDisposition {
	if bs.Extended == nil {
		return nil
	}
	return bs.Extended.Disposition
}

// Filename decodes the body structure's filename, if any.
func (bs *BodyStructureSinglePart) Filename() string {
	var filename string
	if bs.Extended != nil && bs.Extended.Disposition != nil {
		filename = bs.Extended.Disposition.Params["filename"]
	}
	if filename == "" {
		// Note: using "name" in Content-Type is discouraged
		filename = bs.Params["name"]
	}
	return filename
}

// ContentID returns the Content-ID without the surrounding angle brackets.
func (bs *BodyStructureSinglePart) ContentID() string {
	return strings.TrimSuffix(strings.TrimPrefix(bs.ID, "<"), ">")
}

func (*BodyStructureSinglePart) bodyStructure() {}

type BodyStructureMessageRFC822 struct {
	Envelope      *Envelope
	BodyStructure BodyStructure
	NumLines      int64
}

type BodyStructureText struct {
	NumLines int64
}

// BodyStructureSinglePartExt holds the extension data of a single part.
// Servers may omit trailing fields, these are left empty.
type BodyStructureSinglePartExt struct {
	MD5         string
	Disposition *BodyStructureDisposition
	Language    []string
	Location    string
}

// BodyStructureMultiPart is a body structure with multiple parts.
type BodyStructureMultiPart struct {
	Children []BodyStructure
	Subtype  string

	// PartNum is empty for the message root.
	PartNum string

	Extended *BodyStructureMultiPartExt
}

func (*BodyStructureMultiPart) fetchValue() {}

func (bs *BodyStructureMultiPart) MediaType() string {
	return "multipart/" + strings.ToLower(bs.Subtype)
}

func (bs *BodyStructureMultiPart) Walk(f BodyStructureWalkFunc) {
	bs.walk(f, nil)
}

func (bs *BodyStructureMultiPart) walk(f BodyStructureWalkFunc, path []int) {
	if !f(path, bs) {
		return
	}

	pathBuf := make([]int, len(path))
	copy(pathBuf, path)
	for i, part := range bs.Children {
		num := i + 1
		partPath := append(pathBuf, num)

		switch part := part.(type) {
		case *BodyStructureSinglePart:
			f(partPath, part)
		case *BodyStructureMultiPart:
			part.walk(f, partPath)
		default:
			panic(fmt.Errorf("unsupported body structure type %T", part))
		}
	}
}

func (bs *BodyStructureMultiPart) Disposition() *BodyStructureDisposition {
	if bs.Extended == nil {
		return nil
	}
	return bs.Extended.Disposition
}

func (*BodyStructureMultiPart) bodyStructure() {}

type BodyStructureMultiPartExt struct {
	Params      map[string]string
	Disposition *BodyStructureDisposition
	Language    []string
	Location    string
}

type BodyStructureDisposition struct {
	Value  string
	Params map[string]string
}

// BodyStructureWalkFunc is a function called for each body structure visited
// by BodyStructure.Walk.
//
// The path argument contains the IMAP part path.
//
// The function should return true to visit all of the part's children or false
// to skip them.
type BodyStructureWalkFunc func(path []int, part BodyStructure) (walkChildren bool)

// FindPart returns the single part with the provided part number, or nil.
//
// Parts of attached messages, e.g. "3.1" inside a message/rfc822 part "3",
// are found too.
func FindPart(bs BodyStructure, partNum string) *BodyStructureSinglePart {
	var found *BodyStructureSinglePart
	bs.Walk(func(path []int, part BodyStructure) bool {
		if found != nil {
			return false
		}
		single, ok := part.(*BodyStructureSinglePart)
		if !ok {
			return true
		}
		if single.PartNum == partNum {
			found = single
		} else if msg := single.MessageRFC822; msg != nil && msg.BodyStructure != nil &&
			strings.HasPrefix(partNum, single.PartNum+".") {
			found = FindPart(msg.BodyStructure, partNum)
		}
		return true
	})
	return found
}

// numberParts assigns part numbers in document order. A single part message
// is part "1".
func numberParts(bs BodyStructure) {
	switch bs := bs.(type) {
	case *BodyStructureSinglePart:
		bs.setPartNum("1")
	case *BodyStructureMultiPart:
		bs.numberChildren("")
	}
}

func (bs *BodyStructureSinglePart) setPartNum(num string) {
	bs.PartNum = num
	if bs.MessageRFC822 == nil {
		return
	}
	switch inner := bs.MessageRFC822.BodyStructure.(type) {
	case *BodyStructureSinglePart:
		inner.setPartNum(num + ".1")
	case *BodyStructureMultiPart:
		inner.numberChildren(num + ".")
	}
}

func (bs *BodyStructureMultiPart) numberChildren(prefix string) {
	for i, child := range bs.Children {
		num := prefix + strconv.Itoa(i+1)
		switch child := child.(type) {
		case *BodyStructureSinglePart:
			child.setPartNum(num)
		case *BodyStructureMultiPart:
			child.PartNum = num
			child.numberChildren(num + ".")
		}
	}
}

// buildBody converts the fields of a body. A multipart body starts with the
// list of its children, followed by its subtype.
func buildBody(fields rawList, options *Options) BodyStructure {
	if children, ok := fields.at(0).(rawList); ok {
		return buildMultiPart(children, fields[1:], options)
	}
	return buildSinglePart(fields, options)
}

func buildSinglePart(fields rawList, options *Options) *BodyStructureSinglePart {
	bs := &BodyStructureSinglePart{
		Type:     fields.str(0),
		Subtype:  fields.str(1),
		Params:   buildParams(fields.at(2), options),
		ID:       fields.str(3),
		Encoding: fields.str(5),
		Size:     uint32(fields.number(6)),
	}
	bs.Description = options.decodeText(fields.str(4))

	n := 7
	if strings.EqualFold(bs.Type, "message") && (strings.EqualFold(bs.Subtype, "rfc822") || strings.EqualFold(bs.Subtype, "global")) {
		var msg BodyStructureMessageRFC822
		if env := fieldsOf(fields.at(7)); env != nil {
			msg.Envelope = buildEnvelope(env, options)
		}
		if body := fieldsOf(fields.at(8)); body != nil {
			msg.BodyStructure = buildBody(body, options)
		}
		msg.NumLines = fields.number(9)
		if len(fields) > 7 {
			bs.MessageRFC822 = &msg
		}
		n = 10
	} else if strings.EqualFold(bs.Type, "text") {
		if len(fields) > 7 {
			bs.Text = &BodyStructureText{NumLines: fields.number(7)}
		}
		n = 8
	}

	if len(fields) > n {
		bs.Extended = &BodyStructureSinglePartExt{
			MD5:         fields.str(n),
			Disposition: buildDisposition(fields.at(n+1), options),
			Language:    buildLanguage(fields.at(n + 2)),
			Location:    fields.str(n + 3),
		}
	}

	return bs
}

func buildMultiPart(children, fields rawList, options *Options) *BodyStructureMultiPart {
	bs := &BodyStructureMultiPart{Subtype: fields.str(0)}
	for _, child := range children {
		if childFields := fieldsOf(child); childFields != nil {
			bs.Children = append(bs.Children, buildBody(childFields, options))
		}
	}

	if len(fields) > 1 {
		bs.Extended = &BodyStructureMultiPartExt{
			Params:      buildParams(fields.at(1), options),
			Disposition: buildDisposition(fields.at(2), options),
			Language:    buildLanguage(fields.at(3)),
			Location:    fields.str(4),
		}
	}

	return bs
}

// buildParams converts a body-fld-param list. Keys are lower-cased.
func buildParams(item rawItem, options *Options) map[string]string {
	l := fieldsOf(item)
	if len(l) == 0 {
		return nil
	}
	params := make(map[string]string, len(l)/2)
	for i := 0; i+1 < len(l); i += 2 {
		k := strings.ToLower(l.str(i))
		v := l.str(i + 1)
		if k == "name" || k == "filename" {
			v = options.decodeText(v)
		}
		params[k] = v
	}
	return params
}

func buildDisposition(item rawItem, options *Options) *BodyStructureDisposition {
	l := fieldsOf(item)
	if len(l) == 0 {
		return nil
	}
	return &BodyStructureDisposition{
		Value:  l.str(0),
		Params: buildParams(l.at(1), options),
	}
}

func buildLanguage(item rawItem) []string {
	switch item := item.(type) {
	case rawString:
		if item == "" {
			return nil
		}
		return []string{string(item)}
	case rawList:
		var l []string
		for i := range item {
			l = append(l, item.str(i))
		}
		return l
	default:
		return nil
	}
}
