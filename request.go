package imapfetch

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imapfetch/internal/imapwire"
)

// FetchItem is a message data item which can be requested by a FETCH command.
type FetchItem interface {
	fetchItem()
}

var (
	_ FetchItem = FetchItemKeyword("")
	_ FetchItem = (*FetchItemBodySection)(nil)
	_ FetchItem = (*FetchItemBinarySection)(nil)
)

// FetchItemKeyword is a FETCH item described by a single keyword.
type FetchItemKeyword string

func (FetchItemKeyword) fetchItem() {}

var (
	// Macros
	FetchItemAll  FetchItem = FetchItemKeyword("ALL")
	FetchItemFast FetchItem = FetchItemKeyword("FAST")
	FetchItemFull FetchItem = FetchItemKeyword("FULL")

	FetchItemBody          FetchItem = FetchItemKeyword("BODY")
	FetchItemBodyStructure FetchItem = FetchItemKeyword("BODYSTRUCTURE")
	FetchItemEnvelope      FetchItem = FetchItemKeyword("ENVELOPE")
	FetchItemFlags         FetchItem = FetchItemKeyword("FLAGS")
	FetchItemInternalDate  FetchItem = FetchItemKeyword("INTERNALDATE")
	FetchItemRFC822Size    FetchItem = FetchItemKeyword("RFC822.SIZE")
	FetchItemUID           FetchItem = FetchItemKeyword("UID")
)

type PartSpecifier string

const (
	PartSpecifierNone   PartSpecifier = ""
	PartSpecifierHeader PartSpecifier = "HEADER"
	PartSpecifierMIME   PartSpecifier = "MIME"
	PartSpecifierText   PartSpecifier = "TEXT"
)

type SectionPartial struct {
	Offset, Size int64
}

// FetchItemBodySection is a FETCH BODY[] data item.
type FetchItemBodySection struct {
	Specifier       PartSpecifier
	Part            []int
	HeaderFields    []string
	HeaderFieldsNot []string
	Partial         *SectionPartial
	Peek            bool
}

func (*FetchItemBodySection) fetchItem() {}

// ResponseName returns the data item name the server uses in its response,
// e.g. "BODY[1.2]". It can be used to look up the section in a Message.
//
// Servers may format HEADER.FIELDS lists differently.
func (item *FetchItemBodySection) ResponseName() string {
	unpeeked := *item
	unpeeked.Peek = false
	name := formatItem(func(enc *imapwire.Encoder) {
		writeFetchItem(enc, &unpeeked)
	})
	// The server only echoes the partial offset
	if item.Partial != nil {
		name = name[:strings.LastIndexByte(name, '<')] + "<" + strconv.FormatInt(item.Partial.Offset, 10) + ">"
	}
	return name
}

// FetchItemBinarySection is a FETCH BINARY[] data item.
type FetchItemBinarySection struct {
	Part    []int
	Partial *SectionPartial
	Peek    bool
}

func (*FetchItemBinarySection) fetchItem() {}

// BodySection returns a FETCH item requesting the contents of the part.
func (bs *BodyStructureSinglePart) BodySection(peek bool) *FetchItemBodySection {
	return &FetchItemBodySection{Part: ParsePartNum(bs.PartNum), Peek: peek}
}

// ParsePartNum parses a dotted part number such as "1.2". Invalid components
// make it return nil.
func ParsePartNum(s string) []int {
	if s == "" {
		return nil
	}
	var part []int
	for _, field := range strings.Split(s, ".") {
		num, err := strconv.Atoi(field)
		if err != nil || num <= 0 {
			return nil
		}
		part = append(part, num)
	}
	return part
}

// WriteFetchItems writes the parenthesized list of FETCH data items.
//
// For UID FETCH, UID is requested first so that it's received before any
// literal.
func WriteFetchItems(w io.Writer, items []FetchItem, uid bool) error {
	if uid {
		itemsWithUID := []FetchItem{FetchItemUID}
		for _, item := range items {
			if item != FetchItemUID {
				itemsWithUID = append(itemsWithUID, item)
			}
		}
		items = itemsWithUID
	}

	enc := imapwire.NewEncoder(bufio.NewWriter(w))
	enc.List(len(items), func(i int) {
		writeFetchItem(enc, items[i])
	})
	return enc.Flush()
}

// FormatFetchItems returns the parenthesized list of FETCH data items.
func FormatFetchItems(items []FetchItem, uid bool) string {
	var buf bytes.Buffer
	if err := WriteFetchItems(&buf, items, uid); err != nil {
		panic(err)
	}
	return buf.String()
}

func formatItem(f func(enc *imapwire.Encoder)) string {
	var buf bytes.Buffer
	enc := imapwire.NewEncoder(bufio.NewWriter(&buf))
	f(enc)
	if err := enc.Flush(); err != nil {
		panic(err)
	}
	return buf.String()
}

func writeFetchItem(enc *imapwire.Encoder, item FetchItem) {
	switch item := item.(type) {
	case FetchItemKeyword:
		enc.Atom(string(item))
	case *FetchItemBodySection:
		enc.Atom("BODY")
		if item.Peek {
			enc.Atom(".PEEK")
		}
		enc.Special('[')
		writeSectionPart(enc, item.Part)
		if len(item.Part) > 0 && item.Specifier != PartSpecifierNone {
			enc.Special('.')
		}
		if item.Specifier != PartSpecifierNone {
			enc.Atom(string(item.Specifier))

			var headerList []string
			if len(item.HeaderFields) > 0 {
				headerList = item.HeaderFields
				enc.Atom(".FIELDS")
			} else if len(item.HeaderFieldsNot) > 0 {
				headerList = item.HeaderFieldsNot
				enc.Atom(".FIELDS.NOT")
			}

			if len(headerList) > 0 {
				enc.SP().List(len(headerList), func(i int) {
					enc.String(headerList[i])
				})
			}
		}
		enc.Special(']')
		writeSectionPartial(enc, item.Partial)
	case *FetchItemBinarySection:
		enc.Atom("BINARY")
		if item.Peek {
			enc.Atom(".PEEK")
		}
		enc.Special('[')
		writeSectionPart(enc, item.Part)
		enc.Special(']')
		writeSectionPartial(enc, item.Partial)
	default:
		panic(fmt.Errorf("imapfetch: unknown fetch item type %T", item))
	}
}

func writeSectionPart(enc *imapwire.Encoder, part []int) {
	if len(part) == 0 {
		return
	}

	var l []string
	for _, num := range part {
		l = append(l, strconv.Itoa(num))
	}
	enc.Atom(strings.Join(l, "."))
}

func writeSectionPartial(enc *imapwire.Encoder, partial *SectionPartial) {
	if partial == nil {
		return
	}
	enc.Special('<').Number64(partial.Offset).Special('.').Number64(partial.Size).Special('>')
}
