package imapfetch

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/emersion/go-imapfetch/internal/imapwire"
)

// strategy is the way the arguments of the current data item are parsed.
type strategy int

const (
	strategyNone strategy = iota // awaiting the next data item
	strategyDefault
	strategyFlags
	strategyBodyStructure
	strategyList
)

type dataItemKind int

const (
	dataItemOther dataItemKind = iota
	dataItemUID
	dataItemFlags
	dataItemBodyStructure
	dataItemBody
	dataItemEnvelope
	dataItemSection
)

func lookupDataItem(name string) dataItemKind {
	switch name {
	case "UID":
		return dataItemUID
	case "FLAGS":
		return dataItemFlags
	case "BODYSTRUCTURE":
		return dataItemBodyStructure
	case "BODY":
		return dataItemBody
	case "ENVELOPE":
		return dataItemEnvelope
	case "RFC822", "RFC822.HEADER", "RFC822.TEXT":
		return dataItemSection
	}
	// Some servers echo the PEEK variants
	for _, prefix := range []string{"BODY[", "BODY.PEEK[", "BINARY[", "BINARY.PEEK["} {
		if strings.HasPrefix(name, prefix) {
			return dataItemSection
		}
	}
	return dataItemOther
}

// Parser decodes FETCH responses.
//
// The response is consumed as a sequence of chunks. Nothing but the
// unfinished trailing token of a chunk is buffered, so literals and
// BODYSTRUCTURE data may be split anywhere across chunks.
//
// A Parser is not safe for concurrent use. IMAP serializes commands on a
// connection, so one Parser per connection is enough.
type Parser struct {
	options Options

	result     FetchResult
	msg        Message // accumulator for the message being parsed
	seqNum     uint32
	seqPending bool
	depth      int

	dataItem     string
	dataItemKind dataItemKind
	strategy     strategy
	listOpen     bool
	// BODYSTRUCTURE and generic lists being built, innermost last
	stack []rawList

	expect   imapwire.TokenKind
	expected string

	inLiteral   bool
	literalLeft int64
	literal     []byte

	carry  []byte
	offset int64
}

// NewParser creates a new parser.
//
// A nil options pointer is equivalent to a zero options value.
func NewParser(options *Options) *Parser {
	if options == nil {
		options = &Options{}
	}
	p := &Parser{options: *options}
	p.Reset()
	return p
}

// Reset discards all parser state.
func (p *Parser) Reset() {
	*p = Parser{
		options: p.options,
		result:  make(FetchResult),
	}
}

// Parse decodes a complete FETCH response.
//
// The parser is reset before and after parsing. On error, no partial result
// is returned.
func (p *Parser) Parse(chunks []Chunk) (FetchResult, error) {
	p.Reset()
	defer p.Reset()

	for _, chunk := range chunks {
		p.options.debug(chunk.Text)
		if err := p.feed(chunk.Text); err != nil {
			return nil, err
		}
		if len(chunk.Literal) > 0 && !p.inLiteral {
			return nil, &ParseError{
				Kind:     ErrorKindUnexpectedToken,
				Offset:   p.offset,
				Expected: "literal marker before literal data",
			}
		}
		p.options.debug(chunk.Literal)
		if err := p.feed(chunk.Literal); err != nil {
			return nil, err
		}
	}
	if err := p.finish(); err != nil {
		return nil, err
	}

	return p.result, nil
}

// Parse decodes a complete FETCH response with a new Parser.
func Parse(chunks []Chunk, options *Options) (FetchResult, error) {
	return NewParser(options).Parse(chunks)
}

func (p *Parser) feed(b []byte) error {
	for len(b) > 0 {
		if p.inLiteral {
			n := int64(len(b))
			if n > p.literalLeft {
				n = p.literalLeft
			}
			p.literal = append(p.literal, b[:n]...)
			p.literalLeft -= n
			p.offset += n
			b = b[n:]
			if p.literalLeft == 0 {
				if err := p.endLiteral(); err != nil {
					return err
				}
			}
			continue
		}

		text := b
		if len(p.carry) > 0 {
			text = append(p.carry, b...)
			p.carry = nil
		}
		rest, err := p.lex(text, true)
		if err != nil {
			return err
		}
		b = rest
	}
	return nil
}

func (p *Parser) finish() error {
	for len(p.carry) > 0 {
		text := p.carry
		p.carry = nil
		rest, err := p.lex(text, false)
		if err != nil {
			return err
		}
		if err := p.feed(rest); err != nil {
			return err
		}
	}

	switch {
	case p.inLiteral:
		return p.unexpectedEOF(fmt.Sprintf("%v more literal bytes", p.literalLeft))
	case p.expect != 0:
		return p.unexpectedEOF(p.expected)
	case p.strategy != strategyNone:
		return p.unexpectedEOF(fmt.Sprintf("end of %v", p.dataItem))
	case p.depth > 0:
		return p.unexpectedEOF("')' closing the message")
	}
	return nil
}

// lex feeds the tokens of text to the state machine. If a literal marker is
// found, the bytes following it are returned. In partial mode, an
// unfinished trailing token is kept for the next call.
func (p *Parser) lex(text []byte, partial bool) ([]byte, error) {
	l := imapwire.NewLexer(text, partial)
	for {
		tok, err := l.Next()
		if err == io.EOF {
			rem := l.Remainder()
			p.offset += int64(len(text) - len(rem))
			if len(rem) > 0 {
				p.carry = append([]byte(nil), rem...)
			}
			return nil, nil
		} else if err != nil {
			parseErr := &ParseError{Kind: ErrorKindLex, Offset: p.offset, Err: err}
			var lexErr *imapwire.LexError
			if errors.As(err, &lexErr) {
				parseErr.Offset += int64(lexErr.Offset)
				parseErr.Remainder = lexErr.Remainder
				parseErr.Err = nil
			}
			return nil, parseErr
		}

		if tok.Kind == imapwire.TokenLiteralMarker {
			if err := p.beginLiteral(tok); err != nil {
				return nil, err
			}
			rest := l.Remainder()
			p.offset += int64(len(text) - len(rest))
			if !p.inLiteral {
				// Zero-length literal, keep lexing the same text
				l = imapwire.NewLexer(rest, partial)
				text = rest
				continue
			}
			return rest, nil
		}

		if err := p.handleToken(tok); err != nil {
			return nil, err
		}
	}
}

func (p *Parser) handleToken(tok imapwire.Token) error {
	if p.expect != 0 {
		if tok.Kind != p.expect {
			return p.unexpected(tok, p.expected)
		}
		p.expect = 0
		p.expected = ""
	}

	switch p.strategy {
	case strategyNone:
		if p.depth == 0 {
			return p.handleTopLevel(tok)
		}
		return p.handleDataItem(tok)
	case strategyDefault:
		return p.parseDefault(tok)
	case strategyFlags:
		return p.parseFlags(tok)
	case strategyBodyStructure:
		return p.parseBodyStructure(tok)
	case strategyList:
		return p.parseList(tok)
	default:
		panic(fmt.Errorf("imapfetch: unknown strategy %v", p.strategy))
	}
}

func (p *Parser) expectToken(kind imapwire.TokenKind, expected string) {
	p.expect = kind
	p.expected = expected
}

func (p *Parser) handleTopLevel(tok imapwire.Token) error {
	switch tok.Kind {
	case imapwire.TokenNumber:
		seqNum, err := strconv.ParseUint(tok.Value, 10, 32)
		if err != nil {
			return p.unexpected(tok, "message sequence number")
		}
		p.seqNum = uint32(seqNum)
		p.seqPending = true
		p.expectToken(imapwire.TokenLeftParen, "'(' after message sequence number")
		return nil
	case imapwire.TokenLeftParen:
		if !p.seqPending {
			return p.unexpected(tok, "message sequence number")
		}
		p.seqPending = false
		p.depth = 1
		p.msg = make(Message)
		return nil
	case imapwire.TokenDataItem:
		// Data items outside of a message, e.g. FLAGS, are parsed and
		// dropped.
		p.msg = make(Message)
		return p.beginDataItem(tok.Value)
	default:
		return p.unexpected(tok, "message sequence number")
	}
}

func (p *Parser) handleDataItem(tok imapwire.Token) error {
	switch tok.Kind {
	case imapwire.TokenDataItem:
		return p.beginDataItem(tok.Value)
	case imapwire.TokenRightParen:
		p.closeMessage()
		return nil
	default:
		return p.unexpected(tok, "data item name or ')'")
	}
}

func (p *Parser) closeMessage() {
	msg := p.msg
	p.msg = nil
	p.depth = 0

	if _, ok := msg["UID"]; !ok {
		p.options.logger().Printf("imapfetch: dropping FETCH data for message %v without UID", p.seqNum)
		return
	}
	uid := msg.UID()
	if prev, ok := p.result[uid]; ok {
		for k, v := range msg {
			prev[k] = v
		}
		return
	}
	p.result[uid] = msg
}

// beginDataItem selects the strategy used to parse the arguments of a data
// item.
func (p *Parser) beginDataItem(name string) error {
	p.dataItem = name
	p.dataItemKind = lookupDataItem(name)
	p.listOpen = false
	switch p.dataItemKind {
	case dataItemUID:
		p.strategy = strategyDefault
		p.expectToken(imapwire.TokenNumber, "number after UID")
	case dataItemFlags:
		p.strategy = strategyFlags
		p.expectToken(imapwire.TokenLeftParen, "'(' after FLAGS")
	case dataItemBodyStructure, dataItemBody:
		p.strategy = strategyBodyStructure
		p.stack = nil
		p.expectToken(imapwire.TokenLeftParen, fmt.Sprintf("'(' after %v", name))
	default:
		p.strategy = strategyDefault
	}
	return nil
}

func (p *Parser) endDataItem(v Value) {
	if v != nil {
		p.msg[p.dataItem] = v
	}
	p.strategy = strategyNone
	p.stack = nil
	p.listOpen = false
	if p.depth == 0 {
		p.msg = nil
	}
}

func (p *Parser) parseDefault(tok imapwire.Token) error {
	switch tok.Kind {
	case imapwire.TokenString:
		if p.dataItemKind == dataItemSection {
			p.endDataItem(String(tok.Value))
			return nil
		}
		s, err := p.decodeString(tok.Value)
		if err != nil {
			return err
		}
		p.endDataItem(String(s))
	case imapwire.TokenNumber, imapwire.TokenFlag, imapwire.TokenDataItem:
		if p.dataItemKind == dataItemUID {
			if uid, err := strconv.ParseUint(tok.Value, 10, 32); err != nil || uid == 0 {
				return p.unexpected(tok, "UID in 1..4294967295")
			}
		}
		p.endDataItem(String(tok.Value))
	case imapwire.TokenNIL:
		p.endDataItem(Nil{})
	case imapwire.TokenLeftParen:
		p.strategy = strategyList
		p.stack = []rawList{nil}
	default:
		return p.unexpected(tok, fmt.Sprintf("value of %v", p.dataItem))
	}
	return nil
}

func (p *Parser) parseFlags(tok imapwire.Token) error {
	switch tok.Kind {
	case imapwire.TokenLeftParen:
		if p.listOpen {
			return p.unexpected(tok, "flag")
		}
		p.listOpen = true
		p.msg[p.dataItem] = List{}
	case imapwire.TokenFlag, imapwire.TokenDataItem:
		l, _ := p.msg[p.dataItem].(List)
		p.msg[p.dataItem] = append(l, tok.Value)
	case imapwire.TokenRightParen:
		p.endDataItem(nil)
	default:
		return p.unexpected(tok, "flag")
	}
	return nil
}

// parseBodyStructure feeds a token to the BODYSTRUCTURE machine.
//
// BODYSTRUCTURE isn't LL(1): whether a list is a MIME part or a multipart
// body is only known once it's closed, and a multipart subtype trails the
// list of children. Lists under construction are kept on an explicit stack,
// so that parsing can be suspended at any chunk boundary.
func (p *Parser) parseBodyStructure(tok imapwire.Token) error {
	switch tok.Kind {
	case imapwire.TokenLeftParen:
		p.stack = append(p.stack, nil)
	case imapwire.TokenRightParen:
		if len(p.stack) == 1 {
			p.endBodyStructure(p.stack[0])
			return nil
		}
		popped := p.pop()
		parent := &p.stack[len(p.stack)-1]
		if parent.onlyParts() {
			*parent = append(*parent, &rawPart{list: popped})
		} else {
			*parent = append(*parent, popped)
		}
	case imapwire.TokenString:
		s, err := p.decodeString(tok.Value)
		if err != nil {
			return err
		}
		p.appendScalar(rawString(s))
	case imapwire.TokenNumber:
		p.appendScalar(rawString(tok.Value))
	case imapwire.TokenNIL:
		p.appendScalar(rawNil{})
	default:
		return p.unexpected(tok, "body structure field")
	}
	return nil
}

func (p *Parser) pop() rawList {
	top := p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	return top
}

// appendScalar appends a field to the innermost list. A scalar following a
// part descriptor is a multipart subtype: the parts are first grouped into
// the list of children.
func (p *Parser) appendScalar(item rawItem) {
	top := &p.stack[len(p.stack)-1]
	if top.endsWithPart() {
		*top = rawList{*top}
	}
	*top = append(*top, item)
}

func (p *Parser) endBodyStructure(top rawList) {
	root := rawItem(top)
	if _, ok := top.at(0).(rawList); !ok {
		root = &rawPart{list: top}
	}
	bs := buildBody(fieldsOf(root), &p.options)
	numberParts(bs)
	p.endDataItem(bs)
}

// parseList feeds a token to a generic parenthesized list, e.g. ENVELOPE.
func (p *Parser) parseList(tok imapwire.Token) error {
	switch tok.Kind {
	case imapwire.TokenLeftParen:
		p.stack = append(p.stack, nil)
	case imapwire.TokenRightParen:
		popped := p.pop()
		if len(p.stack) == 0 {
			p.endList(popped)
			return nil
		}
		parent := &p.stack[len(p.stack)-1]
		*parent = append(*parent, popped)
	case imapwire.TokenString:
		s, err := p.decodeString(tok.Value)
		if err != nil {
			return err
		}
		p.appendListItem(rawString(s))
	case imapwire.TokenNumber, imapwire.TokenFlag, imapwire.TokenDataItem:
		p.appendListItem(rawString(tok.Value))
	case imapwire.TokenNIL:
		p.appendListItem(rawNil{})
	default:
		return p.unexpected(tok, "list item")
	}
	return nil
}

func (p *Parser) appendListItem(item rawItem) {
	top := &p.stack[len(p.stack)-1]
	*top = append(*top, item)
}

func (p *Parser) endList(l rawList) {
	if p.dataItemKind == dataItemEnvelope {
		p.endDataItem(buildEnvelope(l, &p.options))
	} else {
		p.endDataItem(toValue(l))
	}
}

func (p *Parser) beginLiteral(tok imapwire.Token) error {
	size, err := tok.LiteralSize()
	if err != nil {
		return p.unexpected(tok, "literal size")
	}
	if max := p.options.MaxLiteralSize; max > 0 && size > max {
		return p.unexpected(tok, fmt.Sprintf("literal of at most %v bytes", max))
	}

	// A literal stands for a string, check that one is acceptable here
	var acceptsString bool
	switch p.strategy {
	case strategyDefault:
		acceptsString = p.expect == 0
	case strategyBodyStructure, strategyList:
		acceptsString = p.expect == 0 && len(p.stack) > 0
	}
	if !acceptsString {
		expected := p.expected
		if expected == "" {
			expected = "data item name or ')'"
		}
		return p.unexpected(tok, expected)
	}

	p.inLiteral = true
	p.literalLeft = size
	p.literal = nil
	if size == 0 {
		return p.endLiteral()
	}
	return nil
}

func (p *Parser) endLiteral() error {
	b := p.literal
	p.literal = nil
	p.inLiteral = false

	if p.strategy == strategyDefault && p.dataItemKind == dataItemSection {
		// Message data is kept byte for byte
		p.endDataItem(String(b))
		return nil
	}

	s, err := p.options.decodeBytes(b)
	if err != nil {
		return &ParseError{Kind: ErrorKindEncoding, Offset: p.offset, Expected: "literal", Err: err}
	}

	switch p.strategy {
	case strategyDefault:
		p.endDataItem(String(s))
	case strategyBodyStructure:
		p.appendScalar(rawString(s))
	case strategyList:
		p.appendListItem(rawString(s))
	}
	return nil
}

func (p *Parser) decodeString(s string) (string, error) {
	out, err := p.options.decodeBytes([]byte(s))
	if err != nil {
		return "", &ParseError{Kind: ErrorKindEncoding, Offset: p.offset, Expected: "string", Err: err}
	}
	return out, nil
}

func (p *Parser) unexpected(tok imapwire.Token, expected string) error {
	return &ParseError{
		Kind:      ErrorKindUnexpectedToken,
		Offset:    p.offset + int64(tok.Offset),
		TokenKind: tok.Kind.String(),
		Token:     tok.Value,
		Expected:  expected,
	}
}

func (p *Parser) unexpectedEOF(expected string) error {
	return &ParseError{
		Kind:      ErrorKindUnexpectedToken,
		Offset:    p.offset,
		TokenKind: "end of input",
		Expected:  expected,
	}
}
