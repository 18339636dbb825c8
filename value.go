package imapfetch

import (
	"strconv"
)

// FetchResult holds the messages of a FETCH response, keyed by UID.
type FetchResult map[uint32]Message

// Message holds the data items returned for a single message, keyed by data
// item name (e.g. "UID", "FLAGS", "BODY[HEADER]").
type Message map[string]Value

// UID returns the message UID, or zero if it's missing.
func (msg Message) UID() uint32 {
	s, ok := msg["UID"].(String)
	if !ok {
		return 0
	}
	uid, err := strconv.ParseUint(string(s), 10, 32)
	if err != nil {
		return 0
	}
	return uint32(uid)
}

// Flags returns the message flags.
func (msg Message) Flags() []Flag {
	l, _ := msg["FLAGS"].(List)
	if l == nil {
		return nil
	}
	flags := make([]Flag, len(l))
	for i, s := range l {
		flags[i] = Flag(s)
	}
	return flags
}

// BodyStructure returns the message body structure, if any.
//
// BODYSTRUCTURE is preferred over the non-extended BODY.
func (msg Message) BodyStructure() BodyStructure {
	if bs, ok := msg["BODYSTRUCTURE"].(BodyStructure); ok {
		return bs
	}
	bs, _ := msg["BODY"].(BodyStructure)
	return bs
}

// Envelope returns the message envelope, if any.
func (msg Message) Envelope() *Envelope {
	env, _ := msg["ENVELOPE"].(*Envelope)
	return env
}

// String returns the value of a data item holding a string or a literal.
func (msg Message) String(name string) (string, bool) {
	s, ok := msg[name].(String)
	return string(s), ok
}

// Value is the value of a FETCH data item.
//
// A Value is one of String, Nil, List, Values, *Envelope,
// *BodyStructureSinglePart or *BodyStructureMultiPart.
type Value interface {
	fetchValue()
}

var (
	_ Value = String("")
	_ Value = Nil{}
	_ Value = List(nil)
	_ Value = Values(nil)
	_ Value = (*Envelope)(nil)
	_ Value = (*BodyStructureSinglePart)(nil)
	_ Value = (*BodyStructureMultiPart)(nil)
)

// String is a string, number, atom or literal value.
type String string

func (String) fetchValue() {}

// Nil is the NIL value.
type Nil struct{}

func (Nil) fetchValue() {}

// List is a list of flags.
type List []string

func (List) fetchValue() {}

// Values is a generic parenthesized list.
type Values []Value

func (Values) fetchValue() {}
