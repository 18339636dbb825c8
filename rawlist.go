package imapfetch

import (
	"strconv"
)

// rawItem is an element of a parenthesized list under construction, before
// it's converted into a Value.
type rawItem interface {
	rawItem()
}

type rawString string

func (rawString) rawItem() {}

type rawNil struct{}

func (rawNil) rawItem() {}

type rawList []rawItem

func (rawList) rawItem() {}

// rawPart is a completed MIME part descriptor inside BODYSTRUCTURE.
type rawPart struct {
	list rawList
}

func (*rawPart) rawItem() {}

func fieldsOf(item rawItem) rawList {
	switch item := item.(type) {
	case rawList:
		return item
	case *rawPart:
		return item.list
	default:
		return nil
	}
}

func (l rawList) at(i int) rawItem {
	if i < 0 || i >= len(l) {
		return nil
	}
	return l[i]
}

func (l rawList) str(i int) string {
	s, _ := l.at(i).(rawString)
	return string(s)
}

func (l rawList) number(i int) int64 {
	v, err := strconv.ParseInt(l.str(i), 10, 64)
	if err != nil || v < 0 {
		return 0
	}
	return v
}

// onlyParts returns true if every element is a part descriptor. An empty
// list only holds parts.
func (l rawList) onlyParts() bool {
	for _, item := range l {
		if _, ok := item.(*rawPart); !ok {
			return false
		}
	}
	return true
}

func (l rawList) endsWithPart() bool {
	if len(l) == 0 {
		return false
	}
	_, ok := l[len(l)-1].(*rawPart)
	return ok
}

// toValue converts a generic list item into a Value.
func toValue(item rawItem) Value {
	switch item := item.(type) {
	case rawString:
		return String(item)
	case rawList:
		l := make(Values, len(item))
		for i, child := range item {
			l[i] = toValue(child)
		}
		return l
	case *rawPart:
		return toValue(item.list)
	default:
		return Nil{}
	}
}
