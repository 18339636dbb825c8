package imapfetch

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/emersion/go-imapfetch/internal/imapnum"
	"github.com/emersion/go-imapfetch/internal/imapwire"
)

// UIDSet is a set of message UIDs.
type UIDSet struct {
	set imapnum.Set
}

// UIDSetNum returns a new UIDSet containing the provided UIDs.
func UIDSetNum(uids ...uint32) UIDSet {
	var s UIDSet
	s.AddNum(uids...)
	return s
}

// ParseUIDSet parses a sequence-set of UIDs, e.g. "1:3,7".
func ParseUIDSet(s string) (UIDSet, error) {
	set, err := imapnum.ParseSet(s)
	if err != nil {
		return UIDSet{}, err
	}
	return UIDSet{set}, nil
}

// AddNum inserts UIDs into the set.
func (s *UIDSet) AddNum(uids ...uint32) {
	s.set.AddNum(uids...)
}

// AddRange inserts all UIDs between start and stop, inclusive.
func (s *UIDSet) AddRange(start, stop uint32) {
	s.set.AddRange(start, stop)
}

// Contains returns true if the set contains uid.
func (s UIDSet) Contains(uid uint32) bool {
	return s.set.Contains(uid)
}

// Nums returns the UIDs in increasing order.
func (s UIDSet) Nums() []uint32 {
	return s.set.Nums()
}

// String returns the IMAP representation of the set.
func (s UIDSet) String() string {
	return s.set.String()
}

// UIDs returns the UIDs of the messages in the result.
func (result FetchResult) UIDs() UIDSet {
	var s UIDSet
	for uid := range result {
		s.AddNum(uid)
	}
	return s
}

// Sorted returns the UIDs of the messages in the result, in increasing order.
func (result FetchResult) Sorted() []uint32 {
	uids := make([]uint32, 0, len(result))
	for uid := range result {
		uids = append(uids, uid)
	}
	sort.Slice(uids, func(i, j int) bool {
		return uids[i] < uids[j]
	})
	return uids
}

// Missing returns the requested UIDs for which the server didn't return any
// data, usually because the messages have been expunged.
func (result FetchResult) Missing(requested UIDSet) UIDSet {
	var missing UIDSet
	for _, uid := range requested.Nums() {
		if _, ok := result[uid]; !ok {
			missing.AddNum(uid)
		}
	}
	return missing
}

// WriteFetchCommand writes a tagged UID FETCH command.
func WriteFetchCommand(w io.Writer, tag string, uids UIDSet, items []FetchItem) error {
	if len(uids.set) == 0 {
		return fmt.Errorf("imapfetch: empty UID set")
	}

	bw := bufio.NewWriter(w)
	enc := imapwire.NewEncoder(bw)
	enc.Atom(tag).SP().Atom("UID FETCH").SP().Atom(uids.String()).SP()
	if err := enc.Flush(); err != nil {
		return err
	}
	if err := WriteFetchItems(bw, items, true); err != nil {
		return err
	}
	return enc.CRLF()
}
