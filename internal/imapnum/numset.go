// Package imapnum implements sets of message numbers, as used in IMAP
// sequence-set arguments.
package imapnum

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Range is an inclusive range of non-zero numbers, "n" or "n:m".
type Range struct {
	Start, Stop uint32
}

func (r Range) String() string {
	if r.Start == r.Stop {
		return strconv.FormatUint(uint64(r.Start), 10)
	}
	return strconv.FormatUint(uint64(r.Start), 10) + ":" + strconv.FormatUint(uint64(r.Stop), 10)
}

// Set is a set of numbers. Ranges are sorted and never overlap nor touch.
// The zero value is an empty set.
//
// The dynamic "*" value isn't supported: sets only hold numbers known to the
// client.
type Set []Range

// AddNum inserts numbers into the set. Zero is ignored.
func (s *Set) AddNum(nums ...uint32) {
	for _, n := range nums {
		if n != 0 {
			s.AddRange(n, n)
		}
	}
}

// AddRange inserts all numbers between start and stop, inclusive.
func (s *Set) AddRange(start, stop uint32) {
	if start > stop {
		start, stop = stop, start
	}
	if start == 0 {
		if stop == 0 {
			return
		}
		start = 1
	}
	*s = append(*s, Range{start, stop})
	s.normalize()
}

func (s *Set) normalize() {
	l := *s
	sort.Slice(l, func(i, j int) bool {
		return l[i].Start < l[j].Start
	})

	out := l[:0]
	for _, r := range l {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Stop == ^uint32(0) || r.Start <= last.Stop+1 {
				if r.Stop > last.Stop {
					last.Stop = r.Stop
				}
				continue
			}
		}
		out = append(out, r)
	}
	*s = out
}

// Contains returns true if n is in the set.
func (s Set) Contains(n uint32) bool {
	i := sort.Search(len(s), func(i int) bool {
		return s[i].Stop >= n
	})
	return i < len(s) && s[i].Start <= n
}

// Nums returns all numbers of the set, in increasing order.
func (s Set) Nums() []uint32 {
	var nums []uint32
	for _, r := range s {
		for n := r.Start; ; n++ {
			nums = append(nums, n)
			if n == r.Stop {
				break
			}
		}
	}
	return nums
}

// String formats the set as a sequence-set, e.g. "1:3,7".
func (s Set) String() string {
	l := make([]string, len(s))
	for i, r := range s {
		l[i] = r.String()
	}
	return strings.Join(l, ",")
}

func parseNum(v string) (uint32, error) {
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil || n == 0 || v[0] == '0' {
		return 0, fmt.Errorf("imapnum: invalid number %q", v)
	}
	return uint32(n), nil
}

// ParseSet parses a sequence-set such as "1:3,7".
func ParseSet(v string) (Set, error) {
	var s Set
	for _, field := range strings.Split(v, ",") {
		startStr, stopStr, isRange := strings.Cut(field, ":")
		start, err := parseNum(startStr)
		if err != nil {
			return nil, err
		}
		stop := start
		if isRange {
			if stop, err = parseNum(stopStr); err != nil {
				return nil, err
			}
		}
		s.AddRange(start, stop)
	}
	return s, nil
}
