package domain

import (
	"math/rand/v2"
	"sort"
)

// Set is an unordered collection of unique members.
type Set struct {
	members map[string]struct{}
}

// NewSet creates a set holding members.
func NewSet(members ...string) *Set {
	s := &Set{members: make(map[string]struct{}, len(members))}
	s.Add(members...)
	return s
}

// Kind implements Value.
func (s *Set) Kind() Kind { return KindSet }

// Len implements Value.
func (s *Set) Len() int { return len(s.members) }

// Add inserts members and returns how many were new.
func (s *Set) Add(members ...string) int {
	added := 0
	for _, m := range members {
		if _, ok := s.members[m]; !ok {
			s.members[m] = struct{}{}
			added++
		}
	}
	return added
}

// Remove deletes members and returns how many were present.
func (s *Set) Remove(members ...string) int {
	removed := 0
	for _, m := range members {
		if _, ok := s.members[m]; ok {
			delete(s.members, m)
			removed++
		}
	}
	return removed
}

// Contains reports whether m is a member.
func (s *Set) Contains(m string) bool {
	_, ok := s.members[m]
	return ok
}

// Members returns the members sorted ascending.
func (s *Set) Members() []string {
	out := make([]string, 0, len(s.members))
	for m := range s.members {
		out = append(out, m)
	}
	sort.Strings(out)
	return out
}

// Random returns a uniformly chosen member without removing it.
func (s *Set) Random(rng *rand.Rand) (string, bool) {
	if len(s.members) == 0 {
		return "", false
	}
	n := rng.IntN(len(s.members))
	for m := range s.members {
		if n == 0 {
			return m, true
		}
		n--
	}
	return "", false
}
