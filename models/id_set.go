// ABOUTME: Set of message custom ids with the set algebra used by reconciliation
// ABOUTME: Also defines the local and remote state snapshots the sync engine compares

package models

import "sort"

// IDSet is an unordered set of message custom ids
type IDSet map[string]struct{}

// NewIDSet builds a set from the given ids; duplicates collapse
func NewIDSet(ids ...string) IDSet {
	s := make(IDSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s IDSet) Add(ids ...string) {
	for _, id := range ids {
		s[id] = struct{}{}
	}
}

func (s IDSet) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s IDSet) Len() int {
	return len(s)
}

// Union returns a new set with the members of both sets
func (s IDSet) Union(other IDSet) IDSet {
	out := make(IDSet, len(s)+len(other))
	for id := range s {
		out[id] = struct{}{}
	}
	for id := range other {
		out[id] = struct{}{}
	}
	return out
}

// Minus returns the members of s that are not in other
func (s IDSet) Minus(other IDSet) IDSet {
	out := make(IDSet)
	for id := range s {
		if !other.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Intersect returns the members present in both sets
func (s IDSet) Intersect(other IDSet) IDSet {
	small, large := s, other
	if len(large) < len(small) {
		small, large = large, small
	}
	out := make(IDSet)
	for id := range small {
		if large.Has(id) {
			out[id] = struct{}{}
		}
	}
	return out
}

// Slice returns the members sorted, so request batches are deterministic
func (s IDSet) Slice() []string {
	out := make([]string, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// MessageStateSets is the locally stored state of one feed
type MessageStateSets struct {
	Read    IDSet
	Unread  IDSet
	Starred IDSet
}

// All returns every locally known message id of the feed
func (m MessageStateSets) All() IDSet {
	return m.Read.Union(m.Unread)
}

// LocalState maps a feed custom id to its stored message state
type LocalState map[string]MessageStateSets

// Starred returns the union of every feed's starred set
func (l LocalState) Starred() IDSet {
	out := make(IDSet)
	for _, sets := range l {
		out.Add(sets.Starred.Slice()...)
	}
	return out
}

// RemoteIDSnapshot is the id-only view of the server used to decide what to fetch
type RemoteIDSnapshot struct {
	All     IDSet
	Unread  IDSet
	Starred IDSet
}

// Read returns the ids the server considers read
func (r RemoteIDSnapshot) Read() IDSet {
	return r.All.Minus(r.Unread)
}
