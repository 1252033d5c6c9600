package scheduler

import (
	"slices"
)

// Prerequisite is an opaque token naming an event that has happened.
// Equality is by value; applications declare their own constants.
type Prerequisite string

// FactView is the read-only face of a FactSet handed to running tasks.
type FactView interface {
	Contains(p Prerequisite) bool
	ContainsAll(required FactSet) bool
	Sorted() []Prerequisite
	Len() int
}

// FactSet is an append-only set of prerequisites.
// There is deliberately no removal operation: once asserted, a fact stays asserted.
type FactSet map[Prerequisite]struct{}

// NewFactSet creates a set holding the given facts.
func NewFactSet(facts ...Prerequisite) FactSet {
	fs := make(FactSet, len(facts))
	for _, f := range facts {
		fs[f] = struct{}{}
	}
	return fs
}

// Add asserts a single fact. Adding an existing fact is a no-op.
func (fs FactSet) Add(p Prerequisite) {
	fs[p] = struct{}{}
}

// Merge adds every fact of other into fs.
func (fs FactSet) Merge(other FactSet) {
	for p := range other {
		fs[p] = struct{}{}
	}
}

// Contains reports whether p has been asserted.
func (fs FactSet) Contains(p Prerequisite) bool {
	_, ok := fs[p]
	return ok
}

// ContainsAll reports whether every element of required is a member.
// An empty requirement is trivially satisfied.
func (fs FactSet) ContainsAll(required FactSet) bool {
	for p := range required {
		if _, ok := fs[p]; !ok {
			return false
		}
	}
	return true
}

// Missing returns the sorted elements of required that are not yet members.
func (fs FactSet) Missing(required FactSet) []Prerequisite {
	var missing []Prerequisite
	for p := range required {
		if _, ok := fs[p]; !ok {
			missing = append(missing, p)
		}
	}
	slices.Sort(missing)
	return missing
}

// Len returns the number of facts.
func (fs FactSet) Len() int {
	return len(fs)
}

// Sorted returns the facts in lexical order.
func (fs FactSet) Sorted() []Prerequisite {
	out := make([]Prerequisite, 0, len(fs))
	for p := range fs {
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// Clone returns an independent copy.
func (fs FactSet) Clone() FactSet {
	cp := make(FactSet, len(fs))
	for p := range fs {
		cp[p] = struct{}{}
	}
	return cp
}

func factStrings(facts []Prerequisite) []string {
	out := make([]string, len(facts))
	for i, f := range facts {
		out[i] = string(f)
	}
	return out
}
