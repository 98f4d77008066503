// Package scheduler compares locked sets so that only changes are pushed to
// the enforcement surface.
package scheduler

import (
	"sort"
	"time"
)

// Entry is one locked package as last seen by the enforcement surface.
type Entry struct {
	PackageName string
	UnlockAt    *time.Time
}

// Set is a locked set keyed by package name.
type Set map[string]Entry

// NewSet builds a Set from entries. Later duplicates win.
func NewSet(entries ...Entry) Set {
	set := make(Set, len(entries))
	for _, entry := range entries {
		set[entry.PackageName] = entry
	}
	return set
}

// Clone returns an independent copy of the set.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	for pkg, entry := range s {
		out[pkg] = entry
	}
	return out
}

// Packages returns the sorted package names in the set.
func (s Set) Packages() []string {
	out := make([]string, 0, len(s))
	for pkg := range s {
		out = append(out, pkg)
	}
	sort.Strings(out)
	return out
}

// Delta describes how to move from a pushed set to a desired set.
//
// Lock holds packages that are new or whose unlock time changed; pushing a
// lock again replaces the previous one. Unlock holds packages to release.
type Delta struct {
	Lock   []Entry
	Unlock []string
}

// Empty reports whether there is nothing to push.
func (d Delta) Empty() bool {
	return len(d.Lock) == 0 && len(d.Unlock) == 0
}

// Diff computes the delta from pushed to desired. Both outputs are sorted by
// package name.
func Diff(pushed, desired Set) Delta {
	var delta Delta
	for pkg, want := range desired {
		have, ok := pushed[pkg]
		if !ok || !sameUnlock(have.UnlockAt, want.UnlockAt) {
			delta.Lock = append(delta.Lock, want)
		}
	}
	for pkg := range pushed {
		if _, ok := desired[pkg]; !ok {
			delta.Unlock = append(delta.Unlock, pkg)
		}
	}
	sort.Slice(delta.Lock, func(i, j int) bool {
		return delta.Lock[i].PackageName < delta.Lock[j].PackageName
	})
	sort.Strings(delta.Unlock)
	return delta
}

func sameUnlock(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}
