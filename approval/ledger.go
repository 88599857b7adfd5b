// Package approval tracks per-item user approval for reviewable artifacts.
// The ledger lives only in client memory: it is seeded once per wizard stage
// entry from server hints and then diverges as the user toggles items.
package approval

import (
	"fmt"
	"sort"
)

// CoverKey is the ledger key for the book cover.
const CoverKey = "cover"

// PageKey returns the ledger key for a 1-indexed page number.
func PageKey(n int) string {
	return fmt.Sprintf("page_%d", n)
}

// Ledger maps item keys (character name, "page_<n>", "cover") to approval
// booleans. It performs no I/O and is serialized by its owner; the wizard
// controller guards it with its own lock.
type Ledger struct {
	entries     map[string]bool
	initialized bool
}

// NewLedger returns an empty, uninitialized ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]bool)}
}

// Init seeds the ledger for a stage entry. Keys already present keep their
// current value: re-seeding during polling re-renders must never stomp a
// toggle the user already made. New keys default to the hint value, or
// false when no hint exists.
func (l *Ledger) Init(keys []string, hints map[string]bool) {
	for _, k := range keys {
		if _, ok := l.entries[k]; ok {
			continue
		}
		l.entries[k] = hints[k]
	}
	l.initialized = true
}

// Initialized reports whether Init has run since the last Reset.
func (l *Ledger) Initialized() bool {
	return l.initialized
}

// Approve sets a key true. It reports false for keys the ledger does not
// track, since approval without a corresponding artifact is meaningless.
func (l *Ledger) Approve(key string) bool {
	if _, ok := l.entries[key]; !ok {
		return false
	}
	l.entries[key] = true
	return true
}

// Unapprove sets a key false. Used both for explicit undo and implicitly by
// regeneration. Unknown keys are ignored.
func (l *Ledger) Unapprove(key string) {
	if _, ok := l.entries[key]; !ok {
		return
	}
	l.entries[key] = false
}

// Approved reports the current value for a key; untracked keys are false.
func (l *Ledger) Approved(key string) bool {
	return l.entries[key]
}

// IsComplete reports whether every key in the given item set is approved.
// An empty set is complete.
func (l *Ledger) IsComplete(keys []string) bool {
	for _, k := range keys {
		if !l.entries[k] {
			return false
		}
	}
	return true
}

// Pending returns the tracked keys that are not yet approved, sorted.
func (l *Ledger) Pending() []string {
	var out []string
	for k, v := range l.entries {
		if !v {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

// Keys returns all tracked keys, sorted.
func (l *Ledger) Keys() []string {
	out := make([]string, 0, len(l.entries))
	for k := range l.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Snapshot returns a copy of the current entries for rendering.
func (l *Ledger) Snapshot() map[string]bool {
	out := make(map[string]bool, len(l.entries))
	for k, v := range l.entries {
		out[k] = v
	}
	return out
}

// Reset clears all entries and the initialized mark. Called on stage change
// so the next Init reseeds from scratch.
func (l *Ledger) Reset() {
	l.entries = make(map[string]bool)
	l.initialized = false
}
