// Package libsurveyaccess keeps the access control list over ciphertext
// handles. A handle starts with no grants; whoever holds a grant may ask the
// service to key-switch the ciphertext towards them. Since every homomorphic
// operation mints a fresh handle, grants never follow a value through an
// operation and must be re-issued on the result.
package libsurveyaccess

import (
	"sort"
	"sync"

	"github.com/MerleBarney/encrypted-survey/lib"
)

// Table is the in-memory access control list.
type Table struct {
	mu     sync.Mutex
	grants map[libsurvey.Handle]map[libsurvey.Address]bool
}

// NewTable creates an empty access control list.
func NewTable() *Table {
	return &Table{grants: make(map[libsurvey.Handle]map[libsurvey.Address]bool)}
}

// Allow grants every listed address access to the handle.
func (t *Table) Allow(h libsurvey.Handle, addrs ...libsurvey.Address) {
	if h.IsZero() {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	set, ok := t.grants[h]
	if !ok {
		set = make(map[libsurvey.Address]bool, len(addrs))
		t.grants[h] = set
	}
	for _, a := range addrs {
		set[a] = true
	}
}

// IsAllowed reports whether the address holds a grant on the handle.
func (t *Table) IsAllowed(h libsurvey.Handle, a libsurvey.Address) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grants[h][a]
}

// Grants lists the addresses allowed on the handle, sorted for stable output.
func (t *Table) Grants(h libsurvey.Handle) []libsurvey.Address {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]libsurvey.Address, 0, len(t.grants[h]))
	for a := range t.grants[h] {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
