// Package isa holds the instruction-set capability table: the mapping
// from mnemonic to the capability required to execute it.
package isa

import (
	"sort"
	"strings"

	"github.com/jasonKoogler/pipesim/internal/capability"
	"github.com/jasonKoogler/pipesim/internal/simerr"
)

// Row is one (mnemonic, capability) entry as decoded from the ISA table
// input (§6 of the specification).
type Row struct {
	Mnemonic   string
	Capability string
}

// ISA maps mnemonics (case-insensitively) to capabilities.
type ISA struct {
	byMnemonic map[string]entry
}

type entry struct {
	mnemonic   string
	capability capability.Capability
}

// New builds an ISA from an ordered sequence of rows, rejecting
// case-folded duplicate mnemonics.
func New(rows []Row) (*ISA, error) {
	table := &ISA{byMnemonic: make(map[string]entry, len(rows))}
	for _, r := range rows {
		key := strings.ToLower(r.Mnemonic)
		if _, exists := table.byMnemonic[key]; exists {
			return nil, simerr.New(simerr.DuplicateMnemonic,
				"duplicate mnemonic %q in ISA table", r.Mnemonic).WithNames(r.Mnemonic)
		}
		table.byMnemonic[key] = entry{mnemonic: r.Mnemonic, capability: capability.New(r.Capability)}
	}
	return table, nil
}

// ValidateAgainst fails with UnsupportedCapability if any mnemonic maps
// to a capability absent from supported — the union of capabilities
// reachable from the processor's entry ports.
func (i *ISA) ValidateAgainst(supported capability.Set) error {
	keys := make([]string, 0, len(i.byMnemonic))
	for k := range i.byMnemonic {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		e := i.byMnemonic[k]
		if !supported.Has(e.capability) {
			return simerr.New(simerr.UnsupportedCapability,
				"mnemonic %q requires capability %q, unsupported by processor",
				e.mnemonic, e.capability).WithNames(e.mnemonic, e.capability.String())
		}
	}
	return nil
}

// Lookup resolves a mnemonic (case-insensitively) to its capability.
func (i *ISA) Lookup(mnemonic string) (capability.Capability, bool) {
	e, ok := i.byMnemonic[strings.ToLower(mnemonic)]
	if !ok {
		return capability.Capability{}, false
	}
	return e.capability, true
}
