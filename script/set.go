package script

import (
	"fmt"
	"sort"

	"github.com/ipfs/go-cid"

	"xledger.io/charter/fault"
	"xledger.io/charter/isa"
)

// Site addresses one validator entry point: a library by content
// identifier plus a byte offset into its code segment.
type Site struct {
	Lib cid.Cid
	Pos uint16
}

func (s Site) String() string {
	return fmt.Sprintf("%s+%d", s.Lib, s.Pos)
}

// Set is a deduplicated collection of libraries keyed by content id.
// Adding the same instruction stream twice keeps a single copy, so a set
// holds at most one library per distinct stream.
type Set struct {
	libs map[string]*Library
}

// NewSet returns a set holding the given libraries.
func NewSet(libs ...*Library) *Set {
	s := &Set{libs: make(map[string]*Library, len(libs))}
	for _, lib := range libs {
		s.Add(lib)
	}
	return s
}

// Add inserts lib. Inserting a library already present is a no-op.
func (s *Set) Add(lib *Library) {
	s.libs[lib.ID().String()] = lib
}

// Get returns the library with the given id.
func (s *Set) Get(id cid.Cid) (*Library, bool) {
	lib, ok := s.libs[id.String()]
	return lib, ok
}

// Len returns the number of distinct libraries.
func (s *Set) Len() int {
	return len(s.libs)
}

// IDs returns the library ids in lexicographic order of their canonical
// string form, so iteration is stable across runs.
func (s *Set) IDs() []cid.Cid {
	keys := make([]string, 0, len(s.libs))
	for k := range s.libs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	ids := make([]cid.Cid, len(keys))
	for i, k := range keys {
		ids[i] = s.libs[k].ID()
	}
	return ids
}

// Resolve returns the library a site refers to, or a structured error if
// the set does not hold it.
func (s *Set) Resolve(site Site) (*Library, error) {
	lib, ok := s.libs[site.Lib.String()]
	if !ok {
		return nil, fault.New(fault.KindValidation, "CHARTER-OFF-004",
			fmt.Sprintf("validator site %s: library not in script set", site))
	}
	return lib, nil
}

// CheckSite resolves site and verifies its entry offset carries the
// opcode want. This is the whole-package form of CheckEntry.
func (s *Set) CheckSite(site Site, want isa.Opcode) error {
	lib, err := s.Resolve(site)
	if err != nil {
		return err
	}
	return CheckEntry(lib, site.Pos, want)
}
