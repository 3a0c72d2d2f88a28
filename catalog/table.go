// Package catalog holds the package table built from one or more
// staging roots, and the categorizer pass that derives required-by
// edges and assigns orphan packages to umbrella packages.
package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/miktex/mpc/event"
	"github.com/miktex/mpc/mpcerr"
	"github.com/miktex/mpc/stage"
	"github.com/miktex/mpc/tds"
)

// Table maps package id to PackageInfo. Duplicate ids encountered while
// building a table are warned and the first one wins, mirroring the
// package-list reader's duplicate policy.
type Table struct {
	byID map[string]*tds.PackageInfo
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{byID: make(map[string]*tds.PackageInfo)}
}

// Add inserts p, or warns and ignores it if p.ID is already present.
func (t *Table) Add(p *tds.PackageInfo, l event.Listener) {
	if _, exists := t.byID[p.ID]; exists {
		event.Emit(l, event.Warning{Message: fmt.Sprintf("duplicate package %s, first wins", p.ID)})
		return
	}
	t.byID[p.ID] = p
}

// Put inserts or overwrites the entry for p.ID unconditionally, used
// when refreshing a single package against a previously known
// repository state rather than merging fresh staging roots (where
// Add's duplicate policy applies instead).
func (t *Table) Put(p *tds.PackageInfo) {
	t.byID[p.ID] = p
}

// Get returns the package with the given id, or nil.
func (t *Table) Get(id string) *tds.PackageInfo { return t.byID[id] }

// IDs returns every id in the table, sorted ASCII-ascending for
// deterministic iteration wherever order is wire-visible.
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of packages in the table.
func (t *Table) Len() int { return len(t.byID) }

// All returns every package in the table, in sorted-id order.
func (t *Table) All() []*tds.PackageInfo {
	ids := t.IDs()
	out := make([]*tds.PackageInfo, len(ids))
	for i, id := range ids {
		out[i] = t.byID[id]
	}
	return out
}

// BuildFromStagingRoots walks each root directory one level deep,
// treating each child directory as a staging directory, and collects
// them into a single table. Duplicate ids across roots are warned and
// the first staging directory encountered wins (roots are walked in
// the order given, children within a root in lexical order).
func BuildFromStagingRoots(roots []string, l event.Listener) (*Table, error) {
	t := NewTable()
	for _, root := range roots {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, mpcerr.Io("readdir", root, err)
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if e.IsDir() {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, name := range names {
			dir := filepath.Join(root, name)
			p, err := stage.ReadStagingDir(dir, l)
			if err != nil {
				return nil, err
			}
			t.Add(p, l)
		}
	}
	return t, nil
}
