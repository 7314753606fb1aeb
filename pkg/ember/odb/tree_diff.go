// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"
	"path"
	"sort"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// DiffRecord is one path-level difference between two trees (§4.4). AOid
// and BOid are nil when the path is absent on that side.
type DiffRecord struct {
	Path string
	AOid *plumbing.Hash
	BOid *plumbing.Hash
}

// DiffTrees performs a synchronised recursive walk over a and b's sorted
// entries. Directories are recursed into; a record is produced for a file
// path iff its oid differs between sides or either side is absent. The
// result is sorted by path (§4.4).
func DiffTrees(ctx context.Context, store *Store, a, b *object.Tree) ([]DiffRecord, error) {
	var out []DiffRecord
	if err := diffTreesAt(ctx, store, a, b, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func diffTreesAt(ctx context.Context, store *Store, a, b *object.Tree, prefix string, out *[]DiffRecord) error {
	names := make(map[string]bool)
	for _, e := range treeEntriesOf(a) {
		names[e.Name] = true
	}
	for _, e := range treeEntriesOf(b) {
		names[e.Name] = true
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		var ea, eb *object.TreeEntry
		if a != nil {
			ea = a.Entry(name)
		}
		if b != nil {
			eb = b.Entry(name)
		}
		p := path.Join(prefix, name)

		switch {
		case ea != nil && eb != nil && ea.Kind == object.TreeKind && eb.Kind == object.TreeKind:
			if ea.Hash == eb.Hash {
				continue
			}
			subA, err := store.Tree(ctx, ea.Hash)
			if err != nil {
				return err
			}
			subB, err := store.Tree(ctx, eb.Hash)
			if err != nil {
				return err
			}
			if err := diffTreesAt(ctx, store, subA, subB, p, out); err != nil {
				return err
			}
		case ea != nil && ea.Kind == object.TreeKind:
			subA, err := store.Tree(ctx, ea.Hash)
			if err != nil {
				return err
			}
			if err := diffTreesAt(ctx, store, subA, nil, p, out); err != nil {
				return err
			}
			if eb != nil {
				h := eb.Hash
				*out = append(*out, DiffRecord{Path: p, BOid: &h})
			}
		case eb != nil && eb.Kind == object.TreeKind:
			subB, err := store.Tree(ctx, eb.Hash)
			if err != nil {
				return err
			}
			if err := diffTreesAt(ctx, store, nil, subB, p, out); err != nil {
				return err
			}
			if ea != nil {
				h := ea.Hash
				*out = append(*out, DiffRecord{Path: p, AOid: &h})
			}
		default:
			var aOid, bOid *plumbing.Hash
			if ea != nil {
				h := ea.Hash
				aOid = &h
			}
			if eb != nil {
				h := eb.Hash
				bOid = &h
			}
			if aOid == nil && bOid == nil {
				continue
			}
			if aOid != nil && bOid != nil && *aOid == *bOid {
				continue
			}
			*out = append(*out, DiffRecord{Path: p, AOid: aOid, BOid: bOid})
		}
	}
	return nil
}

func treeEntriesOf(t *object.Tree) []*object.TreeEntry {
	if t == nil {
		return nil
	}
	return t.Entries
}
