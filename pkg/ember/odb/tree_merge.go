// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"
	"sort"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// TreeMergeResult is the outcome of MergeTrees: either a clean merged tree,
// or a set of per-path conflicts the caller must stage into the index
// (§4.5).
type TreeMergeResult struct {
	Tree      plumbing.Hash
	Conflicts []PathConflict
}

// PathConflict binds a conflicted path to the index entry that records it.
type PathConflict struct {
	Path  string
	Entry Entry
}

func (r *TreeMergeResult) Clean() bool { return len(r.Conflicts) == 0 }

// MergeTrees implements the seven-step algorithm of §4.5 over
// union(paths(base), paths(ours), paths(theirs)). It resolves files
// directly; for a name that is a tree on at least one side and a file on
// none it recurses before falling through to the file-level rules. Such a
// subtree is walked in full even when all sides hold the same subtree oid.
func MergeTrees(ctx context.Context, store *Store, base, ours, theirs *object.Tree) (*TreeMergeResult, error) {
	root := newTreeNode()
	var conflicts []PathConflict
	if err := mergeTreesAt(ctx, store, base, ours, theirs, "", root, &conflicts); err != nil {
		return nil, err
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i].Path < conflicts[j].Path })
	if len(conflicts) > 0 {
		return &TreeMergeResult{Conflicts: conflicts}, nil
	}
	treeOid, err := root.write(ctx, store)
	if err != nil {
		return nil, err
	}
	return &TreeMergeResult{Tree: treeOid}, nil
}

func mergeTreesAt(ctx context.Context, store *Store, base, ours, theirs *object.Tree, prefix string, out *treeNode, conflicts *[]PathConflict) error {
	names := make(map[string]bool)
	for _, t := range []*object.Tree{base, ours, theirs} {
		for _, e := range treeEntriesOf(t) {
			names[e.Name] = true
		}
	}
	sorted := make([]string, 0, len(names))
	for n := range names {
		sorted = append(sorted, n)
	}
	sort.Strings(sorted)

	for _, name := range sorted {
		var eb, eo, et *object.TreeEntry
		if base != nil {
			eb = base.Entry(name)
		}
		if ours != nil {
			eo = ours.Entry(name)
		}
		if theirs != nil {
			et = theirs.Entry(name)
		}

		// If a path is a tree on at least one of the three sides (and a file
		// on none), recurse into it instead of treating the
		// subtree oid as an opaque value — otherwise an edit on one side
		// deep inside an untouched directory would falsely conflict with
		// the other side's edit to a sibling file in the same directory.
		if isTreeSide(eb) || isTreeSide(eo) || isTreeSide(et) {
			if fileSide(eb) || fileSide(eo) || fileSide(et) {
				// mixed blob/tree at the same name: fall through to the
				// plain oid-comparison rules below, which will classify it
				// as a conflict since the sides disagree on kind.
			} else {
				subBase, err := subTreeOf(ctx, store, eb)
				if err != nil {
					return err
				}
				subOurs, err := subTreeOf(ctx, store, eo)
				if err != nil {
					return err
				}
				subTheirs, err := subTreeOf(ctx, store, et)
				if err != nil {
					return err
				}
				sub := newTreeNode()
				out.subs[name] = sub
				if err := mergeTreesAt(ctx, store, subBase, subOurs, subTheirs, joinPath(prefix, name), sub, conflicts); err != nil {
					return err
				}
				continue
			}
		}

		p := joinPath(prefix, name)
		if err := mergeFileEntry(ctx, store, p, eb, eo, et, out, conflicts); err != nil {
			return err
		}
	}
	return nil
}

func isTreeSide(e *object.TreeEntry) bool { return e != nil && e.Kind == object.TreeKind }
func fileSide(e *object.TreeEntry) bool   { return e != nil && e.Kind == object.BlobKind }

func subTreeOf(ctx context.Context, store *Store, e *object.TreeEntry) (*object.Tree, error) {
	if e == nil || e.Kind != object.TreeKind {
		return nil, nil
	}
	return store.Tree(ctx, e.Hash)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}

// mergeFileEntry applies §4.5 steps 1-7 to a single path.
func mergeFileEntry(ctx context.Context, store *Store, p string, eb, eo, et *object.TreeEntry, out *treeNode, conflicts *[]PathConflict) error {
	B, O, T := entryOid(eb), entryOid(eo), entryOid(et)

	// 2. Unchanged: O == T -> take O.
	if O != nil && T != nil && *O == *T {
		if O != nil {
			out.blobs[p] = *O
		}
		return nil
	}

	// 3. One side unchanged against base.
	if oidsEqual(O, B) {
		if T != nil {
			out.blobs[p] = *T
		}
		return nil
	}
	if oidsEqual(T, B) {
		if O != nil {
			out.blobs[p] = *O
		}
		return nil
	}

	// 4. Both absent.
	if O == nil && T == nil {
		return nil
	}

	// 5. Both added, differ, base empty.
	if B == nil && O != nil && T != nil && *O != *T {
		return mergeAsText(ctx, store, p, ConflictAddAdd, nil, O, T, out, conflicts)
	}

	// 6. One side deleted, the other modified against base.
	if O == nil && T != nil {
		return singleSideConflict(p, ConflictDeleteTargetModify, B, nil, T, conflicts)
	}
	if T == nil && O != nil {
		return singleSideConflict(p, ConflictModifyTargetDelete, B, O, nil, conflicts)
	}

	// 7. Both modified from base, differ: textual content conflict.
	return mergeAsText(ctx, store, p, ConflictContent, B, O, T, out, conflicts)
}

func entryOid(e *object.TreeEntry) *plumbing.Hash {
	if e == nil {
		return nil
	}
	h := e.Hash
	return &h
}

func oidsEqual(a, b *plumbing.Hash) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func singleSideConflict(p string, kind ConflictKind, base, ours, theirs *plumbing.Hash, conflicts *[]PathConflict) error {
	*conflicts = append(*conflicts, PathConflict{Path: p, Entry: Entry{
		Path: p, Type: kind, Base: base, Ours: ours, Theirs: theirs,
	}})
	return nil
}

// mergeAsText invokes the textual three-way merger, used both for rule 5
// (add_add, base treated as empty) and rule 7 (content_conflict). A clean
// textual reconciliation is staged directly into out; a real conflict is
// recorded with the marked-up blob plus the three-way inputs (§4.5).
func mergeAsText(ctx context.Context, store *Store, p string, kind ConflictKind, base, ours, theirs *plumbing.Hash, out *treeNode, conflicts *[]PathConflict) error {
	baseText, err := blobText(ctx, store, base)
	if err != nil {
		return err
	}
	oursText, err := blobText(ctx, store, ours)
	if err != nil {
		return err
	}
	theirsText, err := blobText(ctx, store, theirs)
	if err != nil {
		return err
	}
	merged, conflicted, err := MergeText(ctx, baseText, oursText, theirsText)
	if err != nil {
		return err
	}
	mergedOid, err := store.PutBlob(ctx, []byte(merged))
	if err != nil {
		return err
	}
	if !conflicted {
		// Fully reconciled by the textual merger: not a conflict after all.
		out.blobs[p] = mergedOid
		return nil
	}
	*conflicts = append(*conflicts, PathConflict{Path: p, Entry: Entry{
		Path: p, Type: kind, Oid: mergedOid, Base: base, Ours: ours, Theirs: theirs,
	}})
	return nil
}

func blobText(ctx context.Context, store *Store, oid *plumbing.Hash) (string, error) {
	if oid == nil {
		return "", nil
	}
	kind, payload, err := store.Get(ctx, *oid)
	if err != nil {
		return "", err
	}
	if kind != object.BlobKind {
		return "", object.ErrMismatchedKind
	}
	return string(payload), nil
}
