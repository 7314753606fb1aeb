// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"sort"

	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/pkg/ember/odb"
)

// StatusKind classifies one path's staged state relative to HEAD.
type StatusKind string

const (
	StatusAdded    StatusKind = "added"
	StatusModified StatusKind = "modified"
	StatusDeleted  StatusKind = "deleted"
	StatusConflict StatusKind = "conflict"
)

// StatusEntry is one path's staged state.
type StatusEntry struct {
	Path string
	Kind StatusKind
}

// Status compares the index against HEAD's tree (§4.4 diff_trees, applied
// to the staging area rather than two commits): paths only in the index
// are additions, paths only in HEAD are deletions, paths in both with a
// differing oid are modifications, and any still-conflicted index entry
// reports as a conflict regardless of what HEAD holds.
func (r *Repository) Status(ctx context.Context) ([]StatusEntry, error) {
	idx, err := r.LoadIndex()
	if err != nil {
		return nil, err
	}
	headOid, err := r.resolveHEAD()
	if err != nil {
		return nil, err
	}
	headPaths := make(map[string]plumbing.Hash)
	if !headOid.IsZero() {
		tree, err := r.treeOf(ctx, headOid)
		if err != nil {
			return nil, err
		}
		headIdx := odb.NewIndex("")
		if err := headIdx.LoadTree(ctx, r.Store, tree); err != nil {
			return nil, err
		}
		for _, e := range headIdx.Entries() {
			headPaths[e.Path] = e.Oid
		}
	}

	var out []StatusEntry
	seen := make(map[string]bool, len(idx.Entries()))
	for _, e := range idx.Entries() {
		seen[e.Path] = true
		if e.Conflicted() {
			out = append(out, StatusEntry{Path: e.Path, Kind: StatusConflict})
			continue
		}
		headOid, inHead := headPaths[e.Path]
		switch {
		case !inHead:
			out = append(out, StatusEntry{Path: e.Path, Kind: StatusAdded})
		case headOid != e.Oid:
			out = append(out, StatusEntry{Path: e.Path, Kind: StatusModified})
		}
	}
	for p := range headPaths {
		if !seen[p] {
			out = append(out, StatusEntry{Path: p, Kind: StatusDeleted})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
