// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/pkg/ember/odb"
)

// ShowResult pairs a commit with the tree diff against its first parent
// (the zero hash for a root commit, diffed against the empty tree).
type ShowResult struct {
	Commit *object.Commit
	Diff   []odb.DiffRecord
}

// Show resolves oid to a commit and computes its diff against its first
// parent, the inspection counterpart to Commit (§4.4 diff_trees applied to
// one commit's own change).
func (r *Repository) Show(ctx context.Context, oid plumbing.Hash) (*ShowResult, error) {
	c, err := object.GetCommit(ctx, r.Store, oid)
	if err != nil {
		return nil, err
	}
	tree, err := object.GetTree(ctx, r.Store, c.Tree)
	if err != nil {
		return nil, err
	}
	var parentTree *object.Tree
	if len(c.Parents) > 0 {
		parentTree, err = r.treeOf(ctx, c.Parents[0])
	} else {
		parentTree, err = r.treeOf(ctx, plumbing.ZeroHash)
	}
	if err != nil {
		return nil, err
	}
	diff, err := odb.DiffTrees(ctx, r.Store, parentTree, tree)
	if err != nil {
		return nil, err
	}
	return &ShowResult{Commit: c, Diff: diff}, nil
}
