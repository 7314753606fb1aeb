// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"

	"github.com/emberscm/ember/modules/plumbing"
)

// Switch moves HEAD to branch (symbolically) and reloads the index from
// its tip's tree. Materializing the working tree to match is left to the
// external working-tree adapter (§1 non-goal).
func (r *Repository) Switch(ctx context.Context, branch string) error {
	refName := plumbing.NewBranchReferenceName(branch)
	ref, err := r.Refs.Reference(refName)
	if err != nil {
		return err
	}
	if err := r.Refs.Symref(plumbing.HEAD, refName); err != nil {
		return err
	}
	tree, err := r.treeOf(ctx, ref.Hash())
	if err != nil {
		return err
	}
	idx, err := r.LoadIndex()
	if err != nil {
		return err
	}
	if err := idx.LoadTree(ctx, r.Store, tree); err != nil {
		return err
	}
	return idx.Save()
}

// SwitchDetached points HEAD directly at commit, bypassing any branch.
func (r *Repository) SwitchDetached(ctx context.Context, commit plumbing.Hash) error {
	if err := r.Refs.Detach(plumbing.HEAD, commit); err != nil {
		return err
	}
	tree, err := r.treeOf(ctx, commit)
	if err != nil {
		return err
	}
	idx, err := r.LoadIndex()
	if err != nil {
		return err
	}
	if err := idx.LoadTree(ctx, r.Store, tree); err != nil {
		return err
	}
	return idx.Save()
}
