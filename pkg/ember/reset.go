// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"

	"github.com/emberscm/ember/modules/plumbing"
)

// ResetMode selects how far Reset unwinds state (§4.6).
type ResetMode int

const (
	// ResetSoft moves HEAD only; the index and working tree are untouched.
	ResetSoft ResetMode = iota
	// ResetMixed moves HEAD and reloads the index from the target commit's
	// tree, leaving working-tree files as they are.
	ResetMixed
	// ResetHard moves HEAD and reloads the index identically to ResetMixed;
	// it does not rewrite working-tree files. Working-tree synchronization
	// is an external collaborator's responsibility (§1 non-goal), and
	// materializing files is left to that adapter.
	ResetHard
)

// Reset moves the current branch (or detached HEAD) to target, per mode.
func (r *Repository) Reset(ctx context.Context, target plumbing.Hash, mode ResetMode) error {
	branch, err := r.currentBranch()
	if err != nil {
		return err
	}
	head, err := r.resolveHEAD()
	if err != nil {
		return err
	}
	if err := r.Refs.Update(branch, target, &head); err != nil {
		return err
	}
	if mode == ResetSoft {
		return nil
	}

	tree, err := r.treeOf(ctx, target)
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
