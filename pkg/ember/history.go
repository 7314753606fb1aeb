// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"fmt"
	"time"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/pkg/ember/odb"
)

// MergeBase computes the lowest common ancestor of a and b via alternating
// bidirectional BFS (§4.6).
func (r *Repository) MergeBase(ctx context.Context, a, b plumbing.Hash) (plumbing.Hash, error) {
	return object.MergeBase(ctx, r.Store, a, b)
}

// IsAncestor reports whether x is reachable by walking parent links from y.
func (r *Repository) IsAncestor(ctx context.Context, x, y plumbing.Hash) (bool, error) {
	return object.IsAncestor(ctx, r.Store, x, y)
}

// currentBranch resolves HEAD without following the symbolic chain all the
// way to an oid, returning the branch ref it points at. Detached HEAD
// returns plumbing.HEAD itself, matching "update the branch that HEAD
// symref points to (or HEAD itself if detached)" (§4.6).
func (r *Repository) currentBranch() (plumbing.ReferenceName, error) {
	ref, err := r.Refs.Reference(plumbing.HEAD)
	if err != nil {
		return "", err
	}
	if ref.Type() == plumbing.SymbolicReference {
		return ref.Target(), nil
	}
	return plumbing.HEAD, nil
}

// resolveHEAD returns the oid HEAD currently points to, or ZeroHash on an
// unborn branch (no commits yet).
func (r *Repository) resolveHEAD() (plumbing.Hash, error) {
	ref, err := r.Refs.Resolve(plumbing.HEAD, true)
	if err == plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash, nil
	}
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return ref.Hash(), nil
}

// Commit implements §4.6 "commit(message) -> oid": it requires a
// conflict-free index, writes the tree, parents from HEAD plus MERGE_HEAD
// if present, and advances the current branch (or detached HEAD).
func (r *Repository) Commit(ctx context.Context, message string) (plumbing.Hash, error) {
	idx, err := r.LoadIndex()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if idx.HasConflicts() {
		return plumbing.ZeroHash, fmt.Errorf("ember: cannot commit: unresolved conflicts in index")
	}
	treeOid, err := idx.WriteTree(ctx, r.Store)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	headOid, err := r.resolveHEAD()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	var parents []plumbing.Hash
	if !headOid.IsZero() {
		parents = append(parents, headOid)
	}
	if mergeHead, ok, err := r.Refs.SpecialRef(plumbing.MergeHead); err != nil {
		return plumbing.ZeroHash, err
	} else if ok {
		parents = append(parents, mergeHead)
	}

	name, email, err := r.identity()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	now := time.Now()
	sig := object.NewSignature(name, email, now)

	c := &object.Commit{Tree: treeOid, Parents: parents, Author: sig, Committer: sig, Message: message}
	oid, err := r.Store.PutCommit(ctx, c)
	if err != nil {
		return plumbing.ZeroHash, err
	}

	branch, err := r.currentBranch()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if err := r.Refs.Update(branch, oid, &headOid); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := r.Refs.ClearSpecialRef(plumbing.MergeHead); err != nil {
		return plumbing.ZeroHash, err
	}
	if err := r.Refs.ClearSpecialRef(plumbing.CherryPickHead); err != nil {
		return plumbing.ZeroHash, err
	}
	return oid, nil
}

// ApplyOutcome reports what happened when the apply-commit kernel ran:
// either a clean result advancing the target, a set of staged conflicts
// awaiting resolution, or a no-op because the result tree equals the
// parent's.
type ApplyOutcome struct {
	Oid       plumbing.Hash
	Empty     bool
	Conflicts []odb.PathConflict
}

// applyKernel is the shared "apply one commit" primitive behind merge and
// cherry-pick (§4.6): ours = tree(target), theirs = tree(c); merge_trees
// against baseOid's tree; on a clean result call the finisher, on
// conflicts stage markers and record the in-progress special ref.
//
// For cherry-pick baseOid is c's own parent, matching §4.6's literal
// "base = parent(c)" (the diff c introduced against its own history). A
// true merge instead passes merge_base(target, c) as baseOid: using
// parent(c) there would silently diff against the wrong tree whenever
// theirs carries more than one commit past the last common ancestor, which
// is the ordinary case for any real feature branch.
func (r *Repository) applyKernel(ctx context.Context, c *object.Commit, baseOid, target plumbing.Hash, specialRef plumbing.ReferenceName, parents []plumbing.Hash, message string) (*ApplyOutcome, error) {
	baseTree, err := r.treeOf(ctx, baseOid)
	if err != nil {
		return nil, err
	}
	oursTree, err := r.treeOf(ctx, target)
	if err != nil {
		return nil, err
	}
	theirsTree, err := object.GetTree(ctx, r.Store, c.Tree)
	if err != nil {
		return nil, err
	}

	result, err := odb.MergeTrees(ctx, r.Store, baseTree, oursTree, theirsTree)
	if err != nil {
		return nil, err
	}
	if !result.Clean() {
		idx, err := r.LoadIndex()
		if err != nil {
			return nil, err
		}
		for _, conflict := range result.Conflicts {
			e := conflict.Entry
			idx.StageConflict(conflict.Path, e.Type, e.Base, e.Ours, e.Theirs, e.Oid)
		}
		if err := idx.Save(); err != nil {
			return nil, err
		}
		if err := r.Refs.SetSpecialRef(specialRef, c.Hash); err != nil {
			return nil, err
		}
		return &ApplyOutcome{Conflicts: result.Conflicts}, nil
	}

	oid, empty, err := r.finishApply(ctx, c, result.Tree, parents, message)
	if err != nil {
		return nil, err
	}
	return &ApplyOutcome{Oid: oid, Empty: empty}, nil
}

func (r *Repository) treeOf(ctx context.Context, commitOid plumbing.Hash) (*object.Tree, error) {
	if commitOid.IsZero() {
		return object.NewEmptyTree(r.Store), nil
	}
	c, err := object.GetCommit(ctx, r.Store, commitOid)
	if err != nil {
		return nil, err
	}
	return object.GetTree(ctx, r.Store, c.Tree)
}

// finishApply implements §4.6's Finisher: if the merged tree equals the
// first parent's tree the result is empty (caller decides skip vs error);
// otherwise it writes a commit authored by c.Author with the current
// user as committer. This deliberately diverges from a tool that preserves
// the original committer verbatim during replay — §4.6 says committer
// comes from "current config", full stop, for every kernel invocation.
func (r *Repository) finishApply(ctx context.Context, c *object.Commit, mergedTree plumbing.Hash, parents []plumbing.Hash, message string) (plumbing.Hash, bool, error) {
	if len(parents) > 0 {
		parentTree, err := r.treeOf(ctx, parents[0])
		if err != nil {
			return plumbing.ZeroHash, false, err
		}
		if parentTree.Hash == mergedTree || (parentTree.Hash.IsZero() && mergedTree.IsZero()) {
			return plumbing.ZeroHash, true, nil
		}
	}
	name, email, err := r.identity()
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	committer := object.NewSignature(name, email, time.Now())
	commit := &object.Commit{
		Tree: mergedTree, Parents: parents,
		Author: c.Author, Committer: committer,
		Message: message,
	}
	oid, err := r.Store.PutCommit(ctx, commit)
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	return oid, false, nil
}

// advanceBranch performs the CAS ref update the three drivers below share
// once the kernel reports a clean, non-empty result.
func (r *Repository) advanceBranch(oid, expectedOld plumbing.Hash) error {
	branch, err := r.currentBranch()
	if err != nil {
		return err
	}
	return r.Refs.Update(branch, oid, &expectedOld)
}
