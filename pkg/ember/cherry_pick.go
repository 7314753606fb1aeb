// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"fmt"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// CherryPickResult reports how CherryPick concluded.
type CherryPickResult struct {
	Empty   bool
	Outcome *ApplyOutcome
}

// CherryPick replays c onto HEAD (§4.6): baseOid is c's own parent (the diff
// c introduced against its own history), parents is [HEAD] alone, and the
// replayed commit keeps c's author and message — only the committer comes
// from current config, per the kernel's shared Finisher.
//
// mainline selects which parent of a merge commit to diff against (1-based,
// as in "first parent", "second parent"); it is ignored for non-merge
// commits and required for merge commits (§9's open question: cherry-
// picking a merge is refused unless the caller names a mainline parent).
func (r *Repository) CherryPick(ctx context.Context, commit plumbing.Hash, mainline int) (*CherryPickResult, error) {
	c, err := object.GetCommit(ctx, r.Store, commit)
	if err != nil {
		return nil, err
	}
	head, err := r.resolveHEAD()
	if err != nil {
		return nil, err
	}

	var baseOid plumbing.Hash
	switch {
	case c.IsMerge():
		if mainline < 1 || mainline > len(c.Parents) {
			return nil, fmt.Errorf("ember: %s is a merge commit; a mainline parent (1-%d) must be specified", commit.Prefix(), len(c.Parents))
		}
		baseOid = c.Parents[mainline-1]
	case len(c.Parents) > 0:
		baseOid = c.Parents[0]
	default:
		baseOid = plumbing.ZeroHash
	}

	outcome, err := r.applyKernel(ctx, c, baseOid, head, plumbing.CherryPickHead, []plumbing.Hash{head}, c.Message)
	if err != nil {
		return nil, err
	}
	if outcome.Empty {
		return &CherryPickResult{Empty: true}, nil
	}
	if len(outcome.Conflicts) == 0 {
		if err := r.advanceBranch(outcome.Oid, head); err != nil {
			return nil, err
		}
	}
	return &CherryPickResult{Outcome: outcome}, nil
}
