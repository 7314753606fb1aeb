// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"fmt"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// MergeResult reports how Merge concluded.
type MergeResult struct {
	FastForward bool
	UpToDate    bool
	Outcome     *ApplyOutcome
}

// Merge implements §4.6's merge driver: fast-forward when possible,
// otherwise the apply-commit kernel with parents = [HEAD, MERGE_HEAD].
func (r *Repository) Merge(ctx context.Context, theirs plumbing.Hash, message string) (*MergeResult, error) {
	head, err := r.resolveHEAD()
	if err != nil {
		return nil, err
	}
	if head.IsZero() {
		if err := r.advanceBranch(theirs, plumbing.ZeroHash); err != nil {
			return nil, err
		}
		return &MergeResult{FastForward: true}, nil
	}
	if head == theirs {
		return &MergeResult{UpToDate: true}, nil
	}

	base, err := r.MergeBase(ctx, head, theirs)
	if err != nil {
		return nil, err
	}
	if base == theirs {
		return &MergeResult{UpToDate: true}, nil
	}
	if base == head {
		if err := r.advanceBranch(theirs, head); err != nil {
			return nil, err
		}
		return &MergeResult{FastForward: true}, nil
	}

	theirsCommit, err := object.GetCommit(ctx, r.Store, theirs)
	if err != nil {
		return nil, err
	}
	if message == "" {
		message = fmt.Sprintf("Merge %s", theirs.Prefix())
	}
	outcome, err := r.applyKernel(ctx, theirsCommit, base, head, plumbing.MergeHead, []plumbing.Hash{head, theirs}, message)
	if err != nil {
		return nil, err
	}
	if len(outcome.Conflicts) == 0 && !outcome.Empty {
		if err := r.advanceBranch(outcome.Oid, head); err != nil {
			return nil, err
		}
	}
	return &MergeResult{Outcome: outcome}, nil
}
