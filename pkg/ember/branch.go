// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"fmt"

	"github.com/emberscm/ember/modules/plumbing"
)

// Branch describes one refs/heads/* entry.
type Branch struct {
	Name string
	Oid  plumbing.Hash
}

// Branches lists every local branch, sorted by name (§4.2 list(prefix)).
func (r *Repository) Branches() ([]Branch, error) {
	refs, err := r.Refs.List(plumbing.ReferenceName("refs/heads/"))
	if err != nil {
		return nil, err
	}
	out := make([]Branch, 0, len(refs))
	for _, ref := range refs {
		out = append(out, Branch{Name: ref.Name().BranchName(), Oid: ref.Hash()})
	}
	return out, nil
}

// CreateBranch creates refs/heads/<name> pointing at start, failing if it
// already exists.
func (r *Repository) CreateBranch(name string, start plumbing.Hash) error {
	refName := plumbing.NewBranchReferenceName(name)
	if _, err := r.Refs.Reference(refName); err == nil {
		return fmt.Errorf("ember: branch %q already exists", name)
	} else if err != plumbing.ErrReferenceNotFound {
		return err
	}
	zero := plumbing.ZeroHash
	return r.Refs.Update(refName, start, &zero)
}

// DeleteBranch removes refs/heads/<name>. Deleting the branch HEAD is
// attached to is refused, matching the usual "cannot delete current
// branch" rule.
func (r *Repository) DeleteBranch(name string) error {
	refName := plumbing.NewBranchReferenceName(name)
	current, err := r.currentBranch()
	if err != nil {
		return err
	}
	if current == refName {
		return fmt.Errorf("ember: cannot delete the current branch %q", name)
	}
	return r.Refs.Delete(refName)
}
