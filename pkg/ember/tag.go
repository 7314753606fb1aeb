// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"fmt"

	"github.com/emberscm/ember/modules/plumbing"
)

// Tag describes one refs/tags/* entry. Tags are lightweight: a direct ref
// at the named commit, with no separate annotated-tag object (§4.2, §1
// non-goal: no tag objects).
type Tag struct {
	Name string
	Oid  plumbing.Hash
}

// Tags lists every tag, sorted by name.
func (r *Repository) Tags() ([]Tag, error) {
	refs, err := r.Refs.List(plumbing.ReferenceName("refs/tags/"))
	if err != nil {
		return nil, err
	}
	out := make([]Tag, 0, len(refs))
	for _, ref := range refs {
		out = append(out, Tag{Name: ref.Name().TagName(), Oid: ref.Hash()})
	}
	return out, nil
}

// CreateTag creates refs/tags/<name> pointing at target, failing if it
// already exists.
func (r *Repository) CreateTag(name string, target plumbing.Hash) error {
	refName := plumbing.NewTagReferenceName(name)
	if _, err := r.Refs.Reference(refName); err == nil {
		return fmt.Errorf("ember: tag %q already exists", name)
	} else if err != plumbing.ErrReferenceNotFound {
		return err
	}
	zero := plumbing.ZeroHash
	return r.Refs.Update(refName, target, &zero)
}

// DeleteTag removes refs/tags/<name>.
func (r *Repository) DeleteTag(name string) error {
	return r.Refs.Delete(plumbing.NewTagReferenceName(name))
}
