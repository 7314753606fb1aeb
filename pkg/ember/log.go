// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// Log walks history backward from start in BFS order, newest-reachable
// first, stopping after limit commits (0 means unbounded).
func (r *Repository) Log(ctx context.Context, start plumbing.Hash, limit int) ([]*object.Commit, error) {
	it := object.NewCommitIterBSF(ctx, r.Store, start)
	var out []*object.Commit
	err := it.ForEach(func(c *object.Commit) error {
		out = append(out, c)
		if limit > 0 && len(out) >= limit {
			return plumbing.ErrStop
		}
		return nil
	})
	return out, err
}
