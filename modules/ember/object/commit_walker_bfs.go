// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"

	"github.com/emberscm/ember/modules/plumbing"
)

// CommitIter yields commits from a BFS walk rooted at one or more starting
// points, visiting each oid at most once. It underlies is_ancestor and the
// ancestor-set subtraction rebase needs for its pick list (§4.6).
type CommitIter struct {
	ctx     context.Context
	b       Backend
	visited map[plumbing.Hash]bool
	queue   []plumbing.Hash
}

// NewCommitIterBSF starts a forward (parent-ward) breadth-first walk from
// the given starting commits.
func NewCommitIterBSF(ctx context.Context, b Backend, start ...plumbing.Hash) *CommitIter {
	it := &CommitIter{
		ctx:     ctx,
		b:       b,
		visited: make(map[plumbing.Hash]bool, len(start)*4),
	}
	for _, s := range start {
		if s.IsZero() || it.visited[s] {
			continue
		}
		it.visited[s] = true
		it.queue = append(it.queue, s)
	}
	return it
}

// Next pops the next commit in BFS order, enqueueing its unvisited parents.
// Returns (nil, nil) once the walk is exhausted.
func (it *CommitIter) Next() (*Commit, error) {
	if len(it.queue) == 0 {
		return nil, nil
	}
	oid := it.queue[0]
	it.queue = it.queue[1:]
	c, err := GetCommit(it.ctx, it.b, oid)
	if err != nil {
		return nil, err
	}
	for _, p := range c.Parents {
		if it.visited[p] {
			continue
		}
		it.visited[p] = true
		it.queue = append(it.queue, p)
	}
	return c, nil
}

// ForEach drains the iterator, invoking fn for every commit in BFS order.
// Returning plumbing.ErrStop halts early without propagating an error.
func (it *CommitIter) ForEach(fn func(*Commit) error) error {
	for {
		c, err := it.Next()
		if err != nil {
			return err
		}
		if c == nil {
			return nil
		}
		if err := fn(c); err == plumbing.ErrStop {
			return nil
		} else if err != nil {
			return err
		}
	}
}

// AncestorSet collects the oids of every commit reachable from start,
// start included. Used to compute ancestors(HEAD) and ancestors(upstream)
// for rebase's pick-list subtraction.
func AncestorSet(ctx context.Context, b Backend, start ...plumbing.Hash) (map[plumbing.Hash]bool, error) {
	it := NewCommitIterBSF(ctx, b, start...)
	set := make(map[plumbing.Hash]bool, len(it.visited))
	err := it.ForEach(func(c *Commit) error {
		set[c.Hash] = true
		return nil
	})
	return set, err
}

// IsAncestor reports whether x is reachable by walking parent links from y
// (x == y counts as an ancestor). This is the single-direction walk §4.6
// specifies for fast-forward detection.
func IsAncestor(ctx context.Context, b Backend, x, y plumbing.Hash) (bool, error) {
	if x == y {
		return true, nil
	}
	it := NewCommitIterBSF(ctx, b, y)
	found := false
	err := it.ForEach(func(c *Commit) error {
		if c.Hash == x {
			found = true
			return plumbing.ErrStop
		}
		return nil
	})
	return found, err
}

// MergeBase computes the lowest common ancestor of a and b via alternating
// bidirectional BFS, per §4.6: two frontiers and two visited sets, popping
// one commit from each non-empty frontier in turn and checking it against
// the other side's visited set. The first meeting point discovered under
// this alternation is returned, giving a deterministic result for a fixed
// parent ordering.
func MergeBase(ctx context.Context, b Backend, a, pb plumbing.Hash) (plumbing.Hash, error) {
	if a == pb {
		return a, nil
	}
	visited1 := map[plumbing.Hash]bool{a: true}
	visited2 := map[plumbing.Hash]bool{pb: true}
	queue1 := []plumbing.Hash{a}
	queue2 := []plumbing.Hash{pb}

	step := func(queue []plumbing.Hash, mine, theirs map[plumbing.Hash]bool) (plumbing.Hash, []plumbing.Hash, bool, error) {
		if len(queue) == 0 {
			return plumbing.ZeroHash, queue, false, nil
		}
		oid := queue[0]
		queue = queue[1:]
		if theirs[oid] {
			return oid, queue, true, nil
		}
		c, err := GetCommit(ctx, b, oid)
		if err != nil {
			return plumbing.ZeroHash, queue, false, err
		}
		for _, p := range c.Parents {
			if mine[p] {
				continue
			}
			mine[p] = true
			queue = append(queue, p)
		}
		return plumbing.ZeroHash, queue, false, nil
	}

	for len(queue1) > 0 || len(queue2) > 0 {
		if len(queue1) > 0 {
			oid, q, hit, err := step(queue1, visited1, visited2)
			queue1 = q
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if hit {
				return oid, nil
			}
		}
		if len(queue2) > 0 {
			oid, q, hit, err := step(queue2, visited2, visited1)
			queue2 = q
			if err != nil {
				return plumbing.ZeroHash, err
			}
			if hit {
				return oid, nil
			}
		}
	}
	return plumbing.ZeroHash, nil
}
