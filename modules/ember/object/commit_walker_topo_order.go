// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"context"

	"github.com/emirpasic/gods/trees/binaryheap"

	"github.com/emberscm/ember/modules/plumbing"
)

// TopoOrder computes ancestors(head) minus ancestors(exclude) ordered
// old-first (§4.6 rebase pick list): a commit never appears before any of
// its ancestors in the returned slice.
//
// The walk is Kahn's algorithm over the induced subgraph: in-degree counts
// how many not-yet-emitted children each commit has within the subgraph;
// a binary heap keyed by commit time breaks ties deterministically among
// commits that become available simultaneously, same as the BFS frontier's
// fixed ordering policy.
func TopoOrder(ctx context.Context, b Backend, head, exclude plumbing.Hash) ([]*Commit, error) {
	excluded, err := AncestorSet(ctx, b, exclude)
	if err != nil {
		return nil, err
	}

	commits := make(map[plumbing.Hash]*Commit)
	inDegree := make(map[plumbing.Hash]int)
	var collect func(oid plumbing.Hash) error
	collect = func(oid plumbing.Hash) error {
		if oid.IsZero() || excluded[oid] {
			return nil
		}
		if _, ok := commits[oid]; ok {
			return nil
		}
		c, err := GetCommit(ctx, b, oid)
		if err != nil {
			return err
		}
		commits[oid] = c
		if _, ok := inDegree[oid]; !ok {
			inDegree[oid] = 0
		}
		for _, p := range c.Parents {
			if excluded[p] {
				continue
			}
			inDegree[p]++
			if err := collect(p); err != nil {
				return err
			}
		}
		return nil
	}
	if err := collect(head); err != nil {
		return nil, err
	}

	byCommitTime := func(x, y any) int {
		a, bb := x.(*Commit), y.(*Commit)
		switch {
		case a.Less(bb):
			return -1
		case bb.Less(a):
			return 1
		default:
			return 0
		}
	}
	ready := binaryheap.NewWith(byCommitTime)
	for oid, c := range commits {
		if inDegree[oid] == 0 {
			ready.Push(c)
		}
	}

	// This pass naturally pops descendants before their ancestors (it starts
	// from head, whose in-degree is the smallest); reverse to get the
	// old-first order §4.6 wants for a pick list.
	newFirst := make([]*Commit, 0, len(commits))
	for !ready.Empty() {
		v, _ := ready.Pop()
		c := v.(*Commit)
		newFirst = append(newFirst, c)
		for _, p := range c.Parents {
			if _, ok := commits[p]; !ok {
				continue
			}
			inDegree[p]--
			if inDegree[p] == 0 {
				ready.Push(commits[p])
			}
		}
	}
	order := make([]*Commit, len(newFirst))
	for i, c := range newFirst {
		order[len(newFirst)-1-i] = c
	}
	return order, nil
}
