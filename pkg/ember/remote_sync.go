// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"fmt"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/pkg/ember/remote"
)

// walkRemoteClosure drains the reachability closure rooted at oid, reading
// each object from pull and writing it into the local store via put, and
// stopping a branch as soon as it reaches an object the local store
// already has. This is the object-level counterpart of
// modules/ember/object's commit-level BFS: fetch needs to cross commit,
// tree, and blob boundaries, not just walk parents.
func walkRemoteClosure(
	ctx context.Context,
	oid plumbing.Hash,
	alreadyHave func(plumbing.Hash) bool,
	pull func(context.Context, plumbing.Hash) (object.Kind, []byte, error),
	put func(context.Context, object.Kind, []byte) (plumbing.Hash, error),
	progress remote.Progress,
) error {
	if oid.IsZero() {
		return nil
	}
	visited := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{oid}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() || visited[cur] || alreadyHave(cur) {
			continue
		}
		visited[cur] = true

		kind, payload, err := pull(ctx, cur)
		if err != nil {
			return fmt.Errorf("ember: pull %s: %w", cur, err)
		}
		if _, err := put(ctx, kind, payload); err != nil {
			return fmt.Errorf("ember: store %s: %w", cur, err)
		}
		progress.Advance(len(payload))

		switch kind {
		case object.CommitKind:
			c, err := object.DecodeCommit(payload, cur, nil)
			if err != nil {
				return fmt.Errorf("ember: decode commit %s: %w", cur, err)
			}
			if !c.Tree.IsZero() {
				queue = append(queue, c.Tree)
			}
			queue = append(queue, c.Parents...)
		case object.TreeKind:
			t, err := object.DecodeTree(payload, cur, nil)
			if err != nil {
				return fmt.Errorf("ember: decode tree %s: %w", cur, err)
			}
			for _, e := range t.Entries {
				queue = append(queue, e.Hash)
			}
		case object.BlobKind:
			// leaf, nothing further to walk
		default:
			return fmt.Errorf("%w: %s", object.ErrUnsupportedKind, cur)
		}
	}
	return nil
}

// walkLocalClosure is the push-side mirror of walkRemoteClosure: it walks
// objects already present in the local store, invoking push for every oid
// the remote doesn't have yet.
func (r *Repository) walkLocalClosure(ctx context.Context, oid plumbing.Hash, hasRemote func(plumbing.Hash) (bool, error), push func(context.Context, plumbing.Hash, object.Kind, []byte) error, progress remote.Progress) error {
	if oid.IsZero() {
		return nil
	}
	visited := make(map[plumbing.Hash]bool)
	queue := []plumbing.Hash{oid}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		cur := queue[0]
		queue = queue[1:]
		if cur.IsZero() || visited[cur] {
			continue
		}
		visited[cur] = true

		has, err := hasRemote(cur)
		if err != nil {
			return fmt.Errorf("ember: probe remote for %s: %w", cur, err)
		}
		if has {
			continue
		}

		kind, payload, err := r.Store.Get(ctx, cur)
		if err != nil {
			return fmt.Errorf("ember: read %s: %w", cur, err)
		}
		if err := push(ctx, cur, kind, payload); err != nil {
			return fmt.Errorf("ember: push %s: %w", cur, err)
		}
		progress.Advance(len(payload))

		switch kind {
		case object.CommitKind:
			c, err := object.DecodeCommit(payload, cur, nil)
			if err != nil {
				return fmt.Errorf("ember: decode commit %s: %w", cur, err)
			}
			if !c.Tree.IsZero() {
				queue = append(queue, c.Tree)
			}
			queue = append(queue, c.Parents...)
		case object.TreeKind:
			t, err := object.DecodeTree(payload, cur, nil)
			if err != nil {
				return fmt.Errorf("ember: decode tree %s: %w", cur, err)
			}
			for _, e := range t.Entries {
				queue = append(queue, e.Hash)
			}
		case object.BlobKind:
		default:
			return fmt.Errorf("%w: %s", object.ErrUnsupportedKind, cur)
		}
	}
	return nil
}

// FetchResult reports the outcome of Fetch.
type FetchResult struct {
	RemoteRef plumbing.ReferenceName
	Oid       plumbing.Hash
}

// Fetch implements §4.7 "fetch(remote, ref)": it resolves ref on the
// remote, transfers every object reachable from that commit backwards
// until an object already present locally is hit, and unconditionally
// updates refs/remote/<remoteName>/<ref> to the remote's value — no
// fast-forward check, matching the spec's "update unconditionally".
func (r *Repository) Fetch(ctx context.Context, remoteName string, transport remote.Transport, ref string, progress remote.Progress) (*FetchResult, error) {
	if progress == nil {
		progress = remote.Noop
	}
	remoteRefs, err := transport.ListRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("ember: fetch: list remote refs: %w", err)
	}
	wantName := plumbing.NewBranchReferenceName(ref)
	var wantOid plumbing.Hash
	found := false
	for _, rr := range remoteRefs {
		if rr.Name() == wantName && rr.Type() == plumbing.HashReference {
			wantOid = rr.Hash()
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("ember: fetch: remote %q has no ref %q", remoteName, ref)
	}

	progress.SetTotal(0)
	err = walkRemoteClosure(ctx, wantOid, r.Store.Exists, transport.PullObject, r.Store.Put, progress)
	progress.Done()
	if err != nil {
		return nil, err
	}

	trackingRef := plumbing.NewRemoteReferenceName(remoteName, ref)
	if err := r.Refs.Update(trackingRef, wantOid, nil); err != nil {
		return nil, fmt.Errorf("ember: fetch: update %s: %w", trackingRef, err)
	}

	return &FetchResult{RemoteRef: trackingRef, Oid: wantOid}, nil
}

// PushResult reports the outcome of Push.
type PushResult struct {
	RemoteRef   plumbing.ReferenceName
	Oid         plumbing.Hash
	PreviousOid plumbing.Hash
}

// ErrNotFastForward is returned by Push when the remote ref already points
// somewhere that is not an ancestor of the local commit being pushed.
var ErrNotFastForward = fmt.Errorf("ember: push: not a fast-forward")

// Push implements §4.7 "push(remote, local_ref)": it refuses unless the
// remote ref is absent or the local commit descends from it, transfers the
// reachability closure, then compare-and-sets the remote ref.
func (r *Repository) Push(ctx context.Context, remoteName string, transport remote.Transport, localRef string, progress remote.Progress) (*PushResult, error) {
	if progress == nil {
		progress = remote.Noop
	}
	localName := plumbing.NewBranchReferenceName(localRef)
	localReference, err := r.Refs.Resolve(localName, true)
	if err != nil {
		return nil, fmt.Errorf("ember: push: resolve %s: %w", localName, err)
	}
	localOid := localReference.Hash()

	remoteRefs, err := transport.ListRefs(ctx)
	if err != nil {
		return nil, fmt.Errorf("ember: push %s: list remote refs: %w", remoteName, err)
	}
	remoteRefName := plumbing.NewBranchReferenceName(localRef)
	var remoteOid plumbing.Hash
	var expectedOld *plumbing.Hash
	for _, rr := range remoteRefs {
		if rr.Name() == remoteRefName && rr.Type() == plumbing.HashReference {
			h := rr.Hash()
			remoteOid = h
			expectedOld = &h
			break
		}
	}

	if expectedOld != nil {
		isDescendant, err := r.IsAncestor(ctx, remoteOid, localOid)
		if err != nil {
			return nil, fmt.Errorf("ember: push: ancestry check: %w", err)
		}
		if !isDescendant {
			return nil, ErrNotFastForward
		}
	}

	progress.SetTotal(0)
	hasRemote := func(oid plumbing.Hash) (bool, error) {
		return transport.HasObject(ctx, oid)
	}
	err = r.walkLocalClosure(ctx, localOid, hasRemote, transport.PushObject, progress)
	progress.Done()
	if err != nil {
		return nil, err
	}

	if err := transport.UpdateRef(ctx, remoteRefName, localOid, expectedOld); err != nil {
		return nil, fmt.Errorf("ember: push: update remote ref: %w", err)
	}

	return &PushResult{RemoteRef: remoteRefName, Oid: localOid, PreviousOid: remoteOid}, nil
}
