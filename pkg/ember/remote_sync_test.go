// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/pkg/ember/remote"
)

// repoTransport adapts a *Repository directly into a remote.Transport, so
// fetch/push can be exercised in-process without a network, S3 bucket, or
// MySQL instance — the same role a loopback transport plays in the
// teacher's own transfer tests.
type repoTransport struct {
	repo *Repository
}

func (t *repoTransport) ListRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	return t.repo.Refs.List(plumbing.ReferenceName("refs/heads"))
}

func (t *repoTransport) HasObject(ctx context.Context, oid plumbing.Hash) (bool, error) {
	return t.repo.Store.Exists(oid), nil
}

func (t *repoTransport) PullObject(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error) {
	return t.repo.Store.Get(ctx, oid)
}

func (t *repoTransport) PushObject(ctx context.Context, oid plumbing.Hash, kind object.Kind, payload []byte) error {
	_, err := t.repo.Store.Put(ctx, kind, payload)
	return err
}

func (t *repoTransport) UpdateRef(ctx context.Context, name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error {
	return t.repo.Refs.Update(name, newOid, expectedOld)
}

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := Init(t.TempDir())
	require.NoError(t, err)
	repo.Config.User.Name = "Ada Lovelace"
	repo.Config.User.Email = "ada@example.com"
	return repo
}

func commitFile(t *testing.T, repo *Repository, path, content, message string) plumbing.Hash {
	t.Helper()
	idx, err := repo.LoadIndex()
	require.NoError(t, err)
	blob, err := repo.Store.PutBlob(context.Background(), []byte(content))
	require.NoError(t, err)
	idx.Stage(path, blob)
	require.NoError(t, idx.Save())
	oid, err := repo.Commit(context.Background(), message)
	require.NoError(t, err)
	return oid
}

func TestFetchTransfersClosureAndUpdatesTrackingRef(t *testing.T) {
	ctx := context.Background()
	origin := newTestRepo(t)
	oid := commitFile(t, origin, "a.txt", "hello", "first")

	local := newTestRepo(t)
	transport := &repoTransport{repo: origin}

	result, err := local.Fetch(ctx, "origin", transport, "main", remote.Noop)
	require.NoError(t, err)
	assert.Equal(t, oid, result.Oid)
	assert.Equal(t, plumbing.NewRemoteReferenceName("origin", "main"), result.RemoteRef)

	assert.True(t, local.Store.Exists(oid))
	ref, err := local.Refs.Reference(plumbing.NewRemoteReferenceName("origin", "main"))
	require.NoError(t, err)
	assert.Equal(t, oid, ref.Hash())
}

func TestFetchStopsAtObjectsAlreadyPresentLocally(t *testing.T) {
	ctx := context.Background()
	origin := newTestRepo(t)
	first := commitFile(t, origin, "a.txt", "hello", "first")
	second := commitFile(t, origin, "a.txt", "hello again", "second")

	local := newTestRepo(t)
	transport := &repoTransport{repo: origin}

	_, err := local.Fetch(ctx, "origin", transport, "main", remote.Noop)
	require.NoError(t, err)
	assert.True(t, local.Store.Exists(first))
	assert.True(t, local.Store.Exists(second))

	third := commitFile(t, origin, "a.txt", "hello a third time", "third")
	result, err := local.Fetch(ctx, "origin", transport, "main", remote.Noop)
	require.NoError(t, err)
	assert.Equal(t, third, result.Oid)
	assert.True(t, local.Store.Exists(third))
}

func TestPushFastForwardTransfersObjectsAndUpdatesRemote(t *testing.T) {
	ctx := context.Background()
	local := newTestRepo(t)
	oid := commitFile(t, local, "a.txt", "hello", "first")

	origin := newTestRepo(t)
	transport := &repoTransport{repo: origin}

	result, err := local.Push(ctx, "origin", transport, "main", remote.Noop)
	require.NoError(t, err)
	assert.Equal(t, oid, result.Oid)
	assert.True(t, result.PreviousOid.IsZero())

	assert.True(t, origin.Store.Exists(oid))
	ref, err := origin.Refs.Reference(plumbing.NewBranchReferenceName("main"))
	require.NoError(t, err)
	assert.Equal(t, oid, ref.Hash())
}

func TestPushRejectsNonFastForward(t *testing.T) {
	ctx := context.Background()
	origin := newTestRepo(t)
	commitFile(t, origin, "a.txt", "origin version", "origin commit")

	local := newTestRepo(t)
	commitFile(t, local, "a.txt", "local version", "local commit")

	transport := &repoTransport{repo: origin}
	_, err := local.Push(ctx, "origin", transport, "main", remote.Noop)
	assert.ErrorIs(t, err, ErrNotFastForward)
}

func TestPushAllowsFastForwardOfRemoteAncestor(t *testing.T) {
	ctx := context.Background()
	origin := newTestRepo(t)
	base := commitFile(t, origin, "a.txt", "base", "base commit")

	local := newTestRepo(t)
	transport := &repoTransport{repo: origin}
	_, err := local.Fetch(ctx, "origin", transport, "main", remote.Noop)
	require.NoError(t, err)
	require.NoError(t, local.Refs.Update(plumbing.NewBranchReferenceName("main"), base, nil))

	ahead := commitFile(t, local, "a.txt", "base plus more", "second commit")

	result, err := local.Push(ctx, "origin", transport, "main", remote.Noop)
	require.NoError(t, err)
	assert.Equal(t, ahead, result.Oid)
	assert.Equal(t, base, result.PreviousOid)
}
