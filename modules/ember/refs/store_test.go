package refs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberscm/ember/modules/plumbing"
)

func newTestStore(t *testing.T) *Store {
	return NewStore(t.TempDir())
}

func TestUpdateAndResolve(t *testing.T) {
	s := newTestStore(t)
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")

	require.NoError(t, s.Update(plumbing.NewBranchReferenceName("main"), h1, nil))

	ref, err := s.Resolve(plumbing.NewBranchReferenceName("main"), true)
	require.NoError(t, err)
	assert.Equal(t, h1, ref.Hash())
}

func TestSymrefHEADFollowsBranch(t *testing.T) {
	s := newTestStore(t)
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")
	branch := plumbing.NewBranchReferenceName("main")

	require.NoError(t, s.Symref(plumbing.HEAD, branch))
	require.NoError(t, s.Update(branch, h1, nil))

	ref, err := s.Resolve(plumbing.HEAD, true)
	require.NoError(t, err)
	assert.Equal(t, h1, ref.Hash())
}

func TestUpdateHEADWhenSymbolicUpdatesPointee(t *testing.T) {
	s := newTestStore(t)
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")
	h2 := plumbing.NewHash("2222222222222222222222222222222222222222")
	branch := plumbing.NewBranchReferenceName("main")

	require.NoError(t, s.Symref(plumbing.HEAD, branch))
	require.NoError(t, s.Update(plumbing.HEAD, h1, nil))
	require.NoError(t, s.Update(plumbing.HEAD, h2, &h1))

	ref, err := s.Resolve(branch, true)
	require.NoError(t, err)
	assert.Equal(t, h2, ref.Hash())

	head, err := s.Reference(plumbing.HEAD)
	require.NoError(t, err)
	assert.Equal(t, plumbing.SymbolicReference, head.Type())
}

func TestCompareAndSetRejectsStaleExpectedOld(t *testing.T) {
	s := newTestStore(t)
	branch := plumbing.NewBranchReferenceName("main")
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")
	h2 := plumbing.NewHash("2222222222222222222222222222222222222222")
	wrong := plumbing.NewHash("3333333333333333333333333333333333333333")

	require.NoError(t, s.Update(branch, h1, nil))
	err := s.Update(branch, h2, &wrong)
	require.Error(t, err)
	assert.True(t, plumbing.IsErrConcurrentUpdate(err))
}

func TestResolveDetectsSymbolicCycle(t *testing.T) {
	s := newTestStore(t)
	a := plumbing.ReferenceName("refs/heads/a")
	b := plumbing.ReferenceName("refs/heads/b")

	require.NoError(t, s.Symref(a, b))
	require.NoError(t, s.Symref(b, a))

	_, err := s.Resolve(a, true)
	assert.ErrorIs(t, err, ErrMaxResolveRecursion)
}

func TestListReturnsSortedByPrefix(t *testing.T) {
	s := newTestStore(t)
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")

	require.NoError(t, s.Update(plumbing.NewBranchReferenceName("ember"), h1, nil))
	require.NoError(t, s.Update(plumbing.NewBranchReferenceName("alpha"), h1, nil))

	list, err := s.List("refs/heads")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, plumbing.NewBranchReferenceName("alpha"), list[0].Name())
	assert.Equal(t, plumbing.NewBranchReferenceName("ember"), list[1].Name())
}

func TestSpecialRefLifecycle(t *testing.T) {
	s := newTestStore(t)
	h1 := plumbing.NewHash("1111111111111111111111111111111111111111")

	_, ok, err := s.SpecialRef(plumbing.MergeHead)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, s.SetSpecialRef(plumbing.MergeHead, h1))
	got, ok, err := s.SpecialRef(plumbing.MergeHead)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, h1, got)

	require.NoError(t, s.ClearSpecialRef(plumbing.MergeHead))
	_, ok, err = s.SpecialRef(plumbing.MergeHead)
	require.NoError(t, err)
	assert.False(t, ok)
}
