// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// sequencerState is rebase's persisted progress: the full pick list plus a
// cursor into it, written to TOML after every step so a rebase can be
// resumed or aborted across process restarts (§4.6 "rebase must be
// resumable").
type sequencerState struct {
	Onto   string   `toml:"onto"`
	Orig   string   `toml:"orig_head"`
	Picks  []string `toml:"picks"`
	Cursor int      `toml:"cursor"`
}

func (r *Repository) sequencerPath() string {
	return filepath.Join(r.repoDir, "rebase-sequencer.toml")
}

func (r *Repository) loadSequencer() (*sequencerState, error) {
	var st sequencerState
	raw, err := os.ReadFile(r.sequencerPath())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("ember: no rebase in progress")
		}
		return nil, err
	}
	if _, err := toml.Decode(string(raw), &st); err != nil {
		return nil, fmt.Errorf("ember: decode rebase sequencer: %w", err)
	}
	return &st, nil
}

func (r *Repository) saveSequencer(st *sequencerState) error {
	f, err := os.CreateTemp(r.repoDir, ".tmp-rebase-*")
	if err != nil {
		return err
	}
	tmpName := f.Name()
	enc := toml.NewEncoder(f)
	if err := enc.Encode(st); err != nil {
		f.Close()
		os.Remove(tmpName)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, r.sequencerPath())
}

func (r *Repository) clearSequencer() error {
	if err := os.Remove(r.sequencerPath()); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// RebaseResult reports one step of a rebase: either it completed cleanly,
// it is done (pick list exhausted), or it stopped on a conflicted pick
// awaiting resolution via Continue.
type RebaseResult struct {
	Done      bool
	Conflicts []string
}

// RebaseStart begins replaying ancestors(HEAD) \ ancestors(upstream) onto
// upstream (§4.6): HEAD moves to upstream first, then each pick is applied
// in old-first order via the shared apply-commit kernel, baseOid = the
// pick's own parent exactly as for a standalone cherry-pick. ORIG_HEAD
// records the pre-rebase tip so Abort can restore it.
func (r *Repository) RebaseStart(ctx context.Context, upstream plumbing.Hash) (*RebaseResult, error) {
	head, err := r.resolveHEAD()
	if err != nil {
		return nil, err
	}
	picks, err := object.TopoOrder(ctx, r.Store, head, upstream)
	if err != nil {
		return nil, err
	}
	if err := r.Refs.SetSpecialRef(plumbing.OrigHead, head); err != nil {
		return nil, err
	}
	branch, err := r.currentBranch()
	if err != nil {
		return nil, err
	}
	if err := r.Refs.Update(branch, upstream, &head); err != nil {
		return nil, err
	}

	pickHashes := make([]string, len(picks))
	for i, c := range picks {
		pickHashes[i] = c.Hash.String()
	}
	st := &sequencerState{Onto: upstream.String(), Orig: head.String(), Picks: pickHashes, Cursor: 0}
	if err := r.saveSequencer(st); err != nil {
		return nil, err
	}
	return r.runSequencer(ctx, st)
}

// RebaseContinue resumes a paused rebase after the caller has resolved the
// conflicts left staged in the index by the previous pick.
func (r *Repository) RebaseContinue(ctx context.Context) (*RebaseResult, error) {
	st, err := r.loadSequencer()
	if err != nil {
		return nil, err
	}
	idx, err := r.LoadIndex()
	if err != nil {
		return nil, err
	}
	if idx.HasConflicts() {
		return nil, fmt.Errorf("ember: cannot continue rebase: unresolved conflicts in index")
	}

	oid := plumbing.NewHash(st.Picks[st.Cursor])
	c, err := object.GetCommit(ctx, r.Store, oid)
	if err != nil {
		return nil, err
	}
	treeOid, err := idx.WriteTree(ctx, r.Store)
	if err != nil {
		return nil, err
	}
	head, err := r.resolveHEAD()
	if err != nil {
		return nil, err
	}
	commitOid, empty, err := r.finishApply(ctx, c, treeOid, []plumbing.Hash{head}, c.Message)
	if err != nil {
		return nil, err
	}
	if !empty {
		if err := r.advanceBranch(commitOid, head); err != nil {
			return nil, err
		}
	}
	if err := r.Refs.ClearSpecialRef(plumbing.CherryPickHead); err != nil {
		return nil, err
	}
	st.Cursor++
	if err := r.saveSequencer(st); err != nil {
		return nil, err
	}
	return r.runSequencer(ctx, st)
}

// RebaseAbort restores the branch to ORIG_HEAD and discards the sequencer
// state, ORIG_HEAD and CHERRY_PICK_HEAD. The index is not reloaded, so
// entries staged by an interrupted pick remain in it.
func (r *Repository) RebaseAbort() error {
	origOid, ok, err := r.Refs.SpecialRef(plumbing.OrigHead)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("ember: no rebase in progress")
	}
	head, err := r.resolveHEAD()
	if err != nil {
		return err
	}
	if err := r.advanceBranch(origOid, head); err != nil {
		return err
	}
	if err := r.Refs.ClearSpecialRef(plumbing.OrigHead); err != nil {
		return err
	}
	if err := r.Refs.ClearSpecialRef(plumbing.CherryPickHead); err != nil {
		return err
	}
	return r.clearSequencer()
}

// runSequencer applies picks starting at st.Cursor until the list is
// exhausted or a pick leaves conflicts staged in the index.
func (r *Repository) runSequencer(ctx context.Context, st *sequencerState) (*RebaseResult, error) {
	for st.Cursor < len(st.Picks) {
		oid := plumbing.NewHash(st.Picks[st.Cursor])
		c, err := object.GetCommit(ctx, r.Store, oid)
		if err != nil {
			return nil, err
		}
		var baseOid plumbing.Hash
		if len(c.Parents) > 0 {
			baseOid = c.Parents[0]
		}
		head, err := r.resolveHEAD()
		if err != nil {
			return nil, err
		}
		outcome, err := r.applyKernel(ctx, c, baseOid, head, plumbing.CherryPickHead, []plumbing.Hash{head}, c.Message)
		if err != nil {
			return nil, err
		}
		if len(outcome.Conflicts) > 0 {
			paths := make([]string, len(outcome.Conflicts))
			for i, cf := range outcome.Conflicts {
				paths[i] = cf.Path
			}
			return &RebaseResult{Conflicts: paths}, nil
		}
		if !outcome.Empty {
			if err := r.advanceBranch(outcome.Oid, head); err != nil {
				return nil, err
			}
		}
		st.Cursor++
		if err := r.saveSequencer(st); err != nil {
			return nil, err
		}
	}
	if err := r.clearSequencer(); err != nil {
		return nil, err
	}
	if err := r.Refs.ClearSpecialRef(plumbing.OrigHead); err != nil {
		return nil, err
	}
	return &RebaseResult{Done: true}, nil
}
