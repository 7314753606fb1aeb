// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package refs implements the reference store contract of §4.2: direct and
// symbolic refs, compare-and-set updates, and the special single-oid refs
// that mark an in-progress operation.
package refs

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emberscm/ember/modules/plumbing"
)

// MaxResolveRecursion bounds symbolic-ref chain following so a cycle fails
// fast instead of looping forever (§4.2 "must detect cycles").
const MaxResolveRecursion = 1024

var ErrMaxResolveRecursion = fmt.Errorf("refs: max resolve recursion reached")

const symrefPrefix = "ref: "

// Store is the filesystem-backed reference database rooted at a
// repository's metadata directory (".ember").
type Store struct {
	root string
}

func NewStore(root string) *Store {
	return &Store{root: root}
}

func (s *Store) path(name plumbing.ReferenceName) string {
	return filepath.Join(s.root, filepath.FromSlash(string(name)))
}

// readRaw reads one ref file's single-line content, trimmed. A missing file
// reports plumbing.ErrReferenceNotFound.
func (s *Store) readRaw(name plumbing.ReferenceName) (string, error) {
	raw, err := os.ReadFile(s.path(name))
	if err != nil {
		if os.IsNotExist(err) {
			return "", plumbing.ErrReferenceNotFound
		}
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

// Reference reads name's immediate value, without following symbolic
// chains.
func (s *Store) Reference(name plumbing.ReferenceName) (*plumbing.Reference, error) {
	raw, err := s.readRaw(name)
	if err != nil {
		return nil, err
	}
	return plumbing.NewReferenceFromStrings(string(name), raw), nil
}

// Resolve follows name to a terminal oid. With deref=false it returns the
// immediate (possibly symbolic) reference unresolved; with deref=true it
// chases `ref: <other>` chains to their hash, bounded by
// MaxResolveRecursion (§4.2).
func (s *Store) Resolve(name plumbing.ReferenceName, deref bool) (*plumbing.Reference, error) {
	ref, err := s.Reference(name)
	if err != nil {
		return nil, err
	}
	if !deref {
		return ref, nil
	}
	for range MaxResolveRecursion {
		if ref.Type() != plumbing.SymbolicReference {
			return ref, nil
		}
		ref, err = s.Reference(ref.Target())
		if err != nil {
			return nil, err
		}
	}
	return nil, ErrMaxResolveRecursion
}

// writeAtomic is the shared write-temp-then-rename primitive every mutating
// operation in this package bottoms out on (§4.1-style idempotence, §5
// "save atomically").
func (s *Store) writeAtomic(p, content string) error {
	dir := filepath.Dir(p)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("refs: mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, ".tmp-ref-*")
	if err != nil {
		return fmt.Errorf("refs: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("refs: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("refs: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("refs: rename temp: %w", err)
	}
	return nil
}

// Update sets name to newOid. When expectedOld is non-nil this is a
// compare-and-set: the current value must equal *expectedOld or the update
// fails with plumbing.ErrConcurrentUpdate (§4.2, §5). If name resolves
// through HEAD's symbolic target, the pointee is updated, matching "updates
// to HEAD when HEAD is symbolic transparently update the pointee".
func (s *Store) Update(name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error {
	target := name
	if name == plumbing.HEAD {
		head, err := s.Reference(plumbing.HEAD)
		if err == nil && head.Type() == plumbing.SymbolicReference {
			target = head.Target()
		} else if err != nil && err != plumbing.ErrReferenceNotFound {
			return err
		}
	}
	if expectedOld != nil {
		cur, err := s.Reference(target)
		var curOid plumbing.Hash
		switch {
		case err == plumbing.ErrReferenceNotFound:
			curOid = plumbing.ZeroHash
		case err != nil:
			return err
		default:
			curOid = cur.Hash()
		}
		if curOid != *expectedOld {
			return &plumbing.ErrConcurrentUpdate{Name: target, Expected: *expectedOld, Actual: curOid}
		}
	}
	return s.writeAtomic(s.path(target), newOid.String()+"\n")
}

// Symref makes name a symbolic pointer to target (used to set HEAD to a
// branch, §4.2).
func (s *Store) Symref(name, target plumbing.ReferenceName) error {
	return s.writeAtomic(s.path(name), symrefPrefix+string(target)+"\n")
}

// Detach writes name as a direct hash reference unconditionally, bypassing
// Update's HEAD-symbolic-transparency rule. This is how detached HEAD gets
// established: a plain Update(HEAD, ...) would otherwise redirect straight
// through to whatever branch HEAD currently points at.
func (s *Store) Detach(name plumbing.ReferenceName, oid plumbing.Hash) error {
	return s.writeAtomic(s.path(name), oid.String()+"\n")
}

// Delete removes name outright.
func (s *Store) Delete(name plumbing.ReferenceName) error {
	if err := os.Remove(s.path(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("refs: delete %s: %w", name, err)
	}
	return nil
}

// List returns every reference whose name starts with prefix, sorted by
// name (§4.2 "list(prefix) -> sequence of (name,oid)").
func (s *Store) List(prefix plumbing.ReferenceName) ([]*plumbing.Reference, error) {
	var out []*plumbing.Reference
	base := s.path(prefix)
	info, err := os.Stat(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	if !info.IsDir() {
		ref, err := s.Reference(prefix)
		if err != nil {
			return nil, err
		}
		return []*plumbing.Reference{ref}, nil
	}
	err = filepath.WalkDir(base, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		name := plumbing.ReferenceName(filepath.ToSlash(rel))
		ref, err := s.Reference(name)
		if err != nil {
			return err
		}
		out = append(out, ref)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(plumbing.ReferenceSlice(out))
	return out, nil
}

// Special refs (MERGE_HEAD, CHERRY_PICK_HEAD, ORIG_HEAD) are single-oid
// markers present only while an operation is mid-flight (§3, §5). They use
// the same exclusive-create-then-rename discipline as branch updates but
// never participate in CAS, since only one actor drives them at a time.

// SetSpecialRef writes one of the in-progress-operation markers.
func (s *Store) SetSpecialRef(name plumbing.ReferenceName, oid plumbing.Hash) error {
	return s.writeAtomic(s.path(name), oid.String()+"\n")
}

// SpecialRef reads a marker, returning (ZeroHash, false, nil) if absent.
func (s *Store) SpecialRef(name plumbing.ReferenceName) (plumbing.Hash, bool, error) {
	raw, err := s.readRaw(name)
	if err == plumbing.ErrReferenceNotFound {
		return plumbing.ZeroHash, false, nil
	}
	if err != nil {
		return plumbing.ZeroHash, false, err
	}
	return plumbing.NewHash(raw), true, nil
}

// ClearSpecialRef removes a marker; absence is not an error.
func (s *Store) ClearSpecialRef(name plumbing.ReferenceName) error {
	return s.Delete(name)
}
