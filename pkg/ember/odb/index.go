// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package odb

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// ConflictKind enumerates the four typed conflict shapes a merge can leave
// staged in the index (§3, §4.5).
type ConflictKind string

const (
	ConflictContent            ConflictKind = "content_conflict"
	ConflictAddAdd             ConflictKind = "add_add"
	ConflictDeleteTargetModify ConflictKind = "current_delete_target_modify"
	ConflictModifyTargetDelete ConflictKind = "current_modify_target_delete"
)

// Entry is one index record. A clean entry carries only Oid; a conflicted
// one carries Type plus whichever of Base/Ours/Theirs the conflict kind
// preserves (§3).
type Entry struct {
	Path string `json:"-"`

	Oid  plumbing.Hash `json:"oid,omitempty"`
	Type ConflictKind  `json:"type,omitempty"`

	Base   *plumbing.Hash `json:"base,omitempty"`
	Ours   *plumbing.Hash `json:"head,omitempty"`
	Theirs *plumbing.Hash `json:"other,omitempty"`
}

// Conflicted reports whether this entry is unresolved.
func (e *Entry) Conflicted() bool { return e.Type != "" }

// Index is the staging area: path -> Entry, single entry per path (§3).
type Index struct {
	entries map[string]*Entry
	path    string
}

// NewIndex returns an empty, unsaved index for the given on-disk path.
func NewIndex(path string) *Index {
	return &Index{entries: make(map[string]*Entry), path: path}
}

type onDiskEntry struct {
	Oid    string `json:"oid,omitempty"`
	Type   string `json:"type,omitempty"`
	Base   string `json:"base,omitempty"`
	Ours   string `json:"head,omitempty"`
	Theirs string `json:"other,omitempty"`
}

// LoadIndex reads the index file at p. A missing file is treated as an
// empty index (§3 "an empty index is legal").
func LoadIndex(p string) (*Index, error) {
	idx := NewIndex(p)
	raw, err := os.ReadFile(p)
	if err != nil {
		if os.IsNotExist(err) {
			return idx, nil
		}
		return nil, fmt.Errorf("index: read %s: %w", p, err)
	}
	var onDisk map[string]onDiskEntry
	if err := json.Unmarshal(raw, &onDisk); err != nil {
		return nil, fmt.Errorf("index: decode %s: %w", p, err)
	}
	for path, raw := range onDisk {
		e := &Entry{Path: path, Type: ConflictKind(raw.Type)}
		if raw.Oid != "" {
			e.Oid = plumbing.NewHash(raw.Oid)
		}
		if raw.Base != "" {
			h := plumbing.NewHash(raw.Base)
			e.Base = &h
		}
		if raw.Ours != "" {
			h := plumbing.NewHash(raw.Ours)
			e.Ours = &h
		}
		if raw.Theirs != "" {
			h := plumbing.NewHash(raw.Theirs)
			e.Theirs = &h
		}
		idx.entries[path] = e
	}
	return idx, nil
}

// Save atomically persists the index: write-temp then rename (§5 "load ->
// mutate in memory -> save atomically").
func (idx *Index) Save() error {
	onDisk := make(map[string]onDiskEntry, len(idx.entries))
	for path, e := range idx.entries {
		od := onDiskEntry{Type: string(e.Type)}
		if !e.Oid.IsZero() {
			od.Oid = e.Oid.String()
		}
		if e.Base != nil {
			od.Base = e.Base.String()
		}
		if e.Ours != nil {
			od.Ours = e.Ours.String()
		}
		if e.Theirs != nil {
			od.Theirs = e.Theirs.String()
		}
		onDisk[path] = od
	}
	raw, err := json.MarshalIndent(onDisk, "", "  ")
	if err != nil {
		return fmt.Errorf("index: encode: %w", err)
	}
	dir := filepath.Dir(idx.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("index: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "index-*.tmp")
	if err != nil {
		return fmt.Errorf("index: create temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("index: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("index: close temp: %w", err)
	}
	if err := os.Rename(tmpName, idx.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("index: rename temp: %w", err)
	}
	return nil
}

// Stage records a clean entry, overwriting any prior entry at path.
func (idx *Index) Stage(path string, oid plumbing.Hash) {
	idx.entries[path] = &Entry{Path: path, Oid: oid}
}

// StageConflict records an unresolved conflict at path.
func (idx *Index) StageConflict(path string, kind ConflictKind, base, ours, theirs *plumbing.Hash, mergedOid plumbing.Hash) {
	idx.entries[path] = &Entry{
		Path: path, Type: kind,
		Base: base, Ours: ours, Theirs: theirs,
		Oid: mergedOid,
	}
}

// Clear removes the entry at path, if any.
func (idx *Index) Clear(path string) { delete(idx.entries, path) }

// Get returns the entry at path, or nil.
func (idx *Index) Get(path string) *Entry { return idx.entries[path] }

// Entries returns every entry, sorted by path.
func (idx *Index) Entries() []*Entry {
	out := make([]*Entry, 0, len(idx.entries))
	for _, e := range idx.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
}

// HasConflicts reports whether any entry is unresolved.
func (idx *Index) HasConflicts() bool {
	for _, e := range idx.entries {
		if e.Conflicted() {
			return true
		}
	}
	return false
}

// Reset discards all entries, used when reloading from a commit's tree
// (reset --mixed/--hard, §4.6).
func (idx *Index) Reset() { idx.entries = make(map[string]*Entry) }

// LoadTree replaces the index contents with every blob path in t, flattened
// recursively — the inverse of WriteTree.
func (idx *Index) LoadTree(ctx context.Context, store *Store, t *object.Tree) error {
	idx.Reset()
	return walkTree(ctx, store, t, "", func(p string, oid plumbing.Hash) error {
		idx.Stage(p, oid)
		return nil
	})
}

func walkTree(ctx context.Context, store *Store, t *object.Tree, prefix string, fn func(path string, oid plumbing.Hash) error) error {
	entries := make([]*object.TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	object.SortEntries(entries)
	for _, e := range entries {
		p := path.Join(prefix, e.Name)
		if e.Kind == object.TreeKind {
			sub, err := store.Tree(ctx, e.Hash)
			if err != nil {
				return err
			}
			if err := walkTree(ctx, store, sub, p, fn); err != nil {
				return err
			}
			continue
		}
		if err := fn(p, e.Hash); err != nil {
			return err
		}
	}
	return nil
}

// WriteTree builds and writes tree objects bottom-up from the staged
// entries, failing if any entry is still conflicted (§3, §4.3). Paths are
// grouped by directory prefix and recursed depth-first.
func (idx *Index) WriteTree(ctx context.Context, store *Store) (plumbing.Hash, error) {
	if idx.HasConflicts() {
		return plumbing.ZeroHash, fmt.Errorf("odb: write-tree: index has unresolved conflicts")
	}
	root := newTreeNode()
	for _, e := range idx.Entries() {
		parts := strings.Split(e.Path, "/")
		root.insert(parts, e.Oid)
	}
	return root.write(ctx, store)
}

// treeNode is an in-memory scratch tree used only while building WriteTree's
// result; it mirrors object.Tree's shape but allows incremental insertion.
type treeNode struct {
	blobs map[string]plumbing.Hash
	subs  map[string]*treeNode
}

func newTreeNode() *treeNode {
	return &treeNode{blobs: make(map[string]plumbing.Hash), subs: make(map[string]*treeNode)}
}

func (n *treeNode) insert(parts []string, oid plumbing.Hash) {
	if len(parts) == 1 {
		n.blobs[parts[0]] = oid
		return
	}
	sub, ok := n.subs[parts[0]]
	if !ok {
		sub = newTreeNode()
		n.subs[parts[0]] = sub
	}
	sub.insert(parts[1:], oid)
}

func (n *treeNode) write(ctx context.Context, store *Store) (plumbing.Hash, error) {
	t := &object.Tree{}
	for name, oid := range n.blobs {
		t.Entries = append(t.Entries, &object.TreeEntry{Name: name, Kind: object.BlobKind, Hash: oid})
	}
	for name, sub := range n.subs {
		oid, err := sub.write(ctx, store)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		t.Entries = append(t.Entries, &object.TreeEntry{Name: name, Kind: object.TreeKind, Hash: oid})
	}
	object.SortEntries(t.Entries)
	return store.PutTree(ctx, t)
}
