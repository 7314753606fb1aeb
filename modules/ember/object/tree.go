// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/emberscm/ember/modules/plumbing"
)

// TreeEntry is one member of a tree: a named pointer to a blob or a
// sub-tree (§3 "ordered sequence of entries (kind ∈ {blob,tree}, name,
// oid)").
type TreeEntry struct {
	Name string
	Kind Kind
	Hash plumbing.Hash
}

// Equal compares name, kind and oid.
func (e *TreeEntry) Equal(other *TreeEntry) bool {
	if (e == nil) != (other == nil) {
		return false
	}
	if e == nil {
		return true
	}
	return e.Name == other.Name && e.Kind == other.Kind && e.Hash == other.Hash
}

// Tree is an ordered, name-sorted set of entries (§3, §4.4). Names are
// unique within a tree.
type Tree struct {
	Hash    plumbing.Hash
	Entries []*TreeEntry

	byName map[string]*TreeEntry
	b      Backend
}

// NewEmptyTree returns the tree with no entries, used as the implicit base
// when merging an add/add conflict (§4.5 rule 5) and as the root of a fresh
// repository.
func NewEmptyTree(b Backend) *Tree {
	return &Tree{b: b}
}

func (t *Tree) WithBackend(b Backend) *Tree {
	t.b = b
	return t
}

func (t *Tree) index() map[string]*TreeEntry {
	if t.byName == nil {
		t.byName = make(map[string]*TreeEntry, len(t.Entries))
		for _, e := range t.Entries {
			t.byName[e.Name] = e
		}
	}
	return t.byName
}

// Entry looks up a direct (non-recursive) child by name.
func (t *Tree) Entry(name string) *TreeEntry {
	if t == nil {
		return nil
	}
	return t.index()[name]
}

// Equal reports whether two trees would hash identically.
func (t *Tree) Equal(other *Tree) bool {
	if (t == nil) != (other == nil) {
		return false
	}
	if t == nil {
		return true
	}
	if len(t.Entries) != len(other.Entries) {
		return false
	}
	for i := range t.Entries {
		if !t.Entries[i].Equal(other.Entries[i]) {
			return false
		}
	}
	return true
}

// byEntryName sorts entries by name (§6 "names sorted").
type byEntryName []*TreeEntry

func (s byEntryName) Len() int           { return len(s) }
func (s byEntryName) Swap(i, j int)      { s[i], s[j] = s[j], s[i] }
func (s byEntryName) Less(i, j int) bool { return s[i].Name < s[j].Name }

// SortEntries sorts entries in place by name.
func SortEntries(entries []*TreeEntry) {
	sort.Sort(byEntryName(entries))
}

// Encode renders the tree payload: repeated `<kind> <name>\0<oid bytes>`,
// entries sorted by name (§6).
func (t *Tree) Encode() ([]byte, error) {
	entries := make([]*TreeEntry, len(t.Entries))
	copy(entries, t.Entries)
	SortEntries(entries)

	var buf bytes.Buffer
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			return nil, fmt.Errorf("tree: duplicate entry name %q", e.Name)
		}
		seen[e.Name] = true
		if _, err := fmt.Fprintf(&buf, "%s %s", e.Kind, e.Name); err != nil {
			return nil, err
		}
		if err := buf.WriteByte(0); err != nil {
			return nil, err
		}
		if _, err := buf.Write(e.Hash[:]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeTree parses a tree payload as produced by Encode.
func DecodeTree(payload []byte, oid plumbing.Hash, b Backend) (*Tree, error) {
	t := &Tree{Hash: oid, b: b}
	for len(payload) > 0 {
		sp := bytes.IndexByte(payload, ' ')
		if sp < 0 {
			return nil, fmt.Errorf("tree %s: malformed entry header", oid)
		}
		kindWord := string(payload[:sp])
		payload = payload[sp+1:]

		nul := bytes.IndexByte(payload, 0)
		if nul < 0 {
			return nil, fmt.Errorf("tree %s: missing name terminator", oid)
		}
		name := string(payload[:nul])
		payload = payload[nul+1:]

		if len(payload) < plumbing.HashDigestSize {
			return nil, fmt.Errorf("tree %s: truncated entry oid", oid)
		}
		var h plumbing.Hash
		copy(h[:], payload[:plumbing.HashDigestSize])
		payload = payload[plumbing.HashDigestSize:]

		var kind Kind
		switch kindWord {
		case "blob":
			kind = BlobKind
		case "tree":
			kind = TreeKind
		default:
			return nil, fmt.Errorf("tree %s: unknown entry kind %q", oid, kindWord)
		}
		t.Entries = append(t.Entries, &TreeEntry{Name: name, Kind: kind, Hash: h})
	}
	return t, nil
}

// Tree resolves the sub-tree found by walking relPath (slash separated)
// below t. An empty path returns t itself.
func (t *Tree) Tree(ctx context.Context, relPath string) (*Tree, error) {
	if relPath == "" {
		return t, nil
	}
	parts := strings.Split(relPath, "/")
	cur := t
	for _, part := range parts {
		e := cur.Entry(part)
		if e == nil || e.Kind != TreeKind {
			return nil, fmt.Errorf("tree: directory %q not found", relPath)
		}
		next, err := GetTree(ctx, cur.b, e.Hash)
		if err != nil {
			return nil, err
		}
		next.b = cur.b
		cur = next
	}
	return cur, nil
}

// FindEntry resolves a possibly-nested path to its terminal TreeEntry.
func (t *Tree) FindEntry(ctx context.Context, relPath string) (*TreeEntry, error) {
	dir, base := path.Split(relPath)
	dir = strings.TrimSuffix(dir, "/")
	parent, err := t.Tree(ctx, dir)
	if err != nil {
		return nil, err
	}
	e := parent.Entry(base)
	if e == nil {
		return nil, fmt.Errorf("tree: entry %q not found", relPath)
	}
	return e, nil
}
