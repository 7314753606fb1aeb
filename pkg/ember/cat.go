// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"fmt"
	"io"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// CatObject returns an object's kind and raw payload, for debugging and
// the cat-* family of inspection commands (§4.1: objects are
// content-addressed, so any oid is independently readable).
func (r *Repository) CatObject(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error) {
	return r.Store.Get(ctx, oid)
}

// CatPretty renders an object's payload as a human-readable string: a
// blob's bytes verbatim, a tree's entries one per line, or a commit's
// Encode() form.
func (r *Repository) CatPretty(ctx context.Context, oid plumbing.Hash) (string, error) {
	kind, payload, err := r.Store.Get(ctx, oid)
	if err != nil {
		return "", err
	}
	switch kind {
	case object.BlobKind:
		return string(payload), nil
	case object.TreeKind:
		t, err := object.DecodeTree(payload, oid, r.Store)
		if err != nil {
			return "", err
		}
		var out string
		entries := make([]*object.TreeEntry, len(t.Entries))
		copy(entries, t.Entries)
		object.SortEntries(entries)
		for _, e := range entries {
			out += fmt.Sprintf("%s %s\t%s\n", e.Kind, e.Hash, e.Name)
		}
		return out, nil
	case object.CommitKind:
		c, err := object.DecodeCommit(payload, oid, r.Store)
		if err != nil {
			return "", err
		}
		encoded, err := c.Encode()
		if err != nil {
			return "", err
		}
		return string(encoded), nil
	default:
		return "", fmt.Errorf("ember: unknown object kind %v for %s", kind, oid)
	}
}

// Blob returns a blob's content as an io.Reader. The store reads and
// decompresses the whole payload into memory before returning it.
func (r *Repository) Blob(ctx context.Context, oid plumbing.Hash) (io.Reader, error) {
	return r.Store.Blob(ctx, oid)
}
