// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package remote implements the transport side of §4.7 Remote Sync: moving
// objects reachable from a commit across a wire, and updating a remote's
// ref under the same compare-and-set discipline the local reference store
// uses. The history engine (pkg/ember) drives fetch/push against the
// Transport interface; concrete backends (HTTP, S3, MySQL-paired) live in this
// package so the engine itself never depends on a specific wire protocol.
package remote

import (
	"context"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// Transport is everything the history engine needs from a remote: read its
// refs, pull objects it has that the caller doesn't, push objects the
// caller has that it doesn't, and compare-and-set one of its refs.
type Transport interface {
	// ListRefs returns every ref the remote advertises. The HTTP and S3
	// backends list only names under "refs/", so HEAD is not among them.
	ListRefs(ctx context.Context) ([]*plumbing.Reference, error)

	// HasObject reports whether the remote already stores oid, so the
	// caller can stop walking a reachability closure early.
	HasObject(ctx context.Context, oid plumbing.Hash) (bool, error)

	// PullObject fetches one object's kind and payload.
	PullObject(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error)

	// PushObject uploads one object; idempotent like the local store's put.
	PushObject(ctx context.Context, oid plumbing.Hash, kind object.Kind, payload []byte) error

	// UpdateRef compare-and-sets name on the remote. expectedOld is nil
	// when the ref is expected absent.
	UpdateRef(ctx context.Context, name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error
}

// Progress receives transfer events so a caller can render a bar (see
// progress.go); a nil Progress is a silent no-op.
type Progress interface {
	Advance(n int)
	SetTotal(total int)
	Done()
}

type noopProgress struct{}

func (noopProgress) Advance(int)  {}
func (noopProgress) SetTotal(int) {}
func (noopProgress) Done()        {}

var Noop Progress = noopProgress{}
