// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package object implements the three structured object kinds the history
// engine reasons about: trees and commits (blobs are opaque bytes and need
// no structure here — see pkg/ember/odb for the content-addressed store that
// frames, compresses, and persists all three kinds uniformly).
package object

import (
	"context"
	"errors"
	"fmt"

	"github.com/emberscm/ember/modules/plumbing"
)

// Kind discriminates the three object kinds named in §3. Tags are a
// lightweight, ref-only construct and have no standalone object kind.
type Kind uint8

const (
	BlobKind Kind = iota + 1
	TreeKind
	CommitKind
)

func (k Kind) String() string {
	switch k {
	case BlobKind:
		return "blob"
	case TreeKind:
		return "tree"
	case CommitKind:
		return "commit"
	default:
		return "unknown"
	}
}

var (
	ErrUnsupportedKind = errors.New("ember: unsupported object kind")
	ErrMismatchedKind  = errors.New("ember: decoded payload does not match requested object kind")
)

// Encoder produces the canonical payload bytes hashed and stored for an
// object (the `<bytes>` half of `<kind>\0<bytes>`, §4.1).
type Encoder interface {
	Encode() ([]byte, error)
}

// Backend is the minimal read surface structured objects need to resolve
// references to other objects (a tree entry pointing at a sub-tree, a
// commit's tree and parents). pkg/ember/odb.Store implements it.
type Backend interface {
	Tree(ctx context.Context, oid plumbing.Hash) (*Tree, error)
	Commit(ctx context.Context, oid plumbing.Hash) (*Commit, error)
}

// HashPayload computes the oid for a kind+payload pair without writing
// anything — the content address is the hash of `<kind>\0<payload>` (§3).
func HashPayload(kind Kind, payload []byte) plumbing.Hash {
	h := plumbing.NewHasher()
	_, _ = h.Write([]byte{byte(kind), 0})
	_, _ = h.Write(payload)
	return h.Sum()
}

// HashOf hashes an Encoder's canonical payload under its kind.
func HashOf(kind Kind, e Encoder) (plumbing.Hash, error) {
	payload, err := e.Encode()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return HashPayload(kind, payload), nil
}

// GetCommit is a small convenience wrapper used throughout the history
// engine wherever a bare oid needs to become a *Commit.
func GetCommit(ctx context.Context, b Backend, oid plumbing.Hash) (*Commit, error) {
	if b == nil {
		return nil, plumbing.NoSuchObject(oid)
	}
	c, err := b.Commit(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("resolve commit %s: %w", oid, err)
	}
	return c, nil
}

// GetTree is the tree analogue of GetCommit.
func GetTree(ctx context.Context, b Backend, oid plumbing.Hash) (*Tree, error) {
	if oid.IsZero() {
		return &Tree{}, nil
	}
	if b == nil {
		return nil, plumbing.NoSuchObject(oid)
	}
	t, err := b.Tree(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("resolve tree %s: %w", oid, err)
	}
	return t, nil
}
