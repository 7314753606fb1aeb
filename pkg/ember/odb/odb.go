// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package odb implements the content-addressed object store (§4.1): typed,
// compressed, immutable objects keyed by the hash of their framed payload.
package odb

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/modules/trace"
)

const (
	DefaultHashALGO        = "BLAKE3"
	DefaultCompressionALGO = "zstd"

	objectsDir = "objects"
)

// Store is the on-disk object database: objects/<hh>/<rest>, fan-out by the
// first two hex characters of the oid (§6).
type Store struct {
	root        string
	cache       *ristretto.Cache[plumbing.Hash, cachedObject]
	encoder     *zstd.Encoder
	decoderPool chan *zstd.Decoder
}

type cachedObject struct {
	kind    object.Kind
	payload []byte
}

// Option customises a Store at construction time.
type Option func(*Store)

// WithCacheCounters overrides ristretto's NumCounters/MaxCost sizing, for
// callers that know their working-set shape up front (tests, bulk import).
func WithCacheCounters(numCounters, maxCost int64) Option {
	return func(s *Store) {
		cache, err := ristretto.NewCache(&ristretto.Config[plumbing.Hash, cachedObject]{
			NumCounters: numCounters,
			MaxCost:     maxCost,
			BufferItems: 64,
		})
		if err == nil {
			s.cache = cache
		}
	}
}

// NewStore opens (creating if absent) the object store rooted at root,
// which is the repository's "objects" parent directory (normally
// ".ember").
func NewStore(root string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(root, objectsDir), 0o755); err != nil {
		return nil, fmt.Errorf("odb: create objects dir: %w", err)
	}
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("odb: init zstd encoder: %w", err)
	}
	s := &Store{root: root, encoder: enc, decoderPool: make(chan *zstd.Decoder, 4)}
	for _, o := range opts {
		o(s)
	}
	if s.cache == nil {
		cache, err := ristretto.NewCache(&ristretto.Config[plumbing.Hash, cachedObject]{
			NumCounters: 100_000,
			MaxCost:     32 << 20,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("odb: init cache: %w", err)
		}
		s.cache = cache
	}
	return s, nil
}

func (s *Store) Root() string { return s.root }

func (s *Store) path(oid plumbing.Hash) string {
	hex := oid.String()
	return filepath.Join(s.root, objectsDir, hex[:2], hex[2:])
}

func (s *Store) decoder() (*zstd.Decoder, error) {
	select {
	case d := <-s.decoderPool:
		return d, nil
	default:
		return zstd.NewReader(nil)
	}
}

func (s *Store) putDecoder(d *zstd.Decoder) {
	select {
	case s.decoderPool <- d:
	default:
		d.Close()
	}
}

// frame renders `<kind>\0<payload>`, the bytes actually hashed and (once
// compressed) written to disk (§3, §4.1).
func frame(kind object.Kind, payload []byte) []byte {
	out := make([]byte, 0, len(payload)+2)
	out = append(out, byte(kind), 0)
	out = append(out, payload...)
	return out
}

// Put writes kind+payload, returning its content address. Writing an
// existing oid is a no-op (§3 "writing an existing oid is a no-op"); racing
// writers of identical content are safe because the final bytes on disk are
// always identical (§4.1 "last-writer-wins over identical content").
func (s *Store) Put(_ context.Context, kind object.Kind, payload []byte) (plumbing.Hash, error) {
	oid := object.HashPayload(kind, payload)
	p := s.path(oid)
	if _, err := os.Stat(p); err == nil {
		s.cache.Set(oid, cachedObject{kind: kind, payload: payload}, int64(len(payload)))
		return oid, nil
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return plumbing.ZeroHash, fmt.Errorf("odb: mkdir: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), "obj-*.tmp")
	if err != nil {
		return plumbing.ZeroHash, fmt.Errorf("odb: create temp: %w", err)
	}
	tmpName := tmp.Name()
	compressed := s.encoder.EncodeAll(frame(kind, payload), nil)
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return plumbing.ZeroHash, fmt.Errorf("odb: write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return plumbing.ZeroHash, fmt.Errorf("odb: close temp: %w", err)
	}
	if err := os.Rename(tmpName, p); err != nil {
		os.Remove(tmpName)
		// Another writer may have won the race with identical content;
		// that is not an error (§4.1).
		if _, statErr := os.Stat(p); statErr == nil {
			s.cache.Set(oid, cachedObject{kind: kind, payload: payload}, int64(len(payload)))
			return oid, nil
		}
		return plumbing.ZeroHash, fmt.Errorf("odb: rename temp: %w", err)
	}
	s.cache.Set(oid, cachedObject{kind: kind, payload: payload}, int64(len(payload)))
	return oid, nil
}

// Get reads and verifies an object, returning its kind and raw payload.
// Fails with plumbing.NoSuchObject or a corruption error (bad framing, hash
// mismatch) per §4.1.
func (s *Store) Get(_ context.Context, oid plumbing.Hash) (object.Kind, []byte, error) {
	if hit, ok := s.cache.Get(oid); ok {
		return hit.kind, hit.payload, nil
	}
	raw, err := os.ReadFile(s.path(oid))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil, plumbing.NoSuchObject(oid)
		}
		return 0, nil, trace.Errorf("odb: read %s: %v", oid, err)
	}
	dec, err := s.decoder()
	if err != nil {
		return 0, nil, trace.Errorf("odb: init zstd decoder: %v", err)
	}
	defer s.putDecoder(dec)
	framed, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return 0, nil, trace.Errorf("odb: corrupt object %s: decompress: %v", oid, err)
	}
	if len(framed) < 2 || framed[1] != 0 {
		return 0, nil, trace.Errorf("odb: corrupt object %s: bad framing", oid)
	}
	kind := object.Kind(framed[0])
	payload := framed[2:]
	if got := object.HashPayload(kind, payload); got != oid {
		return 0, nil, trace.Errorf("odb: corrupt object %s: hash mismatch, got %s", oid, got)
	}
	s.cache.Set(oid, cachedObject{kind: kind, payload: payload}, int64(len(payload)))
	return kind, payload, nil
}

// Exists reports whether oid is present, without decompressing it.
func (s *Store) Exists(oid plumbing.Hash) bool {
	if _, ok := s.cache.Get(oid); ok {
		return true
	}
	_, err := os.Stat(s.path(oid))
	return err == nil
}

// IterAll walks every object currently stored, invoking fn with each oid.
// Returning plumbing.ErrStop halts the walk early.
func (s *Store) IterAll(fn func(oid plumbing.Hash) error) error {
	base := filepath.Join(s.root, objectsDir)
	entries, err := os.ReadDir(base)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, fanout := range entries {
		if !fanout.IsDir() || len(fanout.Name()) != 2 {
			continue
		}
		rest, err := os.ReadDir(filepath.Join(base, fanout.Name()))
		if err != nil {
			return err
		}
		for _, f := range rest {
			oid, err := plumbing.NewHashEx(fanout.Name() + f.Name())
			if err != nil {
				continue
			}
			if err := fn(oid); err == plumbing.ErrStop {
				return nil
			} else if err != nil {
				return err
			}
		}
	}
	return nil
}

// PutBlob, PutTree and PutCommit are typed convenience wrappers over Put.

func (s *Store) PutBlob(ctx context.Context, content []byte) (plumbing.Hash, error) {
	return s.Put(ctx, object.BlobKind, content)
}

func (s *Store) Blob(ctx context.Context, oid plumbing.Hash) (io.Reader, error) {
	kind, payload, err := s.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if kind != object.BlobKind {
		return nil, fmt.Errorf("%w: %s is a %s, not a blob", object.ErrMismatchedKind, oid, kind)
	}
	return bytes.NewReader(payload), nil
}

func (s *Store) PutTree(ctx context.Context, t *object.Tree) (plumbing.Hash, error) {
	payload, err := t.Encode()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	return s.Put(ctx, object.TreeKind, payload)
}

// Tree implements object.Backend.
func (s *Store) Tree(ctx context.Context, oid plumbing.Hash) (*object.Tree, error) {
	kind, payload, err := s.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if kind != object.TreeKind {
		return nil, fmt.Errorf("%w: %s is a %s, not a tree", object.ErrMismatchedKind, oid, kind)
	}
	t, err := object.DecodeTree(payload, oid, s)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *Store) PutCommit(ctx context.Context, c *object.Commit) (plumbing.Hash, error) {
	payload, err := c.Encode()
	if err != nil {
		return plumbing.ZeroHash, err
	}
	oid, err := s.Put(ctx, object.CommitKind, payload)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	c.Hash = oid
	return oid, nil
}

// Commit implements object.Backend.
func (s *Store) Commit(ctx context.Context, oid plumbing.Hash) (*object.Commit, error) {
	kind, payload, err := s.Get(ctx, oid)
	if err != nil {
		return nil, err
	}
	if kind != object.CommitKind {
		return nil, fmt.Errorf("%w: %s is a %s, not a commit", object.ErrMismatchedKind, oid, kind)
	}
	c, err := object.DecodeCommit(payload, oid, s)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Close flushes pooled resources. Safe to call more than once.
func (s *Store) Close() error {
	if s.encoder != nil {
		_ = s.encoder.Close()
	}
	for {
		select {
		case d := <-s.decoderPool:
			d.Close()
		default:
			return nil
		}
	}
}

