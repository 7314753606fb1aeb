// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package ember

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// Revision resolves a ref name, a full or abbreviated hex oid, or a
// "<rev>~N" ancestor expression to a commit oid. This is the lookup
// §4.6's operations use to turn a user-supplied revision string into the
// oid their algorithms operate on; it is not itself a §4 component, just
// the glue between CLI input and the object/reference stores.
func (r *Repository) Revision(ctx context.Context, rev string) (plumbing.Hash, error) {
	base, n, err := splitAncestorSuffix(rev)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	oid, err := r.resolveBase(ctx, base)
	if err != nil {
		return plumbing.ZeroHash, err
	}
	for range n {
		c, err := object.GetCommit(ctx, r.Store, oid)
		if err != nil {
			return plumbing.ZeroHash, err
		}
		if len(c.Parents) == 0 {
			return plumbing.ZeroHash, fmt.Errorf("ember: %s has no %dth ancestor", rev, n)
		}
		oid = c.Parents[0]
	}
	return oid, nil
}

func splitAncestorSuffix(rev string) (base string, n int, err error) {
	i := strings.LastIndexByte(rev, '~')
	if i < 0 {
		return rev, 0, nil
	}
	base = rev[:i]
	suffix := rev[i+1:]
	if suffix == "" {
		return base, 1, nil
	}
	n, err = strconv.Atoi(suffix)
	if err != nil {
		return "", 0, fmt.Errorf("ember: invalid ancestor count in %q", rev)
	}
	return base, n, nil
}

func (r *Repository) resolveBase(ctx context.Context, rev string) (plumbing.Hash, error) {
	if rev == "HEAD" {
		return r.resolveHEAD()
	}
	if plumbing.ValidateHashHex(rev) {
		return plumbing.NewHash(rev), nil
	}
	for _, candidate := range []plumbing.ReferenceName{
		plumbing.ReferenceName(rev),
		plumbing.NewBranchReferenceName(rev),
		plumbing.NewTagReferenceName(rev),
	} {
		if ref, err := r.Refs.Resolve(candidate, true); err == nil {
			return ref.Hash(), nil
		} else if err != plumbing.ErrReferenceNotFound {
			return plumbing.ZeroHash, err
		}
	}
	if oid, err := r.resolveAbbreviated(ctx, rev); err == nil {
		return oid, nil
	}
	return plumbing.ZeroHash, fmt.Errorf("ember: unknown revision %q", rev)
}

// resolveAbbreviated scans the object store for the unique oid whose hex
// prefix matches rev, for the same shortened-oid ergonomics Hash.Prefix
// produces on output.
func (r *Repository) resolveAbbreviated(ctx context.Context, rev string) (plumbing.Hash, error) {
	if len(rev) < 4 || len(rev) >= plumbing.HashHexSize {
		return plumbing.ZeroHash, fmt.Errorf("ember: %q is not a valid abbreviated oid", rev)
	}
	var found plumbing.Hash
	matches := 0
	err := r.Store.IterAll(func(oid plumbing.Hash) error {
		if strings.HasPrefix(oid.String(), rev) {
			found = oid
			matches++
		}
		return nil
	})
	if err != nil {
		return plumbing.ZeroHash, err
	}
	if matches == 0 {
		return plumbing.ZeroHash, fmt.Errorf("ember: no object matches %q", rev)
	}
	if matches > 1 {
		return plumbing.ZeroHash, fmt.Errorf("ember: %q is ambiguous", rev)
	}
	return found, nil
}
