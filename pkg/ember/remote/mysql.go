// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package remote

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/emberscm/ember/modules/ember/object"
	"github.com/emberscm/ember/modules/plumbing"
)

// mysqlRefStore is the CAS-capable ref backend s3Transport's UpdateRef
// comment refers to: S3 holds objects, this holds refs, and the two are
// paired behind one Transport by pairedTransport below. Grounded on the
// teacher's DoBranchUpdate (conditional UPDATE inside a transaction,
// RowsAffected as the CAS check).
type mysqlRefStore struct {
	db   *sql.DB
	repo string
}

// NewMySQLRefStore opens a pooled connection using cfg and scopes every ref
// row to repo, so one table can back more than one repository's refs.
func NewMySQLRefStore(cfg *mysqldriver.Config, repo string) (*mysqlRefStore, error) {
	connector, err := mysqldriver.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("remote: mysql connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxIdleConns(10)
	db.SetMaxOpenConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)
	return &mysqlRefStore{db: db, repo: repo}, nil
}

func (m *mysqlRefStore) Close() error {
	return m.db.Close()
}

func (m *mysqlRefStore) ListRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	rows, err := m.db.QueryContext(ctx, "select name, hash from refs where repo = ?", m.repo)
	if err != nil {
		return nil, fmt.Errorf("remote: mysql list refs: %w", err)
	}
	defer rows.Close()
	var out []*plumbing.Reference
	for rows.Next() {
		var name, hash string
		if err := rows.Scan(&name, &hash); err != nil {
			return nil, err
		}
		out = append(out, plumbing.NewReferenceFromStrings(name, hash))
	}
	return out, rows.Err()
}

// UpdateRef performs the same conditional-UPDATE-then-check-RowsAffected
// dance as the teacher's DoBranchUpdate: a transaction guarantees no other
// writer's read-modify-write interleaves with this one.
func (m *mysqlRefStore) UpdateRef(ctx context.Context, name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("remote: mysql begin tx: %w", err)
	}
	defer tx.Rollback()

	var curHash string
	err = tx.QueryRowContext(ctx, "select hash from refs where repo = ? and name = ?", m.repo, name.String()).Scan(&curHash)
	switch {
	case err == sql.ErrNoRows:
		if expectedOld != nil {
			return &plumbing.ErrConcurrentUpdate{Name: name, Expected: *expectedOld, Actual: plumbing.ZeroHash}
		}
		if _, err := tx.ExecContext(ctx, "insert into refs(repo, name, hash) values(?, ?, ?)", m.repo, name.String(), newOid.String()); err != nil {
			return fmt.Errorf("remote: mysql insert ref: %w", err)
		}
		return tx.Commit()
	case err != nil:
		return fmt.Errorf("remote: mysql read ref: %w", err)
	}

	cur := plumbing.NewHash(curHash)
	if expectedOld == nil || cur != *expectedOld {
		want := plumbing.ZeroHash
		if expectedOld != nil {
			want = *expectedOld
		}
		return &plumbing.ErrConcurrentUpdate{Name: name, Expected: want, Actual: cur}
	}
	result, err := tx.ExecContext(ctx, "update refs set hash = ? where repo = ? and name = ? and hash = ?", newOid.String(), m.repo, name.String(), curHash)
	if err != nil {
		return fmt.Errorf("remote: mysql update ref: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return &plumbing.ErrConcurrentUpdate{Name: name, Expected: *expectedOld, Actual: cur}
	}
	return tx.Commit()
}

// objectTransport is the subset of Transport an object-storing backend
// (such as s3Transport) provides once ref CAS moves to MySQL.
type objectTransport interface {
	HasObject(ctx context.Context, oid plumbing.Hash) (bool, error)
	PullObject(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error)
	PushObject(ctx context.Context, oid plumbing.Hash, kind object.Kind, payload []byte) error
}

// pairedTransport satisfies Transport by sending object reads/writes to
// objects and ref reads/CAS-writes to refs, so a bucket backend that cannot
// do compare-and-swap can still offer a fully consistent Transport when
// paired with mysqlRefStore.
type pairedTransport struct {
	objects objectTransport
	refs    *mysqlRefStore
}

// NewPairedTransport pairs an object-only backend with a MySQL ref store.
func NewPairedTransport(objects objectTransport, refs *mysqlRefStore) Transport {
	return &pairedTransport{objects: objects, refs: refs}
}

func (p *pairedTransport) ListRefs(ctx context.Context) ([]*plumbing.Reference, error) {
	return p.refs.ListRefs(ctx)
}

func (p *pairedTransport) HasObject(ctx context.Context, oid plumbing.Hash) (bool, error) {
	return p.objects.HasObject(ctx, oid)
}

func (p *pairedTransport) PullObject(ctx context.Context, oid plumbing.Hash) (object.Kind, []byte, error) {
	return p.objects.PullObject(ctx, oid)
}

func (p *pairedTransport) PushObject(ctx context.Context, oid plumbing.Hash, kind object.Kind, payload []byte) error {
	return p.objects.PushObject(ctx, oid, kind, payload)
}

func (p *pairedTransport) UpdateRef(ctx context.Context, name plumbing.ReferenceName, newOid plumbing.Hash, expectedOld *plumbing.Hash) error {
	return p.refs.UpdateRef(ctx, name, newOid, expectedOld)
}
