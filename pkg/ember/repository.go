// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package ember is the history engine and its porcelain operations: commit
// creation, merge, cherry-pick, rebase, reset and remote sync, built on top
// of the object store (pkg/ember/odb), the reference store
// (modules/ember/refs) and the repository config (modules/ember/config).
package ember

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/emberscm/ember/modules/ember/config"
	"github.com/emberscm/ember/modules/ember/refs"
	"github.com/emberscm/ember/modules/plumbing"
	"github.com/emberscm/ember/modules/trace"
	"github.com/emberscm/ember/pkg/ember/odb"
)

// EmberDirName is the hidden metadata directory at the root of every
// repository (§6's "repository root", written here as ".ember" rather
// than the placeholder path the spec uses).
const EmberDirName = ".ember"

// Repository is a single working repository: its object store, reference
// store, staging index and resolved configuration.
type Repository struct {
	workTree string
	repoDir  string

	Store  *odb.Store
	Refs   *refs.Store
	Config *config.Config
}

// Init creates a new repository at workTree (which must not already
// contain one), with HEAD symbolically pointing at refs/heads/main before
// any commit exists, matching Git's well-known "unborn branch" state.
func Init(workTree string) (*Repository, error) {
	repoDir := filepath.Join(workTree, EmberDirName)
	if _, err := os.Stat(repoDir); err == nil {
		return nil, fmt.Errorf("ember: repository already exists at %s", repoDir)
	}
	if err := os.MkdirAll(repoDir, 0o755); err != nil {
		return nil, trace.Errorf("ember: init: %v", err)
	}
	store, err := odb.NewStore(repoDir)
	if err != nil {
		return nil, err
	}
	refStore := refs.NewStore(repoDir)
	if err := refStore.Symref(plumbing.HEAD, plumbing.Main); err != nil {
		return nil, err
	}
	cfg, err := config.Load(repoDir)
	if err != nil {
		return nil, err
	}
	return &Repository{workTree: workTree, repoDir: repoDir, Store: store, Refs: refStore, Config: cfg}, nil
}

// Open opens an existing repository rooted at workTree.
func Open(workTree string) (*Repository, error) {
	repoDir := filepath.Join(workTree, EmberDirName)
	if _, err := os.Stat(repoDir); err != nil {
		return nil, fmt.Errorf("ember: not a repository: %s", workTree)
	}
	store, err := odb.NewStore(repoDir)
	if err != nil {
		return nil, err
	}
	cfg, err := config.Load(repoDir)
	if err != nil {
		return nil, err
	}
	return &Repository{
		workTree: workTree,
		repoDir:  repoDir,
		Store:    store,
		Refs:     refs.NewStore(repoDir),
		Config:   cfg,
	}, nil
}

func (r *Repository) WorkTree() string { return r.workTree }
func (r *Repository) RepoDir() string  { return r.repoDir }

func (r *Repository) indexPath() string { return filepath.Join(r.repoDir, "index") }

func (r *Repository) LoadIndex() (*odb.Index, error) {
	return odb.LoadIndex(r.indexPath())
}

// identity resolves the author/committer signature from config, failing
// loudly rather than silently committing as an empty identity.
func (r *Repository) identity() (name, email string, err error) {
	if r.Config.User.Empty() {
		return "", "", fmt.Errorf("ember: user.name and user.email must be configured")
	}
	return r.Config.User.Name, r.Config.User.Email, nil
}
