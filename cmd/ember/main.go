// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Command ember is the porcelain CLI over pkg/ember's history engine: a
// thin argument parser and command dispatcher, deliberately outside the
// core (the core never imports this package).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/emberscm/ember/modules/keyring"
	"github.com/emberscm/ember/modules/term"
	"github.com/emberscm/ember/pkg/ember"
	"github.com/emberscm/ember/pkg/ember/remote"
	"github.com/emberscm/ember/pkg/version"
)

var log = logrus.New()

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "ember:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		usage()
		return nil
	}
	ctx := context.Background()
	switch cmd, rest := args[0], args[1:]; cmd {
	case "init":
		return cmdInit(rest)
	case "commit":
		return cmdCommit(ctx, rest)
	case "merge":
		return cmdMerge(ctx, rest)
	case "cherry-pick":
		return cmdCherryPick(ctx, rest)
	case "rebase":
		return cmdRebase(ctx, rest)
	case "reset":
		return cmdReset(ctx, rest)
	case "branch":
		return cmdBranch(ctx, rest)
	case "switch":
		return cmdSwitch(ctx, rest)
	case "tag":
		return cmdTag(ctx, rest)
	case "log":
		return cmdLog(ctx, rest)
	case "status":
		return cmdStatus(ctx, rest)
	case "show":
		return cmdShow(ctx, rest)
	case "cat-file":
		return cmdCatFile(ctx, rest)
	case "rev-parse":
		return cmdRevParse(ctx, rest)
	case "fetch":
		return cmdFetch(ctx, rest)
	case "push":
		return cmdPush(ctx, rest)
	case "-v", "--version", "version":
		fmt.Println(version.GetVersionString())
		return nil
	case "-h", "--help", "help":
		usage()
		return nil
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: ember <command> [args]

commands:
  init          create a new repository
  commit        record changes to the repository
  merge         join two development histories
  cherry-pick   apply the changes of an existing commit
  rebase        reapply commits on top of another base tip
  reset         reset current HEAD to the specified state
  branch        list, create, or delete branches
  switch        switch branches
  tag           list, create, or delete tags
  log           show commit logs
  status        show the working tree status
  show          show a commit and its diff
  cat-file      inspect an object
  rev-parse     resolve a revision to an object id
  fetch         download objects and a ref from a remote
  push          upload objects and update a ref on a remote
  version       print version information`)
}

func openHere() (*ember.Repository, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return ember.Open(wd)
}

func cmdInit(args []string) error {
	dir := "."
	if len(args) > 0 {
		dir = args[0]
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if _, err := ember.Init(abs); err != nil {
		return err
	}
	log.Infof("initialized empty ember repository in %s", abs)
	return nil
}

func cmdCommit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("commit", flag.ExitOnError)
	message := fs.String("m", "", "commit message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *message == "" {
		return fmt.Errorf("commit: -m <message> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	oid, err := repo.Commit(ctx, *message)
	if err != nil {
		return err
	}
	log.Infof("created commit %s", oid.Prefix())
	return nil
}

func cmdMerge(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("merge", flag.ExitOnError)
	message := fs.String("m", "", "merge commit message")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("merge: exactly one <commit-ish> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	theirs, err := repo.Revision(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := repo.Merge(ctx, theirs, *message)
	if err != nil {
		return err
	}
	switch {
	case result.FastForward:
		log.Info("fast-forward")
	case result.UpToDate:
		log.Info("already up to date")
	case len(result.Outcome.Conflicts) > 0:
		for _, c := range result.Outcome.Conflicts {
			fmt.Printf("conflict (%s): %s\n", c.Entry.Type, c.Path)
		}
		return fmt.Errorf("merge: fix conflicts and run 'ember commit'")
	default:
		log.Infof("merged into %s", result.Outcome.Oid.Prefix())
	}
	return nil
}

func cmdCherryPick(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cherry-pick", flag.ExitOnError)
	mainline := fs.Int("mainline", 0, "parent number (1-based) to diff against, for merge commits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("cherry-pick: exactly one <commit-ish> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	commit, err := repo.Revision(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	result, err := repo.CherryPick(ctx, commit, *mainline)
	if err != nil {
		return err
	}
	switch {
	case result.Empty:
		return fmt.Errorf("cherry-pick: the previous cherry-pick is now empty")
	case len(result.Outcome.Conflicts) > 0:
		for _, c := range result.Outcome.Conflicts {
			fmt.Printf("conflict (%s): %s\n", c.Entry.Type, c.Path)
		}
		return fmt.Errorf("cherry-pick: fix conflicts and run 'ember commit' (cherry-pick has no --continue)")
	default:
		log.Infof("cherry-picked as %s", result.Outcome.Oid.Prefix())
	}
	return nil
}

func cmdRebase(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("rebase", flag.ExitOnError)
	cont := fs.Bool("continue", false, "resume after resolving conflicts")
	abort := fs.Bool("abort", false, "restore the branch to its pre-rebase state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	switch {
	case *abort:
		return repo.RebaseAbort()
	case *cont:
		return reportRebase(repo.RebaseContinue(ctx))
	default:
		if fs.NArg() != 1 {
			return fmt.Errorf("rebase: exactly one <upstream> is required")
		}
		upstream, err := repo.Revision(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return reportRebase(repo.RebaseStart(ctx, upstream))
	}
}

func reportRebase(result *ember.RebaseResult, err error) error {
	if err != nil {
		return err
	}
	if result.Done {
		log.Info("rebase complete")
		return nil
	}
	for _, p := range result.Conflicts {
		fmt.Println("conflict:", p)
	}
	return fmt.Errorf("rebase: fix conflicts and run 'ember rebase --continue'")
}

func cmdReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ExitOnError)
	soft := fs.Bool("soft", false, "move HEAD only")
	hard := fs.Bool("hard", false, "move HEAD and reload the index (working-tree files are not rewritten)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("reset: exactly one <commit-ish> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	target, err := repo.Revision(ctx, fs.Arg(0))
	if err != nil {
		return err
	}
	mode := ember.ResetMixed
	switch {
	case *soft:
		mode = ember.ResetSoft
	case *hard:
		mode = ember.ResetHard
	}
	return repo.Reset(ctx, target, mode)
}

func cmdBranch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("branch", flag.ExitOnError)
	del := fs.String("d", "", "delete the named branch")
	if err := fs.Parse(args); err != nil {
		return err
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	if *del != "" {
		return repo.DeleteBranch(*del)
	}
	if fs.NArg() == 1 {
		start, err := repo.Revision(ctx, "HEAD")
		if err != nil {
			return err
		}
		return repo.CreateBranch(fs.Arg(0), start)
	}
	branches, err := repo.Branches()
	if err != nil {
		return err
	}
	for _, b := range branches {
		fmt.Printf("%s\t%s\n", b.Name, b.Oid.Prefix())
	}
	return nil
}

func cmdSwitch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("switch", flag.ExitOnError)
	detach := fs.Bool("detach", false, "switch to a commit-ish in detached HEAD state")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("switch: exactly one <branch-or-commit-ish> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	if *detach {
		commit, err := repo.Revision(ctx, fs.Arg(0))
		if err != nil {
			return err
		}
		return repo.SwitchDetached(ctx, commit)
	}
	return repo.Switch(ctx, fs.Arg(0))
}

func cmdTag(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("tag", flag.ExitOnError)
	del := fs.String("d", "", "delete the named tag")
	if err := fs.Parse(args); err != nil {
		return err
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	if *del != "" {
		return repo.DeleteTag(*del)
	}
	if fs.NArg() == 2 {
		target, err := repo.Revision(ctx, fs.Arg(1))
		if err != nil {
			return err
		}
		return repo.CreateTag(fs.Arg(0), target)
	}
	tags, err := repo.Tags()
	if err != nil {
		return err
	}
	for _, t := range tags {
		fmt.Printf("%s\t%s\n", t.Name, t.Oid.Prefix())
	}
	return nil
}

func cmdLog(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	limit := fs.Int("n", 0, "limit the number of commits")
	if err := fs.Parse(args); err != nil {
		return err
	}
	start := "HEAD"
	if fs.NArg() == 1 {
		start = fs.Arg(0)
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	oid, err := repo.Revision(ctx, start)
	if err != nil {
		return err
	}
	commits, err := repo.Log(ctx, oid, *limit)
	if err != nil {
		return err
	}
	for _, c := range commits {
		fmt.Printf("commit %s\n", term.StdoutMode.Yellow(c.Hash.String()))
		fmt.Printf("Author: %s <%s>\n\n", c.Author.Name, c.Author.Email)
		fmt.Printf("    %s\n\n", c.Message)
	}
	return nil
}

// statusColor renders kind in the color the teacher's own CLI output
// convention uses for each status: green for a clean addition, yellow for
// a modification, red for a deletion or unresolved conflict.
func statusColor(kind ember.StatusKind) string {
	switch kind {
	case ember.StatusAdded:
		return term.StdoutMode.Green(string(kind))
	case ember.StatusModified:
		return term.StdoutMode.Yellow(string(kind))
	case ember.StatusDeleted, ember.StatusConflict:
		return term.StdoutMode.Red(string(kind))
	default:
		return string(kind)
	}
}

func cmdStatus(ctx context.Context, args []string) error {
	repo, err := openHere()
	if err != nil {
		return err
	}
	entries, err := repo.Status(ctx)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s\t%s\n", statusColor(e.Kind), e.Path)
	}
	return nil
}

func cmdShow(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("show: exactly one <commit-ish> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	oid, err := repo.Revision(ctx, args[0])
	if err != nil {
		return err
	}
	result, err := repo.Show(ctx, oid)
	if err != nil {
		return err
	}
	fmt.Printf("commit %s\n\n    %s\n\n", result.Commit.Hash.String(), result.Commit.Message)
	for _, d := range result.Diff {
		fmt.Println(d.Path)
	}
	return nil
}

func cmdCatFile(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("cat-file: exactly one <oid> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	oid, err := repo.Revision(ctx, args[0])
	if err != nil {
		return err
	}
	pretty, err := repo.CatPretty(ctx, oid)
	if err != nil {
		return err
	}
	fmt.Print(pretty)
	return nil
}

func cmdRevParse(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("rev-parse: exactly one <rev> is required")
	}
	repo, err := openHere()
	if err != nil {
		return err
	}
	oid, err := repo.Revision(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Println(oid.String())
	return nil
}

// openTransport resolves remoteName against the repository's configured
// remotes and returns a Transport for it. Only the HTTP transport is
// reachable from the CLI today; S3 and MySQL-paired transports are wired
// for programmatic use (see pkg/ember/remote) but need bucket/DSN
// parameters this minimal command surface has no flags for yet.
func openTransport(ctx context.Context, repo *ember.Repository, remoteName string) (remote.Transport, error) {
	r, ok := repo.Config.Remote[remoteName]
	if !ok || r.URL == "" {
		return nil, fmt.Errorf("remote %q is not configured", remoteName)
	}
	cred, err := keyring.Find(ctx, r.URL)
	if err != nil && err != keyring.ErrNotFound {
		return nil, fmt.Errorf("credential lookup for %s: %w", r.URL, err)
	}
	var bearer string
	if cred != nil {
		bearer = cred.Password
	}
	return remote.NewHTTPTransport(r.URL, bearer), nil
}

func cmdFetch(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("fetch: usage: ember fetch <remote> <ref>")
	}
	remoteName, ref := args[0], args[1]
	repo, err := openHere()
	if err != nil {
		return err
	}
	transport, err := openTransport(ctx, repo, remoteName)
	if err != nil {
		return err
	}
	result, err := repo.Fetch(ctx, remoteName, transport, ref, remote.NewBarProgress("fetch"))
	if err != nil {
		return err
	}
	log.Infof("updated %s to %s", result.RemoteRef, result.Oid.Prefix())
	return nil
}

func cmdPush(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("push: usage: ember push <remote> <local-branch>")
	}
	remoteName, localRef := args[0], args[1]
	repo, err := openHere()
	if err != nil {
		return err
	}
	transport, err := openTransport(ctx, repo, remoteName)
	if err != nil {
		return err
	}
	result, err := repo.Push(ctx, remoteName, transport, localRef, remote.NewBarProgress("push"))
	if err != nil {
		if err == ember.ErrNotFastForward {
			return fmt.Errorf("push: rejected: %s is not a fast-forward of the remote branch", localRef)
		}
		return err
	}
	log.Infof("pushed %s to %s (was %s)", result.Oid.Prefix(), result.RemoteRef, result.PreviousOid.Prefix())
	return nil
}
