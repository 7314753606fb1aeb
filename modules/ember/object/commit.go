// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package object

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/emberscm/ember/modules/plumbing"
)

// Signature is an author or committer identity, encoded as
// "Name <email> epoch tz" (§6).
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// NewSignature builds a Signature for "now" under the given identity,
// satisfying the clock/identity adapter contract of §6.
func NewSignature(name, email string, when time.Time) Signature {
	return Signature{Name: name, Email: email, When: when}
}

func (s Signature) String() string {
	_, offset := s.When.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	tz := fmt.Sprintf("%c%02d%02d", sign, offset/3600, (offset/60)%60)
	return fmt.Sprintf("%s <%s> %d %s", s.Name, s.Email, s.When.Unix(), tz)
}

// DecodeSignature parses the "Name <email> epoch tz" form.
func DecodeSignature(line string) (Signature, error) {
	lt := strings.LastIndexByte(line, '<')
	gt := strings.LastIndexByte(line, '>')
	if lt < 0 || gt < 0 || gt < lt {
		return Signature{}, fmt.Errorf("malformed signature %q", line)
	}
	name := strings.TrimSpace(line[:lt])
	email := line[lt+1 : gt]
	rest := strings.TrimSpace(line[gt+1:])
	fields := strings.Fields(rest)
	if len(fields) != 2 {
		return Signature{}, fmt.Errorf("malformed signature %q: expected epoch and tz", line)
	}
	epoch, err := strconv.ParseInt(fields[0], 10, 64)
	if err != nil {
		return Signature{}, fmt.Errorf("malformed signature %q: %w", line, err)
	}
	offset, err := parseTZOffset(fields[1])
	if err != nil {
		return Signature{}, fmt.Errorf("malformed signature %q: %w", line, err)
	}
	loc := time.FixedZone(fields[1], offset)
	return Signature{Name: name, Email: email, When: time.Unix(epoch, 0).In(loc)}, nil
}

func parseTZOffset(tz string) (int, error) {
	if len(tz) != 5 || (tz[0] != '+' && tz[0] != '-') {
		return 0, fmt.Errorf("bad timezone %q", tz)
	}
	hh, err := strconv.Atoi(tz[1:3])
	if err != nil {
		return 0, err
	}
	mm, err := strconv.Atoi(tz[3:5])
	if err != nil {
		return 0, err
	}
	offset := hh*3600 + mm*60
	if tz[0] == '-' {
		offset = -offset
	}
	return offset, nil
}

// ExtraHeader is an opaque, order-preserved commit header line beyond
// tree/parent/author/committer (reserved for future extensions such as
// signoff trailers or mainline markers; the core never interprets these).
type ExtraHeader struct {
	K string
	V string
}

// Commit is the engine's commit object (§3): a tree, zero or more ordered
// parents, two signatures, and a message.
type Commit struct {
	Hash         plumbing.Hash
	Tree         plumbing.Hash
	Parents      []plumbing.Hash
	Author       Signature
	Committer    Signature
	ExtraHeaders []ExtraHeader
	Message      string

	b Backend
}

func (c *Commit) WithBackend(b Backend) *Commit {
	c.b = b
	return c
}

// NumParents returns len(Parents).
func (c *Commit) NumParents() int { return len(c.Parents) }

// IsMerge reports whether the commit has two or more parents.
func (c *Commit) IsMerge() bool { return len(c.Parents) >= 2 }

// Less orders commits the way the bidirectional-BFS frontier wants to pop
// them: by committer time, then author time, then hash, matching the
// deterministic tie-break §4.6/§9 call for.
func (c *Commit) Less(other *Commit) bool {
	if !c.Committer.When.Equal(other.Committer.When) {
		return c.Committer.When.Before(other.Committer.When)
	}
	if !c.Author.When.Equal(other.Author.When) {
		return c.Author.When.Before(other.Author.When)
	}
	return bytes.Compare(c.Hash[:], other.Hash[:]) < 0
}

// Encode renders the commit payload exactly as specified in §6.
func (c *Commit) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := fmt.Fprintf(&buf, "tree %s\n", c.Tree); err != nil {
		return nil, err
	}
	for _, p := range c.Parents {
		if _, err := fmt.Fprintf(&buf, "parent %s\n", p); err != nil {
			return nil, err
		}
	}
	if _, err := fmt.Fprintf(&buf, "author %s\n", c.Author); err != nil {
		return nil, err
	}
	if _, err := fmt.Fprintf(&buf, "committer %s\n", c.Committer); err != nil {
		return nil, err
	}
	for _, h := range c.ExtraHeaders {
		if _, err := fmt.Fprintf(&buf, "%s %s\n", h.K, h.V); err != nil {
			return nil, err
		}
	}
	if _, err := buf.WriteString("\n"); err != nil {
		return nil, err
	}
	if _, err := buf.WriteString(c.Message); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeCommit parses a commit payload as produced by Encode.
func DecodeCommit(payload []byte, oid plumbing.Hash, b Backend) (*Commit, error) {
	c := &Commit{Hash: oid, b: b}
	r := bufio.NewReader(bytes.NewReader(payload))
	for {
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return nil, fmt.Errorf("commit %s: unexpected end of headers", oid)
		}
		line = strings.TrimSuffix(line, "\n")
		if line == "" {
			break
		}
		switch {
		case strings.HasPrefix(line, "tree "):
			c.Tree = plumbing.NewHash(strings.TrimPrefix(line, "tree "))
		case strings.HasPrefix(line, "parent "):
			c.Parents = append(c.Parents, plumbing.NewHash(strings.TrimPrefix(line, "parent ")))
		case strings.HasPrefix(line, "author "):
			sig, err := DecodeSignature(strings.TrimPrefix(line, "author "))
			if err != nil {
				return nil, fmt.Errorf("commit %s: %w", oid, err)
			}
			c.Author = sig
		case strings.HasPrefix(line, "committer "):
			sig, err := DecodeSignature(strings.TrimPrefix(line, "committer "))
			if err != nil {
				return nil, fmt.Errorf("commit %s: %w", oid, err)
			}
			c.Committer = sig
		default:
			if sp := strings.IndexByte(line, ' '); sp > 0 {
				c.ExtraHeaders = append(c.ExtraHeaders, ExtraHeader{K: line[:sp], V: line[sp+1:]})
				continue
			}
			return nil, fmt.Errorf("commit %s: malformed header %q", oid, line)
		}
	}
	rest, err := bufferRemainder(r)
	if err != nil {
		return nil, err
	}
	c.Message = rest
	return c, nil
}

func bufferRemainder(r *bufio.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(r); err != nil {
		return "", err
	}
	return buf.String(), nil
}
