// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

// Package config holds repository, global and system configuration: user
// identity, the hash/compression algorithm in force, and remote
// definitions (§6 "config — key/value pairs; recognised keys include
// user.name, user.email").
package config

import (
	"errors"
	"fmt"
)

type ErrBadConfigKey struct {
	key string
}

func (err *ErrBadConfigKey) Error() string {
	return fmt.Sprintf("bad config key '%s'", err.key)
}

func IsErrBadConfigKey(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrBadConfigKey)
	return ok
}

var ErrInvalidArgument = errors.New("invalid argument")

// Default algorithm names, mirrored by pkg/ember/odb's own defaults; kept
// here too so config.Core zero values and the store agree without an
// import cycle.
const (
	DefaultHashALGOName        = "BLAKE3"
	DefaultCompressionALGOName = "zstd"
)

// User identifies the author/committer under config keys user.name and
// user.email (§6).
type User struct {
	Name  string `toml:"name,omitempty"`
	Email string `toml:"email,omitempty"`
}

func (u *User) Empty() bool {
	return u == nil || len(u.Email) == 0 || len(u.Name) == 0
}

func overwrite(a, b string) string {
	if len(b) != 0 {
		return b
	}
	return a
}

func (u *User) Overwrite(o *User) {
	u.Name = overwrite(u.Name, o.Name)
	u.Email = overwrite(u.Email, o.Email)
}

// Core holds the object-store and working-tree-adapter algorithm choices
// (§4.1, §4.5).
type Core struct {
	HashALGO        string `toml:"hashAlgo,omitempty"`
	CompressionALGO string `toml:"compressionAlgo,omitempty"`
	Editor          string `toml:"editor,omitempty"`
}

func (c *Core) Overwrite(o *Core) {
	c.HashALGO = overwrite(c.HashALGO, o.HashALGO)
	c.CompressionALGO = overwrite(c.CompressionALGO, o.CompressionALGO)
	c.Editor = overwrite(c.Editor, o.Editor)
}

// Remote names one `[remote "name"]` entry: where to fetch/push and, for
// the backends that need it, which transport scheme to use (§4.7).
type Remote struct {
	Name string `toml:"-"`
	URL  string `toml:"url,omitempty"`
}

func (r *Remote) Overwrite(o *Remote) {
	r.URL = overwrite(r.URL, o.URL)
}

type Config struct {
	Core    Core               `toml:"core,omitempty"`
	User    User               `toml:"user,omitempty"`
	Remote  map[string]*Remote `toml:"remote,omitempty"`
}

// Overwrite layers a higher-priority config (e.g. repository-local) over
// this one (e.g. global), matching the teacher's system -> global -> local
// layering discipline.
func (c *Config) Overwrite(o *Config) {
	c.Core.Overwrite(&o.Core)
	c.User.Overwrite(&o.User)
	if len(o.Remote) > 0 {
		if c.Remote == nil {
			c.Remote = make(map[string]*Remote, len(o.Remote))
		}
		for name, r := range o.Remote {
			if existing, ok := c.Remote[name]; ok {
				existing.Overwrite(r)
				continue
			}
			c.Remote[name] = r
		}
	}
}
