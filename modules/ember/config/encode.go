// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/emberscm/ember/modules/strengthen"
)

func atomicEncode(file string, a any) error {
	name, err := func() (string, error) {
		now := time.Now()
		dir := filepath.Dir(file)
		_ = os.MkdirAll(dir, 0o755)
		cachePath := fmt.Sprintf("%s/.ember-%d.toml", dir, now.UnixNano())
		fd, err := os.Create(cachePath)
		if err != nil {
			return "", err
		}
		defer fd.Close() // nolint
		enc := toml.NewEncoder(fd)
		enc.Indent = ""
		if err := enc.Encode(a); err != nil {
			return cachePath, err
		}
		return cachePath, nil
	}()
	if err != nil {
		if len(name) != 0 {
			_ = os.Remove(name)
		}
		return err
	}
	if err := os.Rename(name, file); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

// Encode writes the repository-local config layer.
func Encode(repoDir string, config *Config) error {
	if config == nil || len(repoDir) == 0 {
		return ErrInvalidArgument
	}
	return atomicEncode(filepath.Join(repoDir, "config"), config)
}

func EncodeGlobal(config *Config) error {
	if config == nil {
		return ErrInvalidArgument
	}
	return atomicEncode(strengthen.ExpandPath("~/.ember.toml"), config)
}

type UpdateOptions struct {
	Values map[string]any
}

func updateInternal(file string, opts *UpdateOptions) error {
	if opts == nil || opts.Values == nil {
		return fmt.Errorf("config: invalid update options")
	}
	md := make(Sections)
	if _, err := toml.DecodeFile(file, &md); err != nil && !os.IsNotExist(err) {
		return err
	}
	for k, v := range opts.Values {
		if _, err := md.updateKey(k, v); err != nil {
			return err
		}
	}
	return atomicEncode(file, md)
}

func UpdateSystem(opts *UpdateOptions) error {
	return updateInternal(configSystemPath(), opts)
}

func UpdateGlobal(opts *UpdateOptions) error {
	return updateInternal(strengthen.ExpandPath("~/.ember.toml"), opts)
}

func UpdateLocal(repoDir string, opts *UpdateOptions) error {
	return updateInternal(filepath.Join(repoDir, "config"), opts)
}

func unsetInternal(file string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	md := make(Sections)
	if _, err := toml.DecodeFile(file, &md); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, k := range keys {
		if _, err := md.deleteKey(k); err != nil && err != ErrKeyNotFound {
			return err
		}
	}
	return atomicEncode(file, md)
}

func UnsetSystem(keys ...string) error {
	return unsetInternal(configSystemPath(), keys...)
}

func UnsetGlobal(keys ...string) error {
	return unsetInternal(strengthen.ExpandPath("~/.ember.toml"), keys...)
}

func UnsetLocal(repoDir string, keys ...string) error {
	return unsetInternal(filepath.Join(repoDir, "config"), keys...)
}

// Get reads a single dotted key (e.g. "user.name") from the merged
// repository config.
func Get(repoDir, key string) (any, error) {
	cfg, err := Load(repoDir)
	if err != nil {
		return nil, err
	}
	sections := make(Sections)
	sections["user"] = Section{"name": cfg.User.Name, "email": cfg.User.Email}
	sections["core"] = Section{"hashAlgo": cfg.Core.HashALGO, "compressionAlgo": cfg.Core.CompressionALGO, "editor": cfg.Core.Editor}
	return sections.filter(key)
}
