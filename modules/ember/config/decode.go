// Copyright ©️ Ant Group. All rights reserved.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/emberscm/ember/modules/strengthen"
)

const ENV_EMBER_CONFIG_SYSTEM = "EMBER_CONFIG_SYSTEM"

var ErrKeyNotFound = errors.New("key not found")

func configSystemPath() string {
	if p, ok := os.LookupEnv(ENV_EMBER_CONFIG_SYSTEM); ok {
		return p
	}
	exe, err := os.Executable()
	if err != nil {
		return ""
	}
	prefix := filepath.Dir(exe)
	if filepath.Base(prefix) == "bin" {
		prefix = filepath.Dir(prefix)
	}
	return filepath.Join(prefix, "/etc/ember.toml")
}

func LoadSystem() (*Config, error) {
	systemPath := configSystemPath()
	if len(systemPath) == 0 {
		return nil, os.ErrNotExist
	}
	var cfg Config
	if _, err := os.Stat(systemPath); err != nil {
		return nil, err
	}
	if _, err := toml.DecodeFile(systemPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func LoadGlobal() (*Config, error) {
	var cfg Config
	userPath := strengthen.ExpandPath("~/.ember.toml")
	if _, err := os.Stat(userPath); err != nil && os.IsNotExist(err) {
		return &cfg, nil
	}
	if _, err := toml.DecodeFile(userPath, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadBaseline resolves the system and global layers, global taking
// priority over system (a user setting wins over the machine-wide default).
func LoadBaseline() (*Config, error) {
	gc, err := LoadGlobal()
	if err != nil {
		return nil, err
	}
	cfg, err := LoadSystem()
	if os.IsNotExist(err) {
		return gc, nil
	}
	if err != nil {
		return nil, err
	}
	cfg.Overwrite(gc)
	return cfg, nil
}

// Load resolves system -> global -> repository-local, local taking final
// priority. repoDir is the repository's metadata directory (".ember");
// pass "" to load only the system/global layers.
func Load(repoDir string) (*Config, error) {
	cfg, err := LoadBaseline()
	if err != nil {
		return nil, err
	}
	if len(repoDir) == 0 {
		return cfg, nil
	}
	var rc Config
	if _, err := toml.DecodeFile(filepath.Join(repoDir, "config"), &rc); err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	cfg.Overwrite(&rc)
	return cfg, nil
}
