package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{
		Core: Core{HashALGO: DefaultHashALGOName, CompressionALGO: "zstd"},
		User: User{Name: "Ada Lovelace", Email: "ada@example.com"},
		Remote: map[string]*Remote{
			"origin": {URL: "https://example.com/repo.ember"},
		},
	}
	require.NoError(t, Encode(dir, cfg))

	got, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", got.User.Name)
	assert.Equal(t, "zstd", got.Core.CompressionALGO)
	require.Contains(t, got.Remote, "origin")
	assert.Equal(t, "https://example.com/repo.ember", got.Remote["origin"].URL)
}

func TestUpdateAndUnsetLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, UpdateLocal(dir, &UpdateOptions{Values: map[string]any{"user.name": "Grace Hopper"}}))

	v, err := Get(dir, "user.name")
	require.NoError(t, err)
	assert.Equal(t, "Grace Hopper", v)

	require.NoError(t, UnsetLocal(dir, "user.name"))
	got, err := Load(dir)
	require.NoError(t, err)
	assert.Empty(t, got.User.Name)
}

func TestUserOverwritePrefersNonEmpty(t *testing.T) {
	base := &User{Name: "base", Email: "base@example.com"}
	base.Overwrite(&User{Name: "override"})
	assert.Equal(t, "override", base.Name)
	assert.Equal(t, "base@example.com", base.Email)
}

func TestConfigFileIsNamedConfig(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, Encode(dir, &Config{User: User{Name: "x", Email: "x@example.com"}}))
	assert.FileExists(t, filepath.Join(dir, "config"))
}
