// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package secrets

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, AnthropicKey), []byte("sk-test-123\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, LiteratureKey), []byte("  lit-456  "), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("ignored"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("   \n"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "subdir"), 0o755))

	secrets, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "sk-test-123", secrets[AnthropicKey])
	assert.Equal(t, "lit-456", secrets[LiteratureKey])
	assert.NotContains(t, secrets, ".hidden")
	assert.NotContains(t, secrets, "empty")
	assert.NotContains(t, secrets, "subdir")
}

func TestLoadMissingDirectory(t *testing.T) {
	secrets, err := Load(filepath.Join(t.TempDir(), "does-not-exist"))
	require.NoError(t, err)
	assert.Empty(t, secrets)
}

func TestStoreAnthropic(t *testing.T) {
	s := Store{AnthropicKey: "sk-file"}

	assert.Equal(t, "sk-file", s.Anthropic(""))
	assert.Equal(t, "sk-env", s.Anthropic("sk-env"), "environment override wins")
	assert.Empty(t, Store{}.Anthropic(""))
}

func TestStoreLiterature(t *testing.T) {
	assert.Equal(t, "lit-789", Store{LiteratureKey: "lit-789"}.Literature())
	assert.Empty(t, Store{}.Literature())
}
