package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "data", cfg.DataDir)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.URL)
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel)
	assert.Equal(t, "mistral", cfg.Ollama.ChatModel)
	assert.Equal(t, 768, cfg.Ollama.EmbedDim)
	assert.Equal(t, 3000, cfg.Chunker.Size)
	assert.Equal(t, 500, cfg.Chunker.Overlap)
	assert.Equal(t, 20, cfg.Extractor.MinTextLen)
	assert.Equal(t, 12, cfg.Retriever.K)
}

func TestLoadFillsUnsetFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/smartsearch
ollama:
  chat_model: llama3
retriever:
  k: 5
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/srv/smartsearch", cfg.DataDir)
	assert.Equal(t, "llama3", cfg.Ollama.ChatModel)
	assert.Equal(t, 5, cfg.Retriever.K)

	// Everything unset falls back to the defaults.
	assert.Equal(t, "nomic-embed-text", cfg.Ollama.EmbedModel)
	assert.Equal(t, 3000, cfg.Chunker.Size)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Retriever.K = 7
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("data_dir: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
