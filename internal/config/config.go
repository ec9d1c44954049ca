package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// OllamaConfig holds connection details for the local Ollama instance used
// for both embeddings and answer generation.
type OllamaConfig struct {
	URL              string `yaml:"url"`
	EmbedModel       string `yaml:"embed_model"`
	ChatModel        string `yaml:"chat_model"`
	EmbedDim         int    `yaml:"embed_dim"`
	EmbedTimeoutSecs int    `yaml:"embed_timeout_secs"`
	ChatTimeoutSecs  int    `yaml:"chat_timeout_secs"`
}

// ChunkerConfig configures how extracted text is split into passages.
type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

// ExtractorConfig configures document text extraction.
type ExtractorConfig struct {
	// MinTextLen is the minimum stripped length a page must produce to count
	// as real text, on both the digital and OCR paths.
	MinTextLen int `yaml:"min_text_len"`
}

// RetrieverConfig configures query-time retrieval.
type RetrieverConfig struct {
	K int `yaml:"k"`
}

// Config is the root application configuration.
type Config struct {
	// DataDir is the root under which per-user index namespaces and the
	// application database live.
	DataDir   string          `yaml:"data_dir"`
	Ollama    OllamaConfig    `yaml:"ollama"`
	Chunker   ChunkerConfig   `yaml:"chunker"`
	Extractor ExtractorConfig `yaml:"extractor"`
	Retriever RetrieverConfig `yaml:"retriever"`
}

// Load reads a config from path. A missing file is not an error: defaults
// are returned so the tool works out of the box.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, nil
}

// Save writes the config to path, creating directories as needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Ollama.URL == "" {
		cfg.Ollama.URL = "http://localhost:11434"
	}
	if cfg.Ollama.EmbedModel == "" {
		cfg.Ollama.EmbedModel = "nomic-embed-text"
	}
	if cfg.Ollama.ChatModel == "" {
		cfg.Ollama.ChatModel = "mistral"
	}
	if cfg.Ollama.EmbedDim == 0 {
		cfg.Ollama.EmbedDim = 768
	}
	if cfg.Ollama.EmbedTimeoutSecs == 0 {
		cfg.Ollama.EmbedTimeoutSecs = 120
	}
	if cfg.Ollama.ChatTimeoutSecs == 0 {
		cfg.Ollama.ChatTimeoutSecs = 300
	}
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = 3000
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = 500
	}
	if cfg.Extractor.MinTextLen == 0 {
		cfg.Extractor.MinTextLen = 20
	}
	if cfg.Retriever.K == 0 {
		cfg.Retriever.K = 12
	}
}
