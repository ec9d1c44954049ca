package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"smartsearch/internal/appdb"
	"smartsearch/internal/config"
	"smartsearch/internal/embedder"
	"smartsearch/internal/index"
	"smartsearch/internal/llm"

	"github.com/spf13/cobra"
)

var (
	flagConfig     string
	flagData       string
	flagOllama     string
	flagEmbedModel string
	flagChatModel  string
	flagUser       string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "smartsearch",
	Short: "Per-user document search and question answering",
	Long: `smartsearch ingests PDF documents (digital or scanned), builds a
per-user similarity index over them, and answers questions grounded in the
retrieved passages.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(flagConfig)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// Flags override the config file.
		if flagData != "" {
			c.DataDir = flagData
		}
		if flagOllama != "" {
			c.Ollama.URL = flagOllama
		}
		if flagEmbedModel != "" {
			c.Ollama.EmbedModel = flagEmbedModel
		}
		if flagChatModel != "" {
			c.Ollama.ChatModel = flagChatModel
		}
		cfg = c
		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "config.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&flagData, "data", "", "data directory (default \"data\")")
	rootCmd.PersistentFlags().StringVar(&flagOllama, "ollama", "", "ollama base URL (default http://localhost:11434)")
	rootCmd.PersistentFlags().StringVar(&flagEmbedModel, "embed-model", "", "embedding model (default nomic-embed-text)")
	rootCmd.PersistentFlags().StringVar(&flagChatModel, "chat-model", "", "generative model (default mistral)")
}

// openAppDB opens the shared application database under the data directory.
func openAppDB() (*appdb.DB, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return appdb.Open(filepath.Join(cfg.DataDir, "app.db"))
}

func newEmbedder() *embedder.OllamaEmbedder {
	return embedder.NewOllamaEmbedder(
		cfg.Ollama.URL,
		cfg.Ollama.EmbedModel,
		time.Duration(cfg.Ollama.EmbedTimeoutSecs)*time.Second,
	)
}

func newChat() *llm.OllamaChat {
	return llm.NewOllamaChat(
		cfg.Ollama.URL,
		cfg.Ollama.ChatModel,
		time.Duration(cfg.Ollama.ChatTimeoutSecs)*time.Second,
	)
}

func newBuilder(emb index.Embedder) *index.Builder {
	return index.NewBuilder(cfg.DataDir, cfg.Ollama.EmbedDim, emb)
}

// resolveUser maps the --user flag to a registered account.
func resolveUser(db *appdb.DB) (*appdb.User, error) {
	if flagUser == "" {
		return nil, fmt.Errorf("--user is required")
	}
	u, err := db.LookupUser(flagUser)
	if err != nil {
		return nil, fmt.Errorf("resolve user %q: %w", flagUser, err)
	}
	return u, nil
}
