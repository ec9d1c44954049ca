package cmd

import (
	"errors"
	"fmt"

	"smartsearch/internal/index"
	"smartsearch/internal/rag"

	"github.com/spf13/cobra"
)

var flagK int

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Ask a single question about the user's documents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question := args[0]

		db, err := openAppDB()
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := resolveUser(db)
		if err != nil {
			return err
		}

		k := flagK
		if k <= 0 {
			k = cfg.Retriever.K
		}
		emb := newEmbedder()
		cache := rag.NewCache(newBuilder(emb), emb, newChat(), k, db)
		defer cache.Close()

		pipeline, err := cache.Get(user.ID)
		if errors.Is(err, index.ErrIndexMissing) {
			return fmt.Errorf("no index found for %s\nRun 'smartsearch ingest --user %s <files>' first",
				user.Username, user.Username)
		}
		if err != nil {
			return err
		}

		answer, _, err := pipeline.Ask(question, nil)
		if err != nil {
			return err
		}

		fmt.Println(answer)
		return nil
	},
}

func init() {
	askCmd.Flags().StringVar(&flagUser, "user", "", "username whose index to query")
	askCmd.Flags().IntVar(&flagK, "k", 0, "passages to retrieve per question (default from config)")
	rootCmd.AddCommand(askCmd)
}
