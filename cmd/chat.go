package cmd

import (
	"smartsearch/internal/rag"
	"smartsearch/internal/tui"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive chat over the user's documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openAppDB()
		if err != nil {
			return err
		}
		defer db.Close()

		user, err := resolveUser(db)
		if err != nil {
			return err
		}

		emb := newEmbedder()
		cache := rag.NewCache(newBuilder(emb), emb, newChat(), cfg.Retriever.K, db)
		defer cache.Close()

		return tui.Run(tui.Config{
			Cache:    cache,
			UserID:   user.ID,
			Username: user.Username,
		})
	},
}

func init() {
	chatCmd.Flags().StringVar(&flagUser, "user", "", "username whose documents to chat with")
	rootCmd.AddCommand(chatCmd)
}
