package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"smartsearch/internal/chunker"
	"smartsearch/internal/extractor"
	"smartsearch/internal/index"
	"smartsearch/internal/ingest"
	"smartsearch/internal/walker"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>...",
	Short: "Process PDF documents and build the user's search index",
	Long: `Extracts text from each PDF (falling back to OCR for scanned
documents), splits it into passages, and replaces the user's index with the
result. Files that yield no text are skipped; the batch continues.`,
	Args: cobra.MinimumNArgs(1),
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

		paths, err := collectPDFs(args)
		if err != nil {
			return err
		}
		if len(paths) == 0 {
			return fmt.Errorf("no PDF files found in the given paths")
		}

		emb := newEmbedder()
		svc := ingest.New(
			extractor.New(cfg.Extractor.MinTextLen),
			chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap),
			newBuilder(emb),
			db,
		)

		fmt.Printf("Processing %d file(s) for %s...\n", len(paths), user.Username)
		start := time.Now()

		stats, err := svc.ProcessBatch(paths, user.ID, func(stage string, done, total int) {
			fmt.Printf("  [%d/%d] %s\n", done, total, stage)
		})
		elapsed := time.Since(start)

		if stats != nil {
			fmt.Printf("\nDone in %s\n", elapsed.Round(time.Millisecond))
			fmt.Printf("  Files:    %d total, %d indexed, %d empty, %d failed\n",
				stats.FilesTotal, stats.FilesIndexed, stats.FilesEmpty, stats.FilesFailed)
			fmt.Printf("  Passages: %d\n", stats.PassagesTotal)
		}

		if errors.Is(err, index.ErrNoPassages) {
			fmt.Println("\nNo text found in any document. The index was not changed.")
			return nil
		}
		if err == nil {
			db.LogAction(user.ID, "INGEST", fmt.Sprintf("%d files, %d passages", stats.FilesIndexed, stats.PassagesTotal))
		}
		return err
	},
}

// collectPDFs expands the arguments: files are taken as-is, directories are
// walked for PDFs.
func collectPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		files, errs := walker.Walk(arg)
		for f := range files {
			paths = append(paths, f.Path)
		}
		if err := <-errs; err != nil {
			return nil, fmt.Errorf("walk %s: %w", arg, err)
		}
	}
	return paths, nil
}

func init() {
	ingestCmd.Flags().StringVar(&flagUser, "user", "", "username owning the documents")
	rootCmd.AddCommand(ingestCmd)
}
