// Package ingest runs the document processing pipeline: extract text from
// each file, split it into passages, then build the user's index from the
// whole batch.
package ingest

import (
	"fmt"
	"os"
	"path/filepath"

	"smartsearch/internal/chunker"
	"smartsearch/internal/extractor"
	"smartsearch/internal/index"
)

// Extractor turns one document file into text units. Implemented by
// extractor.Extractor.
type Extractor interface {
	Extract(path string) ([]extractor.TextUnit, error)
}

// Registry records one metadata row per successfully extracted document.
// Implemented by appdb; recording must be idempotent per (user, filename).
type Registry interface {
	RecordDocument(userID int64, filename, filePath string, chunkCount int) error
}

// ProgressFunc reports pipeline progress for UI layers.
type ProgressFunc func(stage string, done, total int)

// Stats reports the outcome of one processing batch.
type Stats struct {
	FilesTotal    int
	FilesIndexed  int
	FilesEmpty    int
	FilesFailed   int
	PassagesTotal int
}

// Service wires the ingestion pipeline together. The per-file loop is
// strictly sequential to bound resource usage with arbitrarily many
// user-supplied files; OCR and embedding dominate the cost anyway.
type Service struct {
	extractor Extractor
	splitter  *chunker.Splitter
	builder   *index.Builder
	registry  Registry
}

// New creates an ingestion service. registry may be nil.
func New(ex Extractor, sp *chunker.Splitter, b *index.Builder, reg Registry) *Service {
	return &Service{extractor: ex, splitter: sp, builder: b, registry: reg}
}

// ProcessBatch processes each file best-effort — a file that fails or yields
// no text never aborts the rest of the batch — and then replaces the user's
// index with everything collected. A batch that produces zero passages
// returns index.ErrNoPassages and leaves any prior index untouched.
func (s *Service) ProcessBatch(paths []string, userID int64, onProgress ProgressFunc) (*Stats, error) {
	stats := &Stats{FilesTotal: len(paths)}

	var all []chunker.Passage
	for i, path := range paths {
		if onProgress != nil {
			onProgress("Scanning "+filepath.Base(path), i, len(paths))
		}

		units, err := s.extractor.Extract(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "extract error %s: %v\n", path, err)
			stats.FilesFailed++
			continue
		}
		if len(units) == 0 {
			stats.FilesEmpty++
			continue
		}

		passages := s.splitter.Split(units)
		if len(passages) == 0 {
			stats.FilesEmpty++
			continue
		}
		all = append(all, passages...)
		stats.FilesIndexed++

		if s.registry != nil {
			if err := s.registry.RecordDocument(userID, filepath.Base(path), path, len(passages)); err != nil {
				fmt.Fprintf(os.Stderr, "registry error %s: %v\n", path, err)
			}
		}
	}

	if onProgress != nil {
		onProgress("Building index", len(paths), len(paths))
	}

	ix, err := s.builder.Build(all, userID)
	if err != nil {
		return stats, err
	}
	ix.Close()

	stats.PassagesTotal = len(all)
	return stats, nil
}
