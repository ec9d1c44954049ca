package index

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"smartsearch/internal/chunker"
	"smartsearch/internal/store"
)

var (
	// ErrNoPassages is returned by Build when there is nothing to index.
	// The caller's prior index, if any, is left untouched.
	ErrNoPassages = errors.New("no passages to index")

	// ErrIndexMissing is returned by the query path when a user has never
	// built an index.
	ErrIndexMissing = errors.New("index not found")
)

const embedBatchSize = 32

// Embedder is the subset of the embedding client the index layer needs.
type Embedder interface {
	Embed(texts []string) ([][]float32, error)
	EmbedSingle(text string) ([]float32, error)
	Model() string
}

// UserIndex is one user's built similarity index. It is immutable once built;
// concurrent readers are safe.
type UserIndex struct {
	UserID     int64
	Generation int64
	Store      store.Store
}

// Close releases the underlying store.
func (ix *UserIndex) Close() error {
	return ix.Store.Close()
}

// Builder builds and loads per-user indexes under a data directory. Each
// user's index lives in its own namespace (<data>/user_<id>/index.db), so
// distinct users never touch each other's state.
type Builder struct {
	dataDir  string
	dim      int
	embedder Embedder
}

// NewBuilder creates a builder. dim must match the embedding model's output
// dimension; querying an index with a different model than the one that
// built it yields meaningless results, and that precondition is the caller's
// to uphold.
func NewBuilder(dataDir string, dim int, emb Embedder) *Builder {
	return &Builder{dataDir: dataDir, dim: dim, embedder: emb}
}

// IndexPath returns the live index location for a user.
func (b *Builder) IndexPath(userID int64) string {
	return filepath.Join(b.dataDir, fmt.Sprintf("user_%d", userID), "index.db")
}

// Build embeds the passages and replaces the user's index wholesale. The new
// index is written to a temporary file and renamed into place, so a failure
// at any point leaves the prior index (or its absence) intact and no partial
// state is ever visible at the live path. Concurrent builds for the same
// user are not coordinated; the last rename wins.
func (b *Builder) Build(passages []chunker.Passage, userID int64) (*UserIndex, error) {
	if len(passages) == 0 {
		return nil, ErrNoPassages
	}

	generation := int64(1)
	if prev, ok, err := b.Load(userID); err == nil && ok {
		generation = prev.Generation + 1
		prev.Close()
	}

	// Embed everything up front so a backend failure aborts before any
	// write happens.
	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Content
	}
	embeddings := make([][]float32, 0, len(texts))
	for i := 0; i < len(texts); i += embedBatchSize {
		end := min(i+embedBatchSize, len(texts))
		embs, err := b.embedder.Embed(texts[i:end])
		if err != nil {
			return nil, fmt.Errorf("embed passages: %w", err)
		}
		embeddings = append(embeddings, embs...)
	}

	livePath := b.IndexPath(userID)
	if err := os.MkdirAll(filepath.Dir(livePath), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}
	tmpPath := livePath + ".tmp"
	os.Remove(tmpPath)

	if err := b.writeIndex(tmpPath, passages, embeddings, generation); err != nil {
		os.Remove(tmpPath)
		return nil, err
	}

	if err := os.Rename(tmpPath, livePath); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("replace index: %w", err)
	}

	st, err := store.Open(livePath, b.dim)
	if err != nil {
		return nil, fmt.Errorf("open built index: %w", err)
	}
	return &UserIndex{UserID: userID, Generation: generation, Store: st}, nil
}

func (b *Builder) writeIndex(path string, passages []chunker.Passage, embeddings [][]float32, generation int64) error {
	st, err := store.Open(path, b.dim)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer st.Close()

	records := make([]store.Passage, len(passages))
	for i, p := range passages {
		records[i] = store.Passage{Source: p.Source, Page: p.Page, Content: p.Content}
	}
	ids, err := st.InsertPassages(records)
	if err != nil {
		return fmt.Errorf("store passages: %w", err)
	}
	if err := st.InsertEmbeddings(ids, embeddings); err != nil {
		return fmt.Errorf("store embeddings: %w", err)
	}

	if err := st.SetMeta("embedding_model", b.embedder.Model()); err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	if err := st.SetMeta("generation", strconv.FormatInt(generation, 10)); err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	if err := st.SetMeta("created_at", time.Now().UTC().Format(time.RFC3339)); err != nil {
		return fmt.Errorf("set meta: %w", err)
	}
	return nil
}

// Load opens a user's persisted index. A user who has never built one gets
// (nil, false, nil): absence is a normal state, not an error.
func (b *Builder) Load(userID int64) (*UserIndex, bool, error) {
	path := b.IndexPath(userID)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}

	st, err := store.Open(path, b.dim)
	if err != nil {
		return nil, false, fmt.Errorf("open index: %w", err)
	}

	var generation int64
	if raw, err := st.GetMeta("generation"); err == nil && raw != "" {
		generation, _ = strconv.ParseInt(raw, 10, 64)
	}

	return &UserIndex{UserID: userID, Generation: generation, Store: st}, true, nil
}

// Generation reports the persisted generation number for a user without
// keeping the index open. Absent indexes report 0.
func (b *Builder) Generation(userID int64) (int64, error) {
	ix, ok, err := b.Load(userID)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, nil
	}
	defer ix.Close()
	return ix.Generation, nil
}
