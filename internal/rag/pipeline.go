package rag

import (
	"encoding/json"
	"sync"

	"smartsearch/internal/index"
	"smartsearch/internal/llm"
	"smartsearch/internal/store"
)

// ActionLogger records audit events for answered queries. Logging is
// fire-and-forget: a failure must never fail the query itself.
type ActionLogger interface {
	LogAction(userID int64, action, detail string) error
}

// Pipeline is a ready-to-query handle for one user: the loaded index plus
// the shared model clients. It is valid as long as the index generation it
// was built from is still the live one.
type Pipeline struct {
	userID    int64
	index     *index.UserIndex
	embedder  index.Embedder
	generator Generator
	k         int
	audit     ActionLogger
}

// Ask retrieves context for the question and generates a grounded answer.
// The answered query is reported to the action log best-effort.
func (p *Pipeline) Ask(question string, history []llm.Message) (string, []store.Passage, error) {
	passages, err := Retrieve(question, p.index, p.embedder, p.k)
	if err != nil {
		return "", nil, err
	}
	answer, err := Answer(question, passages, history, p.generator)
	if err != nil {
		return "", nil, err
	}

	if p.audit != nil {
		detail, _ := json.Marshal(map[string]string{"q": question, "a": answer})
		_ = p.audit.LogAction(p.userID, "QUERY", string(detail))
	}
	return answer, passages, nil
}

// Cache hands out query pipelines keyed by user id. A cached pipeline is
// revalidated against the persisted index generation on every Get, so a
// completed build invalidates it and the next query sees the new index
// without the caller rebuilding anything per turn.
type Cache struct {
	builder   *index.Builder
	embedder  index.Embedder
	generator Generator
	k         int
	audit     ActionLogger

	mu        sync.Mutex
	pipelines map[int64]*Pipeline
}

// NewCache creates a pipeline cache. audit may be nil.
func NewCache(b *index.Builder, emb index.Embedder, gen Generator, k int, audit ActionLogger) *Cache {
	return &Cache{
		builder:   b,
		embedder:  emb,
		generator: gen,
		k:         k,
		audit:     audit,
		pipelines: make(map[int64]*Pipeline),
	}
}

// Get returns the pipeline for a user, reusing the cached one when its index
// generation is still current. A user with no built index gets
// index.ErrIndexMissing.
func (c *Cache) Get(userID int64) (*Pipeline, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p, cached := c.pipelines[userID]; cached {
		gen, err := c.builder.Generation(userID)
		if err != nil {
			return nil, err
		}
		if gen == p.index.Generation {
			return p, nil
		}
		p.index.Close()
		delete(c.pipelines, userID)
	}

	ix, ok, err := c.builder.Load(userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, index.ErrIndexMissing
	}

	p := &Pipeline{
		userID:    userID,
		index:     ix,
		embedder:  c.embedder,
		generator: c.generator,
		k:         c.k,
		audit:     c.audit,
	}
	c.pipelines[userID] = p
	return p, nil
}

// Retrieve returns the top-k passages for a query without generating an
// answer, for callers that only need search.
func (c *Cache) Retrieve(userID int64, query string, k int) ([]store.Passage, error) {
	p, err := c.Get(userID)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = c.k
	}
	return Retrieve(query, p.index, p.embedder, k)
}

// Close releases every cached pipeline's index.
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	var firstErr error
	for id, p := range c.pipelines {
		if err := p.index.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(c.pipelines, id)
	}
	return firstErr
}
