package rag

import (
	"errors"
	"hash/fnv"
	"os"
	"strings"
	"testing"

	"smartsearch/internal/chunker"
	"smartsearch/internal/extractor"
	"smartsearch/internal/index"
	"smartsearch/internal/llm"
	"smartsearch/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDim = 4

type hashEmbedder struct{}

func (hashEmbedder) Embed(texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = hashVector(t)
	}
	return out, nil
}

func (hashEmbedder) EmbedSingle(text string) ([]float32, error) {
	return hashVector(text), nil
}

func (hashEmbedder) Model() string { return "hash-test" }

func hashVector(text string) []float32 {
	f := fnv.New64a()
	f.Write([]byte(text))
	sum := f.Sum64()
	vec := make([]float32, testDim)
	for i := range vec {
		vec[i] = float32(uint16(sum>>(i*16))) / 65535
	}
	return vec
}

// groundedGenerator behaves like a well-behaved model under the grounding
// prompt: it answers with the fact only when the context contains it, and
// returns the sentinel otherwise.
type groundedGenerator struct {
	fact string
}

func (g groundedGenerator) Generate(messages []llm.Message) (string, error) {
	context := messages[len(messages)-1].Content
	if g.fact != "" && strings.Contains(context, g.fact) {
		return "The answer is " + g.fact + ".", nil
	}
	return Sentinel, nil
}

type failingGenerator struct{}

func (failingGenerator) Generate([]llm.Message) (string, error) {
	return "", errors.New("connection refused")
}

type recordingLogger struct {
	actions []string
	details []string
	err     error
}

func (r *recordingLogger) LogAction(userID int64, action, detail string) error {
	r.actions = append(r.actions, action)
	r.details = append(r.details, detail)
	return r.err
}

func TestBuildMessagesShape(t *testing.T) {
	passages := []store.Passage{
		{Content: "first passage text", Source: "a.pdf", Page: 1},
		{Content: "second passage text", Source: "a.pdf", Page: 2},
	}
	history := []llm.Message{
		{Role: "user", Content: "earlier question"},
		{Role: "assistant", Content: "earlier answer"},
	}

	msgs := BuildMessages(passages, history, "What is the total?")
	require.Len(t, msgs, 4)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "DATA_NOT_FOUND")
	assert.Equal(t, "earlier question", msgs[1].Content)

	final := msgs[3]
	assert.Equal(t, "user", final.Role)
	assert.Contains(t, final.Content, "Context:\nfirst passage text\n\nsecond passage text")
	assert.Contains(t, final.Content, "Question: What is the total?")
}

func TestAnswerReturnsModelTextUnmodified(t *testing.T) {
	answer, err := Answer("anything", nil, nil, groundedGenerator{})
	require.NoError(t, err)
	assert.Equal(t, Sentinel, answer, "the sentinel must pass through untouched")
}

func TestAnswerBackendFailurePropagates(t *testing.T) {
	_, err := Answer("anything", nil, nil, failingGenerator{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "generate answer")
}

func TestRetrieveWithoutIndex(t *testing.T) {
	_, err := Retrieve("query", nil, hashEmbedder{}, 5)
	require.ErrorIs(t, err, index.ErrIndexMissing)
}

func TestCacheMissingIndex(t *testing.T) {
	b := index.NewBuilder(t.TempDir(), testDim, hashEmbedder{})
	cache := NewCache(b, hashEmbedder{}, groundedGenerator{}, 12, nil)
	defer cache.Close()

	_, err := cache.Get(123)
	require.ErrorIs(t, err, index.ErrIndexMissing)
}

func TestCacheReusesPipelineUntilRebuild(t *testing.T) {
	b := index.NewBuilder(t.TempDir(), testDim, hashEmbedder{})
	cache := NewCache(b, hashEmbedder{}, groundedGenerator{}, 12, nil)
	defer cache.Close()

	built, err := b.Build([]chunker.Passage{{Content: "some indexed text here", Source: "a.pdf", Page: 1}}, 1)
	require.NoError(t, err)
	built.Close()

	p1, err := cache.Get(1)
	require.NoError(t, err)
	p2, err := cache.Get(1)
	require.NoError(t, err)
	assert.Same(t, p1, p2, "same generation must reuse the cached pipeline")

	rebuilt, err := b.Build([]chunker.Passage{{Content: "entirely new text now", Source: "b.pdf", Page: 1}}, 1)
	require.NoError(t, err)
	rebuilt.Close()

	p3, err := cache.Get(1)
	require.NoError(t, err)
	assert.NotSame(t, p1, p3, "a new build must invalidate the cached pipeline")
}

func TestCacheRemovedIndexReportsMissing(t *testing.T) {
	b := index.NewBuilder(t.TempDir(), testDim, hashEmbedder{})
	cache := NewCache(b, hashEmbedder{}, groundedGenerator{}, 12, nil)
	defer cache.Close()

	built, err := b.Build([]chunker.Passage{{Content: "some indexed text here", Source: "a.pdf", Page: 1}}, 1)
	require.NoError(t, err)
	built.Close()

	_, err = cache.Get(1)
	require.NoError(t, err)

	require.NoError(t, os.Remove(b.IndexPath(1)))

	_, err = cache.Get(1)
	require.ErrorIs(t, err, index.ErrIndexMissing)
}

func TestRetrieveNeverExceedsK(t *testing.T) {
	b := index.NewBuilder(t.TempDir(), testDim, hashEmbedder{})
	cache := NewCache(b, hashEmbedder{}, groundedGenerator{}, 12, nil)
	defer cache.Close()

	var passages []chunker.Passage
	for _, text := range []string{
		"passage about revenue", "passage about costs", "passage about staff",
		"passage about offices", "passage about products",
	} {
		passages = append(passages, chunker.Passage{Content: text, Source: "r.pdf", Page: 1})
	}
	built, err := b.Build(passages, 1)
	require.NoError(t, err)
	built.Close()

	got, err := cache.Retrieve(1, "passage about revenue", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(got), 2)
	assert.Equal(t, "passage about revenue", got[0].Content, "verbatim match must rank first")
}

// End-to-end over the core: one page of text becomes one passage, the index
// is built, and a grounded question comes back with the exact value while an
// ungrounded one returns the sentinel.
func TestRevenueQuestionRoundTrip(t *testing.T) {
	units := []extractor.TextUnit{{Content: "Revenue was $42,000 in Q1.", Source: "q1.pdf", Page: 1}}
	passages := chunker.New(3000, 500).Split(units)
	require.Len(t, passages, 1)

	b := index.NewBuilder(t.TempDir(), testDim, hashEmbedder{})
	built, err := b.Build(passages, 9)
	require.NoError(t, err)
	built.Close()

	audit := &recordingLogger{}
	cache := NewCache(b, hashEmbedder{}, groundedGenerator{fact: "$42,000"}, 12, audit)
	defer cache.Close()

	pipeline, err := cache.Get(9)
	require.NoError(t, err)

	answer, retrieved, err := pipeline.Ask("Revenue was $42,000 in Q1.", nil)
	require.NoError(t, err)
	require.Len(t, retrieved, 1)
	assert.Contains(t, answer, "$42,000")
	assert.NotEqual(t, Sentinel, answer)

	require.Len(t, audit.actions, 1)
	assert.Equal(t, "QUERY", audit.actions[0])
	assert.Contains(t, audit.details[0], "$42,000")
}

func TestUngroundedQuestionReturnsSentinel(t *testing.T) {
	b := index.NewBuilder(t.TempDir(), testDim, hashEmbedder{})
	built, err := b.Build([]chunker.Passage{{Content: "The office has three floors.", Source: "f.pdf", Page: 1}}, 4)
	require.NoError(t, err)
	built.Close()

	cache := NewCache(b, hashEmbedder{}, groundedGenerator{fact: "$42,000"}, 12, nil)
	defer cache.Close()

	pipeline, err := cache.Get(4)
	require.NoError(t, err)

	answer, _, err := pipeline.Ask("What was the revenue?", nil)
	require.NoError(t, err)
	assert.Equal(t, Sentinel, answer)
}

func TestAuditFailureDoesNotFailQuery(t *testing.T) {
	b := index.NewBuilder(t.TempDir(), testDim, hashEmbedder{})
	built, err := b.Build([]chunker.Passage{{Content: "Revenue was $42,000 in Q1.", Source: "q.pdf", Page: 1}}, 5)
	require.NoError(t, err)
	built.Close()

	audit := &recordingLogger{err: errors.New("log table locked")}
	cache := NewCache(b, hashEmbedder{}, groundedGenerator{fact: "$42,000"}, 12, audit)
	defer cache.Close()

	pipeline, err := cache.Get(5)
	require.NoError(t, err)

	answer, _, err := pipeline.Ask("What was the revenue?", nil)
	require.NoError(t, err)
	assert.Contains(t, answer, "$42,000")
}
