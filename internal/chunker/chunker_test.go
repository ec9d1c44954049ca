package chunker

import (
	"fmt"
	"strings"
	"testing"

	"smartsearch/internal/extractor"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unit(content string) extractor.TextUnit {
	return extractor.TextUnit{Content: content, Source: "report.pdf", Page: 3}
}

func TestSplitShortTextSinglePassage(t *testing.T) {
	s := New(3000, 500)
	passages := s.Split([]extractor.TextUnit{unit("Revenue was $42,000 in Q1.")})

	require.Len(t, passages, 1)
	assert.Equal(t, "Revenue was $42,000 in Q1.", passages[0].Content)
	assert.Equal(t, "report.pdf", passages[0].Source)
	assert.Equal(t, 3, passages[0].Page)
}

func TestSplitEmptyUnitYieldsNothing(t *testing.T) {
	s := New(3000, 500)
	assert.Empty(t, s.Split([]extractor.TextUnit{unit("")}))
}

func TestSplitPassageCountLowerBound(t *testing.T) {
	const size, overlap = 100, 20
	s := New(size, overlap)

	text := strings.Repeat("a", 950)
	passages := s.Split([]extractor.TextUnit{unit(text)})

	// ceil((L-M)/(N-M)) passages at minimum.
	wantAtLeast := (len(text) - overlap + (size - overlap - 1)) / (size - overlap)
	assert.GreaterOrEqual(t, len(passages), wantAtLeast)

	for _, p := range passages {
		assert.LessOrEqual(t, len(p.Content), size)
	}
}

func TestSplitCoversEveryCharacter(t *testing.T) {
	s := New(100, 20)

	// Non-repeating text so every passage has a unique position.
	var b strings.Builder
	for i := 0; b.Len() < 1200; i++ {
		fmt.Fprintf(&b, "word%04d. ", i)
	}
	text := b.String()

	passages := s.Split([]extractor.TextUnit{unit(text)})
	require.NotEmpty(t, passages)

	// Consecutive passages must leave no gap: each one starts at or before
	// the previous one's end.
	prevEnd := 0
	for i, p := range passages {
		start := strings.Index(text, p.Content)
		require.GreaterOrEqual(t, start, 0, "passage %d not found in source", i)
		assert.LessOrEqual(t, start, prevEnd, "gap before passage %d", i)
		prevEnd = start + len(p.Content)
	}
	assert.Equal(t, len(text), prevEnd, "passages must reach the end of the text")
}

func TestSplitConsecutivePassagesOverlap(t *testing.T) {
	const size, overlap = 100, 20
	s := New(size, overlap)

	text := strings.Repeat("x", 5000)
	passages := s.Split([]extractor.TextUnit{unit(text)})
	require.Greater(t, len(passages), 1)

	for i := 1; i < len(passages); i++ {
		prev := passages[i-1].Content
		tail := prev[len(prev)-overlap:]
		assert.True(t, strings.HasPrefix(passages[i].Content, tail),
			"passage %d must start with the previous passage's last %d characters", i, overlap)
	}
}

func TestSplitPrefersParagraphBoundary(t *testing.T) {
	s := New(100, 20)

	para1 := strings.Repeat("a", 70)
	para2 := strings.Repeat("b", 80)
	passages := s.Split([]extractor.TextUnit{unit(para1 + "\n\n" + para2)})

	require.Greater(t, len(passages), 1)
	assert.True(t, strings.HasSuffix(strings.TrimRight(passages[0].Content, "\n"), "a"),
		"first passage should end at the paragraph break, got %q", passages[0].Content)
	assert.NotContains(t, passages[0].Content, "b")
}

func TestSplitUnitsIndependently(t *testing.T) {
	s := New(3000, 500)
	units := []extractor.TextUnit{
		{Content: "first page", Source: "a.pdf", Page: 1},
		{Content: "second page", Source: "a.pdf", Page: 2},
	}
	passages := s.Split(units)

	require.Len(t, passages, 2)
	assert.Equal(t, 1, passages[0].Page)
	assert.Equal(t, 2, passages[1].Page)
}

func TestSplitRuneSafety(t *testing.T) {
	s := New(50, 10)
	text := strings.Repeat("héllo wörld ünïcode tëxt ", 40)
	passages := s.Split([]extractor.TextUnit{unit(text)})
	require.NotEmpty(t, passages)

	for i, p := range passages {
		assert.True(t, strings.Contains(text, p.Content), "passage %d must be a contiguous substring", i)
	}
}

func TestNewClampsDegenerateOverlap(t *testing.T) {
	// An overlap of at least half the size would stall the split loop.
	s := New(100, 90)
	text := strings.Repeat("y", 1000)
	passages := s.Split([]extractor.TextUnit{unit(text)})
	assert.NotEmpty(t, passages)
}
