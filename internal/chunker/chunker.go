package chunker

import (
	"strings"

	"smartsearch/internal/extractor"
)

// Passage is a bounded chunk of extracted text, the unit of embedding and
// retrieval. It carries its origin's provenance unchanged.
type Passage struct {
	Content string
	Source  string
	Page    int
}

// boundaries are tried in order when looking for a place to cut, so a split
// lands between paragraphs or sentences before falling back to a word break.
var boundaries = []string{"\n\n", "\n", ". ", " "}

// Splitter cuts text into passages of at most size runes with overlap runes
// shared between consecutive passages from the same unit. The large default
// size keeps tables and long sections intact at the cost of retrieval
// granularity; the overlap exists so table rows and sentences spanning a cut
// stay whole in at least one passage.
type Splitter struct {
	size    int
	overlap int
}

// New creates a splitter. Invalid arguments fall back to the defaults
// (size 3000, overlap 500). The overlap is clamped below half the size so
// every cut makes forward progress.
func New(size, overlap int) *Splitter {
	if size <= 0 {
		size = 3000
	}
	if overlap < 0 {
		overlap = 500
	}
	if overlap*2 >= size {
		overlap = size / 4
	}
	return &Splitter{size: size, overlap: overlap}
}

// Split chunks each unit independently. Passage order within one unit is the
// split order; ordering across units carries no meaning.
func (s *Splitter) Split(units []extractor.TextUnit) []Passage {
	var passages []Passage
	for _, u := range units {
		for _, part := range s.splitText(u.Content) {
			passages = append(passages, Passage{
				Content: part,
				Source:  u.Source,
				Page:    u.Page,
			})
		}
	}
	return passages
}

func (s *Splitter) splitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.size {
		return []string{text}
	}

	var parts []string
	start := 0
	for start < len(runes) {
		end := start + s.size
		if end >= len(runes) {
			parts = append(parts, string(runes[start:]))
			break
		}
		cut := s.findCut(runes, start, end)
		parts = append(parts, string(runes[start:cut]))
		start = cut - s.overlap
	}
	return parts
}

// findCut picks the cut position for the window [start, end), preferring the
// last natural boundary in the back half of the window. With no boundary at
// all it hard-cuts at end.
func (s *Splitter) findCut(runes []rune, start, end int) int {
	min := start + s.size/2
	window := string(runes[min:end])
	for _, sep := range boundaries {
		if i := strings.LastIndex(window, sep); i >= 0 {
			return min + len([]rune(window[:i])) + len([]rune(sep))
		}
	}
	return end
}
