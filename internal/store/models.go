package store

// Passage is a persisted retrieval unit: a chunk of extracted document text
// with the provenance it inherited from its source page.
type Passage struct {
	ID      int64
	Source  string
	Page    int
	Content string
}

// SearchResult is a passage with its vector distance to the query.
// Smaller distance means more similar.
type SearchResult struct {
	Passage  Passage
	Distance float64
}
