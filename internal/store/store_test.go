package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "index.db"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

func seedPassages(t *testing.T, st *SQLiteStore) {
	t.Helper()
	ids, err := st.InsertPassages([]Passage{
		{Source: "a.pdf", Page: 1, Content: "alpha"},
		{Source: "a.pdf", Page: 2, Content: "beta"},
		{Source: "a.pdf", Page: 3, Content: "gamma"},
	})
	require.NoError(t, err)
	require.NoError(t, st.InsertEmbeddings(ids, [][]float32{
		{0, 0, 0, 0},
		{1, 0, 0, 0},
		{2, 0, 0, 0},
	}))
}

func TestSearchHonorsK(t *testing.T) {
	st := openTestStore(t)
	seedPassages(t, st)

	results, err := st.Search([]float32{0, 0, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "alpha", results[0].Passage.Content)
	assert.Equal(t, "beta", results[1].Passage.Content)
	assert.LessOrEqual(t, results[0].Distance, results[1].Distance)
}

func TestSearchKBeyondRowCount(t *testing.T) {
	st := openTestStore(t)
	seedPassages(t, st)

	results, err := st.Search([]float32{0, 0, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}
