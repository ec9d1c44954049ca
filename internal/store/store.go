package store

import (
	"database/sql"
	"fmt"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	sqlite_vec.Auto()
}

// Store provides persistence for one user's passages and embeddings.
// A store is written once per build and read-only afterwards, so concurrent
// readers never need coordination.
type Store interface {
	// InsertPassages inserts passages and returns their IDs in input order.
	InsertPassages(passages []Passage) ([]int64, error)
	// InsertEmbeddings stores embeddings keyed by passage ID.
	InsertEmbeddings(passageIDs []int64, embeddings [][]float32) error
	// Search finds the top-k passages closest to the query embedding,
	// ordered by ascending distance.
	Search(queryEmbedding []float32, k int) ([]SearchResult, error)
	// CountPassages returns the number of stored passages.
	CountPassages() (int, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates or opens a store at the given path with the given embedding
// dimension and initializes the schema.
func Open(dbPath string, dim int) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := Init(db, dim); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) InsertPassages(passages []Passage) ([]int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO passages (source, page, content) VALUES (?, ?, ?)")
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	ids := make([]int64, 0, len(passages))
	for _, p := range passages {
		res, err := stmt.Exec(p.Source, p.Page, p.Content)
		if err != nil {
			return nil, err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return ids, nil
}

func (s *SQLiteStore) InsertEmbeddings(passageIDs []int64, embeddings [][]float32) error {
	if len(passageIDs) != len(embeddings) {
		return fmt.Errorf("mismatched passage IDs (%d) and embeddings (%d)", len(passageIDs), len(embeddings))
	}
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT INTO vec_passages (passage_id, embedding) VALUES (?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, pid := range passageIDs {
		blob, err := sqlite_vec.SerializeFloat32(embeddings[i])
		if err != nil {
			return fmt.Errorf("serialize embedding for passage %d: %w", pid, err)
		}
		if _, err := stmt.Exec(pid, blob); err != nil {
			return fmt.Errorf("insert embedding for passage %d: %w", pid, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) Search(queryEmbedding []float32, k int) ([]SearchResult, error) {
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	// vec0 knn queries need the k constraint in the WHERE clause; a bound
	// LIMIT parameter is not pushed down to the virtual table.
	rows, err := s.db.Query(`
		SELECT v.passage_id, v.distance, p.source, p.page, p.content
		FROM vec_passages v
		JOIN passages p ON p.id = v.passage_id
		WHERE v.embedding MATCH ? AND v.k = ?
		ORDER BY v.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		err := rows.Scan(&r.Passage.ID, &r.Distance, &r.Passage.Source, &r.Passage.Page, &r.Passage.Content)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

func (s *SQLiteStore) CountPassages() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM passages").Scan(&n)
	return n, err
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
