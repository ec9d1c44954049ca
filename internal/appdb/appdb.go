// Package appdb holds the application database: user accounts, the per-user
// document registry, and the action log. It is deliberately separate from
// the per-user vector indexes, which live in their own namespaces.
package appdb

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrUserExists is returned when registering a taken username or email.
	ErrUserExists = errors.New("user already exists")

	// ErrInvalidCredentials is returned on a failed login.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrUserNotFound is returned when looking up an unknown username.
	ErrUserNotFound = errors.New("user not found")
)

// User is a registered account.
type User struct {
	ID        int64
	Username  string
	Email     string
	Role      string
	CreatedAt time.Time
}

// DB wraps the application SQLite database.
type DB struct {
	db *sql.DB
}

// Open creates or opens the application database at the given path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open app db: %w", err)
	}
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init app schema: %w", err)
	}
	return &DB{db: db}, nil
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (d *DB) CreateUser(username, email, password, role string) (*User, error) {
	if role == "" {
		role = "user"
	}
	var existing int64
	err := d.db.QueryRow("SELECT id FROM users WHERE username = ? OR email = ?", username, email).Scan(&existing)
	if err == nil {
		return nil, ErrUserExists
	}
	if err != sql.ErrNoRows {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	res, err := d.db.Exec(
		"INSERT INTO users (username, email, password_hash, role) VALUES (?, ?, ?, ?)",
		username, email, string(hash), role,
	)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &User{ID: id, Username: username, Email: email, Role: role}, nil
}

// Authenticate verifies a username/password pair and returns the account.
func (d *DB) Authenticate(username, password string) (*User, error) {
	var u User
	var hash string
	err := d.db.QueryRow(
		"SELECT id, username, email, password_hash, role, created_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &hash, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	return &u, nil
}

// LookupUser resolves a username to its account.
func (d *DB) LookupUser(username string) (*User, error) {
	var u User
	err := d.db.QueryRow(
		"SELECT id, username, email, role, created_at FROM users WHERE username = ?",
		username,
	).Scan(&u.ID, &u.Username, &u.Email, &u.Role, &u.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// RecordDocument registers one metadata row per (user, filename). Recording
// a filename already present for that user is a no-op, so re-processing a
// batch never double-records.
func (d *DB) RecordDocument(userID int64, filename, filePath string, chunkCount int) error {
	var existing int64
	err := d.db.QueryRow(
		"SELECT id FROM documents WHERE user_id = ? AND filename = ?",
		userID, filename,
	).Scan(&existing)
	if err == nil {
		return nil
	}
	if err != sql.ErrNoRows {
		return err
	}
	_, err = d.db.Exec(
		"INSERT INTO documents (filename, file_path, chunk_count, user_id) VALUES (?, ?, ?, ?)",
		filename, filePath, chunkCount, userID,
	)
	return err
}

// LogAction appends one audit entry for a user.
func (d *DB) LogAction(userID int64, action, detail string) error {
	_, err := d.db.Exec(
		"INSERT INTO logs (action, details, user_id) VALUES (?, ?, ?)",
		action, detail, userID,
	)
	return err
}

// Close closes the underlying database.
func (d *DB) Close() error {
	return d.db.Close()
}
