package pipeline

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/aluiziolira/go-scrape-reviews/models"
	_ "modernc.org/sqlite"
)

const reviewsSchema = `
CREATE TABLE IF NOT EXISTS reviews (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	target_name    TEXT    NOT NULL,
	declared_total INTEGER NOT NULL,
	review_text    TEXT    NOT NULL,
	reviewer       TEXT    NOT NULL,
	rating         INTEGER NOT NULL
)`

// SQLiteWriter stores reviews in a SQLite database. Insertion order is kept
// by the autoincrement id.
type SQLiteWriter struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteWriter opens the database at filename and recreates the reviews
// table, discarding rows of a previous run.
func NewSQLiteWriter(filename string) (*SQLiteWriter, error) {
	if err := ensureDir(filename); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`DROP TABLE IF EXISTS reviews`); err != nil {
		db.Close()
		return nil, fmt.Errorf("drop previous reviews table: %w", err)
	}
	if _, err := db.Exec(reviewsSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create reviews table: %w", err)
	}

	return &SQLiteWriter{db: db, path: filename}, nil
}

// Write inserts one batch of reviews in a single transaction.
func (sw *SQLiteWriter) Write(reviews []*models.Review) error {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	tx, err := sw.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT INTO reviews (target_name, declared_total, review_text, reviewer, rating) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, review := range reviews {
		if _, err := stmt.Exec(review.TargetName, review.DeclaredTotal, review.Text, review.Reviewer, review.Rating); err != nil {
			return fmt.Errorf("insert review: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit reviews: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (sw *SQLiteWriter) Close() error {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.db.Close()
}

// Validate ensures the reviews table is readable.
func (sw *SQLiteWriter) Validate() error {
	var n int
	if err := sw.db.QueryRow(`SELECT COUNT(*) FROM reviews`).Scan(&n); err != nil {
		return fmt.Errorf("count reviews: %w", err)
	}
	return nil
}

// Path returns the database file path.
func (sw *SQLiteWriter) Path() string {
	return sw.path
}
