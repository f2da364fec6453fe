package testbed

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

const createBenchItems = `CREATE TABLE IF NOT EXISTS bench_items (
id INTEGER PRIMARY KEY,
name TEXT NOT NULL,
value INTEGER NOT NULL);`

// BenchItem is one fixture row.
type BenchItem struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Value int    `json:"value"`
}

// Store is the sqlite fixture table behind the db and cache endpoint
// families.
type Store struct {
	db *sql.DB
}

func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	store := &Store{db: db}
	if err := store.Init(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing store: %v", err)
	}
	return store, nil
}

func (s *Store) Init() error {
	// writers queue instead of failing immediately when the benchmark
	// drives concurrent updates
	if _, err := s.db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		return err
	}
	_, err := s.db.Exec(createBenchItems)
	return err
}

// Seed fills the fixture table with rows 1..count. A non-empty table
// is left alone, so repeat seeds report zero inserts.
func (s *Store) Seed(count int) (int, error) {
	var existing int
	if err := s.db.QueryRow("SELECT COUNT(1) FROM bench_items").Scan(&existing); err != nil {
		return 0, err
	}
	if existing > 0 {
		return 0, nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	stmt, err := tx.Prepare("INSERT INTO bench_items (id, name, value) VALUES (?, ?, ?)")
	if err != nil {
		_ = tx.Rollback()
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	for i := 1; i <= count; i++ {
		if _, err := stmt.Exec(i, fmt.Sprintf("item-%d", i), i); err != nil {
			_ = tx.Rollback()
			return 0, err
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return count, nil
}

// Read returns the row for id, or nil when it does not exist.
func (s *Store) Read(id int) (*BenchItem, error) {
	var item BenchItem
	err := s.db.QueryRow("SELECT id, name, value FROM bench_items WHERE id = ?", id).
		Scan(&item.ID, &item.Name, &item.Value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Write bumps the row's value and marks its name updated, returning
// the new state. A missing row returns nil.
func (s *Store) Write(id int) (*BenchItem, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	var item BenchItem
	err = tx.QueryRow("SELECT id, name, value FROM bench_items WHERE id = ?", id).
		Scan(&item.ID, &item.Name, &item.Value)
	if err == sql.ErrNoRows {
		_ = tx.Rollback()
		return nil, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	item.Value++
	item.Name = fmt.Sprintf("item-%d-updated", id)
	if _, err := tx.Exec("UPDATE bench_items SET name = ?, value = ? WHERE id = ?",
		item.Name, item.Value, id); err != nil {
		_ = tx.Rollback()
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) Healthy() error {
	return s.db.Ping()
}

func (s *Store) Close() error {
	return s.db.Close()
}
