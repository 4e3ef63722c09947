package storage

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// Database is a SQLite connection shared by ProjectDB and ResultDB,
// tuned the same way regardless of which table it's driving.
type Database struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open opens (and creates, if missing) the SQLite file at path.
func Open(path string) (*Database, error) {
	dsn := fmt.Sprintf("%s?_journal=WAL&_synchronous=NORMAL&_busy_timeout=5000", path)

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("storage: ping: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("storage: create schema: %w", err)
	}

	return &Database{db: db}, nil
}

// Close closes the underlying connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// ProjectDB returns the ProjectDB view of this connection.
func (d *Database) ProjectDB() *ProjectDB {
	return &ProjectDB{d: d}
}

// ResultDB returns the ResultDB view of this connection.
func (d *Database) ResultDB() *ResultDB {
	return &ResultDB{d: d}
}
