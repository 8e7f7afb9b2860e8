package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
)

func init() {
	// Register sqlite-vec as an auto-extension so every SQLite connection
	// opened by this process has the vec0 virtual table module available.
	vec.Auto()
}

// DefaultEmbeddingDimension sizes vec0 tables when no dimension is given.
// It matches the offline local embedder.
const DefaultEmbeddingDimension = 256

// DB wraps a *sql.DB and exposes helpers.
type DB struct {
	conn      *sql.DB
	dimension int
	vectors   bool
}

// Option configures Open.
type Option func(*DB)

// WithEmbeddingDimension sets the vector width of the vec0 tables. It only
// takes effect when the tables are first created.
func WithEmbeddingDimension(dim int) Option {
	return func(d *DB) {
		if dim > 0 {
			d.dimension = dim
		}
	}
}

// Open opens (or creates) the SQLite database at path and applies migrations.
func Open(path string, opts ...Option) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000", absPath)
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single writer, multiple readers.
	conn.SetMaxOpenConns(1)

	d := &DB{conn: conn, dimension: DefaultEmbeddingDimension}
	for _, opt := range opts {
		opt(d)
	}

	if err := applyMigrations(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	// sqlite-vec may not be available in every build; snippet search then
	// degrades to empty results.
	d.vectors = applyVectorTables(conn, d.dimension) == nil

	return d, nil
}

// Conn returns the underlying *sql.DB for use by store/vector layers.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// VectorsEnabled reports whether the vec0 tables are available.
func (d *DB) VectorsEnabled() bool {
	return d.vectors
}

// Dimension returns the configured embedding width.
func (d *DB) Dimension() int {
	return d.dimension
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Ping checks the connection is live.
func (d *DB) Ping() error {
	return d.conn.Ping()
}
