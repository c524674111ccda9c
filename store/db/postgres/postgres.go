// Package postgres implements remote.Client on PostgreSQL with the pgvector
// extension. Each index is a table of (id, embedding, metadata) rows and
// scores are cosine similarities computed by the database.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/hrygo/vectorbase/store/remote"
)

// maxIdentifierLen is PostgreSQL's NAMEDATALEN - 1.
const maxIdentifierLen = 63

var indexNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIndexName reports whether name can be used as a table name without
// quoting surprises.
func isValidIndexName(name string) bool {
	return indexNamePattern.MatchString(name) && len(name) <= maxIdentifierLen
}

// Client creates and opens pgvector tables on one connection pool.
type Client struct {
	db         *sql.DB
	dimensions int
	ownsDB     bool
}

var _ remote.Client = (*Client)(nil)

// NewClient opens a connection pool for dsn. dimensions fixes the width of the
// vector column for tables this client creates; 0 leaves it unconstrained.
func NewClient(dsn string, dimensions int) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "failed to open db")
	}
	c := NewClientWithDB(db, dimensions)
	c.ownsDB = true
	return c, nil
}

// NewClientWithDB wraps an existing pool. Close leaves the pool open.
func NewClientWithDB(db *sql.DB, dimensions int) *Client {
	return &Client{db: db, dimensions: dimensions}
}

// GetIndex ensures the pgvector extension and the backing table exist and
// returns a handle on it.
func (c *Client) GetIndex(ctx context.Context, name string) (remote.Index, error) {
	if !isValidIndexName(name) {
		return nil, errors.Errorf("invalid index name %q", name)
	}
	if _, err := c.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return nil, errors.Wrap(err, "failed to create vector extension")
	}

	column := "vector"
	if c.dimensions > 0 {
		column = fmt.Sprintf("vector(%d)", c.dimensions)
	}
	table := pq.QuoteIdentifier(name)
	stmt := `CREATE TABLE IF NOT EXISTS ` + table + ` (
		id TEXT PRIMARY KEY,
		embedding ` + column + ` NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb
	)`
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return nil, errors.Wrapf(err, "failed to create table %s", name)
	}

	slog.Debug("postgres index ready", "index", name, "dimensions", c.dimensions)
	return &Index{db: c.db, table: table}, nil
}

// Close releases the pool if this client opened it.
func (c *Client) Close() error {
	if !c.ownsDB {
		return nil
	}
	return c.db.Close()
}
