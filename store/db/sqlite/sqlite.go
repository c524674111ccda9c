// Package sqlite implements remote.Client on a local SQLite file.
//
// SQLite has no vector type: embeddings are stored as little-endian float32
// BLOBs and similarity is computed in Go over a full table scan. It is meant
// for development and single-user installs, not large indexes.
package sqlite

import (
	"context"
	"database/sql"
	"log/slog"
	"regexp"

	"github.com/pkg/errors"

	// Import the SQLite driver.
	_ "modernc.org/sqlite"

	"github.com/hrygo/vectorbase/store/remote"
)

var indexNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// isValidIndexName validates that a table name contains only safe characters.
func isValidIndexName(name string) bool {
	return indexNamePattern.MatchString(name) && len(name) <= 64
}

// Client serves indexes as tables of one SQLite database file.
type Client struct {
	db *sql.DB
}

var _ remote.Client = (*Client)(nil)

// NewClient opens the database file at dsn.
func NewClient(dsn string) (*Client, error) {
	if dsn == "" {
		return nil, errors.New("dsn required")
	}

	// modernc.org/sqlite takes pragmas as _pragma= parameters.
	db, err := sql.Open("sqlite", dsn+"?_pragma=foreign_keys(0)&_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open db with dsn: %s", dsn)
	}

	// Single connection: SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	return &Client{db: db}, nil
}

// GetIndex creates the backing table if needed.
func (c *Client) GetIndex(ctx context.Context, name string) (remote.Index, error) {
	if !isValidIndexName(name) {
		return nil, errors.Errorf("invalid index name %q", name)
	}

	stmt := `CREATE TABLE IF NOT EXISTS ` + name + ` (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		embedding BLOB NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}'
	)`
	if _, err := c.db.ExecContext(ctx, stmt); err != nil {
		return nil, errors.Wrapf(err, "failed to create table %s", name)
	}

	slog.Debug("sqlite index ready", "index", name)
	return &Index{db: c.db, table: name}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}
