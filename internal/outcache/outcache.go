// Package outcache stores compile results in SQLite so batch builds can
// skip files whose source and resolved pipeline have not changed.
package outcache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/agentic-research/kiln/api"
	"github.com/agentic-research/kiln/internal/pipeline"
)

// Cache is an on-disk map from compile key to output. It is safe for
// concurrent use.
type Cache struct {
	db *sql.DB
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
		`CREATE TABLE IF NOT EXISTS outputs (
			key TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			code TEXT NOT NULL,
			map TEXT,
			created INTEGER NOT NULL
		) WITHOUT ROWID`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init cache schema: %w", err)
		}
	}
	return &Cache{db: db}, nil
}

// Key identifies one compile: the source text, its name and everything
// the resolved pipeline would do to it, env values included.
func Key(name, src string, built *pipeline.BuiltConfig) (string, error) {
	desc, err := json.Marshal(built)
	if err != nil {
		return "", fmt.Errorf("encode pipeline: %w", err)
	}
	h := sha256.New()
	for _, part := range [][]byte{[]byte(name), desc, []byte(src)} {
		h.Write(part)
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Get returns the cached output for key. ok is false on a miss.
func (c *Cache) Get(key string) (out *api.Output, ok bool, err error) {
	var code string
	var m sql.NullString
	err = c.db.QueryRow(`SELECT code, map FROM outputs WHERE key = ?`, key).Scan(&code, &m)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("query cache: %w", err)
	}
	out = &api.Output{Code: code}
	if m.Valid {
		out.Map = &m.String
	}
	return out, true, nil
}

// Put stores out under key, replacing any previous entry.
func (c *Cache) Put(key, name string, out *api.Output) error {
	var m sql.NullString
	if out.Map != nil {
		m = sql.NullString{String: *out.Map, Valid: true}
	}
	_, err := c.db.Exec(`INSERT OR REPLACE INTO outputs (key, name, code, map, created) VALUES (?, ?, ?, ?, ?)`,
		key, name, out.Code, m, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("store %s: %w", name, err)
	}
	return nil
}

// Len returns the number of cached outputs.
func (c *Cache) Len() (int, error) {
	var n int
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM outputs`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count cache: %w", err)
	}
	return n, nil
}

// Prune drops entries stored before cutoff and returns how many went.
func (c *Cache) Prune(cutoff time.Time) (int64, error) {
	res, err := c.db.Exec(`DELETE FROM outputs WHERE created < ?`, cutoff.Unix())
	if err != nil {
		return 0, fmt.Errorf("prune cache: %w", err)
	}
	return res.RowsAffected()
}

func (c *Cache) Close() error {
	return c.db.Close()
}
