// Package store is the SQLite-backed resource store: the runtime resolves
// icon, sound and document resources through it by path.
package store

import (
	"database/sql"
	"fmt"

	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/distributivgesetz/opendream/vm"
)

const schema = `
CREATE TABLE IF NOT EXISTS resources (
	id   INTEGER PRIMARY KEY AUTOINCREMENT,
	path TEXT NOT NULL UNIQUE,
	data BLOB NOT NULL
);
`

// Store resolves resources from a SQLite database. It implements
// vm.ResourceResolver.
type Store struct {
	db  *sql.DB
	log commonlog.Logger
}

// Open opens (creating if needed) a resource store at the given path.
// Use ":memory:" for an ephemeral store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: init schema: %w", err)
	}
	return &Store{db: db, log: commonlog.GetLogger("store")}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert adds (or replaces) a resource and returns its id.
func (s *Store) Insert(path string, data []byte) (int64, error) {
	var id int64
	err := s.db.QueryRow(
		`INSERT INTO resources (path, data) VALUES (?, ?)
		 ON CONFLICT(path) DO UPDATE SET data = excluded.data
		 RETURNING id`,
		path, data).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("store: insert %s: %w", path, err)
	}
	return id, nil
}

// Resolve implements vm.ResourceResolver. Unknown paths still yield a
// handle so missing assets surface at use time rather than load time.
func (s *Store) Resolve(path string) (*vm.Resource, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM resources WHERE path = ?`, path).Scan(&id)
	switch err {
	case nil:
		return &vm.Resource{ID: id, Path: path}, nil
	case sql.ErrNoRows:
		s.log.Warningf("resource %q not in store", path)
		return &vm.Resource{Path: path}, nil
	default:
		return nil, fmt.Errorf("store: resolve %s: %w", path, err)
	}
}

// Data fetches a resource's bytes by path.
func (s *Store) Data(path string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM resources WHERE path = ?`, path).Scan(&data)
	switch err {
	case nil:
		return data, true, nil
	case sql.ErrNoRows:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("store: data %s: %w", path, err)
	}
}

// Paths lists every stored resource path.
func (s *Store) Paths() ([]string, error) {
	rows, err := s.db.Query(`SELECT path FROM resources ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("store: list: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}
