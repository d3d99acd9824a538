package cache

import (
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/etmc-sim/etmc/sim"
)

// schema.sql creates the append-only simulation_results table.
//
//go:embed schema.sql
var schemaSQL string

var _ sim.ResultStore = (*SQLiteStore)(nil)

// SQLiteStore keeps one row per entry. Rows are only ever inserted or deleted.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening cache database: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialising cache schema: %w", err)
	}
	logrus.Debugf("opened simulation cache database %s", path)
	return &SQLiteStore{db: db}, nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Read implements sim.ResultStore.
func (s *SQLiteStore) Read(key sim.SimulationKey) (*sim.SimulationResult, error) {
	rows, err := s.db.Query(
		`SELECT name, body FROM simulation_results WHERE canonical_key = ? ORDER BY id DESC`,
		key.Canonical())
	if err != nil {
		return nil, fmt.Errorf("querying cache: %w", err)
	}
	defer rows.Close()

	unreadable := 0
	var first error
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		r, err := decodeEntry([]byte(body))
		if err != nil {
			logrus.Warnf("skipping cache entry %s: %v", name, err)
			if first == nil {
				first = fmt.Errorf("%s: %w", name, err)
			}
			unreadable++
			continue
		}
		return r, nil
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating cache rows: %w", err)
	}
	return nil, missError(key, unreadable, first)
}

// Write implements sim.ResultStore.
func (s *SQLiteStore) Write(result *sim.SimulationResult) error {
	result = stamp(result)
	body, err := encodeEntry(result)
	if err != nil {
		return err
	}
	// Row ids order entries; the name only needs to be unique.
	name := entryName(time.Now(), result.Key)
	_, err = s.db.Exec(
		`INSERT INTO simulation_results (name, canonical_key, created_at, body) VALUES (?, ?, ?, ?)`,
		name, result.Key.Canonical(), result.CreatedAt.UTC().Format(timestampLayout), string(body))
	if err != nil {
		return fmt.Errorf("inserting cache entry: %w", err)
	}
	logrus.Debugf("wrote cache row %s (%d bytes)", name, len(body))
	return nil
}

// ids returns row ids oldest first.
func (s *SQLiteStore) ids() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM simulation_results ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// List implements sim.ResultStore.
func (s *SQLiteStore) List() ([]sim.EntryInfo, error) {
	rows, err := s.db.Query(`SELECT name, body FROM simulation_results ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing cache: %w", err)
	}
	defer rows.Close()
	var infos []sim.EntryInfo
	for rows.Next() {
		var name, body string
		if err := rows.Scan(&name, &body); err != nil {
			return nil, fmt.Errorf("scanning cache row: %w", err)
		}
		info := sim.EntryInfo{Index: len(infos), Name: name, Size: int64(len(body))}
		if r, err := decodeEntry([]byte(body)); err != nil {
			info.Err = err
		} else {
			info.Key = r.Key
			info.CreatedAt = r.CreatedAt
		}
		infos = append(infos, info)
	}
	return infos, rows.Err()
}

// Delete implements sim.ResultStore.
func (s *SQLiteStore) Delete(index int) error {
	ids, err := s.ids()
	if err != nil {
		return err
	}
	if index < 0 || index >= len(ids) {
		return fmt.Errorf("cache index %d out of range [0, %d)", index, len(ids))
	}
	if _, err := s.db.Exec(`DELETE FROM simulation_results WHERE id = ?`, ids[index]); err != nil {
		return fmt.Errorf("deleting cache entry: %w", err)
	}
	return nil
}

// Clear implements sim.ResultStore.
func (s *SQLiteStore) Clear() (int, error) {
	res, err := s.db.Exec(`DELETE FROM simulation_results`)
	if err != nil {
		return 0, fmt.Errorf("clearing cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
