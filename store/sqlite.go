package store

import (
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/goccy/go-json"
	_ "github.com/mattn/go-sqlite3"
)

// SqliteStore stores all databases in a single SQLite file.
//
// Tables:
//
//	dbs(name, seq)                               PRIMARY KEY (name)
//	documents(db, id, rev, deleted, seq, data)   PRIMARY KEY (db, id)
type SqliteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

func NewSqliteStore(dbPath string) (*SqliteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS dbs (
		name TEXT PRIMARY KEY,
		seq INTEGER NOT NULL DEFAULT 0
	)`); err != nil {
		db.Close()
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		db TEXT NOT NULL,
		id TEXT NOT NULL,
		rev TEXT NOT NULL,
		deleted INTEGER NOT NULL DEFAULT 0,
		seq INTEGER NOT NULL,
		data TEXT,
		PRIMARY KEY (db, id)
	)`); err != nil {
		db.Close()
		return nil, err
	}
	return &SqliteStore{db: db}, nil
}

func (s *SqliteStore) Close() error {
	return s.db.Close()
}

func (s *SqliteStore) CreateDB(name string) error {
	if err := ValidDBName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	res, err := s.db.Exec("INSERT OR IGNORE INTO dbs (name, seq) VALUES (?, 0)", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrDBExists
	}
	return nil
}

func (s *SqliteStore) DeleteDB(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	res, err := tx.Exec("DELETE FROM dbs WHERE name = ?", name)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNoDB
	}
	if _, err := tx.Exec("DELETE FROM documents WHERE db = ?", name); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *SqliteStore) ListDBs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rows, err := s.db.Query("SELECT name FROM dbs ORDER BY name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *SqliteStore) Info(name string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	info := Info{Name: name}
	err := s.db.QueryRow("SELECT seq FROM dbs WHERE name = ?", name).Scan(&info.UpdateSeq)
	if errors.Is(err, sql.ErrNoRows) {
		return Info{}, ErrNoDB
	}
	if err != nil {
		return Info{}, err
	}
	err = s.db.QueryRow(`SELECT
		COALESCE(SUM(CASE WHEN deleted = 0 THEN 1 ELSE 0 END), 0),
		COALESCE(SUM(deleted), 0)
		FROM documents WHERE db = ?`, name).Scan(&info.DocCount, &info.DelCount)
	if err != nil {
		return Info{}, err
	}
	return info, nil
}

type querier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func (s *SqliteStore) Get(db, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := dbExists(s.db, db); err != nil {
		return nil, err
	}
	doc, err := getDoc(s.db, db, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrNotFound
	}
	return doc, nil
}

func dbExists(q querier, name string) error {
	var n int
	err := q.QueryRow("SELECT 1 FROM dbs WHERE name = ?", name).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNoDB
	}
	return err
}

// getDoc returns nil without error when the row is absent.
func getDoc(q querier, db, id string) (*Document, error) {
	var (
		doc     = &Document{ID: id}
		deleted int
		raw     sql.NullString
	)
	err := q.QueryRow("SELECT rev, deleted, seq, data FROM documents WHERE db = ? AND id = ?", db, id).
		Scan(&doc.Rev, &deleted, &doc.Seq, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	doc.Deleted = deleted != 0
	if raw.Valid && raw.String != "" {
		fields, err := decodeBody([]byte(raw.String))
		if err != nil {
			return nil, err
		}
		doc.Fields = fields
	}
	return doc, nil
}

func (s *SqliteStore) Put(db, id, rev string, fields map[string]any) (*Document, error) {
	return s.write(db, id, rev, fields, false)
}

func (s *SqliteStore) Remove(db, id, rev string) (*Document, error) {
	return s.write(db, id, rev, nil, true)
}

func (s *SqliteStore) write(db, id, rev string, fields map[string]any, deleted bool) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRow("SELECT seq FROM dbs WHERE name = ?", db).Scan(&seq)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoDB
	}
	if err != nil {
		return nil, err
	}
	prev, err := getDoc(tx, db, id)
	if err != nil {
		return nil, err
	}
	check := checkPut
	if deleted {
		check = checkRemove
	}
	if err := check(prev, rev); err != nil {
		return nil, err
	}

	seq++
	doc := &Document{
		ID:      id,
		Rev:     nextRevision(prev, fields, deleted),
		Deleted: deleted,
		Seq:     seq,
		Fields:  deepCopy(fields),
	}
	var data sql.NullString
	if fields != nil {
		b, err := json.Marshal(fields)
		if err != nil {
			return nil, err
		}
		data = sql.NullString{String: string(b), Valid: true}
	}
	if _, err := tx.Exec("UPDATE dbs SET seq = ? WHERE name = ?", seq, db); err != nil {
		return nil, err
	}
	_, err = tx.Exec(
		`INSERT INTO documents (db, id, rev, deleted, seq, data) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(db, id) DO UPDATE SET rev = excluded.rev, deleted = excluded.deleted,
		 seq = excluded.seq, data = excluded.data`,
		db, id, doc.Rev, deleted, seq, data,
	)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *SqliteStore) AllDocs(db string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := dbExists(s.db, db); err != nil {
		return nil, err
	}
	rows, err := s.db.Query("SELECT id, rev, seq, data FROM documents WHERE db = ? AND deleted = 0 ORDER BY id", db)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	docs := []*Document{}
	for rows.Next() {
		doc := &Document{}
		var raw sql.NullString
		if err := rows.Scan(&doc.ID, &doc.Rev, &doc.Seq, &raw); err != nil {
			return nil, err
		}
		if raw.Valid && raw.String != "" {
			fields, err := decodeBody([]byte(raw.String))
			if err != nil {
				continue
			}
			doc.Fields = fields
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}
