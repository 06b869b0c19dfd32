package store

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/goccy/go-json"
)

// JsonFileStore stores each database as a separate JSON file on disk.
//
// Layout:
//
//	data_dir/
//	  posts.json   # "posts" database
//	  users.json   # "users" database
//
// Each file holds the update sequence and the current revision of every
// document, tombstones included.
type JsonFileStore struct {
	mu  sync.RWMutex
	dir string
}

type dbFile struct {
	UpdateSeq int64                `json:"update_seq"`
	Docs      map[string]*Document `json:"docs"`
}

func NewJsonFileStore(dir string) (*JsonFileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &JsonFileStore{dir: dir}, nil
}

func (s *JsonFileStore) dbPath(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *JsonFileStore) load(name string) (*dbFile, error) {
	data, err := os.ReadFile(s.dbPath(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoDB
		}
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	f := &dbFile{}
	if err := dec.Decode(f); err != nil {
		return nil, err
	}
	if f.Docs == nil {
		f.Docs = make(map[string]*Document)
	}
	for id, d := range f.Docs {
		d.ID = id
	}
	return f, nil
}

func (s *JsonFileStore) save(name string, f *dbFile) error {
	b, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.dbPath(name) + ".tmp"
	if err := os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.dbPath(name))
}

func (s *JsonFileStore) CreateDB(name string) error {
	if err := ValidDBName(name); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := os.Stat(s.dbPath(name)); err == nil {
		return ErrDBExists
	}
	return s.save(name, &dbFile{Docs: map[string]*Document{}})
}

func (s *JsonFileStore) DeleteDB(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.dbPath(name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrNoDB
	}
	return err
}

func (s *JsonFileStore) ListDBs() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := []string{}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasSuffix(name, ".json") {
			continue
		}
		name = strings.TrimSuffix(name, ".json")
		if ValidDBName(name) != nil {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *JsonFileStore) Info(name string) (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, err := s.load(name)
	if err != nil {
		return Info{}, err
	}
	info := Info{Name: name, UpdateSeq: f.UpdateSeq}
	for _, d := range f.Docs {
		if d.Deleted {
			info.DelCount++
		} else {
			info.DocCount++
		}
	}
	return info, nil
}

func (s *JsonFileStore) Get(db, id string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, err := s.load(db)
	if err != nil {
		return nil, err
	}
	doc, ok := f.Docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *JsonFileStore) Put(db, id, rev string, fields map[string]any) (*Document, error) {
	return s.write(db, id, rev, fields, false)
}

func (s *JsonFileStore) Remove(db, id, rev string) (*Document, error) {
	return s.write(db, id, rev, nil, true)
}

func (s *JsonFileStore) write(db, id, rev string, fields map[string]any, deleted bool) (*Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := s.load(db)
	if err != nil {
		return nil, err
	}
	prev := f.Docs[id]
	check := checkPut
	if deleted {
		check = checkRemove
	}
	if err := check(prev, rev); err != nil {
		return nil, err
	}
	f.UpdateSeq++
	doc := &Document{
		ID:      id,
		Rev:     nextRevision(prev, fields, deleted),
		Deleted: deleted,
		Seq:     f.UpdateSeq,
		Fields:  deepCopy(fields),
	}
	f.Docs[id] = doc
	if err := s.save(db, f); err != nil {
		return nil, err
	}
	return copyDoc(doc), nil
}

func (s *JsonFileStore) AllDocs(db string) ([]*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	f, err := s.load(db)
	if err != nil {
		return nil, err
	}
	docs := make([]*Document, 0, len(f.Docs))
	for _, d := range f.Docs {
		if !d.Deleted {
			docs = append(docs, d)
		}
	}
	sortDocs(docs)
	return docs, nil
}
