package store

import (
	"sort"
	"sync"
)

type memDB struct {
	docs map[string]*Document
	seq  int64
}

// MemoryStore keeps everything in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu  sync.RWMutex
	dbs map[string]*memDB
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{dbs: make(map[string]*memDB)}
}

func (m *MemoryStore) CreateDB(name string) error {
	if err := ValidDBName(name); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dbs[name]; ok {
		return ErrDBExists
	}
	m.dbs[name] = &memDB{docs: make(map[string]*Document)}
	return nil
}

func (m *MemoryStore) DeleteDB(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dbs[name]; !ok {
		return ErrNoDB
	}
	delete(m.dbs, name)
	return nil
}

func (m *MemoryStore) ListDBs() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.dbs))
	for name := range m.dbs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemoryStore) Info(name string) (Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, ok := m.dbs[name]
	if !ok {
		return Info{}, ErrNoDB
	}
	info := Info{Name: name, UpdateSeq: db.seq}
	for _, d := range db.docs {
		if d.Deleted {
			info.DelCount++
		} else {
			info.DocCount++
		}
	}
	return info, nil
}

func (m *MemoryStore) Get(dbName, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, ok := m.dbs[dbName]
	if !ok {
		return nil, ErrNoDB
	}
	doc, ok := db.docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyDoc(doc), nil
}

func (m *MemoryStore) Put(dbName, id, rev string, fields map[string]any) (*Document, error) {
	return m.write(dbName, id, rev, fields, false)
}

func (m *MemoryStore) Remove(dbName, id, rev string) (*Document, error) {
	return m.write(dbName, id, rev, nil, true)
}

func (m *MemoryStore) write(dbName, id, rev string, fields map[string]any, deleted bool) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	db, ok := m.dbs[dbName]
	if !ok {
		return nil, ErrNoDB
	}
	prev := db.docs[id]
	check := checkPut
	if deleted {
		check = checkRemove
	}
	if err := check(prev, rev); err != nil {
		return nil, err
	}
	db.seq++
	doc := &Document{
		ID:      id,
		Rev:     nextRevision(prev, fields, deleted),
		Deleted: deleted,
		Seq:     db.seq,
		Fields:  deepCopy(fields),
	}
	db.docs[id] = doc
	return copyDoc(doc), nil
}

func (m *MemoryStore) AllDocs(dbName string) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	db, ok := m.dbs[dbName]
	if !ok {
		return nil, ErrNoDB
	}
	docs := make([]*Document, 0, len(db.docs))
	for _, d := range db.docs {
		if !d.Deleted {
			docs = append(docs, copyDoc(d))
		}
	}
	sortDocs(docs)
	return docs, nil
}

func sortDocs(docs []*Document) {
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
}
