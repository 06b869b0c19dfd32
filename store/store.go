// Package store defines the backing store interface and implementations
// for the couchsim emulator.
//
// Every backend keeps full revision semantics: a write must present the
// current revision of a live document, deletes leave a tombstone, and the
// revision check and the write happen under the same lock.
package store

import "errors"

var (
	ErrDBExists = errors.New("store: database already exists")
	ErrNoDB     = errors.New("store: database does not exist")
	ErrBadName  = errors.New("store: illegal database name")
	ErrNotFound = errors.New("store: document not found")
	ErrConflict = errors.New("store: document update conflict")
)

// Document is the current revision of a stored document.
type Document struct {
	ID      string         `json:"-"`
	Rev     string         `json:"rev"`
	Deleted bool           `json:"deleted,omitempty"`
	Seq     int64          `json:"seq"`
	Fields  map[string]any `json:"fields,omitempty"`
}

// Info describes a database.
type Info struct {
	Name      string `json:"db_name"`
	DocCount  int    `json:"doc_count"`
	DelCount  int    `json:"doc_del_count"`
	UpdateSeq int64  `json:"update_seq"`
}

// Store is the interface that all backing stores must implement.
// It operates on named databases, each holding documents keyed by id.
type Store interface {
	// CreateDB creates an empty database.
	CreateDB(name string) error

	// DeleteDB drops a database and everything in it.
	DeleteDB(name string) error

	// ListDBs returns every database name, sorted.
	ListDBs() ([]string, error)

	// Info returns document counts for a database.
	Info(name string) (Info, error)

	// Get returns the current revision of a document. Tombstones are
	// returned with Deleted set; ErrNotFound means the id was never written.
	Get(db, id string) (*Document, error)

	// Put writes fields as the next revision of id. rev must be the current
	// revision of a live document, or empty when the document is missing
	// or deleted.
	Put(db, id, rev string, fields map[string]any) (*Document, error)

	// Remove replaces a live document with a tombstone.
	Remove(db, id, rev string) (*Document, error)

	// AllDocs returns the live documents of a database, sorted by id.
	AllDocs(db string) ([]*Document, error)
}
